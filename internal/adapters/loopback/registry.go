package loopback

import (
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dkeye/voicestate/internal/domain"
)

// Registry tracks registered sessions and their group subscriptions.
type Registry struct {
	log zerolog.Logger

	mu       sync.RWMutex
	sessions map[domain.ContactID]*Session
	groups   map[domain.GroupName][]domain.ContactID
}

func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		log:      log.With().Str("module", "loopback.registry").Logger(),
		sessions: make(map[domain.ContactID]*Session),
		groups:   make(map[domain.GroupName][]domain.ContactID),
	}
}

func (r *Registry) Bind(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.id] = s
	r.log.Info().Str("contact", string(s.id)).Msg("bound session")
}

// Unbind forgets id and returns, per group it was in, the members left behind.
func (r *Registry) Unbind(id domain.ContactID) map[domain.GroupName][]*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	left := make(map[domain.GroupName][]*Session)
	for g, members := range r.groups {
		if !slices.Contains(members, id) {
			continue
		}
		r.removeLocked(g, id)
		left[g] = r.sessionsLocked(r.groups[g], id)
	}
	r.log.Info().Str("contact", string(id)).Msg("unbind session")
	return left
}

func (r *Registry) Get(id domain.ContactID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// JoinGroup adds id to g. It reports the other members and whether id was added.
func (r *Registry) JoinGroup(g domain.GroupName, id domain.ContactID) ([]*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if slices.Contains(r.groups[g], id) {
		return nil, false
	}
	others := r.sessionsLocked(r.groups[g], id)
	r.groups[g] = append(r.groups[g], id)
	return others, true
}

// LeaveGroup removes id from g. It reports the remaining members and whether id was there.
func (r *Registry) LeaveGroup(g domain.GroupName, id domain.ContactID) ([]*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !slices.Contains(r.groups[g], id) {
		return nil, false
	}
	r.removeLocked(g, id)
	return r.sessionsLocked(r.groups[g], id), true
}

// Peers returns every session sharing at least one group with id.
func (r *Registry) Peers(id domain.ContactID) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[domain.ContactID]struct{})
	var out []*Session
	for _, members := range r.groups {
		if !slices.Contains(members, id) {
			continue
		}
		for _, s := range r.sessionsLocked(members, id) {
			if _, ok := seen[s.id]; ok {
				continue
			}
			seen[s.id] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

func (r *Registry) removeLocked(g domain.GroupName, id domain.ContactID) {
	members := slices.DeleteFunc(slices.Clone(r.groups[g]), func(x domain.ContactID) bool { return x == id })
	if len(members) == 0 {
		delete(r.groups, g)
		return
	}
	r.groups[g] = members
}

func (r *Registry) sessionsLocked(ids []domain.ContactID, except domain.ContactID) []*Session {
	out := make([]*Session, 0, len(ids))
	for _, id := range ids {
		if id == except {
			continue
		}
		if s, ok := r.sessions[id]; ok {
			out = append(out, s)
		}
	}
	return out
}
