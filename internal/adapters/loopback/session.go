package loopback

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"

	"github.com/dkeye/voicestate/internal/core"
	"github.com/dkeye/voicestate/internal/domain"
)

var errEmptyName = errors.New("empty name")

// Session is a registered user on a Hub.
type Session struct {
	hub *Hub
	ev  core.Listeners
	id  domain.ContactID

	mu     sync.Mutex
	self   domain.Contact
	convs  map[domain.ConversationName]*Conversation
	closed bool
}

func (s *Session) On(name core.EventName, fn core.Handler) core.ListenerID { return s.ev.On(name, fn) }
func (s *Session) Off(id core.ListenerID)                                  { s.ev.Off(id) }

func (s *Session) Self() domain.Contact {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.self.Clone()
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// SubscribeToGroup makes s present in g. s learns who is already there;
// they learn about s.
func (s *Session) SubscribeToGroup(g domain.GroupName) error {
	if g == "" {
		return errEmptyName
	}
	if s.isClosed() {
		return ErrDisconnected
	}
	others, added := s.hub.registry.JoinGroup(g, s.id)
	if !added {
		return nil
	}
	self := s.Self()
	var n []func()
	if len(others) > 0 {
		present := make([]domain.Contact, 0, len(others))
		for _, o := range others {
			present = append(present, o.Self())
		}
		n = append(n, s.hub.emit(&s.ev, core.EventContactListUpdate, core.ContactListUpdate{
			JoinedGroup: map[domain.GroupName][]domain.Contact{g: present},
		}))
	}
	for _, o := range others {
		n = append(n, s.hub.emit(&o.ev, core.EventContactListUpdate, core.ContactListUpdate{
			JoinedGroup: map[domain.GroupName][]domain.Contact{g: {self}},
		}))
	}
	s.hub.post(n...)
	return nil
}

func (s *Session) UnsubscribeToGroup(g domain.GroupName) error {
	if s.isClosed() {
		return ErrDisconnected
	}
	others, removed := s.hub.registry.LeaveGroup(g, s.id)
	if !removed {
		return nil
	}
	s.notifyLeft(g, others)
	return nil
}

func (s *Session) notifyLeft(g domain.GroupName, others []*Session) {
	self := s.Self()
	n := make([]func(), 0, len(others))
	for _, o := range others {
		n = append(n, s.hub.emit(&o.ev, core.EventContactListUpdate, core.ContactListUpdate{
			LeftGroup: map[domain.GroupName][]domain.Contact{g: {self}},
		}))
	}
	s.hub.post(n...)
}

// SetUserData replaces the free-form data of s and tells every group peer.
func (s *Session) SetUserData(data map[string]string) {
	s.mu.Lock()
	s.self.Data = maps.Clone(data)
	self := s.self.Clone()
	s.mu.Unlock()

	peers := s.hub.registry.Peers(s.id)
	n := make([]func(), 0, len(peers))
	for _, p := range peers {
		n = append(n, s.hub.emit(&p.ev, core.EventContactListUpdate, core.ContactListUpdate{
			UserDataChanged: []domain.Contact{self},
		}))
	}
	s.hub.post(n...)
}

func (s *Session) GetOrCreateConversation(name domain.ConversationName, opts *core.ConversationOptions) (core.Conversation, error) {
	if name == "" {
		return nil, errEmptyName
	}
	r := s.hub.rooms.GetOrCreate(s.hub, name, opts)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrDisconnected
	}
	c, ok := s.convs[name]
	if !ok {
		c = &Conversation{room: r, sess: s}
		s.convs[name] = c
	}
	return c, nil
}

// Disconnect leaves every conversation and group. It is idempotent.
func (s *Session) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	convs := slices.Collect(maps.Values(s.convs))
	s.mu.Unlock()

	for _, c := range convs {
		_ = c.Leave(ctx)
	}
	for g, others := range s.hub.registry.Unbind(s.id) {
		s.notifyLeft(g, others)
	}
	return nil
}
