package loopback

import (
	"maps"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/dkeye/voicestate/internal/core"
	"github.com/dkeye/voicestate/internal/domain"
)

type TrackState int32

const (
	TrackStateOk TrackState = iota
	TrackStateDelete
)

// OutTrack is the copy of a published stream handed to one subscriber.
type OutTrack struct {
	Stream *Stream
	state  atomic.Int32 // Zero by default (TrackStateOk)
}

func NewOutTrack(s *Stream) *OutTrack {
	return &OutTrack{Stream: s}
}

func (ot *OutTrack) GetState() TrackState { return TrackState(ot.state.Load()) }
func (ot *OutTrack) MarkDelete()          { ot.state.Store(int32(TrackStateDelete)) }

// Relay fans a published stream out to its subscribers.
type Relay struct {
	Src   *Stream
	Owner domain.ContactID
	Opts  core.PublishOptions

	mu        sync.RWMutex
	outTracks map[domain.ContactID]*OutTrack
}

func NewRelay(src *Stream, owner domain.ContactID, opts core.PublishOptions) *Relay {
	return &Relay{
		Src:       src,
		Owner:     owner,
		Opts:      opts,
		outTracks: make(map[domain.ContactID]*OutTrack),
	}
}

func (r *Relay) AddOutTrack(dst domain.ContactID, ot *OutTrack) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outTracks[dst] = ot
}

func (r *Relay) markAllDelete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ot := range r.outTracks {
		ot.MarkDelete()
	}
}

func (r *Relay) subscribers() map[domain.ContactID]*OutTrack {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.outTracks)
}

// RelayManager owns the relays of one conversation, keyed by published stream ID.
type RelayManager struct {
	log zerolog.Logger

	mu     sync.RWMutex
	relays map[domain.StreamID]*Relay
}

func NewRelayManager(log zerolog.Logger) *RelayManager {
	return &RelayManager{
		log:    log.With().Str("module", "relay").Logger(),
		relays: make(map[domain.StreamID]*Relay),
	}
}

// StartRelay registers src published by owner. A previous relay for the
// same ID is torn down.
func (m *RelayManager) StartRelay(src *Stream, owner domain.ContactID, opts core.PublishOptions) {
	relay := NewRelay(src, owner, opts)

	m.mu.Lock()
	if old, ok := m.relays[src.id]; ok {
		m.log.Info().Str("stream", string(src.id)).Msg("replacing existing relay")
		old.markAllDelete()
	}
	m.relays[src.id] = relay
	m.mu.Unlock()

	m.log.Debug().Str("stream", string(src.id)).Str("contact", string(owner)).Msg("relay started")
}

// Subscribe creates the copy of srcID delivered to dst.
func (m *RelayManager) Subscribe(srcID domain.StreamID, dst domain.ContactID, opts *core.SubscribeOptions) (*OutTrack, error) {
	m.mu.RLock()
	relay, ok := m.relays[srcID]
	m.mu.RUnlock()
	if !ok {
		return nil, core.ErrNoStream
	}
	out, err := relay.Src.remoteCopy(relay.Owner, relay.Opts, opts)
	if err != nil {
		return nil, err
	}
	ot := NewOutTrack(out)
	relay.AddOutTrack(dst, ot)
	return ot, nil
}

// Unsubscribe drops dst from the relay of srcID, if both still exist.
func (m *RelayManager) Unsubscribe(srcID domain.StreamID, dst domain.ContactID) {
	m.mu.RLock()
	relay, ok := m.relays[srcID]
	m.mu.RUnlock()
	if !ok {
		return
	}
	relay.mu.Lock()
	if ot, ok := relay.outTracks[dst]; ok {
		ot.MarkDelete()
		delete(relay.outTracks, dst)
	}
	relay.mu.Unlock()
}

// StopRelay removes the relay of srcID and marks every copy for delete.
// Subscribers drop their copy on their next unsubscribe.
func (m *RelayManager) StopRelay(srcID domain.StreamID) {
	m.mu.Lock()
	relay, ok := m.relays[srcID]
	if ok {
		delete(m.relays, srcID)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	relay.markAllDelete()
	m.log.Debug().Str("stream", string(srcID)).Int("subscribers", len(relay.subscribers())).Msg("relay stopped")
}

func (m *RelayManager) HasRelay(id domain.StreamID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.relays[id]
	return ok
}

// Subscribers lists who currently receives id.
func (m *RelayManager) Subscribers(id domain.StreamID) []domain.ContactID {
	m.mu.RLock()
	relay, ok := m.relays[id]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	out := make([]domain.ContactID, 0)
	for dst, ot := range relay.subscribers() {
		if ot.GetState() == TrackStateOk {
			out = append(out, dst)
		}
	}
	return out
}
