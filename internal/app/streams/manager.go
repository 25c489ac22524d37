package streams

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dkeye/voicestate/internal/app/state"
	"github.com/dkeye/voicestate/internal/core"
)

// Manager owns the Reconciler and Subscriptions of one conversation
// reference and drives both from its joined/left lifecycle.
type Manager struct {
	log  zerolog.Logger
	rec  *Reconciler
	subs *Subscriptions

	// swapMu serializes SetConversation; mu guards the fields below.
	swapMu  sync.Mutex
	mu      sync.Mutex
	conv    core.Conversation
	binding *core.Binding
}

func NewManager(log zerolog.Logger, opts ...Option) *Manager {
	return &Manager{
		log:  log.With().Str("module", "streams").Logger(),
		rec:  NewReconciler(log, opts...),
		subs: NewSubscriptions(log, opts...),
	}
}

// SetConversation swaps the conversation reference. The previous one gets
// compensating unpublish/unsubscribe calls and loses every listener.
// A nil conv only detaches.
func (m *Manager) SetConversation(conv core.Conversation) {
	m.swapMu.Lock()
	defer m.swapMu.Unlock()

	m.mu.Lock()
	if m.conv == conv {
		m.mu.Unlock()
		return
	}
	prev, binding := m.conv, m.binding
	m.conv, m.binding = conv, nil
	m.mu.Unlock()

	if prev != nil {
		binding.Release()
		m.rec.reset(prev, true)
		m.subs.reset(prev, true)
		m.log.Info().Str("conversation", string(prev.Name())).Msg("detached")
	}
	if conv == nil {
		return
	}

	b := core.Bind(conv, map[core.EventName]core.Handler{
		core.EventJoined: func(core.Event) { m.onJoined(conv) },
		core.EventLeft:   func(core.Event) { m.onLeft(conv) },
		core.EventStreamAdded: func(e core.Event) {
			if s, ok := e.Payload.(core.Stream); ok {
				m.subs.onStreamAdded(conv, s)
			}
		},
		core.EventStreamRemoved: func(e core.Event) {
			if s, ok := e.Payload.(core.Stream); ok {
				m.subs.onStreamRemoved(conv, s)
			}
		},
		core.EventStreamListChanged: func(e core.Event) {
			if info, ok := e.Payload.(core.StreamInfo); ok {
				m.subs.onStreamListChanged(conv, info)
			}
		},
	})

	m.mu.Lock()
	m.binding = b
	m.mu.Unlock()

	m.subs.attach(conv)
	m.rec.attach(conv)
	m.log.Info().Str("conversation", string(conv.Name())).Bool("joined", conv.IsJoined()).Msg("attached")
}

func (m *Manager) onJoined(conv core.Conversation) {
	m.log.Info().Str("conversation", string(conv.Name())).Msg("joined")
	m.rec.Reconcile()
}

func (m *Manager) onLeft(conv core.Conversation) {
	m.log.Info().Str("conversation", string(conv.Name())).Msg("left")
	m.rec.reset(conv, false)
	m.subs.reset(conv, false)
}

// SetDesired replaces the desired publication list.
func (m *Manager) SetDesired(slots []*Slot) { m.rec.SetDesired(slots) }

func (m *Manager) Published() *state.Value[[]core.Stream]  { return m.rec.Published() }
func (m *Manager) Subscribed() *state.Value[[]core.Stream] { return m.subs.Subscribed() }

func (m *Manager) Publish(ctx context.Context, s core.Stream, opts *core.PublishOptions) (core.Stream, error) {
	return m.rec.Publish(ctx, s, opts)
}

func (m *Manager) Unpublish(s core.Stream) error { return m.rec.Unpublish(s) }

func (m *Manager) ReplacePublishedStream(ctx context.Context, old, next core.Stream) (core.Stream, error) {
	return m.rec.ReplacePublishedStream(ctx, old, next)
}

// Wait blocks until in-flight publish and replace operations have completed.
func (m *Manager) Wait() { m.rec.Wait() }

// Close detaches the current conversation.
func (m *Manager) Close() {
	m.SetConversation(nil)
	m.rec.Wait()
}
