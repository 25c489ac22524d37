// Package conversation mirrors a conversation's joined state, its contacts
// and its chat messages.
package conversation

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dkeye/voicestate/internal/app/state"
	"github.com/dkeye/voicestate/internal/core"
	"github.com/dkeye/voicestate/internal/domain"
)

// Membership mirrors joined/left and the contacts present in the conversation.
type Membership struct {
	log zerolog.Logger

	mu       sync.Mutex
	conv     core.Conversation
	binding  *core.Binding
	isJoined bool
	contacts []domain.Contact

	emitMu sync.Mutex
	joined *state.Value[bool]
	list   *state.Value[[]domain.Contact]
}

func NewMembership(log zerolog.Logger) *Membership {
	return &Membership{
		log:    log.With().Str("module", "conversation.membership").Logger(),
		joined: state.NewValue(false),
		list:   state.NewValue[[]domain.Contact](nil),
	}
}

func (m *Membership) Joined() *state.Value[bool]               { return m.joined }
func (m *Membership) Contacts() *state.Value[[]domain.Contact] { return m.list }

// SetConversation rebinds to conv, seeding state from what conv reports now.
func (m *Membership) SetConversation(conv core.Conversation) {
	m.mu.Lock()
	if m.conv == conv {
		m.mu.Unlock()
		return
	}
	m.binding.Release()
	m.binding = nil
	m.conv = conv
	m.isJoined = false
	m.contacts = nil
	m.mu.Unlock()

	if conv == nil {
		m.emit()
		return
	}

	b := core.Bind(conv, map[core.EventName]core.Handler{
		core.EventJoined: func(core.Event) { m.setJoined(conv, true) },
		core.EventLeft:   func(core.Event) { m.setJoined(conv, false) },
		core.EventContactJoined: func(e core.Event) {
			if c, ok := e.Payload.(domain.Contact); ok {
				m.onContactJoined(conv, c)
			}
		},
		core.EventContactLeft: func(e core.Event) {
			if c, ok := e.Payload.(domain.Contact); ok {
				m.onContactLeft(conv, c)
			}
		},
	})
	joined, contacts := conv.IsJoined(), slices.Clone(conv.Contacts())

	m.mu.Lock()
	if m.conv != conv {
		m.mu.Unlock()
		b.Release()
		return
	}
	m.binding = b
	m.isJoined = joined
	m.contacts = contacts
	m.mu.Unlock()
	m.emit()
}

func (m *Membership) Join(ctx context.Context) error {
	conv := m.conversation()
	if conv == nil {
		return core.ErrNoConversation
	}
	if err := conv.Join(ctx); err != nil {
		return fmt.Errorf("join %s: %w", conv.Name(), err)
	}
	return nil
}

func (m *Membership) Leave(ctx context.Context) error {
	conv := m.conversation()
	if conv == nil {
		return core.ErrNoConversation
	}
	if err := conv.Leave(ctx); err != nil {
		return fmt.Errorf("leave %s: %w", conv.Name(), err)
	}
	return nil
}

func (m *Membership) setJoined(conv core.Conversation, joined bool) {
	m.mu.Lock()
	if m.conv != conv {
		m.mu.Unlock()
		return
	}
	m.isJoined = joined
	if !joined {
		m.contacts = nil
	}
	m.mu.Unlock()
	m.emit()
}

func (m *Membership) onContactJoined(conv core.Conversation, c domain.Contact) {
	m.mu.Lock()
	if m.conv != conv || slices.ContainsFunc(m.contacts, func(x domain.Contact) bool { return x.ID == c.ID }) {
		m.mu.Unlock()
		return
	}
	m.contacts = append(slices.Clip(m.contacts), c)
	m.mu.Unlock()
	m.emit()
}

func (m *Membership) onContactLeft(conv core.Conversation, c domain.Contact) {
	m.mu.Lock()
	if m.conv != conv {
		m.mu.Unlock()
		return
	}
	idx := slices.IndexFunc(m.contacts, func(x domain.Contact) bool { return x.ID == c.ID })
	if idx < 0 {
		m.mu.Unlock()
		m.log.Error().Str("contact", string(c.ID)).Msg("contact left but was not tracked")
		return
	}
	m.contacts = slices.Delete(slices.Clone(m.contacts), idx, idx+1)
	m.mu.Unlock()
	m.emit()
}

// emit publishes the current state. emitMu keeps snapshots in state order.
func (m *Membership) emit() {
	m.emitMu.Lock()
	defer m.emitMu.Unlock()
	m.mu.Lock()
	joined, out := m.isJoined, slices.Clone(m.contacts)
	m.mu.Unlock()

	if m.joined.Get() != joined {
		m.joined.Set(joined)
	}
	m.list.Set(out)
}

func (m *Membership) conversation() core.Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conv
}

func (m *Membership) Close() { m.SetConversation(nil) }
