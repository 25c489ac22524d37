package conversation

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dkeye/voicestate/internal/app/state"
	"github.com/dkeye/voicestate/internal/core"
	"github.com/dkeye/voicestate/internal/domain"
)

// Messages mirrors the chat of a conversation. Sent messages are echoed
// locally once the SDK accepted them.
type Messages struct {
	log zerolog.Logger
	now func() time.Time

	mu      sync.Mutex
	self    domain.Contact
	conv    core.Conversation
	binding *core.Binding
	history []domain.Message

	emitMu sync.Mutex
	list   *state.Value[[]domain.Message]
}

func NewMessages(log zerolog.Logger, self domain.Contact) *Messages {
	return &Messages{
		log:  log.With().Str("module", "conversation.messages").Logger(),
		self: self,
		now:  time.Now,
		list: state.NewValue[[]domain.Message](nil),
	}
}

func (m *Messages) List() *state.Value[[]domain.Message] { return m.list }

// SetSelf sets the sender used for local echoes.
func (m *Messages) SetSelf(self domain.Contact) {
	m.mu.Lock()
	m.self = self
	m.mu.Unlock()
}

// SetConversation rebinds to conv. History is per conversation and starts empty.
func (m *Messages) SetConversation(conv core.Conversation) {
	m.mu.Lock()
	if m.conv == conv {
		m.mu.Unlock()
		return
	}
	m.binding.Release()
	m.binding = nil
	m.conv = conv
	m.history = nil
	m.mu.Unlock()

	m.emit()
	if conv == nil {
		return
	}
	b := core.Bind(conv, map[core.EventName]core.Handler{
		core.EventMessage: func(e core.Event) {
			if msg, ok := e.Payload.(domain.Message); ok {
				m.add(conv, msg)
			}
		},
	})
	m.mu.Lock()
	if m.conv != conv {
		m.mu.Unlock()
		b.Release()
		return
	}
	m.binding = b
	m.mu.Unlock()
}

// Send posts content and appends the local echo on success.
func (m *Messages) Send(ctx context.Context, content string) error {
	m.mu.Lock()
	conv, self := m.conv, m.self
	m.mu.Unlock()
	if conv == nil {
		return core.ErrNoConversation
	}
	if err := conv.SendMessage(ctx, content); err != nil {
		return fmt.Errorf("send message to %s: %w", conv.Name(), err)
	}
	m.add(conv, domain.NewMessage(self, content, m.now()))
	return nil
}

func (m *Messages) add(conv core.Conversation, msg domain.Message) {
	m.mu.Lock()
	if m.conv != conv {
		m.mu.Unlock()
		return
	}
	m.history = append(slices.Clip(m.history), msg)
	m.mu.Unlock()
	m.emit()
}

// emit publishes the current history. emitMu keeps snapshots in state order.
func (m *Messages) emit() {
	m.emitMu.Lock()
	defer m.emitMu.Unlock()
	m.mu.Lock()
	out := slices.Clone(m.history)
	m.mu.Unlock()
	m.list.Set(out)
}

func (m *Messages) Close() { m.SetConversation(nil) }
