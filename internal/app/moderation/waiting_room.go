// Package moderation mirrors the waiting room of a moderated conversation.
package moderation

import (
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/dkeye/voicestate/internal/app/state"
	"github.com/dkeye/voicestate/internal/core"
	"github.com/dkeye/voicestate/internal/domain"
)

// WaitingRoom keeps the set of contacts pending admission.
// Candidates are published sorted by contact ID.
type WaitingRoom struct {
	log       zerolog.Logger
	onEjected func(core.Ejection)

	mu         sync.Mutex
	conv       core.Conversation
	binding    *core.Binding
	candidates map[domain.ContactID]domain.Contact

	emitMu sync.Mutex
	list   *state.Value[[]domain.Contact]
}

// NewWaitingRoom builds a WaitingRoom. onEjected is called when the local
// participant is ejected; it may be nil.
func NewWaitingRoom(log zerolog.Logger, onEjected func(core.Ejection)) *WaitingRoom {
	return &WaitingRoom{
		log:        log.With().Str("module", "moderation").Logger(),
		onEjected:  onEjected,
		candidates: make(map[domain.ContactID]domain.Contact),
		list:       state.NewValue[[]domain.Contact](nil),
	}
}

func (w *WaitingRoom) Candidates() *state.Value[[]domain.Contact] { return w.list }

func (w *WaitingRoom) SetConversation(conv core.Conversation) {
	w.mu.Lock()
	if w.conv == conv {
		w.mu.Unlock()
		return
	}
	w.binding.Release()
	w.binding = nil
	w.conv = conv
	clear(w.candidates)
	w.mu.Unlock()

	w.emit()
	if conv == nil {
		return
	}

	b := core.Bind(conv, map[core.EventName]core.Handler{
		core.EventContactJoinedWaitingRoom: func(e core.Event) {
			if c, ok := e.Payload.(domain.Contact); ok {
				w.update(conv, func(m map[domain.ContactID]domain.Contact) bool {
					if _, ok := m[c.ID]; ok {
						return false
					}
					m[c.ID] = c
					return true
				})
			}
		},
		core.EventContactLeftWaitingRoom: func(e core.Event) {
			if c, ok := e.Payload.(domain.Contact); ok {
				w.update(conv, func(m map[domain.ContactID]domain.Contact) bool {
					if _, ok := m[c.ID]; !ok {
						return false
					}
					delete(m, c.ID)
					return true
				})
			}
		},
		core.EventParticipantEjected: func(e core.Event) {
			if ej, ok := e.Payload.(core.Ejection); ok {
				w.onEjection(conv, ej)
			}
		},
	})
	w.mu.Lock()
	if w.conv != conv {
		w.mu.Unlock()
		b.Release()
		return
	}
	w.binding = b
	w.mu.Unlock()
}

// Allow admits a waiting contact. The candidate set changes only when the
// conversation reports the contact left the waiting room.
func (w *WaitingRoom) Allow(id domain.ContactID) error {
	conv := w.conversation()
	if conv == nil {
		return core.ErrNoConversation
	}
	conv.AllowEntry(id)
	w.log.Info().Str("contact", string(id)).Msg("entry allowed")
	return nil
}

func (w *WaitingRoom) Deny(id domain.ContactID, reason string) error {
	conv := w.conversation()
	if conv == nil {
		return core.ErrNoConversation
	}
	conv.DenyEntry(id, reason)
	w.log.Info().Str("contact", string(id)).Str("reason", reason).Msg("entry denied")
	return nil
}

func (w *WaitingRoom) update(conv core.Conversation, mutate func(map[domain.ContactID]domain.Contact) bool) {
	w.mu.Lock()
	if w.conv != conv || !mutate(w.candidates) {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()
	w.emit()
}

// emit publishes the current candidates. emitMu keeps snapshots in state order.
func (w *WaitingRoom) emit() {
	w.emitMu.Lock()
	defer w.emitMu.Unlock()
	w.mu.Lock()
	out := lo.Values(w.candidates)
	w.mu.Unlock()

	slices.SortFunc(out, func(a, b domain.Contact) int { return strings.Compare(string(a.ID), string(b.ID)) })
	w.list.Set(out)
}

func (w *WaitingRoom) onEjection(conv core.Conversation, ej core.Ejection) {
	if w.conversation() != conv {
		return
	}
	if !ej.Self {
		w.log.Info().Str("contact", string(ej.Contact.ID)).Str("reason", ej.Reason).Msg("participant ejected")
		return
	}
	w.log.Warn().Str("reason", ej.Reason).Msg("ejected from conversation")
	if w.onEjected != nil {
		w.onEjected(ej)
	}
}

func (w *WaitingRoom) conversation() core.Conversation {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conv
}

func (w *WaitingRoom) Close() { w.SetConversation(nil) }
