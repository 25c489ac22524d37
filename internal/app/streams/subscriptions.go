package streams

import (
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dkeye/voicestate/internal/app/state"
	"github.com/dkeye/voicestate/internal/core"
	"github.com/dkeye/voicestate/internal/domain"
)

// Subscriptions mirrors a conversation's remote streams.
// streamListChanged decides what to (un)subscribe; streamAdded and
// streamRemoved decide what the subscribed list holds.
type Subscriptions struct {
	log zerolog.Logger
	cfg settings

	mu   sync.Mutex
	conv core.Conversation
	list []core.Stream

	emitMu     sync.Mutex
	subscribed *state.Value[[]core.Stream]
}

func NewSubscriptions(log zerolog.Logger, opts ...Option) *Subscriptions {
	return &Subscriptions{
		log:        log.With().Str("module", "streams.subscriptions").Logger(),
		cfg:        newSettings(opts),
		subscribed: state.NewValue[[]core.Stream](nil),
	}
}

// Subscribed is the observable list of remote streams currently attached.
func (s *Subscriptions) Subscribed() *state.Value[[]core.Stream] { return s.subscribed }

// attach binds conv and subscribes to every remote stream it already offers.
func (s *Subscriptions) attach(conv core.Conversation) {
	s.mu.Lock()
	s.conv = conv
	s.mu.Unlock()

	for _, info := range conv.AvailableStreams() {
		if info.IsRemote {
			s.subscribe(conv, info.StreamID)
		}
	}
}

func (s *Subscriptions) onStreamListChanged(conv core.Conversation, info core.StreamInfo) {
	if !s.current(conv) || !info.IsRemote {
		return
	}
	switch info.ListEventType {
	case core.ListAdded:
		s.subscribe(conv, info.StreamID)
	case core.ListRemoved:
		conv.UnsubscribeToStream(info.StreamID)
		s.cfg.metrics.ObserveOperation(OpUnsubscribe, nil)
	default:
		s.log.Warn().Str("list_event", string(info.ListEventType)).Msg("unknown stream list event")
	}
}

func (s *Subscriptions) onStreamAdded(conv core.Conversation, stream core.Stream) {
	s.mu.Lock()
	if s.conv != conv {
		s.mu.Unlock()
		return
	}
	s.list = append(slices.Clip(s.list), stream)
	s.mu.Unlock()

	s.emit()
	s.log.Debug().Str("stream", string(stream.ID())).Msg("stream added")
}

func (s *Subscriptions) onStreamRemoved(conv core.Conversation, stream core.Stream) {
	s.mu.Lock()
	if s.conv != conv {
		s.mu.Unlock()
		return
	}
	idx := slices.IndexFunc(s.list, func(c core.Stream) bool { return c == stream })
	if idx < 0 {
		s.mu.Unlock()
		s.log.Error().Err(fmt.Errorf("remove %s: %w", stream.ID(), core.ErrStreamNotTracked)).Msg("stream removed")
		return
	}
	s.list = slices.Delete(slices.Clone(s.list), idx, idx+1)
	s.mu.Unlock()

	s.emit()
	s.log.Debug().Str("stream", string(stream.ID())).Msg("stream removed")
}

// reset unsubscribes every attached stream on conv and empties the list.
// detach additionally forgets conv.
func (s *Subscriptions) reset(conv core.Conversation, detach bool) {
	s.mu.Lock()
	if s.conv != conv {
		s.mu.Unlock()
		return
	}
	list := s.list
	s.list = nil
	if detach {
		s.conv = nil
	}
	s.mu.Unlock()

	if conv != nil {
		for _, stream := range list {
			conv.UnsubscribeToStream(stream.ID())
			s.cfg.metrics.ObserveOperation(OpUnsubscribe, nil)
		}
	}
	s.emit()
}

// emit publishes the current list unless it matches the last snapshot.
func (s *Subscriptions) emit() {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	s.mu.Lock()
	out := slices.Clone(s.list)
	s.mu.Unlock()
	if slices.EqualFunc(s.subscribed.Get(), out, func(a, b core.Stream) bool { return a == b }) {
		return
	}
	s.subscribed.Set(out)
}

func (s *Subscriptions) subscribe(conv core.Conversation, id domain.StreamID) {
	err := conv.SubscribeToStream(id, s.cfg.subscribeOptions)
	s.cfg.metrics.ObserveOperation(OpSubscribe, err)
	if err == nil {
		return
	}
	err = fmt.Errorf("subscribe %s: %w", id, err)
	if s.cfg.onError != nil {
		s.cfg.onError(err)
		return
	}
	s.log.Warn().Err(err).Msg("stream operation failed")
}

func (s *Subscriptions) current(conv core.Conversation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conv == conv
}
