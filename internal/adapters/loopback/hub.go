// Package loopback is an in-process communication backend. Every user agent
// created on a Hub sees the others' sessions, groups, conversations and
// published streams, and receives events asynchronously like a remote SDK
// would deliver them.
package loopback

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/panics"

	"github.com/dkeye/voicestate/internal/core"
)

var (
	ErrUnauthorized  = errors.New("unauthorized")
	ErrDisconnected  = errors.New("session disconnected")
	ErrEntryDenied   = errors.New("entry denied")
	ErrUnknownDevice = errors.New("unknown device")
	ErrNoTracks      = errors.New("stream has no matching track")
	ErrReleased      = errors.New("stream released")
	ErrRemoteStream  = errors.New("remote stream")
	ErrForeignStream = errors.New("stream does not belong to this backend")
	ErrAlreadyWaits  = errors.New("already in waiting room")
)

type Options struct {
	// APIKeys restricts API key registration when not empty.
	APIKeys []string
	// ProcessorDelay is how long applying a processor takes.
	ProcessorDelay time.Duration
}

type Hub struct {
	log      zerolog.Logger
	opts     Options
	now      func() time.Time
	registry *Registry
	rooms    *Rooms

	qmu      sync.Mutex
	idle     *sync.Cond
	queue    []func()
	draining bool
}

func NewHub(log zerolog.Logger, opts Options) *Hub {
	log = log.With().Str("module", "loopback").Logger()
	h := &Hub{
		log:      log,
		opts:     opts,
		now:      time.Now,
		registry: NewRegistry(log),
		rooms:    NewRooms(),
	}
	h.idle = sync.NewCond(&h.qmu)
	return h
}

// post queues event deliveries. They run in order on a single goroutine.
func (h *Hub) post(fns ...func()) {
	if len(fns) == 0 {
		return
	}
	h.qmu.Lock()
	h.queue = append(h.queue, fns...)
	if h.draining {
		h.qmu.Unlock()
		return
	}
	h.draining = true
	h.qmu.Unlock()
	go h.drain()
}

// drain runs queued deliveries until the queue is empty. A panicking
// handler is logged and does not stop later deliveries.
func (h *Hub) drain() {
	for {
		h.qmu.Lock()
		if len(h.queue) == 0 {
			h.draining = false
			h.idle.Broadcast()
			h.qmu.Unlock()
			return
		}
		fn := h.queue[0]
		h.queue = h.queue[1:]
		h.qmu.Unlock()

		var pc panics.Catcher
		pc.Try(fn)
		if r := pc.Recovered(); r != nil {
			h.log.Error().Err(r.AsError()).Msg("event handler panicked")
		}
	}
}

// emit queues one event for one listener set.
func (h *Hub) emit(to *core.Listeners, name core.EventName, payload any) func() {
	return func() { to.Emit(name, payload) }
}

// Wait blocks until every queued event has been delivered.
func (h *Hub) Wait() {
	h.qmu.Lock()
	defer h.qmu.Unlock()
	for h.draining {
		h.idle.Wait()
	}
}

func (h *Hub) authorize(info core.RegisterInfo) error {
	switch {
	case info.APIKey != "":
		if len(h.opts.APIKeys) > 0 && !slices.Contains(h.opts.APIKeys, info.APIKey) {
			return ErrUnauthorized
		}
	case info.Token != "":
	case info.Username != "" && info.Password != "":
	default:
		return ErrUnauthorized
	}
	return nil
}

// Conversations lists the conversations created so far.
func (h *Hub) Conversations() []RoomInfo { return h.rooms.List() }

// Sessions reports how many sessions are registered.
func (h *Hub) Sessions() int { return h.registry.Count() }
