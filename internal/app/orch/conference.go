// Package orch composes the state components of one user into a Conference.
package orch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/dkeye/voicestate/internal/app/conversation"
	"github.com/dkeye/voicestate/internal/app/devices"
	"github.com/dkeye/voicestate/internal/app/moderation"
	"github.com/dkeye/voicestate/internal/app/presence"
	"github.com/dkeye/voicestate/internal/app/processor"
	"github.com/dkeye/voicestate/internal/app/session"
	"github.com/dkeye/voicestate/internal/app/state"
	"github.com/dkeye/voicestate/internal/app/streams"
	"github.com/dkeye/voicestate/internal/core"
	"github.com/dkeye/voicestate/internal/domain"
)

type settings struct {
	streamOptions  []streams.Option
	publishOptions *core.PublishOptions
}

type Option func(*settings)

// WithStreamOptions is passed to the streams manager.
func WithStreamOptions(opts ...streams.Option) Option {
	return func(s *settings) { s.streamOptions = append(s.streamOptions, opts...) }
}

// WithPublishOptions applies to the camera position of the desired list.
func WithPublishOptions(o *core.PublishOptions) Option {
	return func(s *settings) { s.publishOptions = o }
}

// Conference wires session, presence, conversation, moderation, devices,
// processors and streams for one user agent.
type Conference struct {
	log zerolog.Logger
	ua  core.UserAgent
	cfg settings

	Connector *session.Connector
	Presence  *presence.Differ
	Streams   *streams.Manager
	Members   *conversation.Membership
	Messages  *conversation.Messages
	Waiting   *moderation.WaitingRoom
	Devices   *devices.Inventory
	Audio     *processor.Audio
	Video     *processor.Video

	// swapMu serializes conversation swaps; desiredMu serializes SetDesired.
	swapMu    sync.Mutex
	desiredMu sync.Mutex

	mu         sync.Mutex
	convName   domain.ConversationName
	convOpts   core.ConversationOptions
	conv       core.Conversation
	camera     core.Stream
	screen     core.Stream
	publishing bool
	audioMode  core.AudioProcessor
	videoMode  processor.VideoMode
	ejection   *core.Ejection
	lastErr    error
	closed     bool

	seq     atomic.Uint64
	changes *state.Value[uint64]
	unwatch []func()
}

func New(log zerolog.Logger, ua core.UserAgent, opts ...Option) *Conference {
	var cfg settings
	for _, o := range opts {
		o(&cfg)
	}
	c := &Conference{
		log:       log.With().Str("module", "conference").Logger(),
		ua:        ua,
		cfg:       cfg,
		audioMode: core.AudioProcessorNone,
		videoMode: processor.VideoMode{Processor: core.VideoProcessorNone},
		changes:   state.NewValue[uint64](0),
	}
	streamOpts := append([]streams.Option{streams.WithErrorHandler(c.report)}, cfg.streamOptions...)

	c.Connector = session.NewConnector(log, ua)
	c.Presence = presence.NewDiffer(log, c.report)
	c.Streams = streams.NewManager(log, streamOpts...)
	c.Members = conversation.NewMembership(log)
	c.Messages = conversation.NewMessages(log, domain.Contact{})
	c.Waiting = moderation.NewWaitingRoom(log, c.onEjected)
	c.Devices = devices.NewInventory(log)
	c.Audio = processor.NewAudio(log, c.report)
	c.Video = processor.NewVideo(log, c.report)

	watch(c, c.Connector.Session(), c.onSession)
	watch(c, c.Audio.State(), func(processor.Snapshot[core.AudioProcessor]) { c.chainVideo() })
	watch(c, c.Video.State(), func(processor.Snapshot[processor.VideoMode]) { c.updateDesired() })
	watch(c, c.Presence.ContactsByGroup(), nil)
	watch(c, c.Streams.Published(), nil)
	watch(c, c.Streams.Subscribed(), nil)
	watch(c, c.Members.Joined(), nil)
	watch(c, c.Members.Contacts(), nil)
	watch(c, c.Messages.List(), nil)
	watch(c, c.Waiting.Candidates(), nil)
	watch(c, c.Devices.Devices(), nil)

	c.Devices.SetSource(ua.MediaDevices())
	return c
}

// watch calls fn, then signals a change, on every snapshot of v.
func watch[T any](c *Conference, v *state.Value[T], fn func(T)) {
	h := v.Subscribe(func(x T) {
		if fn != nil {
			fn(x)
		}
		c.bump()
	})
	c.unwatch = append(c.unwatch, func() { v.Unsubscribe(h) })
}

// Changes increases whenever anything visible in Snapshot may have changed.
func (c *Conference) Changes() *state.Value[uint64] { return c.changes }

func (c *Conference) bump() { c.changes.Set(c.seq.Add(1)) }

// report records an asynchronous failure for the next snapshot.
func (c *Conference) report(err error) {
	c.log.Warn().Err(err).Msg("operation failed")
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
	c.bump()
}

func (c *Conference) onEjected(ej core.Ejection) {
	c.log.Info().Str("reason", ej.Reason).Msg("ejected from conversation")
	c.mu.Lock()
	c.ejection = &ej
	c.mu.Unlock()
	c.bump()
}

func (c *Conference) Connect(ctx context.Context, creds session.Credentials) error {
	_, err := c.Connector.Connect(ctx, creds)
	return err
}

func (c *Conference) Disconnect(ctx context.Context) error {
	return c.Connector.Disconnect(ctx)
}

// SetGroups replaces the groups whose presence is tracked.
func (c *Conference) SetGroups(groups []domain.GroupName) {
	c.Presence.SetGroups(groups)
	c.bump()
}

func (c *Conference) onSession(sess core.Session) {
	c.Presence.SetSession(sess)
	self := domain.Contact{}
	if sess != nil {
		self = sess.Self()
	}
	c.Messages.SetSelf(self)
	c.openConversation(sess)
}

// Wait blocks until in-flight processor and stream operations have completed.
func (c *Conference) Wait() {
	c.Audio.Wait()
	c.Video.Wait()
	c.Streams.Wait()
}

// Close detaches every component, releases local media and disconnects.
func (c *Conference) Close(ctx context.Context) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	unwatch := c.unwatch
	c.unwatch = nil
	c.mu.Unlock()

	for _, fn := range unwatch {
		fn()
	}
	c.Streams.Close()
	c.Members.Close()
	c.Messages.Close()
	c.Waiting.Close()
	c.Presence.Close()
	c.Devices.Close()
	c.Video.Close()
	c.Audio.Close()

	c.mu.Lock()
	camera, screen := c.camera, c.screen
	c.camera, c.screen = nil, nil
	c.mu.Unlock()
	release(camera)
	release(screen)

	if err := c.Connector.Disconnect(ctx); err != nil && !errors.Is(err, core.ErrNoSession) {
		c.log.Warn().Err(err).Msg("disconnect on close")
	}
}

func release(s core.Stream) {
	if s != nil {
		s.Release()
	}
}
