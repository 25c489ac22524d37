package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dkeye/voicestate/internal/app/state"
	"github.com/dkeye/voicestate/internal/core"
)

// Connector connects and disconnects the single session of a user agent.
type Connector struct {
	log zerolog.Logger
	ua  core.UserAgent

	// mu serializes Connect and Disconnect.
	mu      sync.Mutex
	session *state.Value[core.Session]
}

func NewConnector(log zerolog.Logger, ua core.UserAgent) *Connector {
	return &Connector{
		log:     log.With().Str("module", "session").Logger(),
		ua:      ua,
		session: state.NewValue[core.Session](nil),
	}
}

// Session is nil while disconnected.
func (c *Connector) Session() *state.Value[core.Session] { return c.session }

// Connect registers with creds. Invalid credentials are rejected before any
// SDK call. A previous session is disconnected first.
func (c *Connector) Connect(ctx context.Context, creds Credentials) (core.Session, error) {
	info, err := Resolve(creds)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if prev := c.session.Get(); prev != nil {
		c.session.Set(nil)
		if err := prev.Disconnect(ctx); err != nil {
			c.log.Warn().Err(err).Msg("disconnect previous session")
		}
	}

	sess, err := c.ua.Register(ctx, info)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	c.session.Set(sess)
	c.log.Info().Str("contact", string(sess.Self().ID)).Str("username", sess.Self().Username).Msg("connected")
	return sess, nil
}

func (c *Connector) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess := c.session.Get()
	if sess == nil {
		return core.ErrNoSession
	}
	c.session.Set(nil)
	if err := sess.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}
	c.log.Info().Msg("disconnected")
	return nil
}
