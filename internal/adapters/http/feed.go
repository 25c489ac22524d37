package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/dkeye/voicestate/internal/observability"
)

var ErrBackpressure = errors.New("backpressure")

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// FeedConn is one websocket pushing conference snapshots to a browser.
type FeedConn struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func (c *FeedConn) TrySend(b []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- b:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *FeedConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// FeedController serves /api/ws/state.
type FeedController struct {
	log        zerolog.Logger
	clients    *Clients
	metrics    *observability.Metrics
	readLimit  int64
	pingPeriod time.Duration
}

func (ctl *FeedController) Handle(ctx context.Context, c *gin.Context) {
	cl := ctl.clients.GetOrCreate(c.Request.Context(), c.GetString(clientTokenKey))
	log := ctl.log.With().Str("client", cl.Token).Logger()

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade")
		return
	}
	conn := &FeedConn{conn: ws, send: make(chan []byte, 8)}
	if ctl.metrics != nil {
		ctl.metrics.FeedOpened()
	}
	log.Info().Msg("state feed opened")

	ctx, cancel := context.WithCancel(ctx)
	// changed coalesces change notifications; the writer always sends the latest snapshot.
	changed := make(chan struct{}, 1)
	changed <- struct{}{}
	changes := cl.Conf.Changes()
	h := changes.Subscribe(func(uint64) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})

	go func() {
		defer func() {
			changes.Unsubscribe(h)
			if ctl.metrics != nil {
				ctl.metrics.FeedClosed()
			}
			log.Info().Msg("state feed closed")
		}()
		ctl.writePump(ctx, log, conn, func() ([]byte, error) { return json.Marshal(envelope{Type: "state", Data: cl.Conf.Snapshot()}) }, changed)
	}()
	go func() {
		defer cancel()
		ctl.readPump(ctx, log, conn)
	}()
}

type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

func (ctl *FeedController) writePump(ctx context.Context, log zerolog.Logger, c *FeedConn, snapshot func() ([]byte, error), changed <-chan struct{}) {
	ticker := time.NewTicker(ctl.pingPeriod)
	defer ticker.Stop()
	defer c.Close()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("writePump ctx done")
			return
		case <-changed:
			b, err := snapshot()
			if err != nil {
				log.Error().Err(err).Msg("writePump marshal")
				continue
			}
			if err := c.TrySend(b); err != nil && !errors.Is(err, ErrBackpressure) {
				return
			}
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Warn().Err(err).Msg("writePump ping")
				return
			}
		}
	}
}

func (ctl *FeedController) readPump(ctx context.Context, log zerolog.Logger, c *FeedConn) {
	defer c.Close()

	c.conn.SetReadLimit(ctl.readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.pingPeriod * 2))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(ctl.pingPeriod * 2))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Msg("readPump read error")
			}
			return
		}
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Warn().Err(err).Msg("bad json")
			continue
		}
		switch env.Type {
		case "ping":
			if b, err := json.Marshal(envelope{Type: "pong"}); err == nil {
				_ = c.TrySend(b)
			}
		default:
			log.Warn().Str("type", env.Type).Msg("unknown feed message")
		}
	}
}
