package http

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dkeye/voicestate/internal/adapters/loopback"
	"github.com/dkeye/voicestate/internal/app/orch"
	"github.com/dkeye/voicestate/internal/app/streams"
	"github.com/dkeye/voicestate/internal/config"
	"github.com/dkeye/voicestate/internal/core"
	"github.com/dkeye/voicestate/internal/domain"
	"github.com/dkeye/voicestate/internal/observability"
)

// Client is the server-side state of one browser, keyed by its client token.
type Client struct {
	Token string
	UA    *loopback.UserAgent
	Conf  *orch.Conference
}

// Clients creates a Conference per client token on first use.
type Clients struct {
	log     zerolog.Logger
	hub     *loopback.Hub
	cfg     *config.Config
	metrics *observability.Metrics

	mu      sync.Mutex
	clients map[string]*Client
}

func NewClients(log zerolog.Logger, hub *loopback.Hub, cfg *config.Config, metrics *observability.Metrics) *Clients {
	return &Clients{
		log:     log.With().Str("module", "adapters.http.clients").Logger(),
		hub:     hub,
		cfg:     cfg,
		metrics: metrics,
		clients: make(map[string]*Client),
	}
}

// GetOrCreate returns the client of token. New clients follow the configured
// default conversation and groups.
func (cs *Clients) GetOrCreate(ctx context.Context, token string) *Client {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cl, ok := cs.clients[token]; ok {
		return cl
	}

	ua := cs.hub.NewUserAgent()
	var opts []orch.Option
	if cs.metrics != nil {
		opts = append(opts, orch.WithStreamOptions(streams.WithMetrics(cs.metrics)))
	}
	conf := orch.New(cs.log.With().Str("client", token).Logger(), ua, opts...)
	groups := make([]domain.GroupName, 0, len(cs.cfg.Groups))
	for _, g := range cs.cfg.Groups {
		groups = append(groups, domain.GroupName(g))
	}
	conf.SetGroups(groups)
	if cs.cfg.Conversation != "" {
		conf.SetConversation(ctx, domain.ConversationName(cs.cfg.Conversation), core.ConversationOptions{Moderated: cs.cfg.Moderated})
	}

	cl := &Client{Token: token, UA: ua, Conf: conf}
	cs.clients[token] = cl
	if cs.metrics != nil {
		cs.metrics.ClientAdded()
	}
	cs.log.Info().Str("client", token).Msg("client created")
	return cl
}

func (cs *Clients) Get(token string) (*Client, bool) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cl, ok := cs.clients[token]
	return cl, ok
}

// Remove closes the conference of token.
func (cs *Clients) Remove(ctx context.Context, token string) bool {
	cs.mu.Lock()
	cl, ok := cs.clients[token]
	delete(cs.clients, token)
	cs.mu.Unlock()
	if !ok {
		return false
	}
	cl.Conf.Close(ctx)
	if cs.metrics != nil {
		cs.metrics.ClientRemoved()
	}
	cs.log.Info().Str("client", token).Msg("client removed")
	return true
}

func (cs *Clients) Len() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return len(cs.clients)
}

// Close removes every client.
func (cs *Clients) Close(ctx context.Context) {
	cs.mu.Lock()
	tokens := make([]string, 0, len(cs.clients))
	for t := range cs.clients {
		tokens = append(tokens, t)
	}
	cs.mu.Unlock()
	for _, t := range tokens {
		cs.Remove(ctx, t)
	}
}
