package http

import (
	"context"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dkeye/voicestate/internal/adapters/loopback"
	"github.com/dkeye/voicestate/internal/config"
	"github.com/dkeye/voicestate/internal/observability"
)

const clientTokenKey = "client_token"

func genClientToken() string {
	return uuid.NewString()
}

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set(clientTokenKey, token)
		c.Next()
	}
}

// Deps is what the router serves.
type Deps struct {
	Log     zerolog.Logger
	Hub     *loopback.Hub
	Clients *Clients
	Metrics *observability.Metrics
}

func SetupRouter(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	}
	log := deps.Log.With().Str("module", "adapters.http").Logger()

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("VoiceStateSessions", store))
	r.Use(ClientTokenMiddleware())

	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	ctl := &Controller{
		log:     log,
		clients: deps.Clients,
		hub:     deps.Hub,
		limiter: NewRateLimiter(cfg.MessageLimit, cfg.MessageWindow),
		metrics: deps.Metrics,
	}
	feed := &FeedController{
		log:        log.With().Str("module", "adapters.http.feed").Logger(),
		clients:    deps.Clients,
		metrics:    deps.Metrics,
		readLimit:  cfg.ReadLimit,
		pingPeriod: cfg.PingPeriod,
	}

	api := r.Group("/api")

	api.GET("/me", ctl.me)
	api.DELETE("/me", ctl.logout)
	api.GET("/state", ctl.state)
	api.GET("/conversations", ctl.conversations)

	api.POST("/connect", ctl.connect)
	api.POST("/disconnect", ctl.disconnect)
	api.PUT("/groups", ctl.setGroups)

	api.PUT("/conversation", ctl.setConversation)
	api.POST("/join", ctl.join)
	api.POST("/leave", ctl.leave)
	api.POST("/messages", ctl.sendMessage)
	api.POST("/waiting/:id/allow", ctl.allow)
	api.POST("/waiting/:id/deny", ctl.deny)
	api.POST("/participants/:id/eject", ctl.eject)

	api.POST("/media", ctl.startMedia)
	api.DELETE("/media", ctl.stopMedia)
	api.PUT("/processors", ctl.setProcessors)
	api.PUT("/publishing", ctl.setPublishing)
	api.POST("/screen", ctl.startScreen)
	api.DELETE("/screen", ctl.stopScreen)
	api.POST("/devices", ctl.plugDevice)
	api.DELETE("/devices/:id", ctl.unplugDevice)

	api.GET("/ws/state", func(c *gin.Context) {
		log.Info().Str("client", c.GetString(clientTokenKey)).Msg("ws state endpoint hit")
		feed.Handle(ctx, c)
	})

	log.Info().Msg("router setup")
	return r
}
