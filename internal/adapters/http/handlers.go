package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/dkeye/voicestate/internal/adapters/loopback"
	"github.com/dkeye/voicestate/internal/app/processor"
	"github.com/dkeye/voicestate/internal/app/session"
	"github.com/dkeye/voicestate/internal/core"
	"github.com/dkeye/voicestate/internal/domain"
	"github.com/dkeye/voicestate/internal/observability"
)

const sessionUsernameKey = "username"

type Controller struct {
	log     zerolog.Logger
	clients *Clients
	hub     *loopback.Hub
	limiter *RateLimiter
	metrics *observability.Metrics
}

type ConnectRequest struct {
	Kind     string `json:"kind" binding:"required"`
	Secret   string `json:"secret"`
	Username string `json:"username"`
}

type GroupsRequest struct {
	Groups []domain.GroupName `json:"groups"`
}

type ConversationRequest struct {
	Name      domain.ConversationName `json:"name"`
	Moderated bool                    `json:"moderated"`
}

type ProcessorsRequest struct {
	Audio              core.AudioProcessor `json:"audio"`
	Video              core.VideoProcessor `json:"video"`
	BackgroundImageURL string              `json:"backgroundImageUrl"`
}

type PublishingRequest struct {
	Enabled bool `json:"enabled"`
}

type MessageRequest struct {
	Content string `json:"content" binding:"required,max=4096"`
}

type ReasonRequest struct {
	Reason string `json:"reason"`
}

// client resolves the Conference of the calling browser.
func (ctl *Controller) client(c *gin.Context) *Client {
	return ctl.clients.GetOrCreate(c.Request.Context(), c.GetString(clientTokenKey))
}

func (ctl *Controller) state(c *gin.Context) {
	c.JSON(http.StatusOK, ctl.client(c).Conf.Snapshot())
}

// reply writes the snapshot after a successful action, or the mapped error.
func (ctl *Controller) reply(c *gin.Context, cl *Client, err error) {
	if err != nil {
		status := statusOf(err)
		ctl.log.Warn().Err(err).Str("client", cl.Token).Str("path", c.FullPath()).Int("status", status).Msg("action failed")
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, cl.Conf.Snapshot())
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, core.ErrUnknownCredentials),
		errors.Is(err, core.ErrUnknownProcessor),
		errors.Is(err, loopback.ErrUnknownDevice),
		errors.Is(err, loopback.ErrNoTracks),
		errors.Is(err, loopback.ErrUnknownContact):
		return http.StatusBadRequest
	case errors.Is(err, loopback.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, loopback.ErrEntryDenied):
		return http.StatusForbidden
	case errors.Is(err, core.ErrNoSession),
		errors.Is(err, core.ErrNoConversation),
		errors.Is(err, core.ErrNotJoined),
		errors.Is(err, loopback.ErrAlreadyWaits),
		errors.Is(err, loopback.ErrDisconnected):
		return http.StatusConflict
	case errors.Is(err, errors.ErrUnsupported):
		return http.StatusNotImplemented
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func (ctl *Controller) connect(c *gin.Context) {
	var req ConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cl := ctl.client(c)
	creds, err := session.Parse(req.Kind, req.Secret, req.Username)
	if err != nil {
		ctl.reply(c, cl, err)
		return
	}
	if err := cl.Conf.Connect(c.Request.Context(), creds); err != nil {
		ctl.reply(c, cl, err)
		return
	}
	s := sessions.Default(c)
	s.Set(sessionUsernameKey, cl.Conf.Snapshot().Self.Username)
	if err := s.Save(); err != nil {
		ctl.log.Warn().Err(err).Msg("save cookie session")
	}
	ctl.reply(c, cl, nil)
}

func (ctl *Controller) disconnect(c *gin.Context) {
	cl := ctl.client(c)
	ctl.reply(c, cl, cl.Conf.Disconnect(c.Request.Context()))
}

// me reports the client token and the username remembered in the cookie session.
func (ctl *Controller) me(c *gin.Context) {
	username, _ := sessions.Default(c).Get(sessionUsernameKey).(string)
	c.JSON(http.StatusOK, gin.H{"client": c.GetString(clientTokenKey), "username": username})
}

// logout drops the client and its conference.
func (ctl *Controller) logout(c *gin.Context) {
	token := c.GetString(clientTokenKey)
	ctl.clients.Remove(c.Request.Context(), token)
	ctl.limiter.Forget(token)
	s := sessions.Default(c)
	s.Clear()
	_ = s.Save()
	c.Status(http.StatusNoContent)
}

func (ctl *Controller) setGroups(c *gin.Context) {
	var req GroupsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cl := ctl.client(c)
	cl.Conf.SetGroups(req.Groups)
	ctl.reply(c, cl, nil)
}

func (ctl *Controller) setConversation(c *gin.Context) {
	var req ConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cl := ctl.client(c)
	cl.Conf.SetConversation(c.Request.Context(), req.Name, core.ConversationOptions{Moderated: req.Moderated})
	ctl.reply(c, cl, nil)
}

func (ctl *Controller) join(c *gin.Context) {
	cl := ctl.client(c)
	ctl.reply(c, cl, cl.Conf.Join(c.Request.Context()))
}

func (ctl *Controller) leave(c *gin.Context) {
	cl := ctl.client(c)
	ctl.reply(c, cl, cl.Conf.Leave(c.Request.Context()))
}

func (ctl *Controller) startMedia(c *gin.Context) {
	var req core.StreamConstraints
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cl := ctl.client(c)
	ctl.reply(c, cl, cl.Conf.StartMedia(c.Request.Context(), req))
}

func (ctl *Controller) stopMedia(c *gin.Context) {
	cl := ctl.client(c)
	cl.Conf.StopMedia()
	ctl.reply(c, cl, nil)
}

func (ctl *Controller) setProcessors(c *gin.Context) {
	var req ProcessorsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cl := ctl.client(c)
	if req.Audio != "" {
		if err := cl.Conf.SetAudioProcessor(req.Audio); err != nil {
			ctl.reply(c, cl, err)
			return
		}
	}
	if req.Video != "" {
		mode := processor.VideoMode{Processor: req.Video, BackgroundImageURL: req.BackgroundImageURL}
		if err := cl.Conf.SetVideoProcessor(mode); err != nil {
			ctl.reply(c, cl, err)
			return
		}
	}
	ctl.reply(c, cl, nil)
}

func (ctl *Controller) setPublishing(c *gin.Context) {
	var req PublishingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cl := ctl.client(c)
	cl.Conf.SetPublishing(req.Enabled)
	ctl.reply(c, cl, nil)
}

func (ctl *Controller) startScreen(c *gin.Context) {
	cl := ctl.client(c)
	ctl.reply(c, cl, cl.Conf.StartScreenShare(c.Request.Context()))
}

func (ctl *Controller) stopScreen(c *gin.Context) {
	cl := ctl.client(c)
	cl.Conf.StopScreenShare()
	ctl.reply(c, cl, nil)
}

func (ctl *Controller) sendMessage(c *gin.Context) {
	var req MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cl := ctl.client(c)
	allowed := ctl.limiter.Allow(cl.Token)
	if ctl.metrics != nil {
		ctl.metrics.MessageSent(!allowed)
	}
	if !allowed {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many messages"})
		return
	}
	ctl.reply(c, cl, cl.Conf.SendMessage(c.Request.Context(), req.Content))
}

func (ctl *Controller) allow(c *gin.Context) {
	cl := ctl.client(c)
	ctl.reply(c, cl, cl.Conf.Allow(domain.ContactID(c.Param("id"))))
}

func (ctl *Controller) deny(c *gin.Context) {
	var req ReasonRequest
	_ = c.ShouldBindJSON(&req)
	cl := ctl.client(c)
	ctl.reply(c, cl, cl.Conf.Deny(domain.ContactID(c.Param("id")), req.Reason))
}

func (ctl *Controller) eject(c *gin.Context) {
	var req ReasonRequest
	_ = c.ShouldBindJSON(&req)
	cl := ctl.client(c)
	ctl.reply(c, cl, cl.Conf.Eject(domain.ContactID(c.Param("id")), req.Reason))
}

// plugDevice adds a device to the client's inventory.
func (ctl *Controller) plugDevice(c *gin.Context) {
	var req core.MediaDevice
	if err := c.ShouldBindJSON(&req); err != nil || req.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid device"})
		return
	}
	cl := ctl.client(c)
	cl.UA.Devices().Plug(req)
	c.Status(http.StatusAccepted)
}

func (ctl *Controller) unplugDevice(c *gin.Context) {
	cl := ctl.client(c)
	if !cl.UA.Devices().Unplug(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown device"})
		return
	}
	c.Status(http.StatusAccepted)
}

func (ctl *Controller) conversations(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"conversations": ctl.hub.Conversations(), "sessions": ctl.hub.Sessions()})
}
