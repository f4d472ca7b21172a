// Package http exposes the REST and SSE surface of the service.
package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sitesmith/backend/internal/domain/app"
	"github.com/sitesmith/backend/internal/domain/chat"
	"github.com/sitesmith/backend/internal/domain/deploy"
	"github.com/sitesmith/backend/internal/domain/generate"
	"github.com/sitesmith/backend/internal/domain/session"
	"github.com/sitesmith/backend/internal/infrastructure/logging"
	"github.com/sitesmith/backend/internal/infrastructure/monitoring"
	"github.com/sitesmith/backend/internal/shared/errs"
	"github.com/sitesmith/backend/internal/shared/types"
)

// Handlers carries the service dependencies of the REST surface.
type Handlers struct {
	apps    *app.Service
	chats   *chat.Service
	router  *generate.Router
	deploys *deploy.Service
	cache   *session.Cache
	metrics *monitoring.Metrics
	log     *logging.Logger
}

// NewHandlers creates the handler set.
func NewHandlers(apps *app.Service, chats *chat.Service, router *generate.Router, deploys *deploy.Service, cache *session.Cache, metrics *monitoring.Metrics, log *logging.Logger) *Handlers {
	return &Handlers{
		apps:    apps,
		chats:   chats,
		router:  router,
		deploys: deploys,
		cache:   cache,
		metrics: metrics,
		log:     log,
	}
}

// Health reports service liveness.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "sitesmith-backend",
	})
}

type createAppRequest struct {
	Prompt string `json:"prompt" binding:"required"`
}

// CreateApp registers a new application from its initial prompt.
func (h *Handlers) CreateApp(c *gin.Context) {
	uid, ok := h.userID(c)
	if !ok {
		return
	}
	var req createAppRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, errs.Validation("prompt must not be empty"))
		return
	}

	a, err := h.apps.Create(req.Prompt, uid)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

// GetApp returns one application.
func (h *Handlers) GetApp(c *gin.Context) {
	uid, ok := h.userID(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	a, err := h.apps.Get(id, uid)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

type generateRequest struct {
	Prompt string `json:"prompt" binding:"required"`
}

// Generate runs one generation turn and streams its events over SSE.
func (h *Handlers) Generate(c *gin.Context) {
	uid, ok := h.userID(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, errs.Validation("prompt must not be empty"))
		return
	}

	events, err := h.router.Dispatch(c.Request.Context(), id, uid, req.Prompt)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.streamSSE(c, events)
}

// Retry regenerates the reply of an earlier message, streaming like Generate.
func (h *Handlers) Retry(c *gin.Context) {
	uid, ok := h.userID(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	events, err := h.router.Retry(c.Request.Context(), id, uid)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.streamSSE(c, events)
}

// Deploy publishes the application's latest artifact.
func (h *Handlers) Deploy(c *gin.Context) {
	uid, ok := h.userID(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	res, err := h.deploys.Deploy(c.Request.Context(), id, uid)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// History pages the chat log backwards from a cursor (unix milliseconds of
// the oldest already-loaded message). A zero or absent cursor starts at the
// newest message.
func (h *Handlers) History(c *gin.Context) {
	uid, ok := h.userID(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	if _, err := h.apps.Get(id, uid); err != nil {
		h.fail(c, err)
		return
	}

	size := chat.MaxPageSize
	if raw := c.Query("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.fail(c, errs.Validation("size must be a number"))
			return
		}
		size = n
	}
	var before time.Time
	if raw := c.Query("cursor"); raw != "" {
		millis, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || millis < 0 {
			h.fail(c, errs.Validation("cursor must be a unix millisecond timestamp"))
			return
		}
		if millis > 0 {
			before = time.UnixMilli(millis).UTC()
		}
	}

	msgs, err := h.chats.Page(id, before, size)
	if err != nil {
		h.fail(c, err)
		return
	}

	var next int64
	if len(msgs) > 0 {
		next = msgs[len(msgs)-1].CreatedAt.UnixMilli()
	}
	c.JSON(http.StatusOK, gin.H{
		"messages":   msgs,
		"nextCursor": next,
	})
}

// Deployments lists an application's deployment records, newest first.
func (h *Handlers) Deployments(c *gin.Context) {
	uid, ok := h.userID(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	records, err := h.deploys.History(id, uid, 50)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deployments": records})
}

// CacheStats snapshots session cache counters.
func (h *Handlers) CacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.cache.Stats())
}

type cacheEvictRequest struct {
	AppID uint64 `json:"appId"`
	Mode  string `json:"mode"`
	All   bool   `json:"all"`
}

// CacheEvict drops cached sessions: one pair, one application, or everything.
func (h *Handlers) CacheEvict(c *gin.Context) {
	var req cacheEvictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, errs.Validation("invalid evict request"))
		return
	}

	var evicted int
	switch {
	case req.All:
		evicted = h.cache.EvictAll()
	case req.AppID != 0 && req.Mode != "":
		mode, err := types.ParseMode(req.Mode)
		if err != nil {
			h.fail(c, errs.Validation(err.Error()))
			return
		}
		if h.cache.Evict(req.AppID, mode) {
			evicted = 1
		}
	case req.AppID != 0:
		evicted = h.cache.EvictApp(req.AppID)
	default:
		h.fail(c, errs.Validation("specify appId, appId+mode, or all"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"evicted": evicted})
}

type cacheWarmRequest struct {
	AppIDs []uint64 `json:"appIds" binding:"required"`
}

// CacheWarm pre-builds sessions for every mode of the given applications.
func (h *Handlers) CacheWarm(c *gin.Context) {
	var req cacheWarmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, errs.Validation("appIds is required"))
		return
	}
	warmed := h.cache.Warm(c.Request.Context(), req.AppIDs)
	c.JSON(http.StatusOK, gin.H{"warmed": warmed})
}

// streamSSE forwards the event channel as server-sent events until the
// terminal event closes it.
func (h *Handlers) streamSSE(c *gin.Context, events <-chan types.StreamEvent) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	if h.metrics != nil {
		h.metrics.SSEStreams.Inc()
		defer h.metrics.SSEStreams.Dec()
	}

	for ev := range events {
		if h.metrics != nil {
			h.metrics.StreamEvents.WithLabelValues(string(ev.Kind)).Inc()
		}
		c.SSEvent(string(ev.Kind), ev)
		c.Writer.Flush()
	}
}

// userID reads the caller identity. There is no account system in front of
// this service; the gateway injects the authenticated user id.
func (h *Handlers) userID(c *gin.Context) (uint64, bool) {
	raw := c.GetHeader("X-User-ID")
	if raw == "" {
		h.fail(c, errs.Validation("missing X-User-ID header"))
		return 0, false
	}
	uid, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || uid == 0 {
		h.fail(c, errs.Validation("invalid X-User-ID header"))
		return 0, false
	}
	return uid, true
}

func (h *Handlers) pathID(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		h.fail(c, errs.Newf(errs.KindValidation, "invalid %s", name))
		return 0, false
	}
	return id, true
}

func (h *Handlers) fail(c *gin.Context, err error) {
	c.AbortWithStatusJSON(errs.HTTPStatus(err), gin.H{
		"error": err.Error(),
		"kind":  errs.KindOf(err).String(),
	})
}
