// Package mirror serves a dataset over HTTP using the origin's URL scheme.
//
// A mirror is an origin that never changes: point `archivist --origin` at
// one to rebuild an archive from an export, or at an httptest server in
// tests to exercise the real HTTP client.
package mirror

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/roach88/archivist/internal/dataset"
	"github.com/roach88/archivist/internal/metrics"
	"github.com/roach88/archivist/internal/model"
)

// Option configures the mirror router.
type Option func(*config)

type config struct {
	metrics *metrics.Metrics
}

// WithMetrics records HTTP request metrics and serves them at /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *config) {
		c.metrics = m
	}
}

// NewRouter builds a gin engine answering the origin routes from idx.
func NewRouter(idx *dataset.Index, opts ...Option) *gin.Engine {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	r := gin.New()
	r.Use(gin.Recovery(), cfg.metrics.Middleware())

	h := &handler{idx: idx}
	r.GET("/user/:handle/info", h.userByHandle)
	r.GET("/user/:handle/tweets", h.timeline)
	r.GET("/user/:handle/tweets-since/:since", h.postsSince)
	r.GET("/user/:handle/has_tweeted_since/:since", h.hasPostedSince)
	r.GET("/userbyid/:id", h.userByID)
	r.GET("/tweet/:id", h.post)
	r.GET("/conversation/:id", h.conversation)

	if cfg.metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.metrics.Handler()))
	}

	return r
}

type handler struct {
	idx *dataset.Index
}

func (h *handler) userByHandle(c *gin.Context) {
	u, ok := h.idx.UserByHandle(c.Param("handle"))
	if !ok {
		notFound(c)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *handler) userByID(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	u, ok := h.idx.User(id)
	if !ok {
		notFound(c)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *handler) post(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	p, ok := h.idx.Post(id)
	if !ok {
		notFound(c)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *handler) timeline(c *gin.Context) {
	posts, ok := h.idx.Timeline(c.Param("handle"))
	if !ok {
		notFound(c)
		return
	}
	c.JSON(http.StatusOK, posts)
}

func (h *handler) conversation(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.idx.Conversation(id))
}

func (h *handler) postsSince(c *gin.Context) {
	since, err := model.ParseTimestamp(c.Param("since"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation_error", "error": err.Error()})
		return
	}
	posts, ok := h.idx.PostsSince(c.Param("handle"), since)
	if !ok {
		notFound(c)
		return
	}
	c.JSON(http.StatusOK, posts)
}

func (h *handler) hasPostedSince(c *gin.Context) {
	since, err := model.ParseTimestamp(c.Param("since"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation_error", "error": err.Error()})
		return
	}
	posted, ok := h.idx.HasPostedSince(c.Param("handle"), since)
	if !ok {
		notFound(c)
		return
	}
	c.JSON(http.StatusOK, posted)
}

func parseID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation_error", "error": "invalid id"})
		return 0, false
	}
	return id, true
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"code": "not_found", "error": "not found"})
}
