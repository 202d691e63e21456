// Package api exposes the archive's read operations over HTTP.
//
// Every route answers from the synchronization engine, so a request may
// reach the origin. Absent posts and users are 404; origin failures are
// 502 with the origin error code in the body.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/roach88/archivist/internal/metrics"
	"github.com/roach88/archivist/internal/model"
	"github.com/roach88/archivist/internal/origin"
)

// DefaultSearchLimit caps search results when the request sets no limit.
const DefaultSearchLimit = 50

// Archive is the set of engine operations the API serves.
type Archive interface {
	Timeline(ctx context.Context, handle string) ([]model.Entry, error)
	Conversation(ctx context.Context, rootID uint64) ([]model.Entry, error)
	Post(ctx context.Context, id uint64) (model.Entry, bool, error)
	User(ctx context.Context, id uint64) (model.User, bool, error)
	UserByHandle(ctx context.Context, handle string) (model.User, bool, error)
	Search(ctx context.Context, query string, limit int) ([]model.Entry, error)
	Stats(ctx context.Context) (model.Stats, error)
}

// Option configures the API router.
type Option func(*server)

// WithMetrics records HTTP request metrics and serves them at /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *server) {
		s.metrics = m
	}
}

// WithLogger sets the logger for failed requests.
func WithLogger(l *slog.Logger) Option {
	return func(s *server) {
		s.logger = l
	}
}

type server struct {
	archive Archive
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewRouter builds the gin engine serving archive reads.
func NewRouter(a Archive, opts ...Option) *gin.Engine {
	s := &server{archive: a, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.metrics.Middleware())

	r.GET("/healthz", s.healthz)

	v1 := r.Group("/v1")
	v1.GET("/users/:handle", s.userByHandle)
	v1.GET("/users/:handle/timeline", s.timeline)
	v1.GET("/users/id/:id", s.userByID)
	v1.GET("/posts/:id", s.post)
	v1.GET("/conversations/:id", s.conversation)
	v1.GET("/search", s.search)
	v1.GET("/stats", s.stats)

	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	return r
}

func (s *server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *server) timeline(c *gin.Context) {
	entries, err := s.archive.Timeline(c.Request.Context(), c.Param("handle"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (s *server) conversation(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	entries, err := s.archive.Conversation(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (s *server) post(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	entry, found, err := s.archive.Post(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	if !found {
		notFound(c, "post not found")
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (s *server) userByHandle(c *gin.Context) {
	u, found, err := s.archive.UserByHandle(c.Request.Context(), c.Param("handle"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if !found {
		notFound(c, "user not found")
		return
	}
	c.JSON(http.StatusOK, u)
}

func (s *server) userByID(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	u, found, err := s.archive.User(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	if !found {
		notFound(c, "user not found")
		return
	}
	c.JSON(http.StatusOK, u)
}

func (s *server) search(c *gin.Context) {
	limit := DefaultSearchLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"code": "validation_error", "error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	entries, err := s.archive.Search(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (s *server) stats(c *gin.Context) {
	st, err := s.archive.Stats(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// fail maps an engine error to a response.
func (s *server) fail(c *gin.Context, err error) {
	var oe *origin.Error
	if errors.As(err, &oe) {
		s.logger.Warn("origin failure", "path", c.Request.URL.Path, "code", oe.Code, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"code": oe.Code, "error": err.Error()})
		return
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		c.JSON(http.StatusGatewayTimeout, gin.H{"code": "timeout", "error": err.Error()})
		return
	}
	s.logger.Error("request failed", "path", c.Request.URL.Path, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"code": "internal_error", "error": "internal error"})
}

func parseID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation_error", "error": "invalid id"})
		return 0, false
	}
	return id, true
}

func notFound(c *gin.Context, msg string) {
	c.JSON(http.StatusNotFound, gin.H{"code": "not_found", "error": msg})
}
