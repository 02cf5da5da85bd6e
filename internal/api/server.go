// Package api exposes the JSON endpoints that save posts and manage
// subscriptions.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"newspaper/internal/domain"
	"newspaper/internal/publish"

	"github.com/gin-gonic/gin"
)

const readHeaderTimeout = 10 * time.Second

type Store interface {
	SetUserAuthor(ctx context.Context, userID int64) error
	GetCategory(ctx context.Context, categoryID int64) (*domain.Category, error)
	GetCategories(ctx context.Context) ([]domain.Category, error)
	Subscribe(ctx context.Context, userID, categoryID int64) error
	Unsubscribe(ctx context.Context, userID, categoryID int64) error
}

type Publisher interface {
	Create(ctx context.Context, authorID int64, draft publish.Draft) (int64, error)
	Update(ctx context.Context, authorID, postID int64, draft publish.Draft) error
}

type Server struct {
	router    *gin.Engine
	store     Store
	publisher Publisher
	log       *slog.Logger
}

// NewServer builds the router. auth authenticates /api/v1 requests, use
// JWTAuth in production.
func NewServer(store Store, publisher Publisher, auth gin.HandlerFunc, log *slog.Logger) *Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(log))

	s := &Server{
		router:    router,
		store:     store,
		publisher: publisher,
		log:       log,
	}
	s.setupRoutes(auth)

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// HTTPServer wraps the router into a server listening on addr.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

func (s *Server) setupRoutes(auth gin.HandlerFunc) {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := s.router.Group("/api/v1")
	api.Use(auth)
	{
		api.POST("/author", s.handleBecomeAuthor())

		posts := api.Group("/posts")
		{
			posts.POST("", s.handleCreatePost())
			posts.PUT("/:id", s.handleUpdatePost())
		}

		categories := api.Group("/categories")
		{
			categories.GET("", s.handleListCategories())
			categories.PUT("/:id/subscription", s.handleSetSubscription())
		}
	}
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		log.DebugContext(c.Request.Context(), "Request is handled",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"durationMs", time.Since(start).Milliseconds())
	}
}
