package server

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/poiesic/plantdesk/chat"
	"github.com/poiesic/plantdesk/core"
	"github.com/poiesic/plantdesk/ingestion"
	"github.com/poiesic/plantdesk/storage"
)

const (
	defaultRecentLimit  = 5
	defaultHistoryLimit = 20
	defaultDocumentsTTL = 30 * time.Second
	documentCacheSize   = 64
	shutdownTimeout     = 10 * time.Second
)

// SiteResolver lists and resolves sites.
type SiteResolver interface {
	Sites() []core.Site
	Site(name string) (core.Site, error)
}

// DocumentLister lists a dataset's documents.
type DocumentLister interface {
	ListDocuments(ctx context.Context, datasetID string, page, limit int) ([]core.DatasetDocument, error)
}

// Ingester registers uploaded files.
type Ingester interface {
	IngestBatch(ctx context.Context, docs []*core.Document, datasetID string) []ingestion.BatchItem
	UploadRawBatch(ctx context.Context, docs []*core.Document, datasetID string) []ingestion.BatchItem
}

// Chatter streams answers.
type Chatter interface {
	Send(ctx context.Context, query string, site core.Site, conversationID string) iter.Seq2[chat.Fragment, error]
}

// Deps are the components the server exposes.
type Deps struct {
	Sites         SiteResolver
	Documents     DocumentLister
	Ingester      Ingester
	Chat          Chatter
	Conversations storage.ConversationRepository
	History       storage.IngestHistoryRepository
}

// Server holds the state for the REST API server.
type Server struct {
	deps         Deps
	documents    *expirable.LRU[string, []core.DatasetDocument]
	documentsTTL time.Duration
	recentLimit  int
	preCheckSize int64
	router       *gin.Engine
	logger       *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRecentLimit sets the default number of conversations listed.
func WithRecentLimit(limit int) Option {
	return func(s *Server) {
		if limit > 0 {
			s.recentLimit = limit
		}
	}
}

// WithPreCheckSize sets the per-file upload limit checked before ingestion.
func WithPreCheckSize(size int64) Option {
	return func(s *Server) {
		if size > 0 {
			s.preCheckSize = size
		}
	}
}

// WithDocumentsTTL sets how long dataset listings are cached.
func WithDocumentsTTL(ttl time.Duration) Option {
	return func(s *Server) {
		if ttl > 0 {
			s.documentsTTL = ttl
		}
	}
}

// NewServer creates a new Server instance.
func NewServer(deps Deps, opts ...Option) (*Server, error) {
	if deps.Sites == nil || deps.Documents == nil || deps.Ingester == nil || deps.Chat == nil || deps.Conversations == nil || deps.History == nil {
		return nil, errors.New("server: all dependencies are required")
	}

	s := &Server{
		deps:         deps,
		documentsTTL: defaultDocumentsTTL,
		recentLimit:  defaultRecentLimit,
		preCheckSize: ingestion.DefaultPreCheckSize,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "server")
	s.documents = expirable.NewLRU[string, []core.DatasetDocument](documentCacheSize, nil, s.documentsTTL)

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	s.router = r
	s.setupRoutes()
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck)

	api := s.router.Group("/api")
	api.GET("/sites", s.handleSites)
	api.GET("/sites/:site/documents", s.handleListDocuments)
	api.POST("/sites/:site/documents", s.handleUpload)
	api.GET("/sites/:site/history", s.handleIngestHistory)

	api.GET("/conversations", s.handleListConversations)
	api.POST("/conversations", s.handleCreateConversation)
	api.GET("/conversations/current", s.handleCurrentConversation)
	api.PUT("/conversations/current", s.handleSelectConversation)
	api.GET("/conversations/:id", s.handleGetConversation)
	api.DELETE("/conversations/:id", s.handleDeleteConversation)
	api.POST("/conversations/:id/messages", s.handleSendMessage)
}

// Health check
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed", time.Since(start))
	}
}
