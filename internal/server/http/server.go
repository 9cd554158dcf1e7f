// Package http exposes the screening assistant over a JSON and websocket API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"symcheck/internal/conversation"
	"symcheck/internal/logging"
	"symcheck/internal/observability"
	"symcheck/internal/rag/gate"
	"symcheck/internal/report"
)

// Processor runs one conversational turn.
type Processor interface {
	ProcessMessage(ctx context.Context, session *conversation.Session, text string) (*conversation.Response, error)
	NumFollowups() int
}

// ReportRenderer turns a completed diagnosis into a PDF.
type ReportRenderer interface {
	Render(in report.Input) ([]byte, error)
}

// Config configures the HTTP server.
type Config struct {
	Addr           string
	AllowedOrigins []string
	Debug          bool
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	SweepInterval  time.Duration
	Version        string
}

// DefaultConfig returns the listener defaults.
func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		AllowedOrigins: []string{"*"},
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   120 * time.Second,
		SweepInterval:  time.Minute,
		Version:        "dev",
	}
}

// Dependencies are the services behind the routes.
type Dependencies struct {
	Processor Processor
	Sessions  *conversation.SessionStore
	Evaluator *gate.Evaluator
	Reports   ReportRenderer
	Metrics   *observability.MetricsCollector
	Tracer    *observability.TracerProvider
	Logger    logging.Logger
}

// Server owns the gin engine and the session sweeper.
type Server struct {
	config     Config
	deps       Dependencies
	logger     logging.Logger
	engine     *gin.Engine
	httpServer *http.Server
	upgrader   websocket.Upgrader
	startTime  time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer wires routes and middleware.
func NewServer(config Config, deps Dependencies) (*Server, error) {
	if deps.Processor == nil || deps.Sessions == nil {
		return nil, errors.New("server requires a processor and a session store")
	}
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		config:    config,
		deps:      deps,
		logger:    logging.OrNop(deps.Logger),
		engine:    gin.New(),
		startTime: time.Now(),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	s.engine.Use(gin.Recovery())
	s.engine.Use(TracingMiddleware(deps.Tracer))
	s.engine.Use(RequestLogMiddleware(s.logger))
	s.engine.Use(cors.New(corsConfig(config.AllowedOrigins)))
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         config.Addr,
		Handler:      s.engine,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
	return s, nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	cfg.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Requested-With"}
	cfg.AllowWebSockets = true
	return cfg
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.config.AllowedOrigins) == 0 || slices.Contains(s.config.AllowedOrigins, "*") {
		return true
	}
	return slices.Contains(s.config.AllowedOrigins, origin)
}

func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.handleHealth)

	api := s.engine.Group("/api")
	api.GET("/stats", s.handleStats)
	api.DELETE("/stats", s.handleResetStats)

	sessions := api.Group("/sessions")
	{
		sessions.POST("", s.handleCreateSession)
		sessions.GET("/:id", s.handleGetSession)
		sessions.DELETE("/:id", s.handleDeleteSession)
		sessions.POST("/:id/messages", JSONMiddleware(), s.handleSendMessage)
		sessions.GET("/:id/report.pdf", s.handleReport)
		sessions.GET("/:id/ws", s.handleWebSocket)
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until Stop is called. The idle-session sweeper runs alongside.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.deps.Sessions.RunSweeper(ctx, s.config.SweepInterval)
	}()

	s.logger.Info("Starting symptom checker API on %s", s.config.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop shuts the listener down and waits for background work.
func (s *Server) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	err := s.httpServer.Shutdown(ctx)
	s.wg.Wait()
	s.logger.Info("Symptom checker API stopped")
	return err
}
