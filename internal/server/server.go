package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/me/shopfloor/internal/config"
	"github.com/me/shopfloor/internal/hub"
	"github.com/me/shopfloor/internal/logging"
	"github.com/me/shopfloor/internal/protocol"
	"github.com/me/shopfloor/internal/scheduler"
	"github.com/me/shopfloor/internal/store"
)

// Deps are the collaborators the server exposes over HTTP.
type Deps struct {
	Store     store.Store
	Engine    *scheduler.Engine
	Hub       *hub.Hub
	Handler   *protocol.Handler
	Catalog   *config.Catalog
	Scheduler scheduler.Scheduler // optional; nil when ticks are driven elsewhere (tests)
}

// Server is the shopfloor HTTP, WebSocket and SSE front end.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	config    config.ServerConfig
	startTime time.Time
	upgrader  websocket.Upgrader

	store     store.Store
	engine    *scheduler.Engine
	hub       *hub.Hub
	handler   *protocol.Handler
	catalog   *config.Catalog
	scheduler scheduler.Scheduler
	started   bool
}

// New creates a new Server with all routes registered.
func New(cfg config.ServerConfig, deps Deps, logger *slog.Logger) *Server {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = config.DefaultServerConfig().WriteTimeout
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = config.DefaultServerConfig().HeartbeatInterval
	}
	if deps.Catalog == nil {
		deps.Catalog = config.DefaultCatalog()
	}
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logging.Component(logger, "server"),
		config:    cfg,
		startTime: time.Now(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// No authentication: any origin may observe and command.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		store:     deps.Store,
		engine:    deps.Engine,
		hub:       deps.Hub,
		handler:   deps.Handler,
		catalog:   deps.Catalog,
		scheduler: deps.Scheduler,
	}
	s.routes()
	return s
}

// StartScheduler begins the scheduling loop in a background goroutine.
func (s *Server) StartScheduler(ctx context.Context) {
	if s.scheduler == nil {
		return
	}
	s.started = true
	go func() {
		if err := s.scheduler.Start(ctx); err != nil && err != context.Canceled {
			s.logger.Error("scheduler stopped", "error", err)
		}
	}()
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	// Persistent observer/commander connection.
	r.Get("/ws", s.handleWebSocket)

	r.Handle("/metrics", promhttp.Handler())

	// API routes (JSON)
	r.Route("/api/v1", func(r chi.Router) {
		// Discovery
		r.Get("/", s.handleDiscovery)

		// Health
		r.Get("/health", s.handleHealth)

		// Tasks
		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", s.handleListTasks)
			r.Post("/", s.handleCreateTask)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetTask)
				r.Patch("/", s.handleUpdateTask)
				r.Delete("/", s.handleDeleteTask)
			})
		})

		// Machines with their live queues
		r.Get("/machines", s.handleListMachines)

		// SSE endpoint for real-time updates
		r.Route("/sse", func(r chi.Router) {
			r.Get("/tasks", s.handleSSETasks)
		})
	})
}
