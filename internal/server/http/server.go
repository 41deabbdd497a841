package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hydra/internal/logging"
	"hydra/internal/solver/app"
)

// ServerConfig tunes the HTTP listener.
type ServerConfig struct {
	Host       string        `json:"host"`
	Port       int           `json:"port"`
	EnableCORS bool          `json:"enable_cors"`
	Debug      bool          `json:"debug"`
	Version    string        `json:"version"`
	ReadHeader time.Duration `json:"read_header_timeout"`

	// DefaultAgents is substituted when a solve request omits the agent
	// count. 0 leaves the request untouched.
	DefaultAgents int `json:"default_agents"`
}

// DefaultServerConfig returns the default listener settings.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:          "localhost",
		Port:          8080,
		EnableCORS:    true,
		Debug:         false,
		Version:       "dev",
		ReadHeader:    10 * time.Second,
		DefaultAgents: 10,
	}
}

// Server exposes the solver registry over HTTP and WebSocket.
type Server struct {
	registry    *app.Registry
	broadcaster *app.EventBroadcaster

	engine     *gin.Engine
	httpServer *http.Server
	wsUpgrader websocket.Upgrader

	version       string
	defaultAgents int
	startTime     time.Time
	logger        logging.Logger
}

// NewServer wires the API routes around a registry and broadcaster.
func NewServer(registry *app.Registry, broadcaster *app.EventBroadcaster, config ServerConfig) *Server {
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	if config.EnableCORS {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
		corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Requested-With"}
		corsConfig.AllowWebSockets = true
		engine.Use(cors.New(corsConfig))
	}

	server := &Server{
		registry:    registry,
		broadcaster: broadcaster,
		engine:      engine,
		wsUpgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		version:       config.Version,
		defaultAgents: config.DefaultAgents,
		startTime:     time.Now(),
		logger:        logging.NewComponentLogger("HTTPServer"),
	}

	server.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:           engine,
		ReadHeaderTimeout: config.ReadHeader,
	}

	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.engine.Group("/api/solver")
	{
		api.POST("/solve", s.handleSolve)
		api.GET("/models", s.handleListModels)
		api.GET("/tasks", s.handleListTasks)
		api.GET("/task/:id/status", s.handleTaskStatus)
		api.GET("/task/:id/solution", s.handleTaskSolution)
		api.POST("/task/:id/cancel", s.handleTaskCancel)
		api.DELETE("/task/:id", s.handleTaskDelete)
		api.GET("/task/:id/stream", s.handleTaskStream)
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start blocks serving requests until the listener fails or Stop is called.
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Stop drains the listener. In-flight requests get ten seconds to finish.
func (s *Server) Stop() error {
	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("Error shutting down HTTP server: %v", err)
		return err
	}
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data: HealthResponse{
			Status:    "ok",
			Version:   s.version,
			Timestamp: time.Now(),
			Uptime:    time.Since(s.startTime).String(),
		},
	})
}
