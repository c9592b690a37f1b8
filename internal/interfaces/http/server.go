// Package http provides the HTTP server adapter for the application
// layer. This is a thin adapter that translates requests to application
// service calls; identity arrives pre-verified in request headers.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/brightframe/studioops/internal/application/service"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Server is the HTTP server adapter
type Server struct {
	config      ServerConfig
	httpServer  *http.Server
	router      *gin.Engine
	taskService service.TaskService
	logger      Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(config ServerConfig, taskService service.TaskService, logger Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	server := &Server{
		config:      config,
		router:      router,
		taskService: taskService,
		logger:      logger,
	}

	server.setupMiddleware()
	server.setupRoutes()
	return server
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		)
	}
}

func (s *Server) setupRoutes() {
	handlers := NewHandlers(s.taskService, s.logger)

	s.router.GET("/health", handlers.HealthCheck)

	api := s.router.Group("/api/v1")
	api.Use(actorMiddleware())
	{
		api.POST("/tasks", handlers.CreateTask)
		api.GET("/tasks", handlers.ListTasks)
		api.GET("/tasks/overdue", handlers.ListOverdue)
		api.GET("/tasks/:id", handlers.GetTask)
		api.PATCH("/tasks/:id", handlers.UpdateTask)
		api.POST("/tasks/:id/assign", handlers.AssignTask)
		api.POST("/tasks/:id/status", handlers.ChangeStatus)
		api.POST("/tasks/:id/progress", handlers.SetProgress)
		api.POST("/tasks/:id/notes", handlers.AddNote)
		api.POST("/tasks/:id/time/start", handlers.StartTime)
		api.POST("/tasks/:id/time/stop", handlers.StopTime)
		api.POST("/tasks/:id/time", handlers.RecordManualTime)
		api.PATCH("/tasks/:id/time/:entryId", handlers.UpdateTimeEntry)
		api.DELETE("/tasks/:id/time/:entryId", handlers.DeleteTimeEntry)
	}
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the gin engine, for tests
func (s *Server) Router() *gin.Engine {
	return s.router
}
