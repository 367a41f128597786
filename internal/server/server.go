package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"chat-sync/internal/auth"
	"chat-sync/internal/config"
	"chat-sync/internal/handler"
	"chat-sync/internal/middleware"
	"chat-sync/internal/transport/httpdto"
	"chat-sync/internal/websocket"
	"chat-sync/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 5 * time.Second

var (
	ReleaseMode = "production"
	TestMode    = "test"
)

// HealthCheck reports whether a dependency the process needs is reachable.
type HealthCheck func(ctx context.Context) error

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
}

type Handlers struct {
	Conversation *handler.ConversationHandler
	Message      *handler.MessageHandler
	Sync         *handler.SyncHandler
}

func New(cfg *config.Config, l *logger.Logger) *Server {
	switch cfg.Server.Environment {
	case ReleaseMode:
		gin.SetMode(gin.ReleaseMode)
	case TestMode:
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestIDMiddleware())
	engine.Use(middleware.LoggingMiddleware(l))
	engine.Use(middleware.MetricsMiddleware())
	engine.Use(middleware.ErrorHandler(l))

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		engine: engine,
		config: cfg,
		logger: l,
	}
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) setupCommon(checks map[string]HealthCheck) {
	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})

	s.engine.GET("/healthz", func(c *gin.Context) {
		for name, check := range checks {
			if err := check(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(name+": "+err.Error(), "UNHEALTHY"))
				return
			}
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": "healthy"}))
	})

	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// SetupRoutes mounts the local sync API. Every /v1 route requires a bearer
// token minted for the synced user.
func (s *Server) SetupRoutes(h *Handlers, issuer *auth.Issuer, checks map[string]HealthCheck) {
	s.setupCommon(checks)

	v1 := s.engine.Group("/v1", middleware.AuthMiddleware(issuer, s.config.Sync.UserID))

	conversations := v1.Group("/conversations")
	{
		conversations.GET("", h.Conversation.List)
		conversations.POST("", h.Conversation.CreateGroup)
		conversations.GET("/:id/messages", h.Conversation.Messages)
		conversations.POST("/:id/open", h.Conversation.Open)
		conversations.POST("/:id/typing", h.Conversation.Typing)
		conversations.POST("/:id/participants", h.Conversation.AddParticipants)
		conversations.DELETE("/:id/participants", h.Conversation.RemoveParticipants)
		conversations.POST("/:id/leave", h.Conversation.Leave)
		conversations.PATCH("/:id", h.Conversation.EditInfo)
		conversations.POST("/:id/messages", h.Message.Send)
		conversations.POST("/:id/media", h.Message.SendMedia)
	}

	messages := v1.Group("/messages")
	{
		messages.POST("/:id/reactions", h.Message.React)
		messages.DELETE("/:id/reactions/:emoji", h.Message.RemoveReaction)
		messages.POST("/:id/recall", h.Message.Recall)
		messages.PUT("/:id/pin", h.Message.Pin)
		messages.PATCH("/:id", h.Message.Edit)
		messages.POST("/:id/forward", h.Message.Forward)
	}

	v1.DELETE("/open", h.Conversation.Close)
	v1.DELETE("/typing", h.Conversation.StopTyping)
	v1.POST("/requests/:id/retry", h.Sync.Retry)
	v1.GET("/notices", h.Sync.Notices)
	v1.GET("/status", h.Sync.Status)
	v1.GET("/changes", h.Sync.Changes)
}

// SetupRelayRoutes mounts the websocket relay endpoint.
func (s *Server) SetupRelayRoutes(ws *websocket.Handler, checks map[string]HealthCheck) {
	s.setupCommon(checks)
	s.engine.GET("/ws", ws.Connect)
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("Starting the server on port %s...", s.config.Server.Port)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			s.logger.Errorf("Error in starting the server: %s", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Infof("Shutting down the server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Errorf("Error in the graceful shutdown of the server: %s", err)
		return err
	}
	for range errCh {
	}
	s.logger.Infof("Server stopped gracefully")
	return nil
}
