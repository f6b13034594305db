package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kazuhrw/schedsense/ai/llm"
	"github.com/kazuhrw/schedsense/internal/profile"
	apiv1 "github.com/kazuhrw/schedsense/server/router/api/v1"
	"github.com/kazuhrw/schedsense/store"
)

// Server hosts the HTTP surface: the chat API, health check and metrics.
type Server struct {
	echoServer *echo.Echo
	profile    *profile.Profile
	store      *store.Store
}

func NewServer(_ context.Context, p *profile.Profile, s *store.Store) (*Server, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(requestLogger())

	var llmService llm.Service
	if p.IsLLMConfigured() {
		var err error
		llmService, err = llm.NewService(&llm.Config{
			Provider: p.LLMProvider,
			Model:    p.LLMModel,
			APIKey:   p.LLMAPIKey,
			BaseURL:  p.LLMBaseURL,
			Timeout:  p.LLMTimeout,
		})
		if err != nil {
			return nil, err
		}
		slog.Info("LLM service initialized", "provider", p.LLMProvider, "model", p.LLMModel)
	} else {
		slog.Warn("LLM not configured, chat endpoint will be unavailable")
	}

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "Service ready.")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	apiService := apiv1.NewAPIV1Service(p, s, llmService)
	apiService.RegisterRoutes(e.Group("/api/v1"))

	return &Server{
		echoServer: e,
		profile:    p,
		store:      s,
	}, nil
}

func (s *Server) Start(_ context.Context) error {
	address := fmt.Sprintf("%s:%d", s.profile.Addr, s.profile.Port)
	go func() {
		if err := s.echoServer.Start(address); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start echo server", "error", err)
		}
	}()
	slog.Info("server started", "address", address, "mode", s.profile.Mode, "version", s.profile.Version)
	return nil
}

func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}
	if err := s.store.Close(); err != nil {
		slog.Error("failed to close store", "error", err)
	}
	slog.Info("server stopped")
}

func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:     true,
		LogStatus:  true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			slog.Info("http request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
			)
			return nil
		},
	})
}
