// Package http provides the DevForge HTTP API.
//
// The API mirrors the MCP tools: every dispatcher command can be invoked
// with POST /api/v1/commands/:name and a JSON body holding its arguments.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/devforge/internal/dispatch"
	"github.com/fyrsmithlabs/devforge/internal/logging"
	"github.com/fyrsmithlabs/devforge/internal/workflow"
)

// PromptSource reads the last continuation prompt of a project.
type PromptSource interface {
	ContinuationPrompt(ctx context.Context, name string) (string, error)
}

// Server provides HTTP endpoints for DevForge.
type Server struct {
	echo       *echo.Echo
	dispatcher *dispatch.Dispatcher
	prompts    PromptSource
	registry   *prometheus.Registry
	requests   *prometheus.CounterVec
	logger     *logging.Logger
	config     *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host    string
	Port    int
	Version string

	// MeterProvider receives the OpenTelemetry HTTP metrics. Defaults to
	// the global provider.
	MeterProvider metric.MeterProvider
}

// NewServer creates a new HTTP server.
func NewServer(d *dispatch.Dispatcher, prompts PromptSource, logger *logging.Logger, cfg *Config) (*Server, error) {
	if d == nil {
		return nil, fmt.Errorf("dispatcher cannot be nil")
	}
	if prompts == nil {
		return nil, fmt.Errorf("prompt source cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "127.0.0.1",
			Port: 9090,
		}
	}
	logger = logger.Named("http")

	s := &Server{
		dispatcher: d,
		prompts:    prompts,
		registry:   prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "devforge_http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		logger: logger,
		config: cfg,
	}
	s.registry.MustRegister(
		s.requests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(s.requestLogger)
	e.Use(NewHTTPMetrics(cfg.MeterProvider, logger).MetricsMiddleware())
	e.Use(s.countRequests)

	s.echo = e
	s.registerRoutes()
	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/commands", s.handleListCommands)
	v1.POST("/commands/:name", s.handleCommand, middleware.BodyLimit("1M"))
	v1.GET("/projects/:name/continuation", s.handleContinuation)
}

// requestLogger logs each request and carries the request id into the
// request context.
func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		requestID := c.Response().Header().Get(echo.HeaderXRequestID)
		ctx := logging.WithRequestID(c.Request().Context(), requestID)
		c.SetRequest(c.Request().WithContext(ctx))

		err := next(c)
		if err != nil {
			c.Error(err)
		}

		s.logger.Info(ctx, "http request",
			zap.String("method", c.Request().Method),
			zap.String("uri", c.Request().RequestURI),
			zap.Int("status", c.Response().Status),
			zap.Duration("duration", time.Since(start)),
		)
		return nil
	}
}

func (s *Server) countRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := next(c)
		status := c.Response().Status
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
		}
		s.requests.WithLabelValues(c.Request().Method, normalizePath(c.Path()), fmt.Sprint(status)).Inc()
		return err
	}
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:   "ok",
		Version:  s.config.Version,
		Commands: len(s.dispatcher.Commands()),
	})
}

func (s *Server) handleListCommands(c echo.Context) error {
	cmds := s.dispatcher.Commands()
	out := make([]CommandInfo, 0, len(cmds))
	for _, cmd := range cmds {
		out = append(out, CommandInfo{Name: cmd.Name, Description: cmd.Description})
	}
	return c.JSON(http.StatusOK, out)
}

// handleCommand runs a dispatcher command with the request body as its
// arguments. The body is always a CommandResponse; the status code reflects
// the failure class.
func (s *Server) handleCommand(c echo.Context) error {
	name := c.Param("name")
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(body) > 0 && !json.Valid(body) {
		s.logger.Warn(logging.WithCommand(c.Request().Context(), name), "invalid command request")
		return echo.NewHTTPError(http.StatusBadRequest, "request body must be a JSON object")
	}

	resp := s.dispatcher.Dispatch(c.Request().Context(), name, body)
	return c.JSON(statusFor(resp.Err), CommandResponse{
		Command: resp.Command,
		Text:    resp.Text,
		Error:   resp.IsError,
		Report:  resp.Report,
	})
}

func (s *Server) handleContinuation(c echo.Context) error {
	name := c.Param("name")
	if err := workflow.ValidateName(name); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	prompt, err := s.prompts.ContinuationPrompt(c.Request().Context(), name)
	if err != nil {
		if workflow.IsNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("no continuation prompt for project '%s'", name))
		}
		s.logger.Error(logging.WithProject(c.Request().Context(), name), "failed to read continuation prompt", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to read continuation prompt")
	}
	return c.JSON(http.StatusOK, ContinuationResponse{Project: name, Prompt: prompt})
}

// statusFor maps a dispatch failure to an HTTP status code.
func statusFor(err error) int {
	var (
		argErr   *dispatch.ArgumentError
		invalid  *workflow.InvalidInputError
		conflict *workflow.ConflictError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, dispatch.ErrUnknownCommand), workflow.IsNotFound(err):
		return http.StatusNotFound
	case errors.As(err, &argErr), errors.As(err, &invalid):
		return http.StatusBadRequest
	case workflow.IsPrecondition(err), errors.As(err, &conflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Handler returns the HTTP handler serving all routes.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server. It returns http.ErrServerClosed after
// Shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
