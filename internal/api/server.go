package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/ujpm/GGH-website-sub000/internal/auth"
	"github.com/ujpm/GGH-website-sub000/internal/funding"
	"github.com/ujpm/GGH-website-sub000/internal/models"
)

type Options struct {
	Logger         *zap.Logger
	AllowedOrigins []string
	// Development exposes internal error messages in 500 responses.
	Development    bool
	RequestTimeout time.Duration
}

type Server struct {
	Echo    *echo.Echo
	Funding *funding.Service
	Auth    *auth.Service

	log *zap.Logger
	dev bool

	// Background job tracking
	jobMu      sync.Mutex
	runningJob *backgroundJob
}

func NewServer(calls *funding.Service, authService *auth.Service, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		Echo:    e,
		Funding: calls,
		Auth:    authService,
		log:     logger,
		dev:     opts.Development,
	}
	e.HTTPErrorHandler = s.handleHTTPError

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogMethod:    true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remote_ip", v.RemoteIP),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			if v.Status >= http.StatusInternalServerError {
				logger.Error("request", fields...)
			} else {
				logger.Info("request", fields...)
			}
			return nil
		},
	}))

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  origins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "If-Match"},
		ExposeHeaders: []string{"ETag"},
	}))
	if opts.RequestTimeout > 0 {
		e.Use(middleware.ContextTimeout(opts.RequestTimeout))
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)

	// The SPA proxies /api/* to this process, so every route is reachable
	// both with and without the prefix.
	s.mount(s.Echo.Group(""))
	s.mount(s.Echo.Group("/api"))
}

func (s *Server) mount(g *echo.Group) {
	g.GET("/funding-calls", s.handleListCalls)
	g.GET("/funding-calls/:id", s.handleGetCall)
	g.GET("/funding-stats", s.handleStats)

	admin := auth.RequireRole(s.Auth, models.RoleAdmin)
	g.POST("/funding-calls", s.handleCreateCall, admin)
	g.PUT("/funding-calls/:id", s.handleUpdateCall, admin)
	g.DELETE("/funding-calls/:id", s.handleDeleteCall, admin)
	g.POST("/admin/recompute-status", s.handleRecomputeStatus, admin)
	g.GET("/admin/jobs/:id", s.handleJobStatus, admin)

	g.POST("/auth/register", s.handleRegister)
	g.POST("/auth/login", s.handleLogin)
}

func (s *Server) Start(addr string) error {
	s.log.Info("http server listening", zap.String("addr", addr))
	if err := s.Echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones and cancels a
// running recompute job.
func (s *Server) Shutdown(ctx context.Context) error {
	s.jobMu.Lock()
	if s.runningJob != nil && s.runningJob.Cancel != nil {
		s.runningJob.Cancel()
	}
	s.jobMu.Unlock()
	return s.Echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// handleHTTPError renders echo errors (auth middleware, routing, binding) in
// the same {"error": ...} shape as the handlers.
func (s *Server) handleHTTPError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	msg := "Internal Server Error"

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		} else {
			msg = http.StatusText(code)
		}
	} else {
		s.log.Error("unhandled error", zap.Error(err))
		if s.dev {
			msg = err.Error()
		}
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, map[string]string{"error": msg})
}
