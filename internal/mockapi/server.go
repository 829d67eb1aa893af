// Package mockapi is an in-memory stand-in for the TicketOne HTTP API,
// used for local development and by the client's integration tests.
package mockapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"ticketone/sync/internal/config"
	"ticketone/sync/internal/mockapi/middleware"
	"ticketone/sync/internal/monitoring"
)

// Server is the mock backend process. It answers the JSON API under /api,
// the scrape endpoint at /api/metrics when metrics are on, and, when
// objects live in the in-process sink, the /storage URLs that presigned
// uploads point at.
type Server struct {
	engine   *gin.Engine
	http     *http.Server
	handlers HandlerSet
	cfg      *config.AppConfig
	logger   zerolog.Logger
}

func NewServer(cfg *config.AppConfig, logger zerolog.Logger, handlers HandlerSet) *Server {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.RedirectTrailingSlash = true
	engine.Use(
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Recovery(logger),
	)
	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no route for " + c.Request.Method + " " + c.Request.URL.Path})
	})

	api := engine.Group("/api")
	handlers.Register(api)
	if cfg.Metrics.Enabled {
		api.GET("/metrics", gin.WrapH(monitoring.Handler()))
	}

	if handlers.sink != nil {
		objects := engine.Group("/storage")
		objects.PUT("/*key", handlers.PutObject)
		objects.GET("/*key", handlers.GetObject)
	}

	return &Server{
		engine: engine,
		http: &http.Server{
			Addr:         net.JoinHostPort(cfg.HTTP.Host, strconv.Itoa(cfg.HTTP.Port)),
			Handler:      engine,
			ReadTimeout:  cfg.HTTP.ReadTimeout,
			WriteTimeout: cfg.HTTP.WriteTimeout,
			IdleTimeout:  cfg.HTTP.IdleTimeout,
		},
		handlers: handlers,
		cfg:      cfg,
		logger:   logger,
	}
}

// Handler exposes the router for httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe binds the configured address. Port 0 picks a free port.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.http.Addr, err)
	}
	return s.Serve(ln)
}

// Serve answers on ln until Shutdown. Without storage.public_base_url the
// sink presigns against the address ln is actually bound to.
func (s *Server) Serve(ln net.Listener) error {
	sink := s.handlers.sink
	if sink != nil && s.cfg.Storage.PublicBaseURL == "" {
		sink.SetBaseURL("http://" + advertisedAddr(ln.Addr()))
	}

	s.logger.Info().
		Str("addr", ln.Addr().String()).
		Bool("object_sink", sink != nil).
		Bool("metrics", s.cfg.Metrics.Enabled).
		Msg("mock api listening")

	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve mock api: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("mock api shutting down")
	return s.http.Shutdown(ctx)
}

// advertisedAddr turns a wildcard bind address into one a client on the
// same host can dial.
func advertisedAddr(addr net.Addr) string {
	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "localhost"
	}
	return net.JoinHostPort(host, port)
}
