// Package httpapi exposes the authentication service over HTTP with gin.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/notematic/internal/logging"
	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 5 * time.Second

// Server is the HTTP front of the auth service.
type Server struct {
	addr   string
	engine *gin.Engine
	logger logging.Logger
}

// NewServer builds the router. store may be nil, in which case /ready only
// reports the process as up.
func NewServer(addr string, svc AuthService, store Pinger, logger logging.Logger) *Server {
	h := &handlers{svc: svc, store: store}

	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(logger))

	r.GET("/health", h.health)
	r.GET("/ready", h.ready)

	a := r.Group("/auth")
	a.POST("/register", h.register)
	a.POST("/login", h.login)
	a.POST("/refresh", h.refresh)
	a.GET("/me", RequireBearer(svc), h.me)

	return &Server{addr: addr, engine: r, logger: logger}
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled and then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "starting HTTP server", "addr", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	s.logger.Info(ctx, "stopping HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
