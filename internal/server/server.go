// Package server exposes the user management operations as a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/agrilink/usermgmt/internal/logger"
	"github.com/agrilink/usermgmt/internal/metrics"
	"github.com/agrilink/usermgmt/internal/service"
)

const shutdownTimeout = 15 * time.Second

type Config struct {
	ListenAddr  string
	Service     *service.Service
	Metrics     *metrics.Registry
	CORSOrigins []string
	Version     string
}

type Server struct {
	cfg Config
	h   http.Handler
}

func New(cfg Config) *Server {
	return &Server{cfg: cfg, h: newApp(cfg).routes()}
}

func (s *Server) Handler() http.Handler { return s.h }

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpSrv := &http.Server{
		Handler:           s.h,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening on %s", ln.Addr())
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down http server")
	shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutCtx); err != nil {
		return err
	}
	return <-errCh
}
