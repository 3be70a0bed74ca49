package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rpcwall/rpcwall/internal/api/handlers"
	"github.com/rpcwall/rpcwall/internal/api/routes"
	"github.com/rpcwall/rpcwall/internal/config"
	"github.com/rpcwall/rpcwall/internal/firewall"
	"github.com/rpcwall/rpcwall/internal/webhook"
)

// Server is the admin API listener. It runs separately from the proxy
// front so that rule management never shares a port with untrusted
// traffic.
type Server struct {
	Engine *gin.Engine
	cfg    config.Config
}

// New wires up the admin router and registers versioned routes.
func New(
	cfg config.Config,
	store *firewall.Store,
	notifier *webhook.Notifier,
	archive handlers.WebhookArchive,
	registry *prometheus.Registry,
) *Server {
	gin.SetMode(gin.ReleaseMode)
	if cfg.Environment == "development" {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	routes.Register(router, cfg, store, notifier, archive, registry)

	return &Server{Engine: router, cfg: cfg}
}

// Run starts the HTTP server with proper shutdown semantics.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.AdminAddr,
		Handler: s.Engine,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
