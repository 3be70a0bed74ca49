package gateway

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rpcwall/rpcwall/internal/config"
	"github.com/rpcwall/rpcwall/internal/firewall"
	"github.com/rpcwall/rpcwall/internal/logger"
	"github.com/rpcwall/rpcwall/internal/models"
	"github.com/rpcwall/rpcwall/internal/proxy"
)

// Gateway is the front listener: it accepts HTTP requests and WebSocket
// upgrades on one address, admits or rejects each connection, and hands
// admitted traffic to the matching forwarder.
type Gateway struct {
	Engine *gin.Engine
	cfg    config.Config

	admission *firewall.Engine
	httpFwd   *proxy.HTTPForwarder
	wsFwd     *proxy.WSForwarder
}

// New wires up the front router.
func New(cfg config.Config, admission *firewall.Engine, httpFwd *proxy.HTTPForwarder, wsFwd *proxy.WSForwarder) (*Gateway, error) {
	gin.SetMode(gin.ReleaseMode)
	if cfg.Environment == "development" {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), corsMiddleware())

	// source IPs come from the socket, never from forwarding headers
	if err := router.SetTrustedProxies(nil); err != nil {
		return nil, fmt.Errorf("configure trusted proxies: %w", err)
	}

	g := &Gateway{
		Engine:    router,
		cfg:       cfg,
		admission: admission,
		httpFwd:   httpFwd,
		wsFwd:     wsFwd,
	}

	router.NoRoute(g.handle)
	return g, nil
}

// handle runs the admission check and dispatches to a forwarder.
func (g *Gateway) handle(c *gin.Context) {
	sourceIP := net.ParseIP(c.ClientIP())
	account := c.GetHeader(proxy.AccountHeader)

	session := models.ProxySession{
		SourceIP:  c.ClientIP(),
		Account:   account,
		StartedAt: time.Now(),
		Transport: models.TransportHTTP,
	}
	if proxy.IsUpgrade(c.Request) {
		session.Transport = models.TransportWebSocket
	}

	if g.admission.Decide(sourceIP, account) != firewall.Allow {
		logger.WithFields(map[string]interface{}{
			"client_ip": session.SourceIP,
			"transport": session.Transport,
		}).Info("rejected connection")
		// WebSocket upgrades are rejected here too: the handshake never
		// completes, so no frames are ever exchanged
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "access denied"})
		return
	}

	logger.WithFields(map[string]interface{}{
		"client_ip": session.SourceIP,
		"transport": session.Transport,
		"method":    c.Request.Method,
		"path":      c.Request.URL.Path,
	}).Debug("forwarding connection")

	if session.Transport == models.TransportWebSocket {
		g.wsFwd.Forward(c.Writer, c.Request)
		return
	}
	g.httpFwd.Forward(c.Writer, c.Request)
}

// Run starts the front listener with graceful shutdown semantics.
func (g *Gateway) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    g.cfg.ListenAddr,
		Handler: g.Engine,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.WithFields(map[string]interface{}{
		"addr":     g.cfg.ListenAddr,
		"proxy_to": g.cfg.ProxyToURL,
	}).Info("gateway front listening")

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

// corsMiddleware mirrors the permissive CORS policy expected by browser
// JSON-RPC clients.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "*")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
