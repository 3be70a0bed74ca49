package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rpcwall/rpcwall/internal/api/handlers"
	"github.com/rpcwall/rpcwall/internal/api/middleware"
	"github.com/rpcwall/rpcwall/internal/config"
	"github.com/rpcwall/rpcwall/internal/firewall"
	"github.com/rpcwall/rpcwall/internal/logger"
	"github.com/rpcwall/rpcwall/internal/webhook"
)

// Register wires up the admin API routes. archive may be nil when
// persistence is disabled.
func Register(
	router *gin.Engine,
	cfg config.Config,
	store *firewall.Store,
	notifier *webhook.Notifier,
	archive handlers.WebhookArchive,
	registry *prometheus.Registry,
) {
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.Recovery(cfg.Environment != "production"))

	router.GET("/api/v1/health", handlers.HealthHandler)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	api := router.Group("/api/v1")

	authHandler := handlers.NewAuthHandler(cfg.JWTSecret, cfg.AdminPasswordHash)
	api.POST("/auth/token", authHandler.Token)

	protected := api.Group("/")
	if cfg.JWTSecret != "" {
		protected.Use(middleware.Auth(cfg.JWTSecret))
	} else {
		// Development convenience only. The admin listener binds loopback
		// by default, so unauthenticated access stays local.
		logger.Log().Warn("RPCWALL_JWT_SECRET is empty, admin API runs without authentication")
	}
	{
		ruleHandler := handlers.NewRuleHandler(store)
		protected.GET("/rules", ruleHandler.List)
		protected.POST("/rules", ruleHandler.Create)
		protected.DELETE("/rules", ruleHandler.Delete)

		webhookHandler := handlers.NewWebhookHandler(notifier, archive)
		protected.GET("/webhooks", webhookHandler.List)
		protected.POST("/webhooks", webhookHandler.Register)
	}
}
