package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	admissionAllowedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rpcwall_admission_allowed_total",
		Help: "Total number of connections allowed by the firewall",
	})
	admissionDeniedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rpcwall_admission_denied_total",
		Help: "Total number of connections denied by the firewall",
	})
	proxiedRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rpcwall_proxied_requests_total",
		Help: "Total number of HTTP requests forwarded to the backend",
	})
	proxyErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rpcwall_proxy_errors_total",
		Help: "Total number of proxy failures by kind",
	}, []string{"kind"})
	wsSessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rpcwall_websocket_sessions_active",
		Help: "Number of WebSocket sessions currently being relayed",
	})
	webhookDeliveredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rpcwall_webhook_delivered_total",
		Help: "Total number of webhook events delivered",
	})
	webhookFailedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rpcwall_webhook_failed_total",
		Help: "Total number of webhook deliveries that exhausted retries",
	})
	webhookDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rpcwall_webhook_dropped_total",
		Help: "Total number of webhook events dropped due to a full queue",
	})
)

// Register registers Prometheus collectors. Call once at startup.
func Register(registry *prometheus.Registry) {
	registry.MustRegister(
		admissionAllowedTotal,
		admissionDeniedTotal,
		proxiedRequestsTotal,
		proxyErrorsTotal,
		wsSessionsActive,
		webhookDeliveredTotal,
		webhookFailedTotal,
		webhookDroppedTotal,
	)
}

// IncAdmissionAllowed increments the allowed connections counter.
func IncAdmissionAllowed() { admissionAllowedTotal.Inc() }

// IncAdmissionDenied increments the denied connections counter.
func IncAdmissionDenied() { admissionDeniedTotal.Inc() }

// IncProxiedRequest increments the forwarded requests counter.
func IncProxiedRequest() { proxiedRequestsTotal.Inc() }

// IncProxyError increments the failure counter for the given kind
// (payload_too_large, gateway_timeout, backend_unavailable).
func IncProxyError(kind string) { proxyErrorsTotal.WithLabelValues(kind).Inc() }

// WSSessionOpened bumps the active WebSocket session gauge.
func WSSessionOpened() { wsSessionsActive.Inc() }

// WSSessionClosed drops the active WebSocket session gauge.
func WSSessionClosed() { wsSessionsActive.Dec() }

// IncWebhookDelivered increments the delivered events counter.
func IncWebhookDelivered() { webhookDeliveredTotal.Inc() }

// IncWebhookFailed increments the exhausted-retries counter.
func IncWebhookFailed() { webhookFailedTotal.Inc() }

// IncWebhookDropped increments the dropped events counter.
func IncWebhookDropped() { webhookDroppedTotal.Inc() }
