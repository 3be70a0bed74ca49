package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rpcwall/rpcwall/internal/logger"
	"github.com/rpcwall/rpcwall/internal/metrics"
)

// AccountHeader carries the caller's asserted account identifier. It is
// consumed at admission and stripped before the request reaches the
// backend.
const AccountHeader = "X-Rpc-Account"

// hopHeaders are connection-scoped and must not be forwarded.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// HTTPForwarder relays admitted unary requests to the backend RPC
// endpoint under a body-size cap and an end-to-end deadline.
type HTTPForwarder struct {
	target      *url.URL
	client      *http.Client
	maxBodySize int64
	timeout     time.Duration
}

// NewHTTPForwarder builds a forwarder for the configured backend. A
// ws/wss target is mirrored to its http/https equivalent for unary
// traffic.
func NewHTTPForwarder(proxyTo string, maxBodySize int64, timeout time.Duration) (*HTTPForwarder, error) {
	target, err := url.Parse(proxyTo)
	if err != nil {
		return nil, fmt.Errorf("parse proxy target: %w", err)
	}
	switch target.Scheme {
	case "ws":
		target.Scheme = "http"
	case "wss":
		target.Scheme = "https"
	case "http", "https":
	default:
		return nil, fmt.Errorf("proxy target scheme %q not supported", target.Scheme)
	}

	return &HTTPForwarder{
		target:      target,
		client:      &http.Client{},
		maxBodySize: maxBodySize,
		timeout:     timeout,
	}, nil
}

// Forward relays the request and writes the backend's response verbatim.
// The response body is buffered in full before anything is written back,
// so batched JSON-RPC responses are never partially streamed.
func (f *HTTPForwarder) Forward(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), f.timeout)
	defer cancel()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, f.maxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			metrics.IncProxyError("payload_too_large")
			writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, f.backendURL(r), bytes.NewReader(body))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	req.Header = sanitizeHeaders(r.Header)

	resp, err := f.client.Do(req)
	if err != nil {
		f.writeUpstreamError(w, ctx, err)
		return
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		f.writeUpstreamError(w, ctx, err)
		return
	}

	metrics.IncProxiedRequest()
	copyHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(respBody)
}

func (f *HTTPForwarder) backendURL(r *http.Request) string {
	base := strings.TrimSuffix(f.target.String(), "/")
	pathAndQuery := r.URL.RequestURI()
	if pathAndQuery == "" {
		pathAndQuery = "/"
	}
	return base + pathAndQuery
}

// writeUpstreamError distinguishes the deadline expiring from the
// backend being unreachable.
func (f *HTTPForwarder) writeUpstreamError(w http.ResponseWriter, ctx context.Context, err error) {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		metrics.IncProxyError("gateway_timeout")
		logger.WithError(err).Warn("backend request timed out")
		writeError(w, http.StatusGatewayTimeout, "gateway timeout")
		return
	}

	metrics.IncProxyError("backend_unavailable")
	logger.WithError(err).Error("backend request failed")
	writeError(w, http.StatusBadGateway, "backend unavailable")
}

// sanitizeHeaders drops hop-by-hop headers plus the caller-identity
// header so it never leaks to the backend.
func sanitizeHeaders(in http.Header) http.Header {
	out := make(http.Header, len(in))
	copyHeaders(out, in)
	for _, h := range hopHeaders {
		out.Del(h)
	}
	out.Del(AccountHeader)
	out.Del("Host")
	return out
}

func copyHeaders(dst, src http.Header) {
	for key, values := range src {
		for _, value := range values {
			dst.Add(key, value)
		}
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
