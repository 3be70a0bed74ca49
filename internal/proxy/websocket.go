package proxy

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rpcwall/rpcwall/internal/logger"
	"github.com/rpcwall/rpcwall/internal/metrics"
)

// WSForwarder relays admitted WebSocket sessions frame-for-frame between
// the client and the backend, without interpreting JSON-RPC payloads.
type WSForwarder struct {
	backend     *url.URL
	upgrader    websocket.Upgrader
	dialer      *websocket.Dialer
	maxFrame    int64
	idleTimeout time.Duration
}

// NewWSForwarder builds a forwarder for the configured backend. An
// http/https target is mirrored to its ws/wss equivalent, so the backend
// scheme decides plaintext versus encrypted.
func NewWSForwarder(proxyTo string, maxFrameSize int64, idleTimeout time.Duration) (*WSForwarder, error) {
	backend, err := url.Parse(proxyTo)
	if err != nil {
		return nil, fmt.Errorf("parse proxy target: %w", err)
	}
	switch backend.Scheme {
	case "http":
		backend.Scheme = "ws"
	case "https":
		backend.Scheme = "wss"
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("proxy target scheme %q not supported", backend.Scheme)
	}

	return &WSForwarder{
		backend: backend,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// JSON-RPC has no browser-origin trust model here; admission
			// is the only gate.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		dialer:      &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		maxFrame:    maxFrameSize,
		idleTimeout: idleTimeout,
	}, nil
}

// IsUpgrade reports whether the request asks for a WebSocket handshake.
func IsUpgrade(r *http.Request) bool {
	return websocket.IsWebSocketUpgrade(r)
}

// Forward connects to the backend first, so an unreachable backend is
// reported as a clean handshake rejection instead of a mid-stream drop,
// then upgrades the client and relays frames both ways until either side
// closes or goes idle.
func (f *WSForwarder) Forward(w http.ResponseWriter, r *http.Request) {
	backendConn, resp, err := f.dialer.Dial(f.backend.String(), nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		metrics.IncProxyError("backend_unavailable")
		logger.WithError(err).Error("backend websocket dial failed")
		writeError(w, http.StatusBadGateway, "backend unavailable")
		return
	}

	clientConn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already written its handshake error response
		logger.WithError(err).Warn("websocket upgrade failed")
		backendConn.Close()
		return
	}

	metrics.WSSessionOpened()
	defer metrics.WSSessionClosed()

	clientConn.SetReadLimit(f.maxFrame)
	backendConn.SetReadLimit(f.maxFrame)

	errc := make(chan error, 2)
	go f.pump(clientConn, backendConn, errc)
	go f.pump(backendConn, clientConn, errc)

	err = <-errc
	f.closePeer(clientConn, err)
	f.closePeer(backendConn, err)

	// unblock the surviving pump and release both sockets
	clientConn.Close()
	backendConn.Close()
	<-errc
}

// pump copies frames from src to dst until a read error, an idle window
// with no traffic, or a write failure.
func (f *WSForwarder) pump(src, dst *websocket.Conn, errc chan<- error) {
	for {
		if err := src.SetReadDeadline(time.Now().Add(f.idleTimeout)); err != nil {
			errc <- err
			return
		}
		messageType, payload, err := src.ReadMessage()
		if err != nil {
			errc <- err
			return
		}

		if err := dst.SetWriteDeadline(time.Now().Add(f.idleTimeout)); err != nil {
			errc <- err
			return
		}
		if err := dst.WriteMessage(messageType, payload); err != nil {
			errc <- err
			return
		}
	}
}

// closePeer tells one side why the session ended, mapping the relay
// error to a close code.
func (f *WSForwarder) closePeer(conn *websocket.Conn, err error) {
	code := websocket.CloseNormalClosure
	reason := ""

	var closeErr *websocket.CloseError
	var netErr net.Error
	switch {
	case errors.As(err, &closeErr):
		// propagate the peer's close verbatim
		code = closeErr.Code
		reason = closeErr.Text
	case errors.Is(err, websocket.ErrReadLimit):
		code = websocket.CloseMessageTooBig
		reason = "frame exceeds size limit"
	case errors.As(err, &netErr) && netErr.Timeout():
		code = websocket.CloseGoingAway
		reason = "idle timeout"
	}

	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
}
