package models

import (
	"time"
)

// Transport names the two forwarding shapes of the gateway.
type Transport string

const (
	TransportHTTP      Transport = "http"
	TransportWebSocket Transport = "websocket"
)

// ProxySession describes one inbound connection for the duration of its
// forwarding. It is owned by the accepting goroutine and never shared.
type ProxySession struct {
	SourceIP  string
	Account   string // asserted account identifier, may be empty
	StartedAt time.Time
	Transport Transport
}
