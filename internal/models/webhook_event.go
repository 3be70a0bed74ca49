package models

import (
	"time"
)

// EventKind enumerates the firewall activity reported to webhooks.
type EventKind string

const (
	EventAccessGranted EventKind = "access_granted"
	EventAccessDenied  EventKind = "access_denied"
	EventRuleAdded     EventKind = "rule_added"
	EventRuleExpired   EventKind = "rule_expired"
)

// WebhookEvent is the JSON body POSTed to every configured webhook URL.
// Immutable once constructed.
type WebhookEvent struct {
	Kind      EventKind `json:"kind"`
	Target    string    `json:"target,omitempty"`
	SourceIP  string    `json:"source_ip,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent stamps a webhook event with the current time.
func NewEvent(kind EventKind, target, sourceIP string) WebhookEvent {
	return WebhookEvent{
		Kind:      kind,
		Target:    target,
		SourceIP:  sourceIP,
		Timestamp: time.Now().UTC(),
	}
}
