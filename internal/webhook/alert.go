package webhook

import (
	"fmt"

	"github.com/containrrr/shoutrrr"

	"github.com/rpcwall/rpcwall/internal/logger"
	"github.com/rpcwall/rpcwall/internal/models"
)

// Alerter pushes firewall events to operator chat channels via shoutrrr
// service URLs (discord://, slack://, telegram://, ...). Like the webhook
// notifier it never blocks the caller; a full queue drops the alert.
type Alerter struct {
	urls  []string
	queue chan models.WebhookEvent
	done  chan struct{}
	send  func(url, message string) error
}

// NewAlerter starts the alert worker. With no URLs it stays a no-op.
func NewAlerter(urls []string) *Alerter {
	a := &Alerter{
		urls:  urls,
		queue: make(chan models.WebhookEvent, defaultQueueSize),
		done:  make(chan struct{}),
		send:  shoutrrr.Send,
	}
	go a.run()
	return a
}

// Notify enqueues the event for alert delivery.
func (a *Alerter) Notify(event models.WebhookEvent) {
	if len(a.urls) == 0 {
		return
	}
	select {
	case a.queue <- event:
	default:
		logger.WithFields(map[string]interface{}{"kind": event.Kind}).
			Warn("alert queue full, dropping event")
	}
}

// Close stops the worker after the queued alerts are sent.
func (a *Alerter) Close() {
	close(a.queue)
	<-a.done
}

func (a *Alerter) run() {
	defer close(a.done)
	for event := range a.queue {
		message := formatAlert(event)
		for _, url := range a.urls {
			if err := a.send(url, message); err != nil {
				logger.WithError(err).Warn("failed to send alert")
			}
		}
	}
}

func formatAlert(event models.WebhookEvent) string {
	switch event.Kind {
	case models.EventAccessGranted:
		return fmt.Sprintf("rpcwall: access granted to %s (matched %s)", event.SourceIP, event.Target)
	case models.EventAccessDenied:
		return fmt.Sprintf("rpcwall: access denied for %s", event.SourceIP)
	case models.EventRuleAdded:
		return fmt.Sprintf("rpcwall: rule added for %s", event.Target)
	case models.EventRuleExpired:
		return fmt.Sprintf("rpcwall: rule expired for %s", event.Target)
	default:
		return fmt.Sprintf("rpcwall: %s", event.Kind)
	}
}
