package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rpcwall/rpcwall/internal/logger"
	"github.com/rpcwall/rpcwall/internal/metrics"
	"github.com/rpcwall/rpcwall/internal/models"
)

var ErrInvalidWebhookURL = errors.New("webhook URL must use http or https")

const (
	defaultQueueSize      = 256
	defaultAttemptTimeout = 5 * time.Second
	defaultMaxAttempts    = 3
	defaultBackoff        = 500 * time.Millisecond
)

// Sink consumes firewall events.
type Sink interface {
	Notify(event models.WebhookEvent)
}

// Combine fans events out to several sinks.
func Combine(sinks ...Sink) Sink {
	return multiSink(sinks)
}

type multiSink []Sink

func (m multiSink) Notify(event models.WebhookEvent) {
	for _, sink := range m {
		sink.Notify(event)
	}
}

// Notifier delivers events to each configured URL as an independent JSON
// POST. Every URL gets its own worker and bounded queue, so a slow or
// unreachable destination cannot stall the others or the caller: Notify
// never blocks and never reports delivery failure.
type Notifier struct {
	mu      sync.Mutex
	workers map[string]*worker
	closed  bool

	client         *http.Client
	queueSize      int
	attemptTimeout time.Duration
	maxAttempts    int
	backoff        time.Duration

	wg sync.WaitGroup
}

// NotifierOption customizes a Notifier.
type NotifierOption func(*Notifier)

// WithQueueSize bounds the per-URL delivery queue.
func WithQueueSize(n int) NotifierOption {
	return func(w *Notifier) { w.queueSize = n }
}

// WithAttemptTimeout bounds each delivery attempt.
func WithAttemptTimeout(d time.Duration) NotifierOption {
	return func(w *Notifier) { w.attemptTimeout = d }
}

// WithRetries sets attempt count and the base backoff between attempts.
func WithRetries(attempts int, backoff time.Duration) NotifierOption {
	return func(w *Notifier) {
		w.maxAttempts = attempts
		w.backoff = backoff
	}
}

// NewNotifier starts a delivery worker per URL. Invalid URLs are
// rejected; zero URLs yields a functional no-op notifier.
func NewNotifier(urls []string, opts ...NotifierOption) (*Notifier, error) {
	n := &Notifier{
		workers:        make(map[string]*worker),
		client:         &http.Client{},
		queueSize:      defaultQueueSize,
		attemptTimeout: defaultAttemptTimeout,
		maxAttempts:    defaultMaxAttempts,
		backoff:        defaultBackoff,
	}
	for _, opt := range opts {
		opt(n)
	}

	for _, raw := range urls {
		if err := n.AddURL(raw); err != nil {
			n.Close()
			return nil, err
		}
	}
	return n, nil
}

// AddURL registers another delivery destination at runtime. Adding a URL
// twice is a no-op.
func (n *Notifier) AddURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse webhook url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: %s", ErrInvalidWebhookURL, raw)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return errors.New("notifier is closed")
	}
	if _, ok := n.workers[raw]; ok {
		return nil
	}

	wk := &worker{
		url:    raw,
		queue:  make(chan models.WebhookEvent, n.queueSize),
		parent: n,
	}
	n.workers[raw] = wk
	n.wg.Add(1)
	go wk.run()
	return nil
}

// URLs returns the currently registered destinations.
func (n *Notifier) URLs() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	urls := make([]string, 0, len(n.workers))
	for u := range n.workers {
		urls = append(urls, u)
	}
	return urls
}

// Notify enqueues the event for every destination. Full queues drop the
// event for that destination only.
func (n *Notifier) Notify(event models.WebhookEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	for _, wk := range n.workers {
		select {
		case wk.queue <- event:
		default:
			metrics.IncWebhookDropped()
			logger.WithFields(map[string]interface{}{"url": wk.url, "kind": event.Kind}).
				Warn("webhook queue full, dropping event")
		}
	}
}

// Close drains no further events and waits for in-flight deliveries.
func (n *Notifier) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	for _, wk := range n.workers {
		close(wk.queue)
	}
	n.mu.Unlock()

	n.wg.Wait()
}

type worker struct {
	url    string
	queue  chan models.WebhookEvent
	parent *Notifier
}

// run delivers queued events sequentially, preserving per-URL order.
func (w *worker) run() {
	defer w.parent.wg.Done()
	for event := range w.queue {
		w.deliver(event)
	}
}

func (w *worker) deliver(event models.WebhookEvent) {
	body, err := json.Marshal(event)
	if err != nil {
		logger.WithFields(map[string]interface{}{"url": w.url}).
			WithError(err).Error("failed to encode webhook event")
		return
	}

	backoff := w.parent.backoff
	for attempt := 1; attempt <= w.parent.maxAttempts; attempt++ {
		if err = w.post(body); err == nil {
			metrics.IncWebhookDelivered()
			return
		}
		if attempt < w.parent.maxAttempts {
			time.Sleep(backoff)
			backoff *= 2
		}
	}

	metrics.IncWebhookFailed()
	logger.WithFields(map[string]interface{}{"url": w.url, "kind": event.Kind}).
		WithError(err).Warn("webhook delivery failed, dropping event")
}

func (w *worker) post(body []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), w.parent.attemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.parent.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status: %d", resp.StatusCode)
	}
	return nil
}
