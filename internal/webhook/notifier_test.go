package webhook

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpcwall/rpcwall/internal/models"
)

func TestNotifyDeliversJSONEvent(t *testing.T) {
	var mu sync.Mutex
	var received []models.WebhookEvent

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, _ := io.ReadAll(r.Body)
		var event models.WebhookEvent
		require.NoError(t, json.Unmarshal(body, &event))

		mu.Lock()
		received = append(received, event)
		mu.Unlock()
	}))
	defer srv.Close()

	notifier, err := NewNotifier([]string{srv.URL})
	require.NoError(t, err)

	notifier.Notify(models.NewEvent(models.EventAccessDenied, "", "10.0.0.5"))
	notifier.Close()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.Equal(t, models.EventAccessDenied, received[0].Kind)
	assert.Equal(t, "10.0.0.5", received[0].SourceIP)
	assert.False(t, received[0].Timestamp.IsZero())
}

func TestNotifyWithZeroURLsIsNoop(t *testing.T) {
	notifier, err := NewNotifier(nil)
	require.NoError(t, err)
	defer notifier.Close()

	// must complete instantly without any network I/O
	notifier.Notify(models.NewEvent(models.EventRuleAdded, "10.0.0.0/8", ""))
}

func TestNotifyUnreachableURLDoesNotStarveOthers(t *testing.T) {
	var delivered atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		delivered.Add(1)
	}))
	defer srv.Close()

	notifier, err := NewNotifier(
		[]string{"http://127.0.0.1:1", srv.URL},
		WithRetries(2, 10*time.Millisecond),
		WithAttemptTimeout(200*time.Millisecond),
	)
	require.NoError(t, err)

	notifier.Notify(models.NewEvent(models.EventRuleAdded, "acctX", ""))

	assert.Eventually(t, func() bool {
		return delivered.Load() == 1
	}, 2*time.Second, 20*time.Millisecond)
	notifier.Close()
}

func TestNotifyPreservesPerURLOrder(t *testing.T) {
	var mu sync.Mutex
	var targets []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var event models.WebhookEvent
		_ = json.Unmarshal(body, &event)
		mu.Lock()
		targets = append(targets, event.Target)
		mu.Unlock()
	}))
	defer srv.Close()

	notifier, err := NewNotifier([]string{srv.URL})
	require.NoError(t, err)

	for _, target := range []string{"a", "b", "c", "d"} {
		notifier.Notify(models.NewEvent(models.EventRuleAdded, target, ""))
	}
	notifier.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "b", "c", "d"}, targets)
}

func TestNotifierBoundedRetryThenDrop(t *testing.T) {
	var attempts atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	notifier, err := NewNotifier([]string{srv.URL}, WithRetries(3, 5*time.Millisecond))
	require.NoError(t, err)

	notifier.Notify(models.NewEvent(models.EventAccessDenied, "", "10.0.0.5"))
	notifier.Close()

	assert.Equal(t, int64(3), attempts.Load())
}

func TestAddURLValidation(t *testing.T) {
	notifier, err := NewNotifier(nil)
	require.NoError(t, err)
	defer notifier.Close()

	assert.ErrorIs(t, notifier.AddURL("gopher://hooks.example.com"), ErrInvalidWebhookURL)
	assert.NoError(t, notifier.AddURL("https://hooks.example.com/fw"))
	assert.NoError(t, notifier.AddURL("https://hooks.example.com/fw")) // idempotent
	assert.Len(t, notifier.URLs(), 1)
}

func TestNewNotifierRejectsInvalidURL(t *testing.T) {
	_, err := NewNotifier([]string{"not a url at all", "https://ok.example.com"})
	assert.Error(t, err)
}

func TestCombineFansOut(t *testing.T) {
	var a, b atomic.Int64
	sinkA := sinkFunc(func(models.WebhookEvent) { a.Add(1) })
	sinkB := sinkFunc(func(models.WebhookEvent) { b.Add(1) })

	Combine(sinkA, sinkB).Notify(models.NewEvent(models.EventRuleAdded, "x", ""))

	assert.Equal(t, int64(1), a.Load())
	assert.Equal(t, int64(1), b.Load())
}

type sinkFunc func(models.WebhookEvent)

func (f sinkFunc) Notify(event models.WebhookEvent) { f(event) }

func TestAlerterFormatsAndSends(t *testing.T) {
	var mu sync.Mutex
	var sent []string

	alerter := &Alerter{
		urls:  []string{"discord://token@channel"},
		queue: make(chan models.WebhookEvent, 4),
		done:  make(chan struct{}),
		send: func(url, message string) error {
			mu.Lock()
			sent = append(sent, message)
			mu.Unlock()
			return nil
		},
	}
	go alerter.run()

	alerter.Notify(models.NewEvent(models.EventAccessDenied, "", "10.0.0.5"))
	alerter.Close()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0], "access denied")
	assert.Contains(t, sent[0], "10.0.0.5")
}
