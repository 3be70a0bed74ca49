package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpcwall/rpcwall/internal/webhook"
)

type fakeArchive struct {
	mu   sync.Mutex
	urls []string
}

func (f *fakeArchive) SaveWebhook(url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, url)
	return nil
}

func newWebhookRouter(t *testing.T, archive WebhookArchive) (*gin.Engine, *webhook.Notifier) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	notifier, err := webhook.NewNotifier(nil)
	require.NoError(t, err)
	t.Cleanup(notifier.Close)

	h := NewWebhookHandler(notifier, archive)
	router := gin.New()
	router.GET("/webhooks", h.List)
	router.POST("/webhooks", h.Register)
	return router, notifier
}

func TestWebhookRegisterAndList(t *testing.T) {
	archive := &fakeArchive{}
	router, notifier := newWebhookRouter(t, archive)

	req := httptest.NewRequest(http.MethodPost, "/webhooks", strings.NewReader(`{"url":"http://127.0.0.1:9/hook"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	assert.Equal(t, []string{"http://127.0.0.1:9/hook"}, notifier.URLs())
	assert.Equal(t, []string{"http://127.0.0.1:9/hook"}, archive.urls)

	list := httptest.NewRecorder()
	router.ServeHTTP(list, httptest.NewRequest(http.MethodGet, "/webhooks", nil))
	require.Equal(t, http.StatusOK, list.Code)

	var resp struct {
		URLs []string `json:"urls"`
	}
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &resp))
	assert.Equal(t, []string{"http://127.0.0.1:9/hook"}, resp.URLs)
}

func TestWebhookRegisterRejectsBadURL(t *testing.T) {
	router, _ := newWebhookRouter(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/webhooks", strings.NewReader(`{"url":"ftp://example.com"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookRegisterWithoutArchive(t *testing.T) {
	router, notifier := newWebhookRouter(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/webhooks", strings.NewReader(`{"url":"https://example.com/hook"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Len(t, notifier.URLs(), 1)
}

func TestHealthHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/health", HealthHandler)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.Contains(t, rec.Body.String(), `"service":"rpcwall"`)
}
