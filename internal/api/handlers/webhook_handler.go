package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rpcwall/rpcwall/internal/api/middleware"
	"github.com/rpcwall/rpcwall/internal/webhook"
)

// WebhookArchive persists runtime-registered webhook URLs.
type WebhookArchive interface {
	SaveWebhook(url string) error
}

// WebhookHandler registers additional event delivery URLs at runtime.
type WebhookHandler struct {
	notifier *webhook.Notifier
	archive  WebhookArchive
}

// NewWebhookHandler returns a handler. archive may be nil when
// persistence is disabled.
func NewWebhookHandler(notifier *webhook.Notifier, archive WebhookArchive) *WebhookHandler {
	return &WebhookHandler{notifier: notifier, archive: archive}
}

// List returns every URL currently receiving events.
func (h *WebhookHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"urls": h.notifier.URLs()})
}

type RegisterWebhookRequest struct {
	URL string `json:"url" binding:"required"`
}

// Register adds a delivery URL. Registering an already known URL is a
// successful no-op.
func (h *WebhookHandler) Register(c *gin.Context) {
	var req RegisterWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.notifier.AddURL(req.URL); err != nil {
		if errors.Is(err, webhook.ErrInvalidWebhookURL) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if h.archive != nil {
		if err := h.archive.SaveWebhook(req.URL); err != nil {
			middleware.GetRequestLogger(c).WithField("url", req.URL).
				WithError(err).Warn("failed to persist webhook registration")
		}
	}

	c.JSON(http.StatusCreated, gin.H{"url": req.URL})
}
