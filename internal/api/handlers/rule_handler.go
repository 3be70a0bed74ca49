package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rpcwall/rpcwall/internal/firewall"
	"github.com/rpcwall/rpcwall/internal/models"
)

// RuleHandler exposes the dynamic access-rule store. Grants made here take
// effect immediately for in-flight admission decisions.
type RuleHandler struct {
	store *firewall.Store
}

func NewRuleHandler(store *firewall.Store) *RuleHandler {
	return &RuleHandler{store: store}
}

type RuleResponse struct {
	TargetKind  string     `json:"target_kind"`
	TargetValue string     `json:"target_value"`
	Source      string     `json:"source"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toRuleResponse(rule models.AccessRule) RuleResponse {
	return RuleResponse{
		TargetKind:  string(rule.Target.Kind),
		TargetValue: rule.Target.Value(),
		Source:      string(rule.Source),
		ExpiresAt:   rule.ExpiresAt,
		CreatedAt:   rule.CreatedAt,
	}
}

// List returns every active rule, static and dynamic.
func (h *RuleHandler) List(c *gin.Context) {
	rules := h.store.Snapshot()
	out := make([]RuleResponse, 0, len(rules))
	for _, rule := range rules {
		out = append(out, toRuleResponse(rule))
	}
	c.JSON(http.StatusOK, gin.H{"rules": out})
}

type CreateRuleRequest struct {
	TargetKind  string `json:"target_kind" binding:"required"`
	TargetValue string `json:"target_value" binding:"required"`
	// DurationSecs > 0 creates a temporary grant that expires on its own.
	// Zero or omitted creates a permanent grant.
	DurationSecs int64 `json:"duration_secs"`
}

// Create grants access to an IP, CIDR range or account.
func (h *RuleHandler) Create(c *gin.Context) {
	var req CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.DurationSecs < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "duration_secs must not be negative"})
		return
	}

	target, err := models.ParseTarget(models.TargetKind(req.TargetKind), req.TargetValue)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rule := models.AccessRule{Target: target, Source: models.SourceGranted}
	if req.DurationSecs > 0 {
		at := time.Now().Add(time.Duration(req.DurationSecs) * time.Second)
		rule.Source = models.SourceTemporary
		rule.ExpiresAt = &at
	}

	if err := h.store.Insert(rule); err != nil {
		if errors.Is(err, firewall.ErrStaticRule) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, toRuleResponse(rule))
}

// Delete revokes a previously granted rule. Revoking a target with no
// rule is a successful no-op.
func (h *RuleHandler) Delete(c *gin.Context) {
	kind := c.Query("target_kind")
	value := c.Query("target_value")
	if kind == "" || value == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "target_kind and target_value are required"})
		return
	}

	target, err := models.ParseTarget(models.TargetKind(kind), value)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.store.Revoke(target); err != nil {
		if errors.Is(err, firewall.ErrStaticRule) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}
