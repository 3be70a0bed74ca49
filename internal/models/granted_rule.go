package models

import (
	"time"
)

// GrantedRule persists a dynamically granted rule so it survives a
// restart. Static config rules are never written here.
type GrantedRule struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	UUID        string     `json:"uuid" gorm:"uniqueIndex"`
	TargetKind  string     `json:"target_kind"`
	TargetValue string     `json:"target_value" gorm:"index"`
	Source      string     `json:"source"` // "granted" or "temporary"
	ExpiresAt   *time.Time `json:"expires_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// AccessRule converts the persisted row back into its in-memory form.
func (g GrantedRule) AccessRule() (AccessRule, error) {
	target, err := ParseTarget(TargetKind(g.TargetKind), g.TargetValue)
	if err != nil {
		return AccessRule{}, err
	}
	return AccessRule{
		Target:    target,
		Source:    RuleSource(g.Source),
		ExpiresAt: g.ExpiresAt,
		CreatedAt: g.CreatedAt,
	}, nil
}

// RegisteredWebhook persists a webhook URL registered at runtime, in
// addition to the URLs configured at startup.
type RegisteredWebhook struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UUID      string    `json:"uuid" gorm:"uniqueIndex"`
	URL       string    `json:"url" gorm:"uniqueIndex"`
	CreatedAt time.Time `json:"created_at"`
}
