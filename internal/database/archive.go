package database

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rpcwall/rpcwall/internal/logger"
	"github.com/rpcwall/rpcwall/internal/models"
)

// Archive persists dynamically granted rules and registered webhook URLs
// so they survive a restart. The rule store treats it as best-effort: a
// write failure is logged, never surfaced to the admission path.
type Archive struct {
	db *gorm.DB
}

// NewArchive returns an Archive using the provided DB.
func NewArchive(db *gorm.DB) *Archive {
	return &Archive{db: db}
}

// SaveRule upserts the row for the rule's target.
func (a *Archive) SaveRule(rule models.AccessRule) error {
	row := models.GrantedRule{
		TargetKind:  string(rule.Target.Kind),
		TargetValue: rule.Target.Value(),
		Source:      string(rule.Source),
		ExpiresAt:   rule.ExpiresAt,
	}

	var existing models.GrantedRule
	err := a.db.Where("target_kind = ? AND target_value = ?", row.TargetKind, row.TargetValue).
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		row.UUID = uuid.New().String()
		return a.db.Create(&row).Error
	}
	if err != nil {
		return fmt.Errorf("find granted rule: %w", err)
	}

	existing.Source = row.Source
	existing.ExpiresAt = row.ExpiresAt
	return a.db.Save(&existing).Error
}

// DeleteRule removes the row for the target, no-op if absent.
func (a *Archive) DeleteRule(target models.AccessTarget) error {
	return a.db.
		Where("target_kind = ? AND target_value = ?", string(target.Kind), target.Value()).
		Delete(&models.GrantedRule{}).Error
}

// LoadRules returns all persisted rules. Rows that no longer parse are
// skipped with a warning rather than failing startup.
func (a *Archive) LoadRules() ([]models.AccessRule, error) {
	var rows []models.GrantedRule
	if err := a.db.Order("created_at asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load granted rules: %w", err)
	}

	rules := make([]models.AccessRule, 0, len(rows))
	for _, row := range rows {
		rule, err := row.AccessRule()
		if err != nil {
			logger.WithFields(map[string]interface{}{
				"target_kind":  row.TargetKind,
				"target_value": row.TargetValue,
			}).Warn("skipping unparseable persisted rule")
			continue
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// SaveWebhook records a runtime-registered webhook URL, idempotently.
func (a *Archive) SaveWebhook(url string) error {
	var existing models.RegisteredWebhook
	err := a.db.Where("url = ?", url).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return a.db.Create(&models.RegisteredWebhook{UUID: uuid.New().String(), URL: url}).Error
	}
	return err
}

// LoadWebhooks returns all runtime-registered webhook URLs.
func (a *Archive) LoadWebhooks() ([]string, error) {
	var rows []models.RegisteredWebhook
	if err := a.db.Order("created_at asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load registered webhooks: %w", err)
	}

	urls := make([]string, 0, len(rows))
	for _, row := range rows {
		urls = append(urls, row.URL)
	}
	return urls, nil
}
