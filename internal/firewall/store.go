package firewall

import (
	"errors"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/rpcwall/rpcwall/internal/logger"
	"github.com/rpcwall/rpcwall/internal/models"
)

var (
	ErrStaticRule = errors.New("static config rules cannot be modified")
)

// Notifier is the event sink for firewall activity. Implementations must
// not block: the store calls Notify on the admission and mutation paths.
type Notifier interface {
	Notify(event models.WebhookEvent)
}

// NopNotifier discards all events.
type NopNotifier struct{}

func (NopNotifier) Notify(models.WebhookEvent) {}

// Archive is the optional persistence hook for granted rules. Writes are
// best-effort: failures are logged and never surfaced to callers.
type Archive interface {
	SaveRule(rule models.AccessRule) error
	DeleteRule(target models.AccessTarget) error
	LoadRules() ([]models.AccessRule, error)
}

// Store holds the active rule set: static config rules plus dynamically
// granted ones. Reads run concurrently under a shared lock; mutations
// take the exclusive lock, so no reader ever observes a partial rule.
type Store struct {
	mu    sync.RWMutex
	rules map[string]models.AccessRule

	notifier Notifier
	archive  Archive // may be nil
	now      func() time.Time
}

// StoreOption customizes a Store.
type StoreOption func(*Store)

// WithArchive enables rule persistence.
func WithArchive(archive Archive) StoreOption {
	return func(s *Store) { s.archive = archive }
}

// WithClock overrides the time source, for expiry tests.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore returns an empty store publishing events to the notifier.
func NewStore(notifier Notifier, opts ...StoreOption) *Store {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	s := &Store{
		rules:    make(map[string]models.AccessRule),
		notifier: notifier,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadStatic installs the immutable config allow-lists. Called once at
// startup, before the store is shared; emits no events.
func (s *Store) LoadStatic(allowIPs, allowAccounts []string) error {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, raw := range allowIPs {
		target, err := models.NewIPTarget(raw)
		if err != nil {
			return err
		}
		s.rules[target.Key()] = models.AccessRule{Target: target, Source: models.SourceStatic, CreatedAt: now}
	}
	for _, raw := range allowAccounts {
		target, err := models.NewAccountTarget(raw)
		if err != nil {
			return err
		}
		s.rules[target.Key()] = models.AccessRule{Target: target, Source: models.SourceStatic, CreatedAt: now}
	}
	return nil
}

// Restore loads persisted granted rules from the archive, dropping rows
// that have already expired. Emits no events.
func (s *Store) Restore() error {
	if s.archive == nil {
		return nil
	}

	rules, err := s.archive.LoadRules()
	if err != nil {
		return err
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rule := range rules {
		if rule.Expired(now) {
			continue
		}
		s.rules[rule.Target.Key()] = rule
	}
	return nil
}

// Insert adds or replaces the rule for its target and emits RuleAdded.
// Static config entries cannot be replaced.
func (s *Store) Insert(rule models.AccessRule) error {
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = s.now()
	}
	if err := rule.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if existing, ok := s.rules[rule.Target.Key()]; ok && existing.Source == models.SourceStatic {
		s.mu.Unlock()
		return ErrStaticRule
	}
	s.rules[rule.Target.Key()] = rule
	s.mu.Unlock()

	s.persist(rule)
	s.notifier.Notify(models.NewEvent(models.EventRuleAdded, rule.Target.Value(), ""))
	return nil
}

// Revoke removes the active rule for the target, no-op if absent. Static
// config entries cannot be revoked.
func (s *Store) Revoke(target models.AccessTarget) error {
	s.mu.Lock()
	existing, ok := s.rules[target.Key()]
	if ok && existing.Source == models.SourceStatic {
		s.mu.Unlock()
		return ErrStaticRule
	}
	delete(s.rules, target.Key())
	s.mu.Unlock()

	if ok {
		s.unpersist(target)
	}
	return nil
}

// Lookup returns the active rule for the target: exact match for
// accounts, longest-prefix match over stored networks for IP queries.
// Expired rules are treated as absent and evicted in the background.
func (s *Store) Lookup(target models.AccessTarget) (models.AccessRule, bool) {
	if target.Kind == models.TargetIP && target.Network != nil {
		return s.LookupIP(target.Network.IP)
	}

	now := s.now()
	s.mu.RLock()
	rule, ok := s.rules[target.Key()]
	s.mu.RUnlock()

	if !ok {
		return models.AccessRule{}, false
	}
	if rule.Expired(now) {
		go s.evict(rule.Target.Key())
		return models.AccessRule{}, false
	}
	return rule, true
}

// LookupIP returns the most specific unexpired rule covering the address.
func (s *Store) LookupIP(ip net.IP) (models.AccessRule, bool) {
	now := s.now()

	var (
		best      models.AccessRule
		bestLen   = -1
		found     bool
		staleKeys []string
	)

	s.mu.RLock()
	for key, rule := range s.rules {
		if !rule.Target.Contains(ip) {
			continue
		}
		if rule.Expired(now) {
			staleKeys = append(staleKeys, key)
			continue
		}
		if l := rule.Target.PrefixLen(); l > bestLen {
			best, bestLen, found = rule, l, true
		}
	}
	s.mu.RUnlock()

	if len(staleKeys) > 0 {
		go s.evict(staleKeys...)
	}
	return best, found
}

// Snapshot returns a consistent point-in-time copy of all active rules,
// ordered by target key.
func (s *Store) Snapshot() []models.AccessRule {
	now := s.now()

	s.mu.RLock()
	rules := make([]models.AccessRule, 0, len(s.rules))
	for _, rule := range s.rules {
		if rule.Expired(now) {
			continue
		}
		rules = append(rules, rule)
	}
	s.mu.RUnlock()

	sort.Slice(rules, func(i, j int) bool {
		return rules[i].Target.Key() < rules[j].Target.Key()
	})
	return rules
}

// EvictExpired removes every expired rule, emitting RuleExpired for each.
// Used by the periodic sweeper; lookups already filter lazily.
func (s *Store) EvictExpired() int {
	now := s.now()

	s.mu.Lock()
	var removed []models.AccessRule
	for key, rule := range s.rules {
		if rule.Expired(now) {
			removed = append(removed, rule)
			delete(s.rules, key)
		}
	}
	s.mu.Unlock()

	for _, rule := range removed {
		s.unpersist(rule.Target)
		s.notifier.Notify(models.NewEvent(models.EventRuleExpired, rule.Target.Value(), ""))
	}
	return len(removed)
}

// evict removes the given keys if they are still expired, then reports
// each eviction. Runs off the lookup path.
func (s *Store) evict(keys ...string) {
	now := s.now()

	s.mu.Lock()
	var removed []models.AccessRule
	for _, key := range keys {
		rule, ok := s.rules[key]
		if !ok || !rule.Expired(now) {
			// replaced by a fresh rule since the lookup observed it
			continue
		}
		removed = append(removed, rule)
		delete(s.rules, key)
	}
	s.mu.Unlock()

	for _, rule := range removed {
		s.unpersist(rule.Target)
		s.notifier.Notify(models.NewEvent(models.EventRuleExpired, rule.Target.Value(), ""))
	}
}

func (s *Store) persist(rule models.AccessRule) {
	if s.archive == nil || rule.Source == models.SourceStatic {
		return
	}
	if err := s.archive.SaveRule(rule); err != nil {
		logger.WithFields(map[string]interface{}{"target": rule.Target.Key()}).
			WithError(err).Warn("failed to persist rule")
	}
}

func (s *Store) unpersist(target models.AccessTarget) {
	if s.archive == nil {
		return
	}
	if err := s.archive.DeleteRule(target); err != nil {
		logger.WithFields(map[string]interface{}{"target": target.Key()}).
			WithError(err).Warn("failed to remove persisted rule")
	}
}
