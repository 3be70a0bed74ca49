package firewall

import (
	"github.com/robfig/cron/v3"

	"github.com/rpcwall/rpcwall/internal/logger"
)

// Sweeper eagerly evicts expired rules on a fixed schedule, in addition
// to the lazy filtering done at lookup time. It never holds the store
// lock across event delivery.
type Sweeper struct {
	cron  *cron.Cron
	store *Store
}

// NewSweeper schedules EvictExpired with the given cron spec, typically
// "@every 1m".
func NewSweeper(store *Store, spec string) (*Sweeper, error) {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		if n := store.EvictExpired(); n > 0 {
			logger.WithFields(map[string]interface{}{"evicted": n}).Info("swept expired rules")
		}
	}); err != nil {
		return nil, err
	}
	return &Sweeper{cron: c, store: store}, nil
}

// Start launches the sweep schedule in its own goroutine.
func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts scheduling; a sweep already in flight runs to completion.
func (s *Sweeper) Stop() {
	s.cron.Stop()
}
