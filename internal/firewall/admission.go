package firewall

import (
	"net"

	"github.com/rpcwall/rpcwall/internal/logger"
	"github.com/rpcwall/rpcwall/internal/metrics"
	"github.com/rpcwall/rpcwall/internal/models"
)

// Decision is the outcome of an admission check.
type Decision int

const (
	Deny Decision = iota
	Allow
)

func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// Engine decides whether a connection may reach the backend. It is a
// pure function of current store state plus the two inputs; nothing is
// cached across calls.
type Engine struct {
	store        *Store
	notifier     Notifier
	unrestricted bool
}

// NewEngine wires the admission engine. When unrestricted is true every
// check passes without touching the store, but outcomes are still
// reported to the notifier.
func NewEngine(store *Store, notifier Notifier, unrestricted bool) *Engine {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Engine{store: store, notifier: notifier, unrestricted: unrestricted}
}

// Decide checks the source IP against stored IP rules, then the asserted
// account (if any) against account rules. Every outcome is reported.
func (e *Engine) Decide(sourceIP net.IP, assertedAccount string) Decision {
	source := ""
	if sourceIP != nil {
		source = sourceIP.String()
	}

	if e.unrestricted {
		e.allow(source, "")
		return Allow
	}

	if sourceIP != nil {
		if rule, ok := e.store.LookupIP(sourceIP); ok {
			e.allow(source, rule.Target.Value())
			return Allow
		}
	}

	if assertedAccount != "" {
		if target, err := models.NewAccountTarget(assertedAccount); err == nil {
			if rule, ok := e.store.Lookup(target); ok {
				e.allow(source, rule.Target.Value())
				return Allow
			}
		}
	}

	logger.WithFields(map[string]interface{}{"client_ip": source}).Debug("access denied")
	metrics.IncAdmissionDenied()
	e.notifier.Notify(models.NewEvent(models.EventAccessDenied, "", source))
	return Deny
}

func (e *Engine) allow(source, matched string) {
	logger.WithFields(map[string]interface{}{"client_ip": source, "matched": matched}).
		Debug("access granted")
	metrics.IncAdmissionAllowed()
	e.notifier.Notify(models.NewEvent(models.EventAccessGranted, matched, source))
}
