package models

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

var (
	ErrInvalidTarget  = errors.New("invalid access target")
	ErrInvalidNetwork = errors.New("invalid IP address or CIDR")
)

// TargetKind discriminates the two shapes of an AccessTarget.
type TargetKind string

const (
	TargetIP      TargetKind = "ip"
	TargetAccount TargetKind = "account"
)

// AccessTarget identifies who a rule applies to: an IP network (single
// address or CIDR block) or an opaque account identifier.
type AccessTarget struct {
	Kind    TargetKind
	Network *net.IPNet // set when Kind == TargetIP
	Account string     // set when Kind == TargetAccount
}

// NewIPTarget parses a single IP address or a CIDR block. Single addresses
// are widened to a full-length prefix so containment and specificity
// checks work uniformly.
func NewIPTarget(value string) (AccessTarget, error) {
	value = strings.TrimSpace(value)

	if ip := net.ParseIP(value); ip != nil {
		bits := 32
		if ip.To4() == nil {
			bits = 128
		}
		mask := net.CIDRMask(bits, bits)
		return AccessTarget{Kind: TargetIP, Network: &net.IPNet{IP: ip.Mask(mask), Mask: mask}}, nil
	}

	_, network, err := net.ParseCIDR(value)
	if err != nil {
		return AccessTarget{}, fmt.Errorf("%w: %s", ErrInvalidNetwork, value)
	}
	return AccessTarget{Kind: TargetIP, Network: network}, nil
}

// NewAccountTarget wraps an account identifier. The identifier is opaque:
// matching is exact string equality, no chain-specific validation.
func NewAccountTarget(account string) (AccessTarget, error) {
	account = strings.TrimSpace(account)
	if account == "" {
		return AccessTarget{}, fmt.Errorf("%w: empty account", ErrInvalidTarget)
	}
	return AccessTarget{Kind: TargetAccount, Account: account}, nil
}

// ParseTarget builds a target from its stored kind/value representation.
func ParseTarget(kind TargetKind, value string) (AccessTarget, error) {
	switch kind {
	case TargetIP:
		return NewIPTarget(value)
	case TargetAccount:
		return NewAccountTarget(value)
	default:
		return AccessTarget{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidTarget, kind)
	}
}

// Value returns the canonical textual form of the target.
func (t AccessTarget) Value() string {
	if t.Kind == TargetIP && t.Network != nil {
		return t.Network.String()
	}
	return t.Account
}

// Key returns the identity used for replace-on-duplicate semantics.
func (t AccessTarget) Key() string {
	return string(t.Kind) + ":" + t.Value()
}

func (t AccessTarget) String() string {
	return t.Key()
}

// Contains reports whether an IP target covers the given address.
func (t AccessTarget) Contains(ip net.IP) bool {
	if t.Kind != TargetIP || t.Network == nil || ip == nil {
		return false
	}
	return t.Network.Contains(ip)
}

// PrefixLen returns the prefix length of an IP target, used for
// longest-prefix-match tie-breaking. Account targets return -1.
func (t AccessTarget) PrefixLen() int {
	if t.Kind != TargetIP || t.Network == nil {
		return -1
	}
	ones, _ := t.Network.Mask.Size()
	return ones
}

// RuleSource records how a rule entered the store.
type RuleSource string

const (
	SourceStatic    RuleSource = "static"    // loaded from config at startup, immutable
	SourceGranted   RuleSource = "granted"   // permanent grant via the authorization interface
	SourceTemporary RuleSource = "temporary" // time-bounded grant, ExpiresAt always set
)

// AccessRule is a stored grant of access to a target, optionally
// time-bounded. ExpiresAt == nil means permanent.
type AccessRule struct {
	Target    AccessTarget
	Source    RuleSource
	ExpiresAt *time.Time
	CreatedAt time.Time
}

// Expired reports whether the rule's expiry has passed at the given time.
func (r AccessRule) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && !now.Before(*r.ExpiresAt)
}

// Validate enforces the temporary-rule invariant: a temporary rule must
// carry an expiry strictly in the future of its creation time.
func (r AccessRule) Validate() error {
	if r.Target.Kind != TargetIP && r.Target.Kind != TargetAccount {
		return fmt.Errorf("%w: missing kind", ErrInvalidTarget)
	}
	if r.Source == SourceTemporary {
		if r.ExpiresAt == nil {
			return errors.New("temporary rule requires an expiry")
		}
		if !r.ExpiresAt.After(r.CreatedAt) {
			return errors.New("temporary rule expiry must be after creation")
		}
	}
	return nil
}
