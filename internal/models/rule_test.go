package models

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewIPTarget(t *testing.T) {
	t.Run("single IPv4 widens to /32", func(t *testing.T) {
		target, err := NewIPTarget("192.168.1.10")
		assert.NoError(t, err)
		assert.Equal(t, TargetIP, target.Kind)
		assert.Equal(t, "192.168.1.10/32", target.Value())
		assert.Equal(t, 32, target.PrefixLen())
	})

	t.Run("CIDR block kept as-is", func(t *testing.T) {
		target, err := NewIPTarget("10.0.0.0/8")
		assert.NoError(t, err)
		assert.Equal(t, "10.0.0.0/8", target.Value())
		assert.Equal(t, 8, target.PrefixLen())
	})

	t.Run("CIDR with host bits is normalized", func(t *testing.T) {
		target, err := NewIPTarget("10.1.2.3/8")
		assert.NoError(t, err)
		assert.Equal(t, "10.0.0.0/8", target.Value())
	})

	t.Run("single IPv6 widens to /128", func(t *testing.T) {
		target, err := NewIPTarget("::1")
		assert.NoError(t, err)
		assert.Equal(t, 128, target.PrefixLen())
	})

	t.Run("garbage rejected", func(t *testing.T) {
		_, err := NewIPTarget("not-an-ip")
		assert.ErrorIs(t, err, ErrInvalidNetwork)
	})
}

func TestAccessTargetContains(t *testing.T) {
	target, err := NewIPTarget("10.0.0.0/8")
	assert.NoError(t, err)

	assert.True(t, target.Contains(net.ParseIP("10.255.0.1")))
	assert.False(t, target.Contains(net.ParseIP("11.0.0.1")))

	account, err := NewAccountTarget("acctX")
	assert.NoError(t, err)
	assert.False(t, account.Contains(net.ParseIP("10.0.0.1")))
}

func TestAccessTargetKey(t *testing.T) {
	ip, _ := NewIPTarget("127.0.0.1")
	assert.Equal(t, "ip:127.0.0.1/32", ip.Key())

	acct, _ := NewAccountTarget("acctX")
	assert.Equal(t, "account:acctX", acct.Key())
}

func TestAccountTargetRequiresValue(t *testing.T) {
	_, err := NewAccountTarget("   ")
	assert.ErrorIs(t, err, ErrInvalidTarget)
}

func TestAccessRuleExpiry(t *testing.T) {
	now := time.Now()

	t.Run("permanent never expires", func(t *testing.T) {
		rule := AccessRule{Source: SourceGranted, CreatedAt: now}
		assert.False(t, rule.Expired(now.Add(24*time.Hour)))
	})

	t.Run("expired at the boundary", func(t *testing.T) {
		at := now.Add(time.Second)
		rule := AccessRule{Source: SourceTemporary, ExpiresAt: &at, CreatedAt: now}
		assert.False(t, rule.Expired(now))
		assert.True(t, rule.Expired(at))
		assert.True(t, rule.Expired(at.Add(time.Second)))
	})
}

func TestAccessRuleValidate(t *testing.T) {
	now := time.Now()
	target, _ := NewAccountTarget("acctX")

	t.Run("temporary without expiry rejected", func(t *testing.T) {
		rule := AccessRule{Target: target, Source: SourceTemporary, CreatedAt: now}
		assert.Error(t, rule.Validate())
	})

	t.Run("temporary expiry must follow creation", func(t *testing.T) {
		at := now.Add(-time.Second)
		rule := AccessRule{Target: target, Source: SourceTemporary, ExpiresAt: &at, CreatedAt: now}
		assert.Error(t, rule.Validate())
	})

	t.Run("valid temporary", func(t *testing.T) {
		at := now.Add(time.Minute)
		rule := AccessRule{Target: target, Source: SourceTemporary, ExpiresAt: &at, CreatedAt: now}
		assert.NoError(t, rule.Validate())
	})
}

func TestGrantedRuleRoundTrip(t *testing.T) {
	at := time.Now().Add(time.Hour)
	row := GrantedRule{
		TargetKind:  string(TargetIP),
		TargetValue: "10.0.0.0/24",
		Source:      string(SourceTemporary),
		ExpiresAt:   &at,
	}

	rule, err := row.AccessRule()
	assert.NoError(t, err)
	assert.Equal(t, "ip:10.0.0.0/24", rule.Target.Key())
	assert.Equal(t, SourceTemporary, rule.Source)
	assert.NotNil(t, rule.ExpiresAt)
}
