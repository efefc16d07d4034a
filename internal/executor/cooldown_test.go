package executor

import (
	"testing"
	"time"
)

func TestCooldown(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	c := NewCooldown(5 * time.Minute)
	c.now = func() time.Time { return now }

	if active, _ := c.Active("btcusdt"); active {
		t.Fatal("fresh registry should be inactive")
	}

	c.Start("btcusdt")
	now = now.Add(2 * time.Minute)
	active, left := c.Active("btcusdt")
	if !active || left != 3*time.Minute {
		t.Fatalf("Active = %v, %v", active, left)
	}
	if active, _ := c.Active("ethusdt"); active {
		t.Fatal("cooldowns are per symbol")
	}

	now = now.Add(3 * time.Minute)
	if active, _ := c.Active("btcusdt"); active {
		t.Fatal("cooldown should expire at its deadline")
	}
	c.Cleanup()
	if c.len() != 0 {
		t.Fatalf("entries after cleanup = %d", c.len())
	}
}

func TestCooldownDefault(t *testing.T) {
	if c := NewCooldown(0); c.period != DefaultCooldown {
		t.Fatalf("period = %v", c.period)
	}
}
