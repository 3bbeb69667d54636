package alerting

import (
	"testing"
	"time"
)

func TestGateAdmitsUnknownSymbol(t *testing.T) {
	gate := NewGate(5 * time.Minute)
	if !gate.Admit("BTCUSDT") {
		t.Fatal("首次出现的符号应立即放行")
	}
}

func TestGateCooldownBoundary(t *testing.T) {
	cooldown := 5 * time.Minute
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	gate := NewGate(cooldown)
	now := t0
	gate.now = func() time.Time { return now }

	gate.MarkNotified("BTCUSDT")

	now = t0.Add(cooldown - time.Second)
	if gate.Admit("BTCUSDT") {
		t.Fatal("冷却期内不应放行")
	}

	now = t0.Add(cooldown)
	if !gate.Admit("BTCUSDT") {
		t.Fatal("冷却期满应放行 (边界为闭区间)")
	}
}

func TestGatePerSymbolIsolation(t *testing.T) {
	gate := NewGate(5 * time.Minute)
	gate.MarkNotified("BTCUSDT")

	if gate.Admit("BTCUSDT") {
		t.Fatal("BTCUSDT just alerted, must be gated")
	}
	if !gate.Admit("ETHUSDT") {
		t.Fatal("ETHUSDT has no history and must be admitted")
	}
}

func TestGateAdmitDoesNotConsumeWindow(t *testing.T) {
	gate := NewGate(5 * time.Minute)

	// Admission alone must not start the cooldown; only a confirmed send
	// (MarkNotified) does. A failed dispatch may retry next cycle.
	if !gate.Admit("BTCUSDT") {
		t.Fatal("expected admission")
	}
	if !gate.Admit("BTCUSDT") {
		t.Fatal("a second admission without MarkNotified must still pass")
	}

	gate.MarkNotified("BTCUSDT")
	if gate.Admit("BTCUSDT") {
		t.Fatal("after a confirmed send the symbol must be gated")
	}
}
