package ratelimit

import (
	"testing"
	"time"
)

func TestWindowLimit(t *testing.T) {
	l := New()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	cfg := Config{Window: time.Minute, Max: 2}

	if !l.Check("u1", cfg) {
		t.Fatal("first call should pass")
	}
	now = now.Add(time.Second)
	if !l.Check("u1", cfg) {
		t.Fatal("second call should pass")
	}
	now = now.Add(time.Second)
	if l.Check("u1", cfg) {
		t.Fatal("third call within window should fail")
	}
	now = now.Add(59 * time.Second)
	if !l.Check("u1", cfg) {
		t.Fatal("call after reset should pass and start a new window")
	}
	if !l.Check("u1", cfg) {
		t.Fatal("new window should have counted from 1")
	}
	if l.Check("u1", cfg) {
		t.Fatal("new window should cap at max again")
	}
}

func TestIdentifiersAreIndependent(t *testing.T) {
	l := New()
	cfg := Config{Window: time.Minute, Max: 1}

	if !l.Check("a", cfg) {
		t.Fatal("a should pass")
	}
	if l.Check("a", cfg) {
		t.Fatal("a should be limited")
	}
	if !l.Check("b", cfg) {
		t.Fatal("b should be unaffected by a's window")
	}
}

func TestSweepBoundsMemory(t *testing.T) {
	l := New()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	cfg := Config{Window: time.Minute, Max: 5}
	l.Check("gone", cfg)
	now = now.Add(30 * time.Second)
	l.Check("alive", cfg)
	now = now.Add(45 * time.Second)

	l.sweep()
	if l.size() != 1 {
		t.Fatalf("expected 1 window after sweep, got %d", l.size())
	}
}
