package solverclient

import (
	"testing"
	"time"
)

func TestBackoffEscalatesOnRepeatedFailure(t *testing.T) {
	b := NewBackoff(2.0, time.Second, 10*time.Second)
	now := time.Unix(1000, 0)

	b.Failure(now)
	if !b.Blocked(now.Add(500 * time.Millisecond)) {
		t.Fatal("expected blocked immediately after first failure")
	}
	if b.Blocked(now.Add(2 * time.Second)) {
		t.Fatal("expected unblocked once the first (1s) window elapses")
	}

	b.Failure(now)
	if b.Blocked(now.Add(3 * time.Second)) {
		t.Fatal("second failure's window should still be ~2s, not longer")
	}
}

func TestBackoffResetsOnSuccess(t *testing.T) {
	b := NewBackoff(2.0, time.Second, 10*time.Second)
	now := time.Unix(2000, 0)

	b.Failure(now)
	b.Failure(now)
	b.Success()

	if b.Blocked(now) {
		t.Fatal("expected success to clear the backoff window immediately")
	}
}

func TestBackoffCapsAtMax(t *testing.T) {
	b := NewBackoff(10.0, time.Second, 3*time.Second)
	now := time.Unix(3000, 0)
	for i := 0; i < 5; i++ {
		b.Failure(now)
	}
	if b.current > b.max {
		t.Fatalf("expected current backoff capped at max %v, got %v", b.max, b.current)
	}
}
