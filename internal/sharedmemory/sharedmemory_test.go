package sharedmemory

import (
	"errors"
	"testing"
	"time"

	"github.com/clawinfra/growthkernel/internal/kerrors"
	"github.com/clawinfra/growthkernel/internal/types"
)

func TestStoreGetRoundTrip(t *testing.T) {
	sm := New(nil)
	defer sm.Stop()

	sm.Store("k1", "v1", time.Hour)
	v, err := sm.Get("k1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "v1" {
		t.Fatalf("got %v, want v1", v)
	}
}

func TestGetMissingKeyReturnsNotFound(t *testing.T) {
	sm := New(nil)
	defer sm.Stop()

	_, err := sm.Get("missing")
	if !errors.Is(err, kerrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestExpiredEntryReturnsNotFound(t *testing.T) {
	sm := New(nil)
	defer sm.Stop()

	sm.Store("k1", "v1", time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	_, err := sm.Get("k1")
	if !errors.Is(err, kerrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for expired entry, got %v", err)
	}
}

func TestClearExpiredRemovesOnlyExpired(t *testing.T) {
	sm := New(nil)
	defer sm.Stop()

	sm.Store("fresh", "v", time.Hour)
	sm.Store("stale", "v", time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	n := sm.ClearExpired()
	if n != 1 {
		t.Fatalf("expected 1 expired entry cleared, got %d", n)
	}

	if _, err := sm.Get("fresh"); err != nil {
		t.Fatalf("fresh entry should survive sweep: %v", err)
	}
}

func TestGetRecentSignalsWindowAndOrder(t *testing.T) {
	sm := New(nil)
	defer sm.Stop()

	now := time.Now()
	old := types.Signal{SignalID: "old", Timestamp: now.Add(-2 * time.Hour)}
	recent1 := types.Signal{SignalID: "r1", Timestamp: now.Add(-10 * time.Minute)}
	recent2 := types.Signal{SignalID: "r2", Timestamp: now.Add(-1 * time.Minute)}

	sm.Store(SignalKeyPrefix+"old", old, 0)
	sm.Store(SignalKeyPrefix+"r1", recent1, 0)
	sm.Store(SignalKeyPrefix+"r2", recent2, 0)

	out := sm.GetRecentSignals(time.Hour)
	if len(out) != 2 {
		t.Fatalf("expected 2 recent signals, got %d", len(out))
	}
	if out[0].SignalID != "r2" || out[1].SignalID != "r1" {
		t.Fatalf("expected descending timestamp order, got %+v", out)
	}
}

func TestDelete(t *testing.T) {
	sm := New(nil)
	defer sm.Stop()

	sm.Store("k", "v", 0)
	sm.Delete("k")

	if _, err := sm.Get("k"); !errors.Is(err, kerrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}
