package engine

import (
	"context"
	"testing"
	"time"
)

func TestSafetyTrackerCooldown(t *testing.T) {
	ledger := newFakeDailyLedger()
	tracker := NewSafetyTracker(ledger)

	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return current }

	policy := &Policy{DailySendLimit: 50, Cooldown: 5 * time.Minute}
	ctx := context.Background()

	ok, _, err := tracker.CanSend(ctx, "acct1", policy)
	if err != nil || !ok {
		t.Fatalf("CanSend() = %v, %v; want true", ok, err)
	}

	if err := tracker.RecordSend(ctx, "acct1"); err != nil {
		t.Fatalf("RecordSend() error = %v", err)
	}

	ok, reason, err := tracker.CanSend(ctx, "acct1", policy)
	if err != nil {
		t.Fatalf("CanSend() error = %v", err)
	}
	if ok || reason != SkipCooldownActive {
		t.Errorf("CanSend() = %v, %q; want false, %q", ok, reason, SkipCooldownActive)
	}

	current = current.Add(5 * time.Minute)

	ok, _, err = tracker.CanSend(ctx, "acct1", policy)
	if err != nil || !ok {
		t.Errorf("CanSend() after cooldown = %v, %v; want true", ok, err)
	}
}

func TestSafetyTrackerDailyLimit(t *testing.T) {
	ledger := newFakeDailyLedger()
	tracker := NewSafetyTracker(ledger)

	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return current }

	policy := &Policy{DailySendLimit: 2}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, _, err := tracker.CanSend(ctx, "acct1", policy)
		if err != nil || !ok {
			t.Fatalf("CanSend() #%d = %v, %v; want true", i, ok, err)
		}
		if err := tracker.RecordSend(ctx, "acct1"); err != nil {
			t.Fatalf("RecordSend() error = %v", err)
		}
		current = current.Add(time.Hour)
	}

	ok, reason, err := tracker.CanSend(ctx, "acct1", policy)
	if err != nil {
		t.Fatalf("CanSend() error = %v", err)
	}
	if ok || reason != SkipDailyLimitReached {
		t.Errorf("CanSend() = %v, %q; want false, %q", ok, reason, SkipDailyLimitReached)
	}

	// Counter resets at the UTC day boundary
	current = time.Date(2025, 6, 2, 0, 0, 1, 0, time.UTC)

	ok, _, err = tracker.CanSend(ctx, "acct1", policy)
	if err != nil || !ok {
		t.Errorf("CanSend() next day = %v, %v; want true", ok, err)
	}
}

func TestSafetyTrackerSeedsFromLedger(t *testing.T) {
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	ledger := newFakeDailyLedger()
	ctx := context.Background()
	// Pre-existing sends from before a restart
	_ = ledger.MarkSent(ctx, "acct1", "u1", "p1", "2025-06-01")
	_ = ledger.MarkSent(ctx, "acct1", "u2", "p1", "2025-06-01")

	tracker := NewSafetyTracker(ledger)
	tracker.now = func() time.Time { return current }

	count, err := tracker.SentToday(ctx, "acct1")
	if err != nil {
		t.Fatalf("SentToday() error = %v", err)
	}
	if count != 2 {
		t.Errorf("SentToday() = %d, want 2", count)
	}

	ok, reason, err := tracker.CanSend(ctx, "acct1", &Policy{DailySendLimit: 2})
	if err != nil {
		t.Fatalf("CanSend() error = %v", err)
	}
	if ok || reason != SkipDailyLimitReached {
		t.Errorf("CanSend() = %v, %q; want false, %q", ok, reason, SkipDailyLimitReached)
	}
}
