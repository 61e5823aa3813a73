package engine

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// SafetyTracker enforces per-account cooldown and daily send caps. It
// keeps an in-memory view of last send time and today's count, lazily
// seeded from the daily send ledger so restarts do not reset limits.
type SafetyTracker struct {
	ledger DailyLedger

	mu       sync.Mutex
	accounts map[string]*safetyState

	now func() time.Time
}

type safetyState struct {
	lastSend  time.Time
	sentToday int64
	day       string
	seeded    bool
}

// NewSafetyTracker creates a safety tracker backed by the daily ledger
func NewSafetyTracker(ledger DailyLedger) *SafetyTracker {
	return &SafetyTracker{
		ledger:   ledger,
		accounts: make(map[string]*safetyState),
		now:      time.Now,
	}
}

// CanSend checks cooldown and daily cap for an account. When blocked
// it returns false with the reason ("cooldown_active" or
// "daily_limit_reached").
func (t *SafetyTracker) CanSend(ctx context.Context, accountID string, policy *Policy) (bool, string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, err := t.stateLocked(ctx, accountID)
	if err != nil {
		return false, "", err
	}

	now := t.now().UTC()

	if policy.Cooldown > 0 && !state.lastSend.IsZero() && now.Sub(state.lastSend) < policy.Cooldown {
		return false, "cooldown_active", nil
	}
	if policy.DailySendLimit > 0 && state.sentToday >= int64(policy.DailySendLimit) {
		return false, "daily_limit_reached", nil
	}
	return true, "", nil
}

// RecordSend updates in-memory counters after a successful dispatch
func (t *SafetyTracker) RecordSend(ctx context.Context, accountID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, err := t.stateLocked(ctx, accountID)
	if err != nil {
		return err
	}

	state.lastSend = t.now().UTC()
	state.sentToday++
	return nil
}

// SentToday returns the number of sends recorded today for an account
func (t *SafetyTracker) SentToday(ctx context.Context, accountID string) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, err := t.stateLocked(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return state.sentToday, nil
}

// stateLocked returns the account's state, seeding it from the ledger
// on first use and resetting the counter on day rollover.
func (t *SafetyTracker) stateLocked(ctx context.Context, accountID string) (*safetyState, error) {
	day := DayKey(t.now)

	state, ok := t.accounts[accountID]
	if !ok {
		state = &safetyState{day: day}
		t.accounts[accountID] = state
	}

	if state.day != day {
		state.day = day
		state.sentToday = 0
		state.seeded = false
	}

	if !state.seeded {
		count, err := t.ledger.CountForDay(ctx, accountID, day)
		if err != nil {
			return nil, fmt.Errorf("failed to seed daily count: %w", err)
		}
		last, err := t.ledger.LastSendTime(ctx, accountID)
		if err != nil {
			return nil, fmt.Errorf("failed to seed last send time: %w", err)
		}
		state.sentToday = count
		if last != nil {
			state.lastSend = *last
		}
		state.seeded = true
	}

	return state, nil
}

// DayKey returns the UTC day bucket used by the daily send ledger
func DayKey(now func() time.Time) string {
	return now().UTC().Format("2006-01-02")
}
