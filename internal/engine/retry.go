package engine

import (
	"sync"
	"time"
)

// maxRetryAttempts is the cap after which a failing comment is
// abandoned and marked processed.
const maxRetryAttempts = 3

// RetryTracker holds in-memory retry state for comments whose dispatch
// failed transiently. State is lost on restart, which only means a
// failed comment gets a fresh attempt budget.
type RetryTracker struct {
	mu      sync.Mutex
	entries map[string]*retryEntry

	now func() time.Time
}

type retryEntry struct {
	attempts    int
	lastAttempt time.Time
}

// NewRetryTracker creates an empty retry tracker
func NewRetryTracker() *RetryTracker {
	return &RetryTracker{
		entries: make(map[string]*retryEntry),
		now:     time.Now,
	}
}

func retryKey(accountID, commentID string) string {
	return accountID + "/" + commentID
}

// Gate decides whether a previously failed comment may be retried now.
// Returns exhausted=true once the attempt cap is reached, or
// pending=true while the exponential backoff window is still open.
func (t *RetryTracker) Gate(accountID, commentID string) (exhausted, pending bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[retryKey(accountID, commentID)]
	if !ok {
		return false, false
	}
	if entry.attempts >= maxRetryAttempts {
		return true, false
	}

	backoff := time.Duration(1<<uint(entry.attempts)) * time.Second
	if t.now().Sub(entry.lastAttempt) < backoff {
		return false, true
	}
	return false, false
}

// RecordFailure bumps the attempt counter after a retriable dispatch
// failure and returns the new attempt count.
func (t *RetryTracker) RecordFailure(accountID, commentID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := retryKey(accountID, commentID)
	entry, ok := t.entries[key]
	if !ok {
		entry = &retryEntry{}
		t.entries[key] = entry
	}
	entry.attempts++
	entry.lastAttempt = t.now()
	return entry.attempts
}

// Clear drops retry state after a terminal outcome
func (t *RetryTracker) Clear(accountID, commentID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, retryKey(accountID, commentID))
}

// Attempts returns the current attempt count for a comment
func (t *RetryTracker) Attempts(accountID, commentID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if entry, ok := t.entries[retryKey(accountID, commentID)]; ok {
		return entry.attempts
	}
	return 0
}
