package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/autodms/funnel/internal/models"
	"github.com/autodms/funnel/internal/platform"
)

// In-memory stand-ins for the gorm repositories and the platform client.

type fakeDedupLedger struct {
	mu       sync.Mutex
	records  map[string]string
	failNext error
}

func newFakeDedupLedger() *fakeDedupLedger {
	return &fakeDedupLedger{records: make(map[string]string)}
}

func (f *fakeDedupLedger) IsProcessed(_ context.Context, accountID, commentID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return false, err
	}
	_, ok := f.records[accountID+"|"+commentID]
	return ok, nil
}

func (f *fakeDedupLedger) MarkProcessed(_ context.Context, accountID, commentID, outcome string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := accountID + "|" + commentID
	if _, ok := f.records[key]; !ok {
		f.records[key] = outcome
	}
	return nil
}

func (f *fakeDedupLedger) outcome(accountID, commentID string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	outcome, ok := f.records[accountID+"|"+commentID]
	return outcome, ok
}

type fakeDailyLedger struct {
	mu    sync.Mutex
	sends map[string]time.Time
	last  map[string]time.Time
}

func newFakeDailyLedger() *fakeDailyLedger {
	return &fakeDailyLedger{
		sends: make(map[string]time.Time),
		last:  make(map[string]time.Time),
	}
}

func dailyKey(accountID, recipientID, postID, day string) string {
	return accountID + "|" + recipientID + "|" + postID + "|" + day
}

func (f *fakeDailyLedger) WasSent(_ context.Context, accountID, recipientID, postID, day string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.sends[dailyKey(accountID, recipientID, postID, day)]
	return ok, nil
}

func (f *fakeDailyLedger) MarkSent(_ context.Context, accountID, recipientID, postID, day string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := dailyKey(accountID, recipientID, postID, day)
	if _, ok := f.sends[key]; !ok {
		now := time.Now().UTC()
		f.sends[key] = now
		f.last[accountID] = now
	}
	return nil
}

func (f *fakeDailyLedger) CountForDay(_ context.Context, accountID, day string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for key := range f.sends {
		if matchesAccountDay(key, accountID, day) {
			count++
		}
	}
	return count, nil
}

func (f *fakeDailyLedger) CountRecipientsForDay(_ context.Context, accountID, day string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	recipients := make(map[string]bool)
	for key := range f.sends {
		if matchesAccountDay(key, accountID, day) {
			recipients[splitKey(key)[1]] = true
		}
	}
	return int64(len(recipients)), nil
}

func (f *fakeDailyLedger) LastSendTime(_ context.Context, accountID string) (*time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if last, ok := f.last[accountID]; ok {
		return &last, nil
	}
	return nil, nil
}

func matchesAccountDay(key, accountID, day string) bool {
	parts := splitKey(key)
	return parts[0] == accountID && parts[3] == day
}

func splitKey(key string) [4]string {
	var parts [4]string
	idx := 0
	start := 0
	for i := 0; i < len(key) && idx < 3; i++ {
		if key[i] == '|' {
			parts[idx] = key[start:i]
			idx++
			start = i + 1
		}
	}
	parts[3] = key[start:]
	return parts
}

type fakeCursorStore struct {
	mu      sync.Mutex
	cursors map[string]string
}

func newFakeCursorStore() *fakeCursorStore {
	return &fakeCursorStore{cursors: make(map[string]string)}
}

func (f *fakeCursorStore) Get(_ context.Context, accountID, postID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cursors[accountID+"|"+postID], nil
}

func (f *fakeCursorStore) Advance(_ context.Context, accountID, postID, commentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := accountID + "|" + postID
	if f.cursors[key] < commentID {
		f.cursors[key] = commentID
	}
	return nil
}

func (f *fakeCursorStore) CountForAccount(_ context.Context, accountID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for key := range f.cursors {
		if splitKey(key + "|||")[0] == accountID {
			count++
		}
	}
	return count, nil
}

type fakeConfigProvider struct {
	accountConfigs map[string]*models.AutomationConfig
	postConfigs    map[string]*models.PostConfig
}

func newFakeConfigProvider() *fakeConfigProvider {
	return &fakeConfigProvider{
		accountConfigs: make(map[string]*models.AutomationConfig),
		postConfigs:    make(map[string]*models.PostConfig),
	}
}

func (f *fakeConfigProvider) AccountConfig(_ context.Context, accountID string) (*models.AutomationConfig, error) {
	return f.accountConfigs[accountID], nil
}

func (f *fakeConfigProvider) PostConfig(_ context.Context, accountID, postID string) (*models.PostConfig, error) {
	return f.postConfigs[accountID+"|"+postID], nil
}

func (f *fakeConfigProvider) HasPostConfigs(_ context.Context, accountID string) (bool, error) {
	for key := range f.postConfigs {
		if splitKey(key + "|||")[0] == accountID {
			return true, nil
		}
	}
	return false, nil
}

type sentMessage struct {
	AccountID     string
	RecipientID   string
	RecipientName string
	Text          string
}

type postedReply struct {
	CommentID string
	Text      string
}

// fakeClient scripts send outcomes: sendErrs are consumed in order,
// then sends succeed.
type fakeClient struct {
	mu        sync.Mutex
	sent      []sentMessage
	replies   []postedReply
	sendErrs  []error
	replyErrs []error
	posts     []platform.Post
	comments  map[string][]platform.Comment
}

func newFakeClient() *fakeClient {
	return &fakeClient{comments: make(map[string][]platform.Comment)}
}

func (f *fakeClient) ListRecentPosts(_ context.Context, _ string, limit int) ([]platform.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.posts) > limit {
		return f.posts[:limit], nil
	}
	return f.posts, nil
}

func (f *fakeClient) ListComments(_ context.Context, postID string, _ int) ([]platform.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.comments[postID], nil
}

func (f *fakeClient) SendDirectMessage(_ context.Context, accountID, recipientID, recipientName, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sendErrs) > 0 {
		err := f.sendErrs[0]
		f.sendErrs = f.sendErrs[1:]
		if err != nil {
			return err
		}
	}
	f.sent = append(f.sent, sentMessage{
		AccountID:     accountID,
		RecipientID:   recipientID,
		RecipientName: recipientName,
		Text:          text,
	})
	return nil
}

func (f *fakeClient) ReplyToComment(_ context.Context, commentID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.replyErrs) > 0 {
		err := f.replyErrs[0]
		f.replyErrs = f.replyErrs[1:]
		if err != nil {
			return err
		}
	}
	f.replies = append(f.replies, postedReply{CommentID: commentID, Text: text})
	return nil
}

func (f *fakeClient) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeClient) replyCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.replies)
}

type fakeGate struct {
	mu        sync.Mutex
	acquired  int
	suspended time.Duration
	err       error
}

func (f *fakeGate) Acquire(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.acquired++
	return nil
}

func (f *fakeGate) Suspend(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.suspended = d
}

var errBoom = errors.New("storage unavailable")
