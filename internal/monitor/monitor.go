// Package monitor runs the per-account polling loops that feed new
// comments into the decision engine.
package monitor

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/autodms/funnel/internal/engine"
	"github.com/autodms/funnel/internal/models"
	"github.com/autodms/funnel/internal/platform"
	"github.com/autodms/funnel/pkg/config"
	"github.com/autodms/funnel/pkg/logging"
	"github.com/autodms/funnel/pkg/telemetry"
)

// Processor consumes batches of new comments
type Processor interface {
	ProcessNewComments(ctx context.Context, accountID string, post platform.Post, comments []platform.Comment) (engine.Results, error)
}

// AccountDirectory resolves monitored accounts
type AccountDirectory interface {
	List(ctx context.Context) ([]*models.Account, error)
	GetByAccountID(ctx context.Context, accountID string) (*models.Account, error)
}

// Manager owns one polling goroutine per monitored account
type Manager struct {
	client    platform.Client
	processor Processor
	accounts  AccountDirectory
	configs   engine.ConfigProvider
	cursors   engine.CursorStore
	cfg       *config.MonitorConfig
	logger    *zap.Logger

	mu      sync.Mutex
	running map[string]*loopHandle
}

type loopHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a monitor manager
func NewManager(client platform.Client, processor Processor, accounts AccountDirectory,
	configs engine.ConfigProvider, cursors engine.CursorStore, cfg *config.MonitorConfig) *Manager {
	return &Manager{
		client:    client,
		processor: processor,
		accounts:  accounts,
		configs:   configs,
		cursors:   cursors,
		cfg:       cfg,
		logger:    logging.GetLogger().With(zap.String("component", "monitor")),
		running:   make(map[string]*loopHandle),
	}
}

// Start begins monitoring an account. Starting an account that is
// already monitored is a no-op with a warning.
func (m *Manager) Start(ctx context.Context, accountID string) error {
	account, err := m.accounts.GetByAccountID(ctx, accountID)
	if err != nil {
		return err
	}
	if account == nil {
		return ErrUnknownAccount
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.running[accountID]; ok {
		m.logger.Warn("Monitor already running", zap.String("account_id", accountID))
		return nil
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	handle := &loopHandle{cancel: cancel, done: make(chan struct{})}
	m.running[accountID] = handle

	go m.loop(loopCtx, account, handle)

	m.logger.Info("Monitor started",
		zap.String("account_id", accountID),
		zap.Duration("poll_interval", m.cfg.PollInterval))
	return nil
}

// Stop cancels an account's polling loop and waits for it to exit. An
// in-flight cycle finishes its current dispatch before the loop sees
// the cancellation. Stopping an account that is not monitored is a
// no-op with a warning.
func (m *Manager) Stop(accountID string) {
	m.mu.Lock()
	handle, ok := m.running[accountID]
	if ok {
		delete(m.running, accountID)
	}
	m.mu.Unlock()

	if !ok {
		m.logger.Warn("Monitor not running", zap.String("account_id", accountID))
		return
	}

	handle.cancel()
	select {
	case <-handle.done:
	case <-time.After(5 * time.Second):
		m.logger.Warn("Monitor did not stop in time", zap.String("account_id", accountID))
	}
	m.logger.Info("Monitor stopped", zap.String("account_id", accountID))
}

// StartAll starts monitors for every enabled registered account
func (m *Manager) StartAll(ctx context.Context) error {
	accounts, err := m.accounts.List(ctx)
	if err != nil {
		return err
	}
	for _, account := range accounts {
		if !account.Enabled {
			continue
		}
		if err := m.Start(ctx, account.AccountID); err != nil {
			m.logger.Error("Failed to start monitor",
				zap.String("account_id", account.AccountID),
				zap.Error(err))
		}
	}
	return nil
}

// StopAll stops every running monitor
func (m *Manager) StopAll() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.running))
	for id := range m.running {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.Stop(id)
	}
}

// Running reports whether an account is currently monitored
func (m *Manager) Running(accountID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.running[accountID]
	return ok
}

// loop polls the account's recent posts until cancelled. Cycle errors
// never terminate the loop.
func (m *Manager) loop(ctx context.Context, account *models.Account, handle *loopHandle) {
	defer close(handle.done)

	logger := m.logger.With(zap.String("account_id", account.AccountID))

	for {
		if err := m.runCycle(ctx, account, logger); err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("Poll cycle failed, will retry", zap.Error(err))
			if !m.wait(ctx, m.cfg.CycleRetryDelay) {
				return
			}
			continue
		}

		if !m.wait(ctx, m.cfg.PollInterval) {
			return
		}
	}
}

// runCycle fetches recent posts and feeds their unseen comments to the
// processor.
func (m *Manager) runCycle(ctx context.Context, account *models.Account, logger *zap.Logger) error {
	ctx, span := telemetry.StartSpan(ctx, "monitor.poll_cycle")
	defer span.End()

	active, err := m.automationActive(ctx, account.AccountID)
	if err != nil {
		return err
	}
	if !active {
		logger.Debug("Automation inactive, skipping cycle")
		return nil
	}

	posts, err := m.client.ListRecentPosts(ctx, account.AccountID, m.cfg.RecentPosts)
	if err != nil {
		return err
	}

	for _, post := range posts {
		if err := ctx.Err(); err != nil {
			return err
		}

		fresh, err := m.collectNewComments(ctx, account, post.ID)
		if err != nil {
			return err
		}
		if len(fresh) == 0 {
			continue
		}

		results, err := m.processor.ProcessNewComments(ctx, account.AccountID, post, fresh)
		if err != nil {
			return err
		}

		logger.Info("Processed comment batch",
			zap.String("post_id", post.ID),
			zap.Int("new_comments", results.NewComments),
			zap.Int("sent", results.Sent),
			zap.Int("fallback_replied", results.FallbackReplied),
			zap.Int("skipped", results.Skipped),
			zap.Int("failed", results.Failed))
	}

	return nil
}

// automationActive reports whether any policy could fire for the
// account: the account-level config is enabled, or at least one
// post-level config exists.
func (m *Manager) automationActive(ctx context.Context, accountID string) (bool, error) {
	acctCfg, err := m.configs.AccountConfig(ctx, accountID)
	if err != nil {
		return false, err
	}
	if acctCfg != nil && acctCfg.Enabled {
		return true, nil
	}
	return m.configs.HasPostConfigs(ctx, accountID)
}

// collectNewComments returns a post's comments strictly newer than the
// stored cursor, oldest first, with the account's own comments dropped.
func (m *Manager) collectNewComments(ctx context.Context, account *models.Account, postID string) ([]platform.Comment, error) {
	comments, err := m.client.ListComments(ctx, postID, m.cfg.CommentPageSize)
	if err != nil {
		return nil, err
	}

	cursor, err := m.cursors.Get(ctx, account.AccountID, postID)
	if err != nil {
		return nil, err
	}

	fresh := make([]platform.Comment, 0, len(comments))
	for _, c := range comments {
		if c.Username != "" && c.Username == account.Username {
			continue
		}
		if c.ID <= cursor {
			continue
		}
		fresh = append(fresh, c)
	}

	sort.Slice(fresh, func(i, j int) bool { return fresh[i].ID < fresh[j].ID })
	return fresh, nil
}

// wait sleeps for d unless the context is cancelled first
func (m *Manager) wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
