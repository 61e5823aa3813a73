// Package engine holds the per-comment decision pipeline: idempotency,
// policy resolution, trigger matching, safety limits, retry state and
// message dispatch.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/autodms/funnel/internal/cache"
	"github.com/autodms/funnel/internal/models"
	"github.com/autodms/funnel/internal/platform"
	"github.com/autodms/funnel/internal/textgen"
	"github.com/autodms/funnel/pkg/logging"
	"github.com/autodms/funnel/pkg/telemetry"
)

// Per-comment results
const (
	ResultSuccess          = "SUCCESS"
	ResultFallback         = "FALLBACK"
	ResultWillRetry        = "FAILED:will_retry"
	ResultRetriesExhausted = "FAILED:max_retries_exceeded"
)

// Skip reasons
const (
	SkipAlreadyProcessed    = "already_processed"
	SkipAutomationDisabled  = "automation_disabled"
	SkipTriggerNotMatched   = "trigger_not_matched"
	SkipNoPayload           = "no_payload"
	SkipIdentityUnavailable = "identity_unavailable"
	SkipAlreadySentToday    = "already_sent_today"
	SkipCooldownActive      = "cooldown_active"
	SkipDailyLimitReached   = "daily_limit_reached"
	SkipRateLimited         = "rate_limited"
	SkipBackoffPending      = "backoff_pending"
	SkipInFlight            = "in_flight"
)

const (
	statusCacheTTL = 30 * time.Second
	inflightTTL    = time.Minute
)

// SendGate throttles outbound dispatches
type SendGate interface {
	Acquire(ctx context.Context) error
	Suspend(d time.Duration)
}

// Engine runs the per-comment decision pipeline
type Engine struct {
	client    platform.Client
	dedup     DedupLedger
	daily     DailyLedger
	cursors   CursorStore
	configs   ConfigProvider
	gate      SendGate
	safety    *SafetyTracker
	retries   *RetryTracker
	generator textgen.Generator
	cache     *cache.Cache
	defaults  Defaults
	pacing    time.Duration
	logger    *zap.Logger

	mu             sync.Mutex
	lastSkipReason map[string]string

	now func() time.Time
}

// Options carries the engine's collaborators
type Options struct {
	Client    platform.Client
	Dedup     DedupLedger
	Daily     DailyLedger
	Cursors   CursorStore
	Configs   ConfigProvider
	Gate      SendGate
	Generator textgen.Generator
	Cache     *cache.Cache
	Defaults  Defaults
	Pacing    time.Duration
}

// New creates an engine
func New(opts Options) *Engine {
	generator := opts.Generator
	if generator == nil {
		generator = textgen.Disabled{}
	}
	e := &Engine{
		client:         opts.Client,
		dedup:          opts.Dedup,
		daily:          opts.Daily,
		cursors:        opts.Cursors,
		configs:        opts.Configs,
		gate:           opts.Gate,
		generator:      generator,
		cache:          opts.Cache,
		defaults:       opts.Defaults,
		pacing:         opts.Pacing,
		logger:         logging.GetLogger().With(zap.String("component", "engine")),
		lastSkipReason: make(map[string]string),
		now:            time.Now,
	}
	e.safety = NewSafetyTracker(opts.Daily)
	e.retries = NewRetryTracker()
	return e
}

// Results summarizes one batch of comments
type Results struct {
	NewComments     int
	Processed       int
	Sent            int
	FallbackReplied int
	Skipped         int
	Failed          int
}

// ProcessNewComments runs the pipeline over a batch of comments for
// one post, oldest first. A persistence failure aborts the batch so
// the monitor retries the whole cycle; per-comment dispatch failures
// only affect their own comment.
func (e *Engine) ProcessNewComments(ctx context.Context, accountID string, post platform.Post, comments []platform.Comment) (Results, error) {
	ctx, span := telemetry.StartSpan(ctx, "engine.process_new_comments")
	defer span.End()

	results := Results{NewComments: len(comments)}
	if len(comments) == 0 {
		return results, nil
	}

	policy, err := ResolvePolicy(ctx, e.configs, accountID, post.ID, e.defaults)
	if err != nil {
		return results, err
	}

	for i, raw := range comments {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		comment := NormalizeComment(raw, post)
		result, err := e.processComment(ctx, accountID, policy, comment)
		if err != nil {
			return results, fmt.Errorf("failed to process comment %s: %w", comment.ID, err)
		}

		results.Processed++
		switch result {
		case ResultSuccess:
			results.Sent++
		case ResultFallback:
			results.FallbackReplied++
		case ResultWillRetry, ResultRetriesExhausted:
			results.Failed++
		default:
			results.Skipped++
		}

		// Pace successive dispatches within a cycle
		if e.pacing > 0 && (result == ResultSuccess || result == ResultFallback) && i < len(comments)-1 {
			timer := time.NewTimer(e.pacing)
			select {
			case <-ctx.Done():
				timer.Stop()
				return results, ctx.Err()
			case <-timer.C:
			}
		}
	}

	return results, nil
}

// processComment runs the ordered decision pipeline for one comment.
// Returned errors are persistence failures only; dispatch failures are
// absorbed into the result.
func (e *Engine) processComment(ctx context.Context, accountID string, policy *Policy, c Comment) (string, error) {
	logger := e.logger.With(
		zap.String("account_id", accountID),
		zap.String("post_id", c.PostID),
		zap.String("comment_id", c.ID))

	// Idempotency gate before anything else
	processed, err := e.dedup.IsProcessed(ctx, accountID, c.ID)
	if err != nil {
		return "", err
	}
	if processed {
		return e.skip(accountID, SkipAlreadyProcessed), nil
	}

	if policy == nil || !policy.Enabled {
		return e.skip(accountID, SkipAutomationDisabled), nil
	}

	if policy.LinkPayload == "" {
		return e.skip(accountID, SkipNoPayload), nil
	}

	if !TriggerMatches(policy, c.Text) {
		return e.skip(accountID, SkipTriggerNotMatched), nil
	}

	if !c.HasIdentity() {
		// Never addressable: record terminally so it is not revisited
		if err := e.markTerminal(ctx, accountID, c, SkipIdentityUnavailable); err != nil {
			return "", err
		}
		return e.skip(accountID, SkipIdentityUnavailable), nil
	}

	day := DayKey(e.now)
	sent, err := e.daily.WasSent(ctx, accountID, c.RecipientKey(), c.PostID, day)
	if err != nil {
		return "", err
	}
	if sent {
		// Eligible again once the day rolls over, so not terminal
		return e.skip(accountID, SkipAlreadySentToday), nil
	}

	ok, reason, err := e.safety.CanSend(ctx, accountID, policy)
	if err != nil {
		return "", err
	}
	if !ok {
		return e.skip(accountID, reason), nil
	}

	if exhausted, pending := e.retries.Gate(accountID, c.ID); exhausted {
		logger.Warn("Abandoning comment after repeated dispatch failures",
			zap.Int("attempts", e.retries.Attempts(accountID, c.ID)))
		if err := e.markTerminal(ctx, accountID, c, models.OutcomeMaxRetries); err != nil {
			return "", err
		}
		e.retries.Clear(accountID, c.ID)
		return ResultRetriesExhausted, nil
	} else if pending {
		return e.skip(accountID, SkipBackoffPending), nil
	}

	return e.dispatch(ctx, accountID, policy, c, logger)
}

// dispatch composes and sends the directed message, then records the
// terminal outcome.
func (e *Engine) dispatch(ctx context.Context, accountID string, policy *Policy, c Comment, logger *zap.Logger) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "engine.dispatch")
	defer span.End()

	// In-flight marker so a concurrent worker cannot double-dispatch
	// the same comment. Best effort: a disabled cache skips the guard.
	marker := "inflight:" + cache.HashKey(accountID, c.ID)
	if acquired, err := e.cache.SetNX(marker, 1, inflightTTL); err == nil {
		if !acquired {
			return e.skip(accountID, SkipInFlight), nil
		}
		defer e.cache.Delete(marker)
	}

	if err := e.gate.Acquire(ctx); err != nil {
		return "", err
	}

	body := e.composeBody(ctx, accountID, policy, c)

	err := e.client.SendDirectMessage(ctx, accountID, c.AuthorID, c.AuthorName, body)
	if err == nil {
		if err := e.recordSend(ctx, accountID, c, models.OutcomeSuccess); err != nil {
			return "", err
		}
		logger.Info("Directed message sent", zap.String("recipient", c.AuthorName))

		if policy.ReplyAfterSend {
			// Best effort, the send already succeeded
			if replyErr := e.client.ReplyToComment(ctx, c.ID, ComposeMentionReply(c)); replyErr != nil {
				logger.Warn("Failed to post follow-up reply", zap.Error(replyErr))
			}
		}
		return ResultSuccess, nil
	}

	if errors.Is(err, platform.ErrWindowClosed) {
		return e.fallback(ctx, accountID, c, body, logger)
	}

	var rle *platform.RateLimitError
	if errors.As(err, &rle) {
		logger.Warn("Platform rate limit, suspending sends",
			zap.Duration("retry_after", rle.RetryAfter))
		e.gate.Suspend(rle.RetryAfter)
		return e.skip(accountID, SkipRateLimited), nil
	}

	if !platform.IsRetriable(err) {
		logger.Error("Dispatch failed permanently", zap.Error(err))
		if err := e.markTerminal(ctx, accountID, c, models.OutcomeMaxRetries); err != nil {
			return "", err
		}
		e.retries.Clear(accountID, c.ID)
		return ResultRetriesExhausted, nil
	}

	attempts := e.retries.RecordFailure(accountID, c.ID)
	logger.Warn("Dispatch failed, will retry",
		zap.Error(err),
		zap.Int("attempts", attempts))
	if attempts >= maxRetryAttempts {
		if err := e.markTerminal(ctx, accountID, c, models.OutcomeMaxRetries); err != nil {
			return "", err
		}
		e.retries.Clear(accountID, c.ID)
		return ResultRetriesExhausted, nil
	}
	return ResultWillRetry, nil
}

// fallback publicly replies with the message body that could not be
// delivered privately. The comment is processed regardless of how the
// reply itself fares.
func (e *Engine) fallback(ctx context.Context, accountID string, c Comment, body string, logger *zap.Logger) (string, error) {
	logger.Info("Messaging window closed, posting public fallback reply")

	if err := e.client.ReplyToComment(ctx, c.ID, ComposeFallbackReply(c, body)); err != nil {
		logger.Warn("Fallback reply failed", zap.Error(err))
	}

	if err := e.recordSend(ctx, accountID, c, models.OutcomeFallback); err != nil {
		return "", err
	}
	return ResultFallback, nil
}

// composeBody renders the message body, optionally through the
// generator when the policy opts in.
func (e *Engine) composeBody(ctx context.Context, accountID string, policy *Policy, c Comment) string {
	if policy.UseTextGen {
		generated, err := e.generator.Generate(ctx, textgen.Context{
			AccountID:   accountID,
			Username:    c.AuthorName,
			CommentText: c.Text,
			PostCaption: c.PostCaption,
			Link:        policy.LinkPayload,
		})
		if err == nil && generated != "" && generated != textgen.Unavailable {
			return generated
		}
	}
	return ComposeMessage(policy, c)
}

// recordSend writes both ledgers and advances the cursor after a
// delivery attempt counted against the daily quota.
func (e *Engine) recordSend(ctx context.Context, accountID string, c Comment, outcome string) error {
	day := DayKey(e.now)
	if err := e.daily.MarkSent(ctx, accountID, c.RecipientKey(), c.PostID, day); err != nil {
		return err
	}
	if outcome == models.OutcomeSuccess {
		if err := e.safety.RecordSend(ctx, accountID); err != nil {
			return err
		}
	}
	if err := e.dedup.MarkProcessed(ctx, accountID, c.ID, outcome); err != nil {
		return err
	}
	if err := e.cursors.Advance(ctx, accountID, c.PostID, c.ID); err != nil {
		return err
	}
	e.retries.Clear(accountID, c.ID)
	return nil
}

// markTerminal records a non-send terminal outcome
func (e *Engine) markTerminal(ctx context.Context, accountID string, c Comment, outcome string) error {
	if err := e.dedup.MarkProcessed(ctx, accountID, c.ID, outcome); err != nil {
		return err
	}
	return e.cursors.Advance(ctx, accountID, c.PostID, c.ID)
}

func (e *Engine) skip(accountID, reason string) string {
	e.setLastSkip(accountID, reason)
	return "SKIPPED:" + reason
}

func (e *Engine) setLastSkip(accountID, reason string) {
	e.mu.Lock()
	e.lastSkipReason[accountID] = reason
	e.mu.Unlock()
}

// Status is the account snapshot served by the control API
type Status struct {
	AccountID       string `json:"account_id"`
	Enabled         bool   `json:"enabled"`
	SentToday       int64  `json:"sent_today"`
	RecipientsToday int64  `json:"recipients_today"`
	DailySendLimit  int    `json:"daily_send_limit"`
	CooldownSeconds int    `json:"cooldown_seconds"`
	MonitoredPosts  int64  `json:"monitored_posts"`
	Monitoring      bool   `json:"monitoring"`
	LastSkipReason  string `json:"last_skip_reason,omitempty"`
}

// Status builds the account snapshot, served from a short-lived cache
// entry when available.
func (e *Engine) Status(ctx context.Context, accountID string) (*Status, error) {
	cacheKey := "status:" + accountID
	if cached, err := e.cache.Get(cacheKey); err == nil && cached != "" {
		var status Status
		if err := json.Unmarshal([]byte(cached), &status); err == nil {
			return &status, nil
		}
	}

	acctCfg, err := e.configs.AccountConfig(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load account config: %w", err)
	}

	status := &Status{AccountID: accountID}
	if acctCfg != nil {
		status.Enabled = acctCfg.Enabled
		status.DailySendLimit = orDefault(acctCfg.DailySendLimit, e.defaults.DailySendLimit)
		status.CooldownSeconds = orDefault(acctCfg.CooldownSeconds, int(e.defaults.Cooldown/time.Second))
	}

	day := DayKey(e.now)
	if status.SentToday, err = e.daily.CountForDay(ctx, accountID, day); err != nil {
		return nil, err
	}
	if status.RecipientsToday, err = e.daily.CountRecipientsForDay(ctx, accountID, day); err != nil {
		return nil, err
	}
	if status.MonitoredPosts, err = e.cursors.CountForAccount(ctx, accountID); err != nil {
		return nil, err
	}

	e.mu.Lock()
	status.LastSkipReason = e.lastSkipReason[accountID]
	e.mu.Unlock()

	if payload, err := json.Marshal(status); err == nil {
		_ = e.cache.Set(cacheKey, string(payload), statusCacheTTL)
	}

	return status, nil
}
