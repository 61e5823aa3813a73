package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/autodms/funnel/internal/models"
)

// Policy is the resolved automation policy for one post. A post-level
// config replaces the account-level config entirely when present.
type Policy struct {
	Enabled         bool
	TriggerMode     string
	TriggerKeyword  string
	MessageTemplate string
	LinkPayload     string
	DailySendLimit  int
	Cooldown        time.Duration
	ReplyAfterSend  bool
	UseTextGen      bool
}

// ConfigProvider resolves automation policies from storage
type ConfigProvider interface {
	AccountConfig(ctx context.Context, accountID string) (*models.AutomationConfig, error)
	PostConfig(ctx context.Context, accountID, postID string) (*models.PostConfig, error)
	HasPostConfigs(ctx context.Context, accountID string) (bool, error)
}

// ResolvePolicy loads the effective policy for (account, post).
// Returns nil when no config row covers the post.
func ResolvePolicy(ctx context.Context, configs ConfigProvider, accountID, postID string, defaults Defaults) (*Policy, error) {
	postCfg, err := configs.PostConfig(ctx, accountID, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to load post config: %w", err)
	}
	if postCfg != nil {
		return &Policy{
			Enabled:         postCfg.Enabled,
			TriggerMode:     postCfg.TriggerMode,
			TriggerKeyword:  postCfg.TriggerKeyword.String,
			MessageTemplate: postCfg.MessageTemplate.String,
			LinkPayload:     postCfg.LinkPayload.String,
			DailySendLimit:  orDefault(postCfg.DailySendLimit, defaults.DailySendLimit),
			Cooldown:        orDefaultDuration(postCfg.CooldownSeconds, defaults.Cooldown),
			ReplyAfterSend:  postCfg.ReplyAfterSend,
			UseTextGen:      postCfg.UseTextGen,
		}, nil
	}

	acctCfg, err := configs.AccountConfig(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load account config: %w", err)
	}
	if acctCfg == nil {
		return nil, nil
	}
	return &Policy{
		Enabled:         acctCfg.Enabled,
		TriggerMode:     acctCfg.TriggerMode,
		TriggerKeyword:  acctCfg.TriggerKeyword.String,
		MessageTemplate: acctCfg.MessageTemplate.String,
		LinkPayload:     acctCfg.LinkPayload.String,
		DailySendLimit:  orDefault(acctCfg.DailySendLimit, defaults.DailySendLimit),
		Cooldown:        orDefaultDuration(acctCfg.CooldownSeconds, defaults.Cooldown),
		ReplyAfterSend:  acctCfg.ReplyAfterSend,
		UseTextGen:      acctCfg.UseTextGen,
	}, nil
}

// Defaults fill in policy fields left at zero in storage
type Defaults struct {
	DailySendLimit int
	Cooldown       time.Duration
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func orDefaultDuration(seconds int, def time.Duration) time.Duration {
	if seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return def
}
