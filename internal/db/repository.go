package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/autodms/funnel/internal/models"
)

// Repository provides database access methods
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// AccountRepository provides account registry operations
type AccountRepository struct {
	*Repository
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(repo *Repository) *AccountRepository {
	return &AccountRepository{Repository: repo}
}

// List retrieves all registered accounts
func (r *AccountRepository) List(ctx context.Context) ([]*models.Account, error) {
	var accounts []*models.Account
	if err := r.db.WithContext(ctx).Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

// GetByAccountID retrieves an account by its platform identifier
func (r *AccountRepository) GetByAccountID(ctx context.Context, accountID string) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).Where("account_id = ?", accountID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// ConfigRepository provides read-only access to automation policies
type ConfigRepository struct {
	*Repository
}

// NewConfigRepository creates a new config repository
func NewConfigRepository(repo *Repository) *ConfigRepository {
	return &ConfigRepository{Repository: repo}
}

// AccountConfig retrieves the account-level automation config
func (r *ConfigRepository) AccountConfig(ctx context.Context, accountID string) (*models.AutomationConfig, error) {
	var cfg models.AutomationConfig
	if err := r.db.WithContext(ctx).Where("account_id = ?", accountID).First(&cfg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cfg, nil
}

// PostConfig retrieves the post-level automation config
func (r *ConfigRepository) PostConfig(ctx context.Context, accountID, postID string) (*models.PostConfig, error) {
	var cfg models.PostConfig
	if err := r.db.WithContext(ctx).
		Where("account_id = ? AND post_id = ?", accountID, postID).
		First(&cfg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cfg, nil
}

// HasPostConfigs reports whether any post-level config exists for an account
func (r *ConfigRepository) HasPostConfigs(ctx context.Context, accountID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.PostConfig{}).
		Where("account_id = ?", accountID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// DedupRepository provides the dedup ledger operations
type DedupRepository struct {
	*Repository
}

// NewDedupRepository creates a new dedup repository
func NewDedupRepository(repo *Repository) *DedupRepository {
	return &DedupRepository{Repository: repo}
}

// IsProcessed reports whether a comment has been terminally handled
func (r *DedupRepository) IsProcessed(ctx context.Context, accountID, commentID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.DedupRecord{}).
		Where("account_id = ? AND comment_id = ?", accountID, commentID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// MarkProcessed records a terminal outcome for a comment. Idempotent:
// re-marking an already processed comment is a no-op.
func (r *DedupRepository) MarkProcessed(ctx context.Context, accountID, commentID, outcome string) error {
	record := models.DedupRecord{
		AccountID:   accountID,
		CommentID:   commentID,
		Outcome:     outcome,
		ProcessedAt: time.Now().UTC(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&record).Error
}

// Prune deletes dedup records older than the cutoff
func (r *DedupRepository) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("processed_at < ?", olderThan).
		Delete(&models.DedupRecord{})
	return result.RowsAffected, result.Error
}

// DailySendRepository provides the daily send ledger operations
type DailySendRepository struct {
	*Repository
}

// NewDailySendRepository creates a new daily send repository
func NewDailySendRepository(repo *Repository) *DailySendRepository {
	return &DailySendRepository{Repository: repo}
}

// WasSent reports whether a recipient already got a message for a post on a day
func (r *DailySendRepository) WasSent(ctx context.Context, accountID, recipientID, postID, day string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.DailySendRecord{}).
		Where("account_id = ? AND recipient_id = ? AND post_id = ? AND day = ?",
			accountID, recipientID, postID, day).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// MarkSent records a send for (account, recipient, post, day). Idempotent.
func (r *DailySendRepository) MarkSent(ctx context.Context, accountID, recipientID, postID, day string) error {
	record := models.DailySendRecord{
		AccountID:   accountID,
		RecipientID: recipientID,
		PostID:      postID,
		Day:         day,
		SentAt:      time.Now().UTC(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&record).Error
}

// CountForDay returns the number of sends recorded for an account on a day
func (r *DailySendRepository) CountForDay(ctx context.Context, accountID, day string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.DailySendRecord{}).
		Where("account_id = ? AND day = ?", accountID, day).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CountRecipientsForDay returns the number of distinct recipients messaged on a day
func (r *DailySendRepository) CountRecipientsForDay(ctx context.Context, accountID, day string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.DailySendRecord{}).
		Where("account_id = ? AND day = ?", accountID, day).
		Distinct("recipient_id").
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// LastSendTime returns the time of the most recent send for an account,
// or nil when the account has never sent
func (r *DailySendRepository) LastSendTime(ctx context.Context, accountID string) (*time.Time, error) {
	var record models.DailySendRecord
	if err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("sent_at DESC").
		First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record.SentAt, nil
}

// Prune deletes daily send records for days before the cutoff day key
func (r *DailySendRepository) Prune(ctx context.Context, beforeDay string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("day < ?", beforeDay).
		Delete(&models.DailySendRecord{})
	return result.RowsAffected, result.Error
}

// CursorRepository provides the processing cursor store
type CursorRepository struct {
	*Repository
}

// NewCursorRepository creates a new cursor repository
func NewCursorRepository(repo *Repository) *CursorRepository {
	return &CursorRepository{Repository: repo}
}

// Get retrieves the cursor for a post, or "" when none is set
func (r *CursorRepository) Get(ctx context.Context, accountID, postID string) (string, error) {
	var record models.CursorRecord
	if err := r.db.WithContext(ctx).
		Where("account_id = ? AND post_id = ?", accountID, postID).
		First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return record.LastCommentID, nil
}

// Advance moves the cursor forward. The update only applies when the new
// comment ID sorts after the stored one, so the cursor never moves backwards.
func (r *CursorRepository) Advance(ctx context.Context, accountID, postID, commentID string) error {
	now := time.Now().UTC()
	record := models.CursorRecord{
		AccountID:     accountID,
		PostID:        postID,
		LastCommentID: commentID,
		UpdatedAt:     now,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "account_id"}, {Name: "post_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"last_comment_id": commentID,
				"updated_at":      now,
			}),
			Where: clause.Where{
				Exprs: []clause.Expression{
					clause.Expr{SQL: "funnel_cursors.last_comment_id < ?", Vars: []interface{}{commentID}},
				},
			},
		}).
		Create(&record).Error
}

// CountForAccount returns the number of posts with a cursor for an account
func (r *CursorRepository) CountForAccount(ctx context.Context, accountID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.CursorRecord{}).
		Where("account_id = ?", accountID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
