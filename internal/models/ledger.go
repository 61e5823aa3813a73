package models

import (
	"time"
)

// Terminal outcome constants recorded on dedup records
const (
	OutcomeSuccess    = "success"
	OutcomeFallback   = "fallback"
	OutcomeMaxRetries = "max_retries"
)

// DedupRecord marks a comment as terminally handled. Once a row exists
// the comment is never reprocessed, even across restarts.
type DedupRecord struct {
	AccountID   string    `gorm:"type:varchar(64);primaryKey;column:account_id"`
	CommentID   string    `gorm:"type:varchar(64);primaryKey;column:comment_id"`
	Outcome     string    `gorm:"type:varchar(32);not null;column:outcome"`
	ProcessedAt time.Time `gorm:"not null;index:funnel_dedup_records_ix1;column:processed_at"`
}

// TableName specifies the table name for DedupRecord
func (DedupRecord) TableName() string {
	return "funnel_dedup_records"
}

// DailySendRecord marks that a recipient received a message for a post
// on a calendar day (UTC). At most one row per key.
type DailySendRecord struct {
	AccountID   string    `gorm:"type:varchar(64);primaryKey;column:account_id"`
	RecipientID string    `gorm:"type:varchar(64);primaryKey;column:recipient_id"`
	PostID      string    `gorm:"type:varchar(64);primaryKey;column:post_id"`
	Day         string    `gorm:"type:varchar(10);primaryKey;column:day"`
	SentAt      time.Time `gorm:"not null;column:sent_at"`
}

// TableName specifies the table name for DailySendRecord
func (DailySendRecord) TableName() string {
	return "funnel_daily_sends"
}

// CursorRecord tracks the most recently processed comment per post.
// Every comment whose ID sorts at or before the cursor has been handled.
type CursorRecord struct {
	AccountID     string    `gorm:"type:varchar(64);primaryKey;column:account_id"`
	PostID        string    `gorm:"type:varchar(64);primaryKey;column:post_id"`
	LastCommentID string    `gorm:"type:varchar(64);not null;column:last_comment_id"`
	UpdatedAt     time.Time `gorm:"not null;column:updated_at"`
}

// TableName specifies the table name for CursorRecord
func (CursorRecord) TableName() string {
	return "funnel_cursors"
}
