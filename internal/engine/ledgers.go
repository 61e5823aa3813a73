package engine

import (
	"context"
	"time"
)

// DedupLedger is the durable record of terminally handled comments
type DedupLedger interface {
	IsProcessed(ctx context.Context, accountID, commentID string) (bool, error)
	MarkProcessed(ctx context.Context, accountID, commentID, outcome string) error
}

// DailyLedger is the durable record of per-day sends
type DailyLedger interface {
	WasSent(ctx context.Context, accountID, recipientID, postID, day string) (bool, error)
	MarkSent(ctx context.Context, accountID, recipientID, postID, day string) error
	CountForDay(ctx context.Context, accountID, day string) (int64, error)
	CountRecipientsForDay(ctx context.Context, accountID, day string) (int64, error)
	LastSendTime(ctx context.Context, accountID string) (*time.Time, error)
}

// CursorStore is the durable high-water mark of processed comment IDs
type CursorStore interface {
	Get(ctx context.Context, accountID, postID string) (string, error)
	Advance(ctx context.Context, accountID, postID, commentID string) error
	CountForAccount(ctx context.Context, accountID string) (int64, error)
}
