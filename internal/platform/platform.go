package platform

import (
	"context"
	"time"
)

// Post is a content item returned by the platform's recent-media listing
type Post struct {
	ID            string    `json:"id"`
	Caption       string    `json:"caption"`
	CommentsCount int       `json:"comments_count"`
	Timestamp     time.Time `json:"timestamp"`
}

// CommentAuthor is the optional "from" object attached to a comment
type CommentAuthor struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Comment is a raw comment payload as delivered by the platform. The
// shape varies with the delivery path: Username and From may each be
// absent independently. Callers normalize before acting on it.
type Comment struct {
	ID        string         `json:"id"`
	Text      string         `json:"text"`
	Username  string         `json:"username,omitempty"`
	From      *CommentAuthor `json:"from,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Client is the narrow interface to the platform API consumed by the
// engine and the poll monitor
type Client interface {
	// ListRecentPosts returns an account's most recent posts, newest first
	ListRecentPosts(ctx context.Context, accountID string, limit int) ([]Post, error)
	// ListComments returns a bounded page of a post's comments, newest first
	ListComments(ctx context.Context, postID string, pageSize int) ([]Comment, error)
	// SendDirectMessage delivers a private message to the recipient.
	// Returns ErrWindowClosed when the platform refuses because the
	// recipient has never messaged the account.
	SendDirectMessage(ctx context.Context, accountID, recipientID, recipientName, text string) error
	// ReplyToComment posts a public reply under a comment
	ReplyToComment(ctx context.Context, commentID, text string) error
}
