package engine

import "github.com/autodms/funnel/internal/platform"

// Comment is the normalized unit of work. Comment IDs are opaque
// strings whose lexicographic order matches creation order, so cursors
// compare them directly.
type Comment struct {
	ID          string
	Text        string
	AuthorID    string
	AuthorName  string
	PostID      string
	PostCaption string
}

// NormalizeComment maps a platform comment into the engine's boundary
// record. It is total: missing author fields come back empty rather
// than failing, and the identity gate downstream decides what to do
// with them.
func NormalizeComment(c platform.Comment, post platform.Post) Comment {
	out := Comment{
		ID:          c.ID,
		Text:        c.Text,
		AuthorName:  c.Username,
		PostID:      post.ID,
		PostCaption: post.Caption,
	}
	if c.From != nil {
		out.AuthorID = c.From.ID
		if out.AuthorName == "" {
			out.AuthorName = c.From.Username
		}
	}
	return out
}

// HasIdentity reports whether the comment carries enough author
// identity to address a directed message.
func (c Comment) HasIdentity() bool {
	return c.AuthorID != "" || c.AuthorName != ""
}

// RecipientKey identifies the commenter in the daily send ledger. The
// platform omits identity fields independently, so the key falls back
// through whatever was delivered rather than collapsing distinct
// commenters onto an empty ID.
func (c Comment) RecipientKey() string {
	switch {
	case c.AuthorName != "":
		return c.AuthorName
	case c.AuthorID != "":
		return c.AuthorID
	default:
		return c.ID
	}
}
