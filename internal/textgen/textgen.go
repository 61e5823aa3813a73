// Package textgen defines the optional message generation collaborator.
// The engine composes template-based messages on its own; a Generator
// can replace the body when a post's policy opts in.
package textgen

import "context"

// Unavailable is the sentinel body a Generator returns when it cannot
// produce a usable message. The engine falls back to the template body
// when it sees this value.
const Unavailable = "[unavailable]"

// Context carries the inputs a Generator may use
type Context struct {
	AccountID   string
	Username    string
	CommentText string
	PostCaption string
	Link        string
}

// Generator produces a message body for a matched comment.
// Implementations must not fail the pipeline: on any internal error
// they return Unavailable with a nil error.
type Generator interface {
	Generate(ctx context.Context, genCtx Context) (string, error)
}

// Disabled is the default no-op generator
type Disabled struct{}

// Generate always reports the generator as unavailable
func (Disabled) Generate(_ context.Context, _ Context) (string, error) {
	return Unavailable, nil
}
