package engine

import (
	"strings"
)

// Placeholder substitutions available in message templates:
//
//	{username}   commenter's name
//	{@username}  commenter's name prefixed with @
//	{link}       the configured link payload
//	{post}       the post caption, truncated
const captionRuneLimit = 50

const (
	defaultMessageBody  = "Hi {username}! Thanks for your comment. Here is the link you asked for: {link}"
	defaultFallbackBody = "{@username} thanks for your comment! Please send us a message so we can share the link with you."
	replyAfterSendBody  = "{@username} just sent you a message, check your inbox!"

	// Shown in place of a link the recipient could not open
	withheldLinkNotice = "(link available on request)"
)

// ComposeMessage renders the directed message body for a comment. An
// empty template falls back to the default body. Non-public links are
// never placed in the body.
func ComposeMessage(policy *Policy, c Comment) string {
	template := policy.MessageTemplate
	if strings.TrimSpace(template) == "" {
		template = defaultMessageBody
	}
	return renderTemplate(template, c, policy.LinkPayload)
}

// ComposeFallbackReply renders the public reply posted when the
// directed message cannot be delivered: the undeliverable body itself,
// prefixed with a mention. An empty body falls back to generic
// message-us-first text.
func ComposeFallbackReply(c Comment, body string) string {
	if strings.TrimSpace(body) == "" {
		return renderTemplate(defaultFallbackBody, c, "")
	}
	return "@" + c.AuthorName + " " + body
}

// ComposeMentionReply renders the public reply posted after a
// successful directed message when the policy asks for one.
func ComposeMentionReply(c Comment) string {
	return renderTemplate(replyAfterSendBody, c, "")
}

func renderTemplate(template string, c Comment, link string) string {
	replacer := strings.NewReplacer(
		"{@username}", "@"+c.AuthorName,
		"{username}", c.AuthorName,
		"{link}", presentableLink(link),
		"{post}", truncateCaption(c.PostCaption),
	)
	return strings.TrimSpace(replacer.Replace(template))
}

// presentableLink withholds anything that is not an http(s) URL. Link
// payloads sometimes hold internal references (file paths, asset IDs)
// that mean nothing to a recipient.
func presentableLink(link string) string {
	if link == "" {
		return withheldLinkNotice
	}
	lower := strings.ToLower(link)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return link
	}
	return withheldLinkNotice
}

func truncateCaption(caption string) string {
	runes := []rune(caption)
	if len(runes) <= captionRuneLimit {
		return caption
	}
	return string(runes[:captionRuneLimit]) + "..."
}
