package engine

import (
	"strings"
	"testing"
)

func TestComposeMessage(t *testing.T) {
	comment := Comment{
		AuthorName:  "alice",
		PostCaption: "Summer sale starts today",
	}

	t.Run("custom template with placeholders", func(t *testing.T) {
		policy := &Policy{
			MessageTemplate: "Hey {username}, about \"{post}\": {link}",
			LinkPayload:     "https://example.com/sale",
		}
		got := ComposeMessage(policy, comment)
		want := `Hey alice, about "Summer sale starts today": https://example.com/sale`
		if got != want {
			t.Errorf("ComposeMessage() = %q, want %q", got, want)
		}
	})

	t.Run("empty template uses default body", func(t *testing.T) {
		policy := &Policy{LinkPayload: "https://example.com/x"}
		got := ComposeMessage(policy, comment)
		if !strings.Contains(got, "alice") || !strings.Contains(got, "https://example.com/x") {
			t.Errorf("ComposeMessage() = %q, expected default body with username and link", got)
		}
	})

	t.Run("mention placeholder", func(t *testing.T) {
		policy := &Policy{MessageTemplate: "{@username} hi"}
		got := ComposeMessage(policy, comment)
		if got != "@alice hi" {
			t.Errorf("ComposeMessage() = %q, want %q", got, "@alice hi")
		}
	})

	t.Run("non-public link withheld", func(t *testing.T) {
		policy := &Policy{
			MessageTemplate: "here: {link}",
			LinkPayload:     "file:///srv/assets/catalog.pdf",
		}
		got := ComposeMessage(policy, comment)
		if strings.Contains(got, "file://") {
			t.Errorf("ComposeMessage() = %q, leaked non-public link", got)
		}
		if !strings.Contains(got, withheldLinkNotice) {
			t.Errorf("ComposeMessage() = %q, missing withheld-link notice", got)
		}
	})

	t.Run("long caption truncated", func(t *testing.T) {
		long := strings.Repeat("a", 80)
		policy := &Policy{MessageTemplate: "{post}"}
		got := ComposeMessage(policy, Comment{AuthorName: "bob", PostCaption: long})
		want := strings.Repeat("a", 50) + "..."
		if got != want {
			t.Errorf("ComposeMessage() caption = %q, want %q", got, want)
		}
	})

	t.Run("multibyte caption truncated by runes", func(t *testing.T) {
		long := strings.Repeat("é", 60)
		policy := &Policy{MessageTemplate: "{post}"}
		got := ComposeMessage(policy, Comment{AuthorName: "bob", PostCaption: long})
		want := strings.Repeat("é", 50) + "..."
		if got != want {
			t.Errorf("ComposeMessage() caption = %q, want %q", got, want)
		}
	})
}

func TestComposeFallbackReply(t *testing.T) {
	t.Run("carries the undeliverable body", func(t *testing.T) {
		body := "Hi carol! Here is the link: https://example.com/x"
		got := ComposeFallbackReply(Comment{AuthorName: "carol"}, body)
		if got != "@carol "+body {
			t.Errorf("ComposeFallbackReply() = %q, want mention plus body", got)
		}
	})

	t.Run("empty body falls back to generic text", func(t *testing.T) {
		got := ComposeFallbackReply(Comment{AuthorName: "carol"}, "  ")
		if !strings.HasPrefix(got, "@carol") {
			t.Errorf("ComposeFallbackReply() = %q, expected @carol mention", got)
		}
		if !strings.Contains(got, "send us a message") {
			t.Errorf("ComposeFallbackReply() = %q, expected generic fallback text", got)
		}
	})
}

func TestComposeMentionReply(t *testing.T) {
	got := ComposeMentionReply(Comment{AuthorName: "dave"})
	if !strings.HasPrefix(got, "@dave") {
		t.Errorf("ComposeMentionReply() = %q, expected @dave mention", got)
	}
}
