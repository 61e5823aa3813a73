package engine

import (
	"strings"

	"github.com/autodms/funnel/internal/models"
)

// TriggerMatches reports whether a comment's text satisfies the
// policy's trigger. ANY matches every comment. KEYWORD matches when
// the keyword appears anywhere in the text, case-insensitively; an
// empty keyword never matches.
func TriggerMatches(policy *Policy, text string) bool {
	switch policy.TriggerMode {
	case models.TriggerModeAny, "":
		return true
	case models.TriggerModeKeyword:
		keyword := strings.TrimSpace(policy.TriggerKeyword)
		if keyword == "" {
			return false
		}
		return strings.Contains(strings.ToLower(text), strings.ToLower(keyword))
	default:
		return false
	}
}
