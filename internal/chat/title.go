package chat

import (
	"regexp"
	"strings"
	"time"
)

const (
	// DefaultTitle marks a session whose title was never derived or set.
	DefaultTitle = "New Chat"

	titleMaxLen = 50
	ellipsis    = "..."
)

var (
	whitespaceRun    = regexp.MustCompile(`\s+`)
	sentenceBoundary = regexp.MustCompile(`[.!?]\s+`)
)

// GenerateTitle derives a session title from a user message. Whitespace runs
// collapse to single spaces; short content is used verbatim; longer content
// falls back to the first sentence, then to a word-boundary truncation when
// the boundary keeps at least 70% of the budget, then to a hard cut.
func GenerateTitle(content string) string {
	content = strings.TrimSpace(whitespaceRun.ReplaceAllString(content, " "))

	runes := []rune(content)
	if len(runes) <= titleMaxLen {
		return content
	}

	if sentences := sentenceBoundary.Split(content, -1); len(sentences) > 0 {
		if first := []rune(sentences[0]); len(first) <= titleMaxLen {
			return sentences[0]
		}
	}

	truncated := string(runes[:titleMaxLen])
	if lastSpace := strings.LastIndex(truncated, " "); float64(lastSpace) > float64(titleMaxLen)*0.7 {
		return truncated[:lastSpace] + ellipsis
	}

	return truncated + ellipsis
}

// Bucket label order for session lists. Anything older than 30 days groups
// under its calendar month.
var fixedBuckets = []string{"Today", "Yesterday", "Last 7 Days", "Last 30 Days"}

// bucketLabel places a timestamp into a recency group. Boundaries are computed
// from the start of the current calendar day, not a sliding 24h window.
func bucketLabel(at, now time.Time) string {
	at, now = at.UTC(), now.UTC()
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	switch {
	case !at.Before(todayStart):
		return "Today"
	case !at.Before(todayStart.AddDate(0, 0, -1)):
		return "Yesterday"
	case !at.Before(todayStart.AddDate(0, 0, -7)):
		return "Last 7 Days"
	case !at.Before(todayStart.AddDate(0, 0, -30)):
		return "Last 30 Days"
	default:
		return at.Format("January 2006")
	}
}
