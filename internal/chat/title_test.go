package chat

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGenerateTitleShortContentVerbatim(t *testing.T) {
	assert.Equal(t, "hello", GenerateTitle("hello"))
}

func TestGenerateTitleCollapsesWhitespace(t *testing.T) {
	assert.Equal(t, "what is a rolling window", GenerateTitle("  what \t is a\n\nrolling   window "))
}

func TestGenerateTitleShortSentenceWithPunctuationVerbatim(t *testing.T) {
	assert.Equal(t, "Can you explain quotas?", GenerateTitle("Can you explain quotas?"))
}

func TestGenerateTitleFirstSentence(t *testing.T) {
	content := "What is Go? I have been meaning to learn it for a while now and need a starting point."
	assert.Equal(t, "What is Go", GenerateTitle(content))
}

func TestGenerateTitleWordBoundary(t *testing.T) {
	content := "explain the difference between goroutines and operating system threads please"
	title := GenerateTitle(content)
	assert.True(t, strings.HasSuffix(title, "..."), "got %q", title)
	assert.LessOrEqual(t, len([]rune(title)), titleMaxLen+len(ellipsis))
	// The cut lands on a word boundary, not mid-word.
	assert.Equal(t, "explain the difference between goroutines and...", title)
}

func TestGenerateTitleLongSingleWordHardTruncates(t *testing.T) {
	word := strings.Repeat("a", 60)
	title := GenerateTitle(word)
	assert.Equal(t, strings.Repeat("a", 50)+"...", title)
}

func TestBucketLabelDayBoundaries(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		at   time.Time
		want string
	}{
		{"earlier today", now.Add(-9 * time.Hour), "Today"},
		{"25 hours ago is still yesterday", now.Add(-25 * time.Hour), "Yesterday"},
		{"start of yesterday", time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC), "Yesterday"},
		{"three days ago", now.AddDate(0, 0, -3), "Last 7 Days"},
		{"two weeks ago", now.AddDate(0, 0, -14), "Last 30 Days"},
		{"older than 30 days groups by month", time.Date(2025, 3, 2, 8, 0, 0, 0, time.UTC), "March 2025"},
		{"previous year", time.Date(2024, 12, 25, 8, 0, 0, 0, time.UTC), "December 2024"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, bucketLabel(tt.at, now))
		})
	}
}
