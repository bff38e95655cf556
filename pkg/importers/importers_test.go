package importers

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFilename(t *testing.T) {
	date := time.Date(2021, 1, 5, 13, 4, 5, 0, time.UTC)

	assert.Equal(t, "caviar_01052021_130405_abc123", Filename("caviar", date, "abc123"))

	// Same vendor and timestamp, distinct message ids.
	seen := make(map[string]bool)
	for _, id := range []string{"a", "b", "c", "17a2b"} {
		name := Filename("doordash", date, id)
		assert.False(t, seen[name], "duplicate filename %s", name)
		seen[name] = true
	}
}

func TestCollapseSpaces(t *testing.T) {
	assert.Equal(t, "Your order from X", CollapseSpaces("Your   order from    X"))
	assert.Equal(t, "line\n two", CollapseSpaces("line\n   two"))
}

func TestCleanAmount(t *testing.T) {
	tests := map[string]string{
		"12.34":       "12.34",
		" $1,234.50 ": "1234.50",
		"$7":          "7",
		"":            "",
	}
	for in, want := range tests {
		assert.Equal(t, want, CleanAmount(in), "input %q", in)
	}
}

func TestSubmatchAndOrUnknown(t *testing.T) {
	re := regexp.MustCompile(`from (\w+)`)

	got, ok := Submatch(re, "order from Cafe")
	assert.True(t, ok)
	assert.Equal(t, "Cafe", got)

	_, ok = Submatch(re, "nothing here")
	assert.False(t, ok)

	assert.Equal(t, Unknown, OrUnknown("   "))
	assert.Equal(t, "Main St", OrUnknown(" Main St "))
}
