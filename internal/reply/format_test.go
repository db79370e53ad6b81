package reply

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormat_StripsMarkdown(t *testing.T) {
	in := "## Summary\n**Great** week with `5` runs.\n- Pace improved.\n* HR stayed *low*.\n1. Keep it up."
	got := Format(in, 0)
	assert.Equal(t, "Summary\nGreat week with 5 runs.\n• Pace improved.\n• HR stayed low.\n• Keep it up.", got)
}

func TestFormat_CollapsesBlankLines(t *testing.T) {
	assert.Equal(t, "a.\n\nb.", Format("a.\n\n\n\nb.", 0))
}

func TestTruncate_AtSentenceBoundary(t *testing.T) {
	text := "First sentence. Second sentence! Third one is long?"
	assert.Equal(t, "First sentence. Second sentence!", Truncate(text, 40))
	assert.Equal(t, text, Truncate(text, len(text)))
}

func TestTruncate_HardCutWithoutSentence(t *testing.T) {
	got := Truncate(strings.Repeat("a", 20), 10)
	assert.Equal(t, strings.Repeat("a", 9)+"…", got)
	assert.Len(t, []rune(got), 10)
}

func TestFormat_DefaultLimit(t *testing.T) {
	long := strings.Repeat("Run easy today. ", 400)
	got := Format(long, 0)
	assert.LessOrEqual(t, len([]rune(got)), DefaultMaxChars)
	assert.True(t, strings.HasSuffix(got, "today."))
}
