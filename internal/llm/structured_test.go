package llm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Type  *string  `json:"type"`
	Min   *float64 `json:"min"`
	Names []string `json:"names"`
}

func TestExtractJSON_FencedWithProse(t *testing.T) {
	raw := "Sure! Here is the filter:\n```json\n{\"type\": \"Tempo\", \"min\": .5, \"names\": [\"a {b}\"]}\n```\nLet me know."
	got, err := ExtractJSON[sample](raw, nil)
	require.NoError(t, err)
	require.NotNil(t, got.Type)
	assert.Equal(t, "Tempo", *got.Type)
	assert.Equal(t, 0.5, *got.Min)
	assert.Equal(t, []string{"a {b}"}, got.Names)
}

func TestExtractJSON_Comments(t *testing.T) {
	raw := `{
  "type": null, // model chatter
  /* block */ "min": -.25,
  "names": ["http://x"]
}`
	got, err := ExtractJSON[sample](raw, nil)
	require.NoError(t, err)
	assert.Nil(t, got.Type)
	assert.Equal(t, -0.25, *got.Min)
	assert.Equal(t, []string{"http://x"}, got.Names)
}

func TestExtractJSON_Failures(t *testing.T) {
	_, err := ExtractJSON[sample]("no json here", nil)
	assert.ErrorIs(t, err, ErrInvalidOutput)

	_, err = ExtractJSON[sample](`{"type": }`, nil)
	assert.ErrorIs(t, err, ErrInvalidOutput)

	_, err = ExtractJSON[sample](`{"type": "x"`, nil)
	assert.ErrorIs(t, err, ErrInvalidOutput)

	_, err = ExtractJSON[sample](`{"type": "x"}`, func(s sample) error { return errors.New("nope") })
	assert.ErrorIs(t, err, ErrInvalidOutput)
}
