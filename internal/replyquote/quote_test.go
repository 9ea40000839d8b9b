package replyquote

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeTruncatesLongQuote(t *testing.T) {
	quoted := "Hello, is the event still happening this weekend?"
	body := Encode(quoted, "Yes!")

	require.Equal(t, `[Replying to: "Hello, is the event still happening this weeken..."] Yes!`, body)

	preview, actual, ok := Decode(body)
	require.True(t, ok)
	assert.Equal(t, "Hello, is the event still happening this weeken...", preview)
	assert.Equal(t, "Yes!", actual)
}

func TestEncodeKeepsShortQuoteWhole(t *testing.T) {
	body := Encode("See you there", "Great!")
	require.Equal(t, `[Replying to: "See you there"] Great!`, body)

	preview, actual, ok := Decode(body)
	require.True(t, ok)
	assert.Equal(t, "See you there", preview)
	assert.Equal(t, "Great!", actual)
}

func TestDecodeIsTotal(t *testing.T) {
	inputs := []string{
		"",
		"plain message",
		"[Replying to: unterminated",
		`stray "] brackets ] everywhere [`,
		`[Replying to: "no trailing space"]`,
		"multi\nline\nbody",
	}
	for _, input := range inputs {
		preview, actual, ok := Decode(input)
		assert.False(t, ok, "input %q", input)
		assert.Empty(t, preview, "input %q", input)
		assert.Equal(t, input, actual, "input %q", input)
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		quote string
		body  string
	}{
		{"short quote", "reply text"},
		{"", "reply to empty quote"},
		{"a quote", "body with \"] inside the reply"},
		{"line one\nline two", "multi-line reply\nsecond line"},
	}
	for _, tc := range cases {
		preview, actual, ok := Decode(Encode(tc.quote, tc.body))
		require.True(t, ok, "quote %q", tc.quote)
		assert.Equal(t, tc.quote, preview)
		assert.Equal(t, tc.body, actual)
	}
}

func TestDecodeAcceptsFalsePositive(t *testing.T) {
	// A body that merely resembles the convention decodes as a quotation.
	// Accepted imprecision: nothing distinguishes it from a real one.
	preview, actual, ok := Decode(`[Replying to: "coincidence"] not actually a reply`)
	require.True(t, ok)
	assert.Equal(t, "coincidence", preview)
	assert.Equal(t, "not actually a reply", actual)
}
