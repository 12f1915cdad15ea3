package segment

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreview_SplitsOnSeparator(t *testing.T) {
	text := "Pump P-101 start\n####\n  \n####Valve V-7 check####"

	segments, err := Preview(text, DefaultRules())
	require.NoError(t, err)
	assert.Equal(t, []string{"Pump P-101 start", "Valve V-7 check"}, segments)
}

func TestPreview_LongPiecesAreSplit(t *testing.T) {
	words := make([]string, 300)
	for i := range words {
		words[i] = "터빈"
	}
	text := strings.Join(words, " ")

	rules := DefaultRules()
	rules.MaxTokens = 100

	segments, err := Preview(text, rules)
	require.NoError(t, err)
	require.Greater(t, len(segments), 1)
	for _, segment := range segments {
		assert.LessOrEqual(t, utf8.RuneCountInString(segment), 100)
	}
}

func TestPreview_InvalidRules(t *testing.T) {
	_, err := Preview("x", Rules{})
	assert.Error(t, err)

	_, err = Preview("x", Rules{MaxTokens: 10, Overlap: 10})
	assert.Error(t, err)
}

func TestPreview_DefaultSeparator(t *testing.T) {
	segments, err := Preview("a####b", Rules{MaxTokens: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, segments)
}

func TestClean(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		rules Rules
		want  string
	}{
		{
			name:  "collapse spaces",
			text:  "boiler   feed\t\tpump",
			rules: Rules{RemoveExtraSpaces: true},
			want:  "boiler feed pump",
		},
		{
			name:  "collapse blank lines",
			text:  "a\n\n\n\nb",
			rules: Rules{RemoveExtraSpaces: true},
			want:  "a\nb",
		},
		{
			name:  "strip urls and emails",
			text:  "see https://example.com/manual.pdf or mail ops@plant.example.com now",
			rules: Rules{RemoveURLsEmails: true},
			want:  "see  or mail  now",
		},
		{
			name:  "disabled rules keep text",
			text:  "a   b https://x.y",
			rules: Rules{},
			want:  "a   b https://x.y",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.text, tt.rules))
		})
	}
}
