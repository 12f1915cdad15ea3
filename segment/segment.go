package segment

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"
)

const (
	// DefaultSeparator is the literal segment separator of the custom rule.
	DefaultSeparator = "####"

	// DefaultMaxTokens is the segment ceiling of the custom rule.
	DefaultMaxTokens = 1000
)

var (
	extraNewlines = regexp.MustCompile(`\n{3,}`)
	extraSpaces   = regexp.MustCompile(`[\t\f\r \x{00a0}\x{1680}\x{180e}\x{2000}-\x{200a}\x{202f}\x{205f}\x{3000}]{2,}`)
	urls          = regexp.MustCompile(`https?://[^\s]+`)
	emails        = regexp.MustCompile(`[\w.+-]+@[\w-]+\.[\w.-]+`)
)

// Rules mirrors the dataset's custom process rule.
type Rules struct {
	Separator         string
	MaxTokens         int
	Overlap           int
	RemoveExtraSpaces bool
	RemoveURLsEmails  bool
}

// DefaultRules returns the rule used for pipeline registrations.
func DefaultRules() Rules {
	return Rules{
		Separator:         DefaultSeparator,
		MaxTokens:         DefaultMaxTokens,
		RemoveExtraSpaces: true,
		RemoveURLsEmails:  true,
	}
}

// Preview splits text the way the dataset would. Pieces between separators
// that exceed MaxTokens are split further with a recursive character
// splitter. Empty pieces are dropped.
func Preview(text string, rules Rules) ([]string, error) {
	if rules.MaxTokens <= 0 {
		return nil, fmt.Errorf("max tokens must be positive, got %d", rules.MaxTokens)
	}
	if rules.Overlap < 0 || rules.Overlap >= rules.MaxTokens {
		return nil, fmt.Errorf("overlap %d out of range for max tokens %d", rules.Overlap, rules.MaxTokens)
	}
	if rules.Separator == "" {
		rules.Separator = DefaultSeparator
	}

	text = Clean(text, rules)

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(rules.MaxTokens),
		textsplitter.WithChunkOverlap(rules.Overlap),
		textsplitter.WithLenFunc(utf8.RuneCountInString),
	)

	var segments []string
	for _, piece := range strings.Split(text, rules.Separator) {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		if utf8.RuneCountInString(piece) <= rules.MaxTokens {
			segments = append(segments, piece)
			continue
		}
		parts, err := splitter.SplitText(piece)
		if err != nil {
			return nil, fmt.Errorf("splitting segment: %w", err)
		}
		for _, part := range parts {
			if part = strings.TrimSpace(part); part != "" {
				segments = append(segments, part)
			}
		}
	}
	return segments, nil
}

// Clean applies the pre-processing steps enabled in rules.
func Clean(text string, rules Rules) string {
	if rules.RemoveURLsEmails {
		text = urls.ReplaceAllString(text, "")
		text = emails.ReplaceAllString(text, "")
	}
	if rules.RemoveExtraSpaces {
		text = extraNewlines.ReplaceAllString(text, "\n")
		text = extraSpaces.ReplaceAllString(text, " ")
	}
	return text
}
