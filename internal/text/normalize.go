// Package text cleans up extracted document text before it is spoken.
//
// PDF text layers and OCR output carry layout artifacts (hard line breaks,
// words hyphenated across lines, form feeds, smart quotes) that the speech
// engine would otherwise read as pauses or stray symbols.
package text

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	lineBreakHyphenPattern = `(\p{L})-[ \t]*\r?\n[ \t]*(\p{L})`
	whitespacePattern      = `\s+`
)

const (
	emDash       = "—"
	enDash       = "–"
	figureDash   = "‒"
	ellipsis     = "..."
	ellipsisChar = "…"
	softHyphen   = "\u00ad"
)

// Normalizer rewrites text into a form suited to sentence-level synthesis.
type Normalizer struct {
	lineBreakHyphen *regexp.Regexp
	whitespace      *regexp.Regexp
	punctuation     *strings.Replacer
}

// NewNormalizer creates a Normalizer with precompiled patterns.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		lineBreakHyphen: regexp.MustCompile(lineBreakHyphenPattern),
		whitespace:      regexp.MustCompile(whitespacePattern),
		punctuation: strings.NewReplacer(
			emDash, " - ",
			enDash, "-",
			figureDash, "-",
			"“", `"`, "”", `"`,
			"‘", "'", "’", "'",
			softHyphen, "",
		),
	}
}

// Normalize joins hyphenated line breaks, flattens whitespace, normalizes
// quotes and dashes, collapses repeated punctuation and makes sure the text
// ends a sentence. Empty input stays empty.
func (n *Normalizer) Normalize(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	normalized := n.lineBreakHyphen.ReplaceAllString(text, "$1$2")
	normalized = n.punctuation.Replace(normalized)
	normalized = n.whitespace.ReplaceAllString(normalized, " ")
	normalized = collapseRepeatedPunctuation(normalized)
	normalized = strings.ReplaceAll(normalized, ellipsisChar, ellipsis)

	return ensureSentenceEnding(strings.TrimSpace(normalized))
}

// collapseRepeatedPunctuation turns runs of the same punctuation rune into one.
func collapseRepeatedPunctuation(text string) string {
	var (
		builder strings.Builder
		last    rune
	)

	builder.Grow(len(text))

	for _, char := range text {
		if char == last && unicode.IsPunct(char) {
			continue
		}

		builder.WriteRune(char)

		last = char
	}

	return builder.String()
}

func ensureSentenceEnding(text string) string {
	if text == "" {
		return ""
	}

	lastChar, _ := utf8.DecodeLastRuneInString(text)

	switch lastChar {
	case '.', '!', '?', '"', '\'', '।', '॥':
		return text
	default:
		return text + "."
	}
}
