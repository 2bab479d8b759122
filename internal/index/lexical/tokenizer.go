package lexical

import (
	"strings"
	"unicode"

	prose "github.com/jdkato/prose/v2"
)

// tokenize lowercases and splits text into word tokens, dropping pure
// punctuation. Uses the prose tokenizer with tagging, segmentation and
// entity extraction disabled; falls back to whitespace splitting if the
// pipeline rejects the input.
func tokenize(text string) []string {
	doc, err := prose.NewDocument(
		text,
		prose.WithTagging(false),
		prose.WithSegmentation(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		return fallbackTokens(text)
	}

	tokens := doc.Tokens()
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		t := normalizeToken(tok.Text)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func fallbackTokens(text string) []string {
	fields := strings.Fields(text)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		t := normalizeToken(f)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func normalizeToken(s string) string {
	s = strings.ToLower(strings.TrimFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return s
		}
	}
	return ""
}
