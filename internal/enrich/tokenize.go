package enrich

import (
	"strings"
	"unicode"
)

// script buckets for run segmentation. Japanese text has no word
// delimiters, so we approximate word boundaries by script changes: a run of
// hiragana, a run of kanji, a run of katakana, or a run of latin/digits each
// count as one token. "これは私の母です。" segments as これは|私|の|母|です.
type script int

const (
	scriptNone script = iota
	scriptHiragana
	scriptKatakana
	scriptHan
	scriptLatin
	scriptDigit
)

func scriptOf(r rune) script {
	switch {
	case unicode.In(r, unicode.Hiragana):
		return scriptHiragana
	case unicode.In(r, unicode.Katakana), r == 'ー':
		return scriptKatakana
	case unicode.In(r, unicode.Han):
		return scriptHan
	case unicode.IsLetter(r):
		return scriptLatin
	case unicode.IsDigit(r):
		return scriptDigit
	}
	return scriptNone
}

// Tokens segments text into script runs. Punctuation and whitespace break
// runs and are not emitted as tokens.
func Tokens(text string) []string {
	var tokens []string
	var run strings.Builder
	current := scriptNone

	flush := func() {
		if run.Len() > 0 {
			tokens = append(tokens, run.String())
			run.Reset()
		}
	}

	for _, r := range text {
		s := scriptOf(r)
		if s == scriptNone {
			flush()
			current = scriptNone
			continue
		}
		if s != current {
			flush()
			current = s
		}
		run.WriteRune(r)
	}
	flush()
	return tokens
}

// CountWords returns the number of script-run tokens in text.
func CountWords(text string) int {
	return len(Tokens(text))
}

// Normalize prepares text for substring pattern matching: lowercased with
// all whitespace removed. Japanese carries no meaningful spaces, and learner
// input often has stray ones.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ContainsPattern reports whether text contains pattern after normalization.
func ContainsPattern(text, pattern string) bool {
	p := Normalize(pattern)
	if p == "" {
		return false
	}
	return strings.Contains(Normalize(text), p)
}
