// Package textnorm folds Vietnamese free text into the accent-free form used
// for every comparison in the engine.
package textnorm

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pmezard/go-difflib/difflib"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MinTokenRunes is the shortest token Tokenize keeps.
const MinTokenRunes = 2

var separatorReplacer = strings.NewReplacer("_", " ", "/", " ")

// Normalize lowercases s, strips diacritics, maps "_" and "/" to spaces and
// collapses whitespace. The result is lossy: "lợn" and "lớn" both become "lon",
// while "đ" survives because it has no decomposition.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ToLower(strings.TrimSpace(s))

	// A fresh transformer per call: transform.Chain is stateful.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}

	stripped = separatorReplacer.Replace(stripped)
	return strings.Join(strings.Fields(stripped), " ")
}

// Tokenize splits normalized text on runs of non-word runes and keeps tokens of
// at least MinTokenRunes runes, in order of appearance.
func Tokenize(normalized string) []string {
	if normalized == "" {
		return nil
	}
	parts := strings.FieldsFunc(normalized, func(r rune) bool { return !isWordRune(r) })
	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		if utf8.RuneCountInString(p) >= MinTokenRunes {
			tokens = append(tokens, p)
		}
	}
	return tokens
}

// HasTerm reports whether the normalized form of term occurs in text with no
// word rune directly before or after it, so "ga" does not hit inside "gan".
// text must already be normalized.
func HasTerm(text, term string) bool {
	return TermIndex(text, term) >= 0
}

// TermIndex returns the byte offset of the first boundary-safe occurrence of
// the normalized term in text, or -1.
func TermIndex(text, term string) int {
	needle := Normalize(term)
	if needle == "" || text == "" {
		return -1
	}
	return boundedIndex(text, needle)
}

// FirstMatch returns the first candidate whose normalized form occurs in text
// as a whole term.
func FirstMatch(text string, candidates []string) (string, bool) {
	for _, c := range candidates {
		if HasTerm(text, c) {
			return c, true
		}
	}
	return "", false
}

// Ratio returns the Ratcliff/Obershelp similarity of a and b over runes, in [0, 1].
func Ratio(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	return difflib.NewMatcher(splitRunes(a), splitRunes(b)).Ratio()
}

// IsWordRune matches the tokenizer's notion of a word character.
func IsWordRune(r rune) bool {
	return isWordRune(r)
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}

func boundedIndex(text, needle string) int {
	offset := 0
	for offset <= len(text)-len(needle) {
		i := strings.Index(text[offset:], needle)
		if i < 0 {
			return -1
		}
		start := offset + i
		end := start + len(needle)
		if boundaryBefore(text, start) && boundaryAfter(text, end) {
			return start
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		offset = start + size
	}
	return -1
}

func boundaryBefore(text string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:i])
	return !isWordRune(r)
}

func boundaryAfter(text string, i int) bool {
	if i >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[i:])
	return !isWordRune(r)
}

func splitRunes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
