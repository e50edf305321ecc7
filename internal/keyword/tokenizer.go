package keyword

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/clipperhouse/uax29/v2/words"
	"golang.org/x/text/unicode/norm"
)

// Tokenize turns free text into index terms.
//
// The text is NFKC-normalized and lowercased, split on UAX#29 word
// boundaries, and every segment is stripped down to its letters and digits.
// Stopwords and single-rune tokens are dropped. Order and duplicates are
// preserved, so the output doubles as a term-frequency source.
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}

	seg := words.FromString(normalize(text))
	var tokens []string
	for seg.Next() {
		tok := alnum(seg.Value())
		if utf8.RuneCountInString(tok) <= 1 {
			continue
		}
		if _, stop := stopwords[tok]; stop {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

func normalize(s string) string {
	return strings.ToLower(norm.NFKC.String(s))
}

// alnum drops every rune that is neither a letter nor a digit.
func alnum(s string) string {
	keep := true
	for _, r := range s {
		if !isTermRune(r) {
			keep = false
			break
		}
	}
	if keep {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if isTermRune(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isTermRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// distinct returns tokens with duplicates removed, first occurrence wins.
func distinct(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
