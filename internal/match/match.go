// Package match implements the keyword matching used by reply and delivery
// rules. Text is normalized before comparison:
//
//   - Unicode case folding (cases.Fold), so "VIP" matches "vip"
//   - width folding (width.Fold), so full-width "ＶＩＰ１" matches "VIP1"
//   - whitespace runs collapse to a single space
//
// Everything here is deterministic and safe for concurrent use.
package match

import (
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/width"
)

// Normalize folds case and width and collapses whitespace.
func Normalize(s string) string {
	folded := cases.Fold().String(width.Fold.String(s))
	return strings.TrimSpace(normalizeWhitespace(folded))
}

// Contains reports whether kw occurs in text after normalization. An empty
// keyword never matches.
func Contains(text, kw string) bool {
	k := Normalize(kw)
	if k == "" {
		return false
	}
	return strings.Contains(Normalize(text), k)
}

// Related reports whether either string contains the other after
// normalization. Empty strings never match.
func Related(text, kw string) bool {
	t, k := Normalize(text), Normalize(kw)
	if t == "" || k == "" {
		return false
	}
	return strings.Contains(t, k) || strings.Contains(k, t)
}

// First returns the first item, in order, whose keyword occurs in text.
func First[T any](text string, items []T, keyword func(T) string) (T, bool) {
	t := Normalize(text)
	for _, it := range items {
		k := Normalize(keyword(it))
		if k != "" && strings.Contains(t, k) {
			return it, true
		}
	}
	var zero T
	return zero, false
}

// Ranked is an item with a keyword and a stable tiebreak id.
type Ranked interface {
	RankKeyword() string
	RankID() uint
}

// Rank orders items by keyword length (in runes) descending, then id
// ascending. The slice is sorted in place.
func Rank[T Ranked](items []T) {
	sort.SliceStable(items, func(a, b int) bool {
		la := utf8.RuneCountInString(items[a].RankKeyword())
		lb := utf8.RuneCountInString(items[b].RankKeyword())
		if la != lb {
			return la > lb
		}
		return items[a].RankID() < items[b].RankID()
	})
}

// Best ranks items and returns the first whose keyword is Related to text.
func Best[T Ranked](text string, items []T) (T, bool) {
	Rank(items)
	for _, it := range items {
		if Related(text, it.RankKeyword()) {
			return it, true
		}
	}
	var zero T
	return zero, false
}

func normalizeWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\r' || r == '\n' || r == '　' {
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
			continue
		}
		prevSpace = false
		b.WriteRune(r)
	}
	return b.String()
}
