// Package textmatch scores how closely a piece of text matches a set of
// exam priority topics.
package textmatch

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	exactWeight   = 2.0
	overlapWeight = 0.5
)

var folder = cases.Fold()

// Fold lower-cases s with full Unicode case folding and strips combining
// marks, so "Électricité" and "electricite" compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return folder.String(out)
}

// Tokenize folds s and splits it into runs of letters and digits.
func Tokenize(s string) []string {
	return strings.FieldsFunc(Fold(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Terms tokenizes s, drops stop words and lemmatizes what remains.
// Duplicates are kept.
func Terms(s string) []string {
	tokens := Tokenize(s)
	out := tokens[:0]
	for _, tok := range tokens {
		if IsStopWord(tok) {
			continue
		}
		out = append(out, Lemmatize(tok))
	}
	return out
}

// Score rates text against topics:
//
//	2 × (topics appearing verbatim in text, case-insensitive)
//	  + 0.5 × (text terms that are also topic terms)
//
// Text terms are counted with multiplicity. The result is never negative.
func Score(text string, topics []string) float64 {
	if len(topics) == 0 {
		return 0
	}
	folded := Fold(text)

	exact := 0
	topicTerms := make(map[string]struct{})
	for _, topic := range topics {
		ft := Fold(topic)
		if ft != "" && strings.Contains(folded, ft) {
			exact++
		}
		for _, term := range Terms(topic) {
			topicTerms[term] = struct{}{}
		}
	}

	overlap := 0
	for _, term := range Terms(text) {
		if _, ok := topicTerms[term]; ok {
			overlap++
		}
	}
	return exactWeight*float64(exact) + overlapWeight*float64(overlap)
}
