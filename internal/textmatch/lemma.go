package textmatch

import "strings"

// Irregular plurals that suffix rules get wrong.
var nounExceptions = map[string]string{
	"children":    "child",
	"men":         "man",
	"women":       "woman",
	"feet":        "foot",
	"teeth":       "tooth",
	"geese":       "goose",
	"mice":        "mouse",
	"people":      "person",
	"data":        "datum",
	"criteria":    "criterion",
	"phenomena":   "phenomenon",
	"analyses":    "analysis",
	"crises":      "crisis",
	"hypotheses":  "hypothesis",
	"theses":      "thesis",
	"indices":     "index",
	"matrices":    "matrix",
	"vertices":    "vertex",
	"nuclei":      "nucleus",
	"radii":       "radius",
	"stimuli":     "stimulus",
	"fungi":       "fungus",
	"bacteria":    "bacterium",
	"media":       "medium",
	"formulae":    "formula",
	"species":     "species",
	"series":      "series",
	"physics":     "physics",
	"mathematics": "mathematics",
	"economics":   "economics",
	"statistics":  "statistics",
}

// Suffix rewrites tried in order; the first that applies wins.
var nounSuffixes = []struct{ from, to string }{
	{"sses", "ss"},
	{"xes", "x"},
	{"zzes", "zz"},
	{"ches", "ch"},
	{"shes", "sh"},
	{"ies", "y"},
	{"s", ""},
}

// Lemmatize reduces a folded token to its singular noun form. It is a
// dictionary-free approximation: irregular forms come from a fixed table and
// regular plurals are handled by suffix rules.
func Lemmatize(tok string) string {
	if lemma, ok := nounExceptions[tok]; ok {
		return lemma
	}
	if len(tok) <= 3 {
		return tok
	}
	for _, end := range []string{"ss", "us", "is"} {
		if strings.HasSuffix(tok, end) {
			return tok
		}
	}
	for _, r := range nounSuffixes {
		if strings.HasSuffix(tok, r.from) {
			return strings.TrimSuffix(tok, r.from) + r.to
		}
	}
	return tok
}
