package textmatch_test

import (
	"reflect"
	"testing"

	"github.com/p-n-ai/rapidrevise/internal/textmatch"
)

func TestFold(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Thermodynamics", "thermodynamics"},
		{"Électricité", "electricite"},
		{"STRASSE", "strasse"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := textmatch.Fold(tt.in); got != tt.want {
			t.Errorf("Fold(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTokenize(t *testing.T) {
	got := textmatch.Tokenize("Newton's 2nd Law: F=ma!")
	want := []string{"newton", "s", "2nd", "law", "f", "ma"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokenize() = %v, want %v", got, want)
	}
}

func TestLemmatize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"laws", "law"},
		{"equations", "equation"},
		{"classes", "class"},
		{"boxes", "box"},
		{"branches", "branch"},
		{"properties", "property"},
		{"cases", "case"},
		{"analysis", "analysis"},
		{"physics", "physics"},
		{"nuclei", "nucleus"},
		{"children", "child"},
		{"gas", "gas"},
		{"process", "process"},
		{"radius", "radius"},
	}
	for _, tt := range tests {
		if got := textmatch.Lemmatize(tt.in); got != tt.want {
			t.Errorf("Lemmatize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTerms_DropsStopWords(t *testing.T) {
	got := textmatch.Terms("The Laws of Motion and the forces")
	want := []string{"law", "motion", "force"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Terms() = %v, want %v", got, want)
	}
}

func TestScore(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		topics []string
		want   float64
	}{
		{
			name:   "no topics",
			text:   "anything at all",
			topics: nil,
			want:   0,
		},
		{
			name:   "no match",
			text:   "Cooking pasta at home",
			topics: []string{"Thermodynamics"},
			want:   0,
		},
		{
			name:   "exact phrase plus overlap",
			text:   "Laws of Motion explained",
			topics: []string{"laws of motion"},
			// exact: 1 → 2.0; terms law, motion, explained → law+motion overlap → 1.0
			want: 3.0,
		},
		{
			name:   "case insensitive exact match",
			text:   "ORGANIC CHEMISTRY crash course",
			topics: []string{"Organic Chemistry"},
			want:   2 + 0.5*2,
		},
		{
			name:   "overlap counted with multiplicity",
			text:   "force, force and more forces",
			topics: []string{"Force"},
			want:   2 + 0.5*3,
		},
		{
			name:   "lemmatized overlap without exact match",
			text:   "Solving quadratic equations",
			topics: []string{"Quadratic Equation"},
			want:   2 + 0.5*2,
		},
		{
			name:   "plural text matches singular topic only via lemma",
			text:   "Vectors and scalars",
			topics: []string{"vector algebra"},
			want:   0.5,
		},
		{
			name:   "multiple topics",
			text:   "Optics and Waves revision",
			topics: []string{"optics", "waves", "electrostatics"},
			want:   2*2 + 0.5*2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := textmatch.Score(tt.text, tt.topics)
			if got != tt.want {
				t.Errorf("Score(%q, %v) = %v, want %v", tt.text, tt.topics, got, tt.want)
			}
			if got < 0 {
				t.Errorf("Score() = %v, must not be negative", got)
			}
		})
	}
}

func TestScore_Deterministic(t *testing.T) {
	topics := []string{"Electromagnetic Induction", "Faraday's law"}
	text := "Faraday's law of electromagnetic induction with examples"
	first := textmatch.Score(text, topics)
	for i := 0; i < 20; i++ {
		if got := textmatch.Score(text, topics); got != first {
			t.Fatalf("Score() changed between calls: %v then %v", first, got)
		}
	}
}
