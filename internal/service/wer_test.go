package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWordErrorRate(t *testing.T) {
	tests := []struct {
		name       string
		reference  string
		recognized string
		want       float64
		wantOK     bool
	}{
		{"identical ignoring case and punctuation", "The cat sat on the mat.", "the cat sat on the mat", 0, true},
		{"one substitution", "the quick brown fox", "the quick brown box", 0.25, true},
		{"one deletion", "the quick brown fox", "the quick fox", 0.25, true},
		{"one insertion", "the quick brown fox", "the very quick brown fox", 0.25, true},
		{"nothing recognised", "one two", "", 1, true},
		{"empty reference", "", "hello", 0, false},
		{"reference at the cap", strings.Repeat("word ", MaxWERWords), strings.Repeat("word ", MaxWERWords), 0, true},
		{"reference over the cap", strings.Repeat("word ", MaxWERWords+1), "word", 0, false},
		{"recognition over the cap", "word", strings.Repeat("word ", MaxWERWords+1), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wer, ok := WordErrorRate(tt.reference, tt.recognized)
			assert.Equal(t, tt.wantOK, ok)
			assert.InDelta(t, tt.want, wer, 1e-9)
		})
	}
}
