package service

import (
	"strings"
	"unicode"

	"github.com/texttheater/golang-levenshtein/levenshtein"
)

var unitCosts = levenshtein.Options{
	InsCost: 1,
	DelCost: 1,
	SubCost: 1,
	Matches: levenshtein.IdenticalRunes,
}

// MaxWERWords bounds either side of the comparison; the distance table
// grows with the product of both word counts.
const MaxWERWords = 1000

// WordErrorRate returns (substitutions + insertions + deletions) / reference
// words between a reference passage and what was recognised. Case and
// punctuation are ignored. ok is false when the reference has no words or
// either side has more than MaxWERWords words.
func WordErrorRate(reference, recognized string) (wer float64, ok bool) {
	ref := words(reference)
	if len(ref) == 0 || len(ref) > MaxWERWords {
		return 0, false
	}
	hyp := words(recognized)
	if len(hyp) > MaxWERWords {
		return 0, false
	}

	// Each distinct word becomes one rune so the rune-based distance
	// works at word level.
	vocab := make(map[string]rune, len(ref)+len(hyp))
	encode := func(ws []string) []rune {
		out := make([]rune, len(ws))
		for i, w := range ws {
			r, seen := vocab[w]
			if !seen {
				r = rune(0xE000 + len(vocab))
				vocab[w] = r
			}
			out[i] = r
		}
		return out
	}

	distance := levenshtein.DistanceForStrings(encode(ref), encode(hyp), unitCosts)
	return float64(distance) / float64(len(ref)), true
}

func words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}
