package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// FallbackScore and FallbackFeedback make up the assessment returned when the
// model output cannot be used.
const (
	FallbackScore    = 5
	FallbackFeedback = "Error processing analysis results. Please try again."
)

// Extraction failures. Extract wraps one of these.
var (
	ErrNoJSONFound     = errors.New("no JSON found in response")
	ErrMalformedJSON   = errors.New("malformed JSON in response")
	ErrMissingCriteria = errors.New("response is missing required criteria")
)

// ParsedAssessment holds the scores and feedback read from a model response.
type ParsedAssessment struct {
	Scores   map[Criterion]float64
	Feedback map[string]string
}

type rawAssessment struct {
	Scores   map[string]interface{} `json:"scores"`
	Feedback map[string]interface{} `json:"feedback"`
}

// Extract finds the JSON object embedded in raw and checks that it scores and
// comments on every criterion. Candidates are tried in order: each top-level
// balanced {...} block, then the span from the first '{' to the last '}'.
// The first candidate that parses and validates wins.
func Extract(raw string, criteria []Criterion) (*ParsedAssessment, error) {
	candidates := jsonCandidates(raw)
	if len(candidates) == 0 {
		return nil, ErrNoJSONFound
	}

	var firstErr error
	parsedAny := false
	for _, candidate := range candidates {
		var doc rawAssessment
		if err := json.Unmarshal([]byte(candidate), &doc); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("%w: %v", ErrMalformedJSON, err)
			}
			continue
		}

		assessment, err := validate(doc, criteria)
		if err != nil {
			if !parsedAny {
				firstErr = err
				parsedAny = true
			}
			continue
		}
		return assessment, nil
	}

	return nil, firstErr
}

func validate(doc rawAssessment, criteria []Criterion) (*ParsedAssessment, error) {
	assessment := &ParsedAssessment{
		Scores:   make(map[Criterion]float64, len(criteria)),
		Feedback: make(map[string]string, len(criteria)+1),
	}

	var missing []string
	for _, c := range criteria {
		score, ok := numeric(doc.Scores[string(c)])
		if !ok {
			missing = append(missing, "scores."+string(c))
		} else {
			assessment.Scores[c] = score
		}

		text, ok := doc.Feedback[string(c)].(string)
		if !ok {
			missing = append(missing, "feedback."+string(c))
		} else {
			assessment.Feedback[string(c)] = text
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingCriteria, strings.Join(missing, ", "))
	}

	if overall, ok := doc.Feedback[overallKey].(string); ok {
		assessment.Feedback[overallKey] = overall
	}

	return assessment, nil
}

// numeric accepts JSON numbers and numeric strings.
func numeric(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// jsonCandidates returns the top-level balanced objects in text followed by
// the greedy first-'{'-to-last-'}' span when it differs from all of them.
// A '{' that is never closed does not hide the objects after it: scanning
// resumes just past it.
func jsonCandidates(text string) []string {
	var candidates []string

	for from := 0; from < len(text); {
		found, unclosed := balancedObjects(text, from)
		candidates = append(candidates, found...)
		if unclosed < 0 {
			break
		}
		from = unclosed + 1
	}

	first := strings.Index(text, "{")
	last := strings.LastIndex(text, "}")
	if first >= 0 && last > first {
		greedy := text[first : last+1]
		seen := false
		for _, c := range candidates {
			if c == greedy {
				seen = true
				break
			}
		}
		if !seen {
			candidates = append(candidates, greedy)
		}
	}

	return candidates
}

// balancedObjects scans text from offset from and returns every top-level
// balanced {...} block. unclosed is the offset of an object still open at
// the end of text, or -1.
func balancedObjects(text string, from int) (found []string, unclosed int) {
	depth := 0
	start := -1
	inString := false
	escaped := false

	for i := from; i < len(text); i++ {
		ch := text[i]

		if depth > 0 && inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				found = append(found, text[start:i+1])
			}
		}
	}

	if depth > 0 {
		return found, start
	}
	return found, -1
}

// FallbackAssessment returns the default assessment for criteria: every
// score at FallbackScore and no feedback.
func FallbackAssessment(criteria []Criterion) *ParsedAssessment {
	scores := make(map[Criterion]float64, len(criteria))
	for _, c := range criteria {
		scores[c] = FallbackScore
	}
	return &ParsedAssessment{
		Scores:   scores,
		Feedback: map[string]string{},
	}
}

// CombinedFeedback joins the feedback into one display string: an overall
// section followed by one labelled section per criterion, in order.
func (p *ParsedAssessment) CombinedFeedback(criteria []Criterion) string {
	overall, ok := p.Feedback[overallKey]
	if !ok || strings.TrimSpace(overall) == "" {
		overall = "No overall assessment provided."
	}

	sections := make([]string, 0, len(criteria)+1)
	sections = append(sections, "Overall Assessment:\n"+overall)
	for _, c := range criteria {
		sections = append(sections, fmt.Sprintf("%s: %s", c.Label(), p.Feedback[string(c)]))
	}
	return strings.Join(sections, "\n\n")
}
