package service

import (
	"fmt"
	"strings"
)

// BuildPrompt renders the analysis instruction for mode. content is the
// transcript (audio modes) or the learner's text (writing); reference is the
// passage the learner read aloud and is only used in reading mode. User text
// is embedded verbatim inside quotes.
func BuildPrompt(mode Mode, content, reference string) (string, error) {
	if !mode.Valid() {
		return "", fmt.Errorf("unknown assessment mode %q", mode)
	}

	var b strings.Builder
	writeIntro(&b, mode, content, reference)
	writeSchema(&b, mode.Criteria())

	return b.String(), nil
}

func writeIntro(b *strings.Builder, mode Mode, content, reference string) {
	switch mode {
	case ModeTranscribe:
		b.WriteString("Please analyze the following speech transcript and provide a detailed analysis.\n\n")
		writeQuoted(b, "Transcript", content)
	case ModeReading:
		b.WriteString("Analyze this reading performance by comparing the transcript to the original paragraph.\n\n")
		writeQuoted(b, "Original Paragraph", reference)
		writeQuoted(b, "Student's Reading Transcript", content)
	case ModeWriting:
		b.WriteString("Analyze this writing performance of the user by considering grammar and other writing rules.\n\n")
		writeQuoted(b, "Original Paragraph", content)
	}
}

func writeQuoted(b *strings.Builder, title, text string) {
	b.WriteString(title)
	b.WriteString(":\n\"")
	b.WriteString(text)
	b.WriteString("\"\n\n")
}

func writeSchema(b *strings.Builder, criteria []Criterion) {
	b.WriteString("Provide a detailed analysis in the following JSON format:\n")
	b.WriteString("{\n  \"scores\": {\n")
	for i, c := range criteria {
		fmt.Fprintf(b, "    %q: <score 1-10>", string(c))
		if i < len(criteria)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString("  },\n  \"feedback\": {\n")
	for _, c := range criteria {
		fmt.Fprintf(b, "    %q: \"<%s>\",\n", string(c), criterionInfos[c].hint)
	}
	fmt.Fprintf(b, "    %q: \"<general improvement suggestions>\"\n", overallKey)
	b.WriteString("  }\n}\n\n")

	b.WriteString("Consider these aspects in your scoring:\n")
	for _, c := range criteria {
		fmt.Fprintf(b, "- %s: %s\n", c.Label(), criterionInfos[c].guidance)
	}
	b.WriteString("\nScores must be integers from 1 to 10. Provide detailed, constructive feedback for each aspect, ")
	b.WriteString("strictly follow the above format and do not add any other fields or information.\n")
}
