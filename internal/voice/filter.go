// Package voice runs oral drills: conceptual questions answered out loud and graded
// from the transcript.
package voice

import (
	"regexp"
	"strings"

	"github.com/harishm17/study-buddy-sub001/internal/models"
)

var mathPattern = regexp.MustCompile(`(?i)(\d+|=|±|sqrt|integral|derive|calculate|solve|equation|formula|sum|delta|percent|percentage|compute)`)

// IsConceptual reports whether text is free of calculation markers.
func IsConceptual(text string) bool {
	return !mathPattern.MatchString(text)
}

// FilterConceptual drops numerical questions and any question whose text, answers,
// key points, concepts or options mention a calculation.
func FilterConceptual(questions []models.Question) []models.Question {
	out := make([]models.Question, 0, len(questions))
	for _, q := range questions {
		if strings.EqualFold(q.QuestionType, models.QuestionNumerical) {
			continue
		}
		options := make([]string, 0, len(q.Options))
		for _, o := range q.Options {
			options = append(options, o.Text)
		}
		fields := []string{
			q.QuestionText,
			q.Explanation,
			q.SampleAnswer,
			answerText(q.CorrectAnswer),
			strings.Join(q.KeyPoints, " "),
			strings.Join(q.ConceptsTested, " "),
			strings.Join(options, " "),
		}
		conceptual := true
		for _, f := range fields {
			if !IsConceptual(f) {
				conceptual = false
				break
			}
		}
		if conceptual {
			out = append(out, q)
		}
	}
	return out
}

func answerText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		// numbers always count as calculation markers
		return "0"
	}
}
