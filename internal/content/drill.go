package content

import (
	"context"
	"fmt"
	"strings"

	"github.com/harishm17/study-buddy-sub001/internal/llm"
	"github.com/harishm17/study-buddy-sub001/internal/models"
)

const maxDrillNotesChars = 12000

// DrillQuestions asks for conceptual oral questions grounded in notes. Callers are
// expected to filter out anything that still needs calculation.
func (g *Generator) DrillQuestions(ctx context.Context, topicName, notes string, count int, difficulty string) ([]models.Question, string, error) {
	if topicName == "" {
		topicName = "the study topic"
	}
	if len(notes) > maxDrillNotesChars {
		notes = notes[:maxDrillNotesChars]
	}
	req, err := g.request("voice_drill", map[string]any{
		"TopicName":  topicName,
		"Difficulty": difficulty,
		"Count":      count,
		"Notes":      notes,
	})
	if err != nil {
		return nil, "", err
	}

	var questions []models.Question
	if g.Mock() {
		questions = mockDrill(topicName, count, difficulty)
	} else {
		var out struct {
			Questions []models.Question `json:"questions"`
		}
		if _, err := llm.GenerateJSON(ctx, g.provider, req, &out); err != nil {
			return nil, req.Prompt, fmt.Errorf("generate drill: %w", err)
		}
		questions = out.Questions
	}

	cleaned := make([]models.Question, 0, len(questions))
	for _, q := range questions {
		if strings.TrimSpace(q.QuestionText) == "" {
			continue
		}
		if q.QuestionType == "" {
			q.QuestionType = models.QuestionConceptual
		}
		if q.Difficulty == "" {
			q.Difficulty = difficulty
		}
		q.KeyPoints = nonEmpty(q.KeyPoints)
		q.ConceptsTested = nonEmpty(q.ConceptsTested)
		q.Source = "generated"
		cleaned = append(cleaned, q)
	}
	return cleaned, req.Prompt, nil
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
