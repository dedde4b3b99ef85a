package content

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/harishm17/study-buddy-sub001/internal/llm"
	"github.com/harishm17/study-buddy-sub001/internal/models"
	"github.com/harishm17/study-buddy-sub001/internal/repositories"
	"github.com/harishm17/study-buddy-sub001/internal/utils"
)

var detailInstructions = map[string]string{
	"brief":         "Focus on key concepts and main points only. Be concise.",
	"moderate":      "Provide a balanced overview with important details and explanations.",
	"comprehensive": "Provide thorough, detailed notes covering all aspects in depth.",
}

var quizGuidance = map[string]string{
	"easy":   "Focus on basic recall and simple understanding. Questions should test fundamental concepts.",
	"medium": "Test both understanding and application. Include some analysis and problem-solving.",
	"hard":   "Require deep understanding, critical thinking, and complex problem-solving. Include multi-step reasoning.",
}

const (
	defaultExampleCount = 3
	maxExampleCount     = 10
	defaultQuizCount    = 10
	maxQuizCount        = 30
)

// Notes writes markdown study notes with citations back to the source chunks.
func (g *Generator) Notes(ctx context.Context, topic *models.Topic, chunks []repositories.TopicChunk, prefs Preferences) (*Generated, error) {
	if len(chunks) == 0 {
		return nil, ErrNoChunks
	}
	detail := prefs.String("detail_level", "comprehensive")
	instruction, ok := detailInstructions[detail]
	if !ok {
		detail, instruction = "comprehensive", detailInstructions["comprehensive"]
	}

	req, err := g.request("section_notes", map[string]any{
		"TopicName":        topic.Name,
		"TopicDescription": topic.Description,
		"DetailLevel":      instruction,
		"IncludeExamples":  prefs.Bool("include_examples", true),
		"Context":          notesContext(chunks),
	})
	if err != nil {
		return nil, err
	}

	var (
		text string
		resp *llm.Response
	)
	if g.Mock() {
		text = mockNotes(topic)
	} else {
		resp, err = g.provider.Generate(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("generate notes: %w", err)
		}
		text = strings.TrimSpace(resp.Text)
	}

	g.logger.Info("Generated notes", zap.String("topic_id", topic.ID), zap.Int("chunks", len(chunks)), zap.Int("chars", len(text)))
	return &Generated{
		ContentType: models.ContentSectionNotes,
		Data: map[string]any{
			"content":      text,
			"citations":    Citations(chunks),
			"chunk_count":  len(chunks),
			"detail_level": detail,
			"generated_at": g.timestamp(),
		},
		Metadata: g.metadata(resp, map[string]any{"chunk_count": len(chunks)}),
		Prompt:   req.Prompt,
	}, nil
}

// Examples produces solved walkthroughs or interactive step-by-step problems.
func (g *Generator) Examples(ctx context.Context, topic *models.Topic, chunks []repositories.TopicChunk, kind models.ContentType, prefs Preferences) (*Generated, error) {
	if kind != models.ContentSolvedExamples && kind != models.ContentInteractiveExample {
		return nil, fmt.Errorf("unsupported example type %q", kind)
	}
	if len(chunks) == 0 {
		return nil, ErrNoChunks
	}
	count := utils.Clamp(prefs.Int("count", defaultExampleCount), 1, maxExampleCount)
	difficulty := utils.NormalizeDifficulty(prefs.String("difficulty_level", "medium"))

	req, err := g.request(string(kind), map[string]any{
		"TopicName":        topic.Name,
		"TopicDescription": topic.Description,
		"Difficulty":       difficulty,
		"Count":            count,
		"Context":          sourceContext(chunks),
	})
	if err != nil {
		return nil, err
	}

	var (
		examples []map[string]any
		resp     *llm.Response
	)
	if g.Mock() {
		examples = mockExamples(topic, kind, count, difficulty)
	} else {
		var out struct {
			Examples []map[string]any `json:"examples"`
		}
		resp, err = llm.GenerateJSON(ctx, g.provider, req, &out)
		if err != nil {
			return nil, fmt.Errorf("generate examples: %w", err)
		}
		examples = out.Examples
	}

	exampleType := "solved"
	if kind == models.ContentInteractiveExample {
		exampleType = "interactive"
	}
	return &Generated{
		ContentType: kind,
		Data: map[string]any{
			"examples":         examples,
			"example_type":     exampleType,
			"difficulty_level": difficulty,
			"generated_at":     g.timestamp(),
		},
		Metadata: g.metadata(resp, map[string]any{"requested": count}),
		Prompt:   req.Prompt,
	}, nil
}

// Quiz writes a mixed question set for one topic.
func (g *Generator) Quiz(ctx context.Context, topic *models.Topic, chunks []repositories.TopicChunk, prefs Preferences) (*Generated, error) {
	if len(chunks) == 0 {
		return nil, ErrNoChunks
	}
	count := utils.Clamp(prefs.Int("question_count", defaultQuizCount), 1, maxQuizCount)
	difficulty := utils.NormalizeDifficulty(prefs.String("difficulty_level", "medium"))
	guidance, ok := quizGuidance[difficulty]
	if !ok {
		difficulty, guidance = "medium", quizGuidance["medium"]
	}

	var types []string
	for _, t := range prefs.Strings("question_types") {
		t = strings.ToLower(strings.TrimSpace(t))
		if models.ValidQuestionTypes[t] {
			types = append(types, t)
		}
	}
	if len(types) == 0 {
		types = models.QuestionTypeOrder
	}

	req, err := g.request("topic_quiz", map[string]any{
		"TopicName":        topic.Name,
		"TopicDescription": topic.Description,
		"Difficulty":       difficulty,
		"Count":            count,
		"QuestionTypes":    types,
		"Guidance":         guidance,
		"Context":          sourceContext(chunks),
	})
	if err != nil {
		return nil, err
	}

	var (
		questions []models.Question
		resp      *llm.Response
	)
	if g.Mock() {
		questions = mockQuestions(topic.Name, count, types, difficulty)
	} else {
		var out struct {
			Questions []models.Question `json:"questions"`
		}
		resp, err = llm.GenerateJSON(ctx, g.provider, req, &out)
		if err != nil {
			return nil, fmt.Errorf("generate quiz: %w", err)
		}
		questions = out.Questions
	}
	questions = normalizeQuestions(questions, difficulty)
	if len(questions) > count {
		questions = questions[:count]
	}

	return &Generated{
		ContentType: models.ContentTopicQuiz,
		Data: map[string]any{
			"questions":        questions,
			"total_questions":  len(questions),
			"difficulty_level": difficulty,
			"question_types":   types,
			"generated_at":     g.timestamp(),
		},
		Metadata: g.metadata(resp, map[string]any{"requested": count}),
		Prompt:   req.Prompt,
	}, nil
}
