// Package content turns mapped material chunks into study content: topics, notes,
// worked examples, quizzes, exam questions and voice drills.
package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/harishm17/study-buddy-sub001/internal/llm"
	"github.com/harishm17/study-buddy-sub001/internal/models"
	"github.com/harishm17/study-buddy-sub001/internal/prompts"
	"github.com/harishm17/study-buddy-sub001/internal/repositories"
)

var ErrNoChunks = errors.New("no relevant chunks found for topic")

// Generated is one piece of content ready to store as a TopicContent row.
type Generated struct {
	ContentType models.ContentType
	Data        map[string]any
	Metadata    map[string]any
	Prompt      string
}

// ChunkSource loads the chunks mapped to a topic, best first.
type ChunkSource interface {
	ChunksForTopic(ctx context.Context, topicID string, limit int) ([]repositories.TopicChunk, error)
}

// Generator renders prompts and calls the provider. With a nil provider it returns
// deterministic mock content, which is what development mode runs on.
type Generator struct {
	provider llm.Provider
	prompts  prompts.PromptProvider
	logger   *zap.Logger

	now     func() time.Time
	shuffle func(n int, swap func(i, j int))
}

func NewGenerator(provider llm.Provider, pp prompts.PromptProvider, logger *zap.Logger) *Generator {
	return &Generator{
		provider: provider,
		prompts:  pp,
		logger:   logger,
		now:      time.Now,
		shuffle:  rand.Shuffle,
	}
}

// Mock reports whether content is generated without a provider.
func (g *Generator) Mock() bool { return g.provider == nil }

// Generate dispatches on the content type of a generate_content job.
func (g *Generator) Generate(ctx context.Context, topic *models.Topic, chunks []repositories.TopicChunk, contentType models.ContentType, prefs Preferences) (*Generated, error) {
	switch contentType {
	case models.ContentSectionNotes:
		return g.Notes(ctx, topic, chunks, prefs)
	case models.ContentSolvedExamples, models.ContentInteractiveExample:
		return g.Examples(ctx, topic, chunks, contentType, prefs)
	case models.ContentTopicQuiz:
		return g.Quiz(ctx, topic, chunks, prefs)
	default:
		return nil, fmt.Errorf("unsupported content type %q", contentType)
	}
}

func (g *Generator) request(name string, data any) (llm.Request, error) {
	p, err := g.prompts.Build(name, data)
	if err != nil {
		return llm.Request{}, err
	}
	return llm.Request{
		System:      p.System,
		Prompt:      p.Text,
		Temperature: p.Temperature,
		UseMini:     p.UseMini,
	}, nil
}

func (g *Generator) metadata(resp *llm.Response, extra map[string]any) map[string]any {
	meta := map[string]any{"mock": resp == nil}
	if resp != nil {
		meta["provider"] = resp.Provider
		meta["model"] = resp.Model
		meta["processing_time_ms"] = resp.ProcessingTime
	}
	for k, v := range extra {
		meta[k] = v
	}
	return meta
}

func (g *Generator) timestamp() string {
	return g.now().UTC().Format(time.RFC3339)
}

// normalizeQuestions fills defaults the model tends to leave out.
func normalizeQuestions(questions []models.Question, difficulty string) []models.Question {
	out := questions[:0]
	for _, q := range questions {
		q.QuestionText = strings.TrimSpace(q.QuestionText)
		if q.QuestionText == "" {
			continue
		}
		q.QuestionType = strings.ToLower(strings.TrimSpace(q.QuestionType))
		if q.Difficulty == "" {
			q.Difficulty = difficulty
		}
		if q.Points <= 0 {
			q.Points = 1
		}
		out = append(out, q)
	}
	return out
}

// DecodeQuestions reads the question list stored in a quiz, exam or drill payload.
func DecodeQuestions(data []byte) ([]models.Question, error) {
	var payload struct {
		Questions []models.Question `json:"questions"`
	}
	if len(data) == 0 {
		return nil, nil
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	return payload.Questions, nil
}
