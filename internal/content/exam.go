package content

import (
	"context"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/harishm17/study-buddy-sub001/internal/llm"
	"github.com/harishm17/study-buddy-sub001/internal/models"
)

const (
	examChunkLimit  = 10
	examConcurrency = 4
)

var examGuidance = map[string]string{
	"easy":   "Create straightforward questions testing basic understanding.",
	"medium": "Create moderately challenging questions requiring application and analysis.",
	"hard":   "Create complex questions requiring deep understanding and synthesis.",
}

type ExamConfig struct {
	QuestionCount   int            `json:"question_count"`
	DurationMinutes int            `json:"duration_minutes"`
	Difficulty      string         `json:"difficulty_level"`
	Distribution    map[string]int `json:"question_type_distribution"`
}

type Exam struct {
	Questions     []models.Question
	TopicsCovered []string
	TotalPoints   float64
}

// DistributeQuestions splits total evenly over n topics; the first total%n topics get
// one extra question.
func DistributeQuestions(total, n int) []int {
	if n <= 0 {
		return nil
	}
	base, remainder := total/n, total%n
	out := make([]int, n)
	for i := range out {
		out[i] = base
		if i < remainder {
			out[i]++
		}
	}
	return out
}

// TypeCounts allots max(1, round(n*pct/100)) questions to each type with a positive
// share, in QuestionTypeOrder, and truncates the allotment to n.
func TypeCounts(n int, distribution map[string]int) map[string]int {
	out := map[string]int{}
	remaining := n
	for _, qt := range models.QuestionTypeOrder {
		pct := distribution[qt]
		if pct <= 0 || remaining <= 0 {
			continue
		}
		c := max(1, int(math.Round(float64(n)*float64(pct)/100)))
		c = min(c, remaining)
		out[qt] = c
		remaining -= c
	}
	return out
}

// Exam generates questions for every topic concurrently, tags them with their topic
// and shuffles the result.
func (g *Generator) Exam(ctx context.Context, topics []models.Topic, chunks ChunkSource, cfg ExamConfig) (*Exam, error) {
	if len(topics) == 0 {
		return nil, fmt.Errorf("no topics selected for exam")
	}
	if cfg.QuestionCount <= 0 {
		cfg.QuestionCount = 20
	}
	if len(cfg.Distribution) == 0 {
		cfg.Distribution = models.DefaultQuestionDistribution
	}
	difficulty := cfg.Difficulty
	if _, ok := examGuidance[difficulty]; !ok {
		difficulty = "medium"
	}

	counts := DistributeQuestions(cfg.QuestionCount, len(topics))
	perTopic := make([][]models.Question, len(topics))

	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(examConcurrency)
	var mu sync.Mutex
	done := 0
	for i := range topics {
		if counts[i] == 0 {
			continue
		}
		grp.Go(func() error {
			qs, err := g.topicQuestions(gctx, &topics[i], chunks, counts[i], cfg.Distribution, difficulty)
			if err != nil {
				return fmt.Errorf("topic %q: %w", topics[i].Name, err)
			}
			for j := range qs {
				qs[j].TopicID = topics[i].ID
				qs[j].TopicName = topics[i].Name
			}
			perTopic[i] = qs

			mu.Lock()
			done++
			g.logger.Debug("Exam topic generated", zap.String("topic", topics[i].Name), zap.Int("questions", len(qs)), zap.Int("done", done))
			mu.Unlock()
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}

	exam := &Exam{}
	for i, qs := range perTopic {
		exam.Questions = append(exam.Questions, qs...)
		exam.TopicsCovered = append(exam.TopicsCovered, topics[i].Name)
	}
	g.shuffle(len(exam.Questions), func(a, b int) {
		exam.Questions[a], exam.Questions[b] = exam.Questions[b], exam.Questions[a]
	})
	for _, q := range exam.Questions {
		exam.TotalPoints += q.MaxPoints()
	}
	return exam, nil
}

func (g *Generator) topicQuestions(ctx context.Context, topic *models.Topic, chunks ChunkSource, n int, distribution map[string]int, difficulty string) ([]models.Question, error) {
	typeCounts := TypeCounts(n, distribution)

	if g.Mock() {
		var types []string
		for _, qt := range models.QuestionTypeOrder {
			for c := 0; c < typeCounts[qt]; c++ {
				types = append(types, qt)
			}
		}
		return normalizeQuestions(mockQuestions(topic.Name, n, types, difficulty), difficulty), nil
	}

	mapped, err := chunks.ChunksForTopic(ctx, topic.ID, examChunkLimit)
	if err != nil {
		return nil, fmt.Errorf("load chunks: %w", err)
	}
	req, err := g.request("exam_questions", map[string]any{
		"TopicName":        topic.Name,
		"TopicDescription": topic.Description,
		"Difficulty":       difficulty + ". " + examGuidance[difficulty],
		"TypeCounts":       typeCounts,
		"Context":          examContext(mapped),
	})
	if err != nil {
		return nil, err
	}
	var out struct {
		Questions []models.Question `json:"questions"`
	}
	if _, err := llm.GenerateJSON(ctx, g.provider, req, &out); err != nil {
		return nil, err
	}
	qs := normalizeQuestions(out.Questions, difficulty)
	if len(qs) > n {
		qs = qs[:n]
	}
	return qs, nil
}
