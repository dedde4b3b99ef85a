package voice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/harishm17/study-buddy-sub001/internal/content"
	"github.com/harishm17/study-buddy-sub001/internal/grading"
	"github.com/harishm17/study-buddy-sub001/internal/learning"
	"github.com/harishm17/study-buddy-sub001/internal/models"
	"github.com/harishm17/study-buddy-sub001/internal/repositories"
)

var (
	ErrNoSource         = errors.New("topic has no notes or mapped material to drill on")
	ErrEmptyDrill       = errors.New("no conceptual questions could be generated for this topic")
	ErrQuestionNotFound = errors.New("drill question not found")
)

const sourceChunkLimit = 15

type Drill struct {
	Content   *models.TopicContent `json:"content"`
	Questions []models.Question    `json:"questions"`
	Reused    bool                 `json:"reused"`
}

type AttemptResult struct {
	QuestionText string                  `json:"question_text,omitempty"`
	Grade        grading.OverlapResult   `json:"grade"`
	Progress     *learning.TopicProgress `json:"progress"`
}

type drillMeta struct {
	Count      int    `json:"count"`
	Difficulty string `json:"difficulty"`
	Filtered   int    `json:"filtered_out"`
}

type Service struct {
	repos     repositories.Set
	generator *content.Generator
	learning  *learning.Service
	logger    *zap.Logger
	now       func() time.Time
}

func NewService(repos repositories.Set, generator *content.Generator, learn *learning.Service, logger *zap.Logger) *Service {
	return &Service{repos: repos, generator: generator, learning: learn, logger: logger, now: time.Now}
}

// Drill returns the latest drill with the same settings unless req.Regenerate is set,
// otherwise generates, filters and stores a new one.
func (s *Service) Drill(ctx context.Context, topic *models.Topic, req models.VoiceDrillRequest) (*Drill, error) {
	if !req.Regenerate {
		if d, ok := s.reusable(ctx, topic.ID, req); ok {
			return d, nil
		}
	}

	notes, err := s.sourceNotes(ctx, topic.ID)
	if err != nil {
		return nil, err
	}

	generated, prompt, err := s.generator.DrillQuestions(ctx, topic.Name, notes, req.Count, req.Difficulty)
	if err != nil {
		return nil, err
	}
	questions := FilterConceptual(generated)
	if len(questions) == 0 {
		return nil, ErrEmptyDrill
	}

	data, err := json.Marshal(map[string]any{
		"questions":    questions,
		"total":        len(questions),
		"difficulty":   req.Difficulty,
		"generated_at": s.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, err
	}
	meta, err := json.Marshal(drillMeta{Count: req.Count, Difficulty: req.Difficulty, Filtered: len(generated) - len(questions)})
	if err != nil {
		return nil, err
	}
	tc := &models.TopicContent{
		TopicID:     topic.ID,
		ContentType: models.ContentVoiceDrill,
		ContentData: datatypes.JSON(data),
		Metadata:    datatypes.JSON(meta),
		Prompt:      prompt,
	}
	if err := s.repos.Content.Create(ctx, tc); err != nil {
		return nil, fmt.Errorf("store drill: %w", err)
	}

	s.logger.Info("Generated voice drill",
		zap.String("topic_id", topic.ID),
		zap.Int("generated", len(generated)),
		zap.Int("kept", len(questions)))
	return &Drill{Content: tc, Questions: questions}, nil
}

func (s *Service) reusable(ctx context.Context, topicID string, req models.VoiceDrillRequest) (*Drill, bool) {
	latest, err := s.repos.Content.Latest(ctx, topicID, models.ContentVoiceDrill)
	if err != nil {
		return nil, false
	}
	var meta drillMeta
	if json.Unmarshal(latest.Metadata, &meta) != nil || meta.Count != req.Count || meta.Difficulty != req.Difficulty {
		return nil, false
	}
	questions, err := content.DecodeQuestions(latest.ContentData)
	if err != nil || len(questions) == 0 {
		return nil, false
	}
	return &Drill{Content: latest, Questions: questions, Reused: true}, true
}

// sourceNotes prefers generated notes and falls back to the mapped chunks.
func (s *Service) sourceNotes(ctx context.Context, topicID string) (string, error) {
	if notes, err := s.repos.Content.Latest(ctx, topicID, models.ContentSectionNotes); err == nil {
		var data struct {
			Content string `json:"content"`
		}
		if json.Unmarshal(notes.ContentData, &data) == nil && strings.TrimSpace(data.Content) != "" {
			return data.Content, nil
		}
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return "", err
	}

	chunks, err := s.repos.Topics.ChunksForTopic(ctx, topicID, sourceChunkLimit)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if text := strings.TrimSpace(c.ChunkText); text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return "", ErrNoSource
	}
	return strings.Join(parts, "\n\n"), nil
}

// GradeAttempt grades a spoken answer by token overlap and records it as voice evidence.
func (s *Service) GradeAttempt(ctx context.Context, userID string, topic *models.Topic, req models.VoiceAttemptRequest) (*AttemptResult, error) {
	questionText, keyPoints, sample := req.QuestionText, req.KeyPoints, req.SampleAnswer

	if req.QuestionIndex != nil {
		tc, err := s.repos.Content.Get(ctx, req.ContentID)
		if errors.Is(err, repositories.ErrNotFound) || (err == nil && tc.TopicID != topic.ID) {
			return nil, ErrQuestionNotFound
		}
		if err != nil {
			return nil, err
		}
		questions, err := content.DecodeQuestions(tc.ContentData)
		if err != nil {
			return nil, err
		}
		idx := *req.QuestionIndex
		if idx >= len(questions) {
			return nil, ErrQuestionNotFound
		}
		q := questions[idx]
		questionText, keyPoints, sample = q.QuestionText, q.KeyPoints, q.SampleAnswer
	}

	grade := grading.GradeOverlap(req.Transcript, keyPoints, sample)
	details, err := json.Marshal(map[string]any{
		"question_text": questionText,
		"transcript":    req.Transcript,
		"covered":       grade.Covered,
		"missing":       grade.Missing,
	})
	if err != nil {
		return nil, err
	}

	progress, err := s.learning.RecordAttempt(ctx, &models.Attempt{
		UserID:    userID,
		ProjectID: topic.ProjectID,
		TopicID:   topic.ID,
		Kind:      models.AttemptVoice,
		ContentID: req.ContentID,
		Score:     grade.Score,
		Details:   datatypes.JSON(details),
	})
	if err != nil {
		return nil, err
	}
	return &AttemptResult{QuestionText: questionText, Grade: grade, Progress: progress}, nil
}
