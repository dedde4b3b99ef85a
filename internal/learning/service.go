package learning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/harishm17/study-buddy-sub001/internal/models"
	"github.com/harishm17/study-buddy-sub001/internal/repositories"
)

// TopicProgress is the mastery view of one topic for one user.
type TopicProgress struct {
	TopicID          string     `json:"topic_id"`
	TopicName        string     `json:"topic_name"`
	Mastery          float64    `json:"mastery"`
	Retrievability   float64    `json:"retrievability"`
	EffectiveMastery float64    `json:"effective_mastery"`
	Level            Level      `json:"level"`
	AttemptCount     int        `json:"attempt_count"`
	IntervalDays     int        `json:"interval_days"`
	LastReviewedAt   *time.Time `json:"last_reviewed_at,omitempty"`
	NextReviewAt     *time.Time `json:"next_review_at,omitempty"`
	Due              bool       `json:"due"`
}

type Service struct {
	learning  *repositories.LearningRepository
	topics    *repositories.TopicRepository
	content   *repositories.ContentRepository
	materials *repositories.MaterialRepository
	jobs      *repositories.JobRepository
	logger    *zap.Logger
	now       func() time.Time
}

func NewService(db repositories.Set, logger *zap.Logger) *Service {
	return &Service{
		learning:  db.Learning,
		topics:    db.Topics,
		content:   db.Content,
		materials: db.Materials,
		jobs:      db.Jobs,
		logger:    logger,
		now:       time.Now,
	}
}

// RecordAttempt stores the attempt, recomputes mastery from all of the user's evidence
// on the topic and reschedules the next review.
func (s *Service) RecordAttempt(ctx context.Context, attempt *models.Attempt) (*TopicProgress, error) {
	now := s.now()
	attempt.Score = clamp01(attempt.Score)
	attempt.CreatedAt = now
	if err := s.learning.CreateAttempt(ctx, attempt); err != nil {
		return nil, fmt.Errorf("create attempt: %w", err)
	}

	attempts, err := s.learning.ListAttempts(ctx, attempt.UserID, attempt.TopicID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}

	row, err := s.learning.GetMastery(ctx, attempt.UserID, attempt.TopicID)
	if errors.Is(err, repositories.ErrNotFound) {
		row = &models.TopicMastery{UserID: attempt.UserID, TopicID: attempt.TopicID}
	} else if err != nil {
		return nil, fmt.Errorf("load mastery: %w", err)
	}
	row.ProjectID = attempt.ProjectID
	row.Mastery = Mastery(EvidenceFromAttempts(attempts), now)
	row.AttemptCount = len(attempts)
	Schedule(row, attempt.Score, now)
	if err := s.learning.UpsertMastery(ctx, row); err != nil {
		return nil, fmt.Errorf("save mastery: %w", err)
	}

	s.logger.Info("Recorded attempt",
		zap.String("user_id", attempt.UserID),
		zap.String("topic_id", attempt.TopicID),
		zap.String("kind", string(attempt.Kind)),
		zap.Float64("score", attempt.Score),
		zap.Float64("mastery", row.Mastery),
		zap.Int("interval_days", row.IntervalDays))

	topicName := ""
	if topic, err := s.topics.Get(ctx, attempt.TopicID); err == nil {
		topicName = topic.Name
	}
	p := progress(topicName, attempt.TopicID, row, now)
	return &p, nil
}

func progress(name, topicID string, m *models.TopicMastery, now time.Time) TopicProgress {
	p := TopicProgress{TopicID: topicID, TopicName: name, Retrievability: 1, Level: LevelNotStarted}
	if m == nil {
		return p
	}
	p.Mastery = m.Mastery
	p.Retrievability = RetrievabilityAt(m, now)
	p.EffectiveMastery = m.Mastery * p.Retrievability
	p.Level = LevelFor(p.EffectiveMastery, m.AttemptCount > 0)
	p.AttemptCount = m.AttemptCount
	p.IntervalDays = m.IntervalDays
	p.LastReviewedAt = m.LastReviewedAt
	p.NextReviewAt = m.NextReviewAt
	p.Due = m.NextReviewAt != nil && !m.NextReviewAt.After(now)
	return p
}

func (s *Service) masteryByTopic(ctx context.Context, userID, projectID string) (map[string]*models.TopicMastery, error) {
	rows, err := s.learning.ListMastery(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*models.TopicMastery, len(rows))
	for i := range rows {
		out[rows[i].TopicID] = &rows[i]
	}
	return out, nil
}

// ProjectMastery lists progress for every topic of the project in topic order.
func (s *Service) ProjectMastery(ctx context.Context, userID, projectID string) ([]TopicProgress, error) {
	topics, err := s.topics.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	byTopic, err := s.masteryByTopic(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]TopicProgress, 0, len(topics))
	for _, t := range topics {
		out = append(out, progress(t.Name, t.ID, byTopic[t.ID], now))
	}
	return out, nil
}

// DueReviews lists topics due for review, most overdue first.
func (s *Service) DueReviews(ctx context.Context, userID, projectID string) ([]TopicProgress, error) {
	now := s.now()
	rows, err := s.learning.DueReviews(ctx, userID, projectID, now)
	if err != nil {
		return nil, err
	}
	topics, err := s.topics.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(topics))
	for _, t := range topics {
		names[t.ID] = t.Name
	}
	out := make([]TopicProgress, 0, len(rows))
	for i := range rows {
		out = append(out, progress(names[rows[i].TopicID], rows[i].TopicID, &rows[i], now))
	}
	return out, nil
}

// Snapshot gathers everything the planner needs for one user and project.
func (s *Service) Snapshot(ctx context.Context, userID string, project *models.Project) (Snapshot, error) {
	snap := Snapshot{ExamDate: project.ExamDate, Now: s.now()}

	materials, err := s.materials.ListByProject(ctx, project.ID)
	if err != nil {
		return snap, err
	}
	snap.MaterialCount = len(materials)
	for _, m := range materials {
		if m.ValidationStatus == models.ValidationValid {
			snap.ValidMaterialCount++
		}
	}

	active, err := s.jobs.CountActive(ctx, project.ID)
	if err != nil {
		return snap, err
	}
	snap.ActiveJobs = int(active)

	topics, err := s.topics.ListByProject(ctx, project.ID)
	if err != nil {
		return snap, err
	}
	ids := make([]string, len(topics))
	for i, t := range topics {
		ids[i] = t.ID
	}
	presence, err := s.content.ContentPresence(ctx, ids)
	if err != nil {
		return snap, err
	}
	kinds, err := s.learning.AttemptKinds(ctx, userID, project.ID)
	if err != nil {
		return snap, err
	}
	byTopic, err := s.masteryByTopic(ctx, userID, project.ID)
	if err != nil {
		return snap, err
	}

	for _, t := range topics {
		snap.Topics = append(snap.Topics, TopicState{
			Topic:    t,
			HasNotes: presence[t.ID][models.ContentSectionNotes],
			Attempts: kinds[t.ID],
			Mastery:  byTopic[t.ID],
		})
	}
	return snap, nil
}

func (s *Service) NextActions(ctx context.Context, userID string, project *models.Project, limit int) ([]Action, error) {
	snap, err := s.Snapshot(ctx, userID, project)
	if err != nil {
		return nil, err
	}
	return Plan(snap, limit), nil
}
