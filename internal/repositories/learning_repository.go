package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/harishm17/study-buddy-sub001/internal/models"
)

type LearningRepository struct {
	DB *gorm.DB
}

func (r *LearningRepository) CreateAttempt(ctx context.Context, attempt *models.Attempt) error {
	return r.DB.WithContext(ctx).Create(attempt).Error
}

func (r *LearningRepository) ListAttempts(ctx context.Context, userID, topicID string) ([]models.Attempt, error) {
	var attempts []models.Attempt
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND topic_id = ?", userID, topicID).
		Order("created_at ASC").
		Find(&attempts).Error
	return attempts, err
}

// AttemptKinds reports which attempt kinds a user has for each topic of a project.
func (r *LearningRepository) AttemptKinds(ctx context.Context, userID, projectID string) (map[string]map[models.AttemptKind]int, error) {
	var rows []struct {
		TopicID string
		Kind    models.AttemptKind
		N       int
	}
	err := r.DB.WithContext(ctx).Model(&models.Attempt{}).
		Select("topic_id, kind, COUNT(*) AS n").
		Where("user_id = ? AND project_id = ?", userID, projectID).
		Group("topic_id, kind").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := map[string]map[models.AttemptKind]int{}
	for _, row := range rows {
		if out[row.TopicID] == nil {
			out[row.TopicID] = map[models.AttemptKind]int{}
		}
		out[row.TopicID][row.Kind] = row.N
	}
	return out, nil
}

func (r *LearningRepository) GetMastery(ctx context.Context, userID, topicID string) (*models.TopicMastery, error) {
	var m models.TopicMastery
	if err := r.DB.WithContext(ctx).First(&m, "user_id = ? AND topic_id = ?", userID, topicID).Error; err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (r *LearningRepository) UpsertMastery(ctx context.Context, m *models.TopicMastery) error {
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(m).Error
}

func (r *LearningRepository) ListMastery(ctx context.Context, userID, projectID string) ([]models.TopicMastery, error) {
	var out []models.TopicMastery
	err := r.DB.WithContext(ctx).Where("user_id = ? AND project_id = ?", userID, projectID).Find(&out).Error
	return out, err
}

// DueReviews lists mastery rows whose next review is at or before now, most overdue first.
func (r *LearningRepository) DueReviews(ctx context.Context, userID, projectID string, now time.Time) ([]models.TopicMastery, error) {
	var out []models.TopicMastery
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND project_id = ? AND next_review_at IS NOT NULL AND next_review_at <= ?", userID, projectID, now).
		Order("next_review_at ASC").
		Find(&out).Error
	return out, err
}
