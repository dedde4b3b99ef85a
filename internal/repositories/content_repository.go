package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/harishm17/study-buddy-sub001/internal/models"
)

type ContentRepository struct {
	DB *gorm.DB
}

func (r *ContentRepository) Create(ctx context.Context, content *models.TopicContent) error {
	return r.DB.WithContext(ctx).Create(content).Error
}

func (r *ContentRepository) Get(ctx context.Context, id string) (*models.TopicContent, error) {
	var content models.TopicContent
	if err := r.DB.WithContext(ctx).First(&content, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &content, nil
}

func (r *ContentRepository) ListByTopic(ctx context.Context, topicID string, contentType models.ContentType) ([]models.TopicContent, error) {
	var contents []models.TopicContent
	q := r.DB.WithContext(ctx).Where("topic_id = ?", topicID)
	if contentType != "" {
		q = q.Where("content_type = ?", contentType)
	}
	err := q.Order("created_at DESC").Find(&contents).Error
	return contents, err
}

func (r *ContentRepository) Latest(ctx context.Context, topicID string, contentType models.ContentType) (*models.TopicContent, error) {
	var content models.TopicContent
	err := r.DB.WithContext(ctx).
		Where("topic_id = ? AND content_type = ?", topicID, contentType).
		Order("created_at DESC").
		First(&content).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &content, nil
}

// ContentPresence reports which content types exist for each topic.
func (r *ContentRepository) ContentPresence(ctx context.Context, topicIDs []string) (map[string]map[models.ContentType]bool, error) {
	out := make(map[string]map[models.ContentType]bool, len(topicIDs))
	if len(topicIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		TopicID     string
		ContentType models.ContentType
	}
	err := r.DB.WithContext(ctx).Model(&models.TopicContent{}).
		Distinct("topic_id", "content_type").
		Where("topic_id IN ?", topicIDs).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if out[row.TopicID] == nil {
			out[row.TopicID] = map[models.ContentType]bool{}
		}
		out[row.TopicID][row.ContentType] = true
	}
	return out, nil
}
