package repositories

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/harishm17/study-buddy-sub001/internal/models"
)

type TopicRepository struct {
	DB *gorm.DB
}

// TopicChunk is a mapped chunk joined with its material, ordered by relevance.
type TopicChunk struct {
	ChunkID          string  `json:"chunk_id"`
	ChunkText        string  `json:"chunk_text"`
	SectionHierarchy string  `json:"section_hierarchy"`
	PageStart        *int    `json:"page_start,omitempty"`
	PageEnd          *int    `json:"page_end,omitempty"`
	Filename         string  `json:"filename"`
	RelevanceScore   float64 `json:"relevance_score"`
}

func (r *TopicRepository) Create(ctx context.Context, topic *models.Topic) error {
	return r.DB.WithContext(ctx).Create(topic).Error
}

func (r *TopicRepository) Get(ctx context.Context, id string) (*models.Topic, error) {
	var topic models.Topic
	if err := r.DB.WithContext(ctx).First(&topic, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &topic, nil
}

func (r *TopicRepository) ListByProject(ctx context.Context, projectID string) ([]models.Topic, error) {
	var topics []models.Topic
	err := r.DB.WithContext(ctx).Where("project_id = ?", projectID).Order("order_index ASC, created_at ASC").Find(&topics).Error
	return topics, err
}

func (r *TopicRepository) ListByIDs(ctx context.Context, projectID string, ids []string) ([]models.Topic, error) {
	var topics []models.Topic
	err := r.DB.WithContext(ctx).
		Where("project_id = ? AND id IN ?", projectID, ids).
		Order("order_index ASC").
		Find(&topics).Error
	return topics, err
}

func (r *TopicRepository) Update(ctx context.Context, topic *models.Topic, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return r.DB.WithContext(ctx).Model(topic).Updates(updates).Error
}

func (r *TopicRepository) Delete(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("topic_id = ?", id).Delete(&models.TopicChunkMapping{}).Error; err != nil {
			return err
		}
		if err := tx.Where("topic_id = ?", id).Delete(&models.TopicContent{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Topic{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// ReplaceUnconfirmed drops topics the user has not confirmed and inserts the new set
// after the confirmed ones.
func (r *TopicRepository) ReplaceUnconfirmed(ctx context.Context, projectID string, topics []models.Topic) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stale := tx.Model(&models.Topic{}).Select("id").Where("project_id = ? AND user_confirmed = ?", projectID, false)
		if err := tx.Where("topic_id IN (?)", stale).Delete(&models.TopicChunkMapping{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ? AND user_confirmed = ?", projectID, false).Delete(&models.Topic{}).Error; err != nil {
			return err
		}

		var kept int64
		if err := tx.Model(&models.Topic{}).Where("project_id = ?", projectID).Count(&kept).Error; err != nil {
			return err
		}
		if len(topics) == 0 {
			return nil
		}
		for i := range topics {
			topics[i].ProjectID = projectID
			topics[i].OrderIndex = int(kept) + i
		}
		return tx.Create(&topics).Error
	})
}

// Confirm marks the given topics (or all topics when ids is empty) as confirmed.
func (r *TopicRepository) Confirm(ctx context.Context, projectID string, ids []string) (int64, error) {
	q := r.DB.WithContext(ctx).Model(&models.Topic{}).Where("project_id = ?", projectID)
	if len(ids) > 0 {
		q = q.Where("id IN ?", ids)
	}
	res := q.Update("user_confirmed", true)
	return res.RowsAffected, res.Error
}

func (r *TopicRepository) ReplaceMappings(ctx context.Context, topicID string, mappings []models.TopicChunkMapping) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("topic_id = ?", topicID).Delete(&models.TopicChunkMapping{}).Error; err != nil {
			return err
		}
		if len(mappings) == 0 {
			return nil
		}
		for i := range mappings {
			mappings[i].TopicID = topicID
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&mappings).Error
	})
}

func (r *TopicRepository) ChunksForTopic(ctx context.Context, topicID string, limit int) ([]TopicChunk, error) {
	var out []TopicChunk
	q := r.DB.WithContext(ctx).
		Table("topic_chunk_mappings AS tcm").
		Select("mc.id AS chunk_id, mc.chunk_text, mc.section_hierarchy, mc.page_start, mc.page_end, m.filename, tcm.relevance_score").
		Joins("JOIN material_chunks mc ON tcm.chunk_id = mc.id").
		Joins("JOIN materials m ON mc.material_id = m.id").
		Where("tcm.topic_id = ?", topicID).
		Order("tcm.relevance_score DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Scan(&out).Error
	return out, err
}
