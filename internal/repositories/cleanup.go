package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/harishm17/study-buddy-sub001/internal/models"
)

// DeleteProjectCascade removes a project and every row that hangs off it. It returns
// the object keys of the project's materials so the caller can purge storage.
func DeleteProjectCascade(ctx context.Context, db *gorm.DB, projectID string) ([]string, error) {
	var keys []string
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Material{}).Where("project_id = ?", projectID).Pluck("object_key", &keys).Error; err != nil {
			return err
		}

		materialIDs := tx.Model(&models.Material{}).Select("id").Where("project_id = ?", projectID)
		topicIDs := tx.Model(&models.Topic{}).Select("id").Where("project_id = ?", projectID)
		examIDs := tx.Model(&models.SampleExam{}).Select("id").Where("project_id = ?", projectID)
		contentIDs := tx.Model(&models.TopicContent{}).Select("id").Where("topic_id IN (?)", topicIDs)

		steps := []struct {
			model any
			query string
			arg   any
		}{
			{&models.TopicChunkMapping{}, "topic_id IN (?)", topicIDs},
			{&models.MaterialChunk{}, "material_id IN (?)", materialIDs},
			{&models.ContentFeedback{}, "content_id IN (?)", contentIDs},
			{&models.TopicContent{}, "topic_id IN (?)", topicIDs},
			{&models.ExamSubmission{}, "exam_id IN (?)", examIDs},
			{&models.SampleExam{}, "project_id = ?", projectID},
			{&models.Attempt{}, "project_id = ?", projectID},
			{&models.TopicMastery{}, "project_id = ?", projectID},
			{&models.ProcessingJob{}, "project_id = ?", projectID},
			{&models.Topic{}, "project_id = ?", projectID},
			{&models.Material{}, "project_id = ?", projectID},
		}
		for _, step := range steps {
			if err := tx.Unscoped().Where(step.query, step.arg).Delete(step.model).Error; err != nil {
				return err
			}
		}

		res := tx.Delete(&models.Project{}, "id = ?", projectID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}
