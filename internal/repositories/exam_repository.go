package repositories

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/harishm17/study-buddy-sub001/internal/models"
)

type ExamRepository struct {
	DB *gorm.DB
}

func (r *ExamRepository) CreateExam(ctx context.Context, exam *models.SampleExam) error {
	return r.DB.WithContext(ctx).Create(exam).Error
}

func (r *ExamRepository) GetExam(ctx context.Context, id string) (*models.SampleExam, error) {
	var exam models.SampleExam
	if err := r.DB.WithContext(ctx).First(&exam, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &exam, nil
}

func (r *ExamRepository) ListExams(ctx context.Context, projectID string) ([]models.SampleExam, error) {
	var exams []models.SampleExam
	err := r.DB.WithContext(ctx).Where("project_id = ?", projectID).Order("created_at DESC").Find(&exams).Error
	return exams, err
}

func (r *ExamRepository) CreateSubmission(ctx context.Context, sub *models.ExamSubmission) error {
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = time.Now()
	}
	return r.DB.WithContext(ctx).Create(sub).Error
}

func (r *ExamRepository) GetSubmission(ctx context.Context, id string) (*models.ExamSubmission, error) {
	var sub models.ExamSubmission
	if err := r.DB.WithContext(ctx).First(&sub, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &sub, nil
}

func (r *ExamRepository) SaveGrading(ctx context.Context, id string, grading datatypes.JSON, overall, earned, total float64) error {
	now := time.Now()
	return r.DB.WithContext(ctx).Model(&models.ExamSubmission{}).Where("id = ?", id).Updates(map[string]any{
		"grading":       grading,
		"overall_score": overall,
		"earned_points": earned,
		"total_points":  total,
		"graded_at":     &now,
	}).Error
}
