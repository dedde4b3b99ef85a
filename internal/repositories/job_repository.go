package repositories

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/harishm17/study-buddy-sub001/internal/models"
)

type JobRepository struct {
	DB *gorm.DB
}

func (r *JobRepository) Create(ctx context.Context, job *models.ProcessingJob) error {
	if job.Status == "" {
		job.Status = models.JobPending
	}
	return r.DB.WithContext(ctx).Create(job).Error
}

func (r *JobRepository) Get(ctx context.Context, id string) (*models.ProcessingJob, error) {
	var job models.ProcessingJob
	if err := r.DB.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &job, nil
}

func (r *JobRepository) GetForUser(ctx context.Context, id, userID string) (*models.ProcessingJob, error) {
	var job models.ProcessingJob
	if err := r.DB.WithContext(ctx).First(&job, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		return nil, notFound(err)
	}
	return &job, nil
}

func (r *JobRepository) ListByProject(ctx context.Context, projectID string, status models.JobStatus) ([]models.ProcessingJob, error) {
	var jobs []models.ProcessingJob
	q := r.DB.WithContext(ctx).Where("project_id = ?", projectID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Order("created_at DESC").Limit(100).Find(&jobs).Error
	return jobs, err
}

func (r *JobRepository) CountActive(ctx context.Context, projectID string) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&models.ProcessingJob{}).
		Where("project_id = ? AND status IN ?", projectID, []models.JobStatus{models.JobPending, models.JobProcessing}).
		Count(&count).Error
	return count, err
}

// FindReusable returns the newest job with the key that is still running, or that
// completed after completedSince. Failed jobs are never reused.
func (r *JobRepository) FindReusable(ctx context.Context, key string, completedSince time.Time) (*models.ProcessingJob, error) {
	var job models.ProcessingJob
	err := r.DB.WithContext(ctx).
		Where("idempotency_key = ?", key).
		Where("status IN ? OR (status = ? AND completed_at >= ?)",
			[]models.JobStatus{models.JobPending, models.JobProcessing}, models.JobCompleted, completedSince).
		Order("created_at DESC").
		First(&job).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &job, nil
}

func (r *JobRepository) SetTaskName(ctx context.Context, id, taskName string) error {
	return r.DB.WithContext(ctx).Model(&models.ProcessingJob{}).Where("id = ?", id).Update("task_name", taskName).Error
}

func (r *JobRepository) MarkProcessing(ctx context.Context, id string) error {
	now := time.Now()
	return r.DB.WithContext(ctx).Model(&models.ProcessingJob{}).Where("id = ?", id).Updates(map[string]any{
		"status":           models.JobProcessing,
		"progress_percent": 10,
		"started_at":       &now,
	}).Error
}

func (r *JobRepository) UpdateProgress(ctx context.Context, id string, percent int) error {
	return r.DB.WithContext(ctx).Model(&models.ProcessingJob{}).
		Where("id = ? AND status = ?", id, models.JobProcessing).
		Update("progress_percent", percent).Error
}

// Complete records the result of a processing job. A job that already reached a
// terminal status, for example one the stale sweeper timed out, is left alone and
// ErrConflict is returned.
func (r *JobRepository) Complete(ctx context.Context, id string, result datatypes.JSON) error {
	now := time.Now()
	res := r.DB.WithContext(ctx).Model(&models.ProcessingJob{}).
		Where("id = ? AND status = ?", id, models.JobProcessing).
		Updates(map[string]any{
			"status":           models.JobCompleted,
			"progress_percent": 100,
			"result_data":      result,
			"error_message":    "",
			"completed_at":     &now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

// Fail marks a pending or processing job failed. Terminal jobs keep their status
// and ErrConflict is returned.
func (r *JobRepository) Fail(ctx context.Context, id, message string) error {
	now := time.Now()
	res := r.DB.WithContext(ctx).Model(&models.ProcessingJob{}).
		Where("id = ? AND status IN ?", id, []models.JobStatus{models.JobPending, models.JobProcessing}).
		Updates(map[string]any{
			"status":        models.JobFailed,
			"error_message": message,
			"completed_at":  &now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

// SweepStale fails pending or processing jobs not updated since cutoff.
func (r *JobRepository) SweepStale(ctx context.Context, cutoff time.Time, message string) (int64, error) {
	now := time.Now()
	res := r.DB.WithContext(ctx).Model(&models.ProcessingJob{}).
		Where("status IN ? AND updated_at < ?", []models.JobStatus{models.JobPending, models.JobProcessing}, cutoff).
		Updates(map[string]any{
			"status":        models.JobFailed,
			"error_message": message,
			"completed_at":  &now,
		})
	return res.RowsAffected, res.Error
}
