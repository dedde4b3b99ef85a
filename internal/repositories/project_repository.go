package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/harishm17/study-buddy-sub001/internal/models"
)

type ProjectRepository struct {
	DB *gorm.DB
}

func (r *ProjectRepository) Create(ctx context.Context, project *models.Project) error {
	if project.Status == "" {
		project.Status = models.ProjectCreated
	}
	return r.DB.WithContext(ctx).Create(project).Error
}

// Get loads a project without an ownership check; used by background jobs.
func (r *ProjectRepository) Get(ctx context.Context, id string) (*models.Project, error) {
	var project models.Project
	if err := r.DB.WithContext(ctx).First(&project, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &project, nil
}

// GetForUser returns ErrNotFound for projects owned by someone else.
func (r *ProjectRepository) GetForUser(ctx context.Context, id, userID string) (*models.Project, error) {
	var project models.Project
	if err := r.DB.WithContext(ctx).First(&project, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		return nil, notFound(err)
	}
	return &project, nil
}

func (r *ProjectRepository) ListForUser(ctx context.Context, userID string) ([]models.Project, error) {
	var projects []models.Project
	err := r.DB.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&projects).Error
	return projects, err
}

func (r *ProjectRepository) Update(ctx context.Context, project *models.Project, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return r.DB.WithContext(ctx).Model(project).Updates(updates).Error
}

func (r *ProjectRepository) SetStatus(ctx context.Context, id string, status models.ProjectStatus) error {
	return r.DB.WithContext(ctx).Model(&models.Project{}).Where("id = ?", id).Update("status", status).Error
}
