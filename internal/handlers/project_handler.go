package handlers

import (
	"net/http"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/harishm17/study-buddy-sub001/internal/middleware"
	"github.com/harishm17/study-buddy-sub001/internal/models"
	"github.com/harishm17/study-buddy-sub001/internal/repositories"
	"github.com/harishm17/study-buddy-sub001/internal/storage"
	"github.com/harishm17/study-buddy-sub001/internal/utils"
)

type ProjectHandler struct {
	owner
	db     *gorm.DB
	store  storage.ObjectStore
	logger *zap.Logger
}

func NewProjectHandler(db *gorm.DB, repos repositories.Set, store storage.ObjectStore, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{owner: owner{repos: repos}, db: db, store: store, logger: logger}
}

// Create handles POST /api/v1/projects
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	req := middleware.GetValidatedRequest[*models.CreateProjectRequest](r)
	project := &models.Project{
		UserID:      middleware.UserID(r),
		Name:        req.Name,
		Description: req.Description,
		ExamDate:    req.ExamDate,
		Status:      models.ProjectCreated,
	}
	if err := h.repos.Projects.Create(r.Context(), project); err != nil {
		writeError(w, h.logger, err)
		return
	}
	utils.JSON(w, http.StatusCreated, project)
}

// List handles GET /api/v1/projects
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	projects, err := h.repos.Projects.ListForUser(r.Context(), middleware.UserID(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	utils.JSON(w, http.StatusOK, map[string]any{"projects": projects})
}

// Get handles GET /api/v1/projects/{projectID}
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	project, err := h.project(r, urlParam(r, "projectID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	utils.JSON(w, http.StatusOK, project)
}

// Update handles PATCH /api/v1/projects/{projectID}
func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	project, err := h.project(r, urlParam(r, "projectID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	req := middleware.GetValidatedRequest[*models.UpdateProjectRequest](r)

	updates := map[string]any{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	switch {
	case req.ClearExamDate:
		updates["exam_date"] = nil
	case req.ExamDate != nil:
		updates["exam_date"] = *req.ExamDate
	}
	if err := h.repos.Projects.Update(r.Context(), project, updates); err != nil {
		writeError(w, h.logger, err)
		return
	}

	project, err = h.repos.Projects.Get(r.Context(), project.ID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	utils.JSON(w, http.StatusOK, project)
}

// Delete handles DELETE /api/v1/projects/{projectID}. Stored objects are removed after
// the rows; a failed object delete is only logged.
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	project, err := h.project(r, urlParam(r, "projectID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	keys, err := repositories.DeleteProjectCascade(r.Context(), h.db, project.ID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	for _, key := range keys {
		if err := h.store.Delete(r.Context(), key); err != nil {
			h.logger.Warn("failed to delete material object", zap.String("key", key), zap.Error(err))
		}
	}
	h.logger.Info("project deleted", zap.String("project_id", project.ID), zap.Int("objects", len(keys)))
	w.WriteHeader(http.StatusNoContent)
}
