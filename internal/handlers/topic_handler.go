package handlers

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/harishm17/study-buddy-sub001/internal/jobs"
	"github.com/harishm17/study-buddy-sub001/internal/middleware"
	"github.com/harishm17/study-buddy-sub001/internal/models"
	"github.com/harishm17/study-buddy-sub001/internal/repositories"
	"github.com/harishm17/study-buddy-sub001/internal/utils"
)

const maxKeywords = 8

type TopicHandler struct {
	owner
	jobs   *jobs.Service
	logger *zap.Logger
}

func NewTopicHandler(repos repositories.Set, jobSvc *jobs.Service, logger *zap.Logger) *TopicHandler {
	return &TopicHandler{owner: owner{repos: repos}, jobs: jobSvc, logger: logger}
}

// Extract handles POST /api/v1/projects/{projectID}/topics/extract
func (h *TopicHandler) Extract(w http.ResponseWriter, r *http.Request) {
	project, err := h.project(r, urlParam(r, "projectID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	valid, err := h.repos.Materials.ListValidByProject(r.Context(), project.ID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if len(valid) == 0 {
		utils.JSONError(w, http.StatusBadRequest, "no_valid_materials", "Upload at least one valid material before extracting topics")
		return
	}
	submit(w, r, h.jobs, h.logger, jobs.SubmitRequest{
		ProjectID: project.ID,
		JobType:   models.JobExtractTopics,
		Input:     jobs.ProjectInput{ProjectID: project.ID},
	})
}

// List handles GET /api/v1/projects/{projectID}/topics
func (h *TopicHandler) List(w http.ResponseWriter, r *http.Request) {
	project, err := h.project(r, urlParam(r, "projectID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	topics, err := h.repos.Topics.ListByProject(r.Context(), project.ID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	utils.JSON(w, http.StatusOK, map[string]any{"topics": topics})
}

// Update handles PATCH /api/v1/topics/{topicID}
func (h *TopicHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	topic, project, err := h.topic(r, urlParam(r, "topicID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	req := middleware.GetValidatedRequest[*models.UpdateTopicRequest](r)

	updates := map[string]any{}
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		updates["description"] = strings.TrimSpace(*req.Description)
	}
	if req.Keywords != nil {
		updates["keywords"] = datatypes.JSONSlice[string](cleanKeywords(req.Keywords))
	}
	if req.UserConfirmed != nil {
		updates["user_confirmed"] = *req.UserConfirmed
	}
	if err := h.repos.Topics.Update(ctx, topic, updates); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.UserConfirmed != nil {
		if _, err := h.syncStatus(ctx, project); err != nil {
			writeError(w, h.logger, err)
			return
		}
	}

	topic, err = h.repos.Topics.Get(ctx, topic.ID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	utils.JSON(w, http.StatusOK, topic)
}

// Confirm handles POST /api/v1/projects/{projectID}/topics/confirm. An empty list
// confirms every topic of the project.
func (h *TopicHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	project, err := h.project(r, urlParam(r, "projectID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	req := middleware.GetValidatedRequest[*models.ConfirmTopicsRequest](r)

	confirmed, err := h.repos.Topics.Confirm(ctx, project.ID, req.TopicIDs)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	status, err := h.syncStatus(ctx, project)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	utils.JSON(w, http.StatusOK, map[string]any{
		"confirmed":      confirmed,
		"project_status": status,
	})
}

// Delete handles DELETE /api/v1/topics/{topicID}
func (h *TopicHandler) Delete(w http.ResponseWriter, r *http.Request) {
	topic, project, err := h.topic(r, urlParam(r, "topicID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.repos.Topics.Delete(r.Context(), topic.ID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if _, err := h.syncStatus(r.Context(), project); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// syncStatus moves the project to topics_confirmed once every topic is confirmed, and
// back to topics_pending when one is unconfirmed again.
func (h *TopicHandler) syncStatus(ctx context.Context, project *models.Project) (models.ProjectStatus, error) {
	topics, err := h.repos.Topics.ListByProject(ctx, project.ID)
	if err != nil {
		return "", err
	}
	if len(topics) == 0 {
		return project.Status, nil
	}
	allConfirmed := true
	for _, t := range topics {
		if !t.UserConfirmed {
			allConfirmed = false
			break
		}
	}

	status := project.Status
	switch {
	case allConfirmed && status != models.ProjectTopicsConfirmed && status != models.ProjectReady:
		status = models.ProjectTopicsConfirmed
	case !allConfirmed && (status == models.ProjectTopicsConfirmed || status == models.ProjectReady):
		status = models.ProjectTopicsPending
	default:
		return status, nil
	}
	if err := h.repos.Projects.SetStatus(ctx, project.ID, status); err != nil {
		return "", err
	}
	h.logger.Info("project status changed",
		zap.String("project_id", project.ID),
		zap.String("status", string(status)))
	return status, nil
}

func cleanKeywords(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, k := range in {
		k = strings.TrimSpace(k)
		key := utils.NormalizeName(k)
		if k == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, k)
		if len(out) == maxKeywords {
			break
		}
	}
	return out
}
