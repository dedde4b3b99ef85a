package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/harishm17/study-buddy-sub001/internal/middleware"
	"github.com/harishm17/study-buddy-sub001/internal/models"
	"github.com/harishm17/study-buddy-sub001/internal/repositories"
	"github.com/harishm17/study-buddy-sub001/internal/tasks"
	"github.com/harishm17/study-buddy-sub001/internal/utils"
)

type JobHandler struct {
	owner
	handler tasks.Handler
	logger  *zap.Logger
}

// NewJobHandler serves job status and the internal endpoint task queues deliver to.
func NewJobHandler(repos repositories.Set, handler tasks.Handler, logger *zap.Logger) *JobHandler {
	return &JobHandler{owner: owner{repos: repos}, handler: handler, logger: logger}
}

// Get handles GET /api/v1/jobs/{jobID}
func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	job, err := h.repos.Jobs.GetForUser(r.Context(), urlParam(r, "jobID"), middleware.UserID(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	utils.JSON(w, http.StatusOK, job)
}

// ListByProject handles GET /api/v1/projects/{projectID}/jobs?status=
func (h *JobHandler) ListByProject(w http.ResponseWriter, r *http.Request) {
	project, err := h.project(r, urlParam(r, "projectID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	status := models.JobStatus(r.URL.Query().Get("status"))
	switch status {
	case "", models.JobPending, models.JobProcessing, models.JobCompleted, models.JobFailed:
	default:
		utils.JSONError(w, http.StatusBadRequest, "invalid_status", "status must be pending, processing, completed or failed")
		return
	}
	list, err := h.repos.Jobs.ListByProject(r.Context(), project.ID, status)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	utils.JSON(w, http.StatusOK, map[string]any{"jobs": list})
}

// Run handles POST /internal/jobs/{jobType}. A job that fails inside its step is
// answered with 200 since the row already records the failure; only jobs that could
// not be run at all get a 5xx so the queue retries them.
func (h *JobHandler) Run(w http.ResponseWriter, r *http.Request) {
	jobType := urlParam(r, "jobType")
	if !models.ValidJobTypes[models.JobType(jobType)] {
		utils.JSONError(w, http.StatusNotFound, "unknown_job_type", "Unknown job type")
		return
	}
	var payload tasks.JobPayload
	if err := utils.DecodeJSON(r, &payload); err != nil || payload.JobID == "" {
		utils.JSONError(w, http.StatusBadRequest, "invalid_payload", "Expected a task payload with jobId")
		return
	}
	if payload.JobType == "" {
		payload.JobType = jobType
	}
	if payload.JobType != jobType {
		utils.JSONError(w, http.StatusBadRequest, "job_type_mismatch", "Payload job type does not match the endpoint")
		return
	}

	handleErr := h.handler.Handle(r.Context(), payload)
	job, err := h.repos.Jobs.Get(r.Context(), payload.JobID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if handleErr != nil && !job.Terminal() {
		h.logger.Error("task delivery failed", zap.String("job_id", job.ID), zap.Error(handleErr))
		utils.JSONError(w, http.StatusInternalServerError, "job_not_run", "Job could not be processed")
		return
	}
	utils.JSON(w, http.StatusOK, map[string]any{
		"job_id": job.ID,
		"status": job.Status,
	})
}
