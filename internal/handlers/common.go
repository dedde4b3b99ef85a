package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/harishm17/study-buddy-sub001/internal/jobs"
	"github.com/harishm17/study-buddy-sub001/internal/llm"
	"github.com/harishm17/study-buddy-sub001/internal/middleware"
	"github.com/harishm17/study-buddy-sub001/internal/models"
	"github.com/harishm17/study-buddy-sub001/internal/repositories"
	"github.com/harishm17/study-buddy-sub001/internal/utils"
)

// IdempotencyKeyHeader lets a client mark retries of the same request.
const IdempotencyKeyHeader = "Idempotency-Key"

// writeError maps domain errors onto API error responses.
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var apiErr *models.ErrorResponse
	switch {
	case errors.As(err, &apiErr):
		utils.JSON(w, http.StatusBadRequest, apiErr)
	case errors.Is(err, repositories.ErrNotFound):
		utils.JSONError(w, http.StatusNotFound, "not_found", "Resource not found")
	case errors.Is(err, repositories.ErrConflict):
		utils.JSONError(w, http.StatusConflict, "conflict", "Resource already exists")
	case errors.Is(err, jobs.ErrBusy):
		utils.JSONError(w, http.StatusConflict, "job_in_progress", "An identical request is already being submitted")
	case errors.Is(err, context.DeadlineExceeded):
		utils.JSONError(w, http.StatusGatewayTimeout, "timeout", "The request timed out")
	case llm.ErrorCode(err) == llm.ErrCodeRateLimit || llm.IsRateLimitError(err):
		utils.JSONError(w, http.StatusTooManyRequests, llm.ErrCodeRateLimit, "AI provider rate limit reached, try again later")
	case llm.ErrorCode(err) != "":
		logger.Error("llm provider error", zap.Error(err))
		utils.JSONError(w, http.StatusBadGateway, llm.ErrorCode(err), "AI provider request failed")
	default:
		logger.Error("request failed", zap.Error(err))
		utils.JSONError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}

// owner resolves the resources behind URL IDs for the authenticated user.
// Anything the user does not own is reported as not found.
type owner struct {
	repos repositories.Set
}

func (o owner) project(r *http.Request, id string) (*models.Project, error) {
	return o.repos.Projects.GetForUser(r.Context(), id, middleware.UserID(r))
}

func (o owner) topic(r *http.Request, id string) (*models.Topic, *models.Project, error) {
	topic, err := o.repos.Topics.Get(r.Context(), id)
	if err != nil {
		return nil, nil, err
	}
	project, err := o.project(r, topic.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	return topic, project, nil
}

func (o owner) material(r *http.Request, id string) (*models.Material, error) {
	material, err := o.repos.Materials.Get(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if _, err := o.project(r, material.ProjectID); err != nil {
		return nil, err
	}
	return material, nil
}

func (o owner) content(r *http.Request, id string) (*models.TopicContent, *models.Topic, error) {
	c, err := o.repos.Content.Get(r.Context(), id)
	if err != nil {
		return nil, nil, err
	}
	topic, _, err := o.topic(r, c.TopicID)
	if err != nil {
		return nil, nil, err
	}
	return c, topic, nil
}

func (o owner) exam(r *http.Request, id string) (*models.SampleExam, error) {
	exam, err := o.repos.Exams.GetExam(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if _, err := o.project(r, exam.ProjectID); err != nil {
		return nil, err
	}
	return exam, nil
}

// submit queues a job and writes 202 with the job, or the existing job when deduplicated.
func submit(w http.ResponseWriter, r *http.Request, svc *jobs.Service, logger *zap.Logger, req jobs.SubmitRequest) {
	req.UserID = middleware.UserID(r)
	req.ClientKey = r.Header.Get(IdempotencyKeyHeader)
	job, deduplicated, err := svc.Submit(r.Context(), req)
	if err != nil {
		writeError(w, logger, err)
		return
	}
	utils.JSON(w, http.StatusAccepted, models.JobResponse{Job: job, Deduplicated: deduplicated})
}

func queryInt(r *http.Request, name string, def, lo, hi int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return def
	}
	return utils.Clamp(v, lo, hi)
}

func urlParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}
