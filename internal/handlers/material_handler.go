package handlers

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harishm17/study-buddy-sub001/internal/jobs"
	"github.com/harishm17/study-buddy-sub001/internal/metrics"
	"github.com/harishm17/study-buddy-sub001/internal/models"
	"github.com/harishm17/study-buddy-sub001/internal/repositories"
	"github.com/harishm17/study-buddy-sub001/internal/storage"
	"github.com/harishm17/study-buddy-sub001/internal/utils"
)

const multipartMemory = 32 << 20

type MaterialHandler struct {
	owner
	store    storage.ObjectStore
	jobs     *jobs.Service
	maxBytes int64
	urlTTL   time.Duration
	logger   *zap.Logger
}

func NewMaterialHandler(repos repositories.Set, store storage.ObjectStore, jobSvc *jobs.Service, maxBytes int64, urlTTL time.Duration, logger *zap.Logger) *MaterialHandler {
	if maxBytes <= 0 {
		maxBytes = 50 << 20
	}
	if urlTTL <= 0 {
		urlTTL = 15 * time.Minute
	}
	return &MaterialHandler{
		owner:    owner{repos: repos},
		store:    store,
		jobs:     jobSvc,
		maxBytes: maxBytes,
		urlTTL:   urlTTL,
		logger:   logger,
	}
}

type uploadResponse struct {
	Material     *models.Material      `json:"material"`
	Job          *models.ProcessingJob `json:"job"`
	Deduplicated bool                  `json:"deduplicated"`
}

// discardUpload removes a material row and its object after a failed upload.
func (h *MaterialHandler) discardUpload(ctx context.Context, material *models.Material) {
	ctx = context.WithoutCancel(ctx)
	if err := h.repos.Materials.Delete(ctx, material.ID); err != nil {
		h.logger.Warn("failed to remove orphaned material", zap.String("material_id", material.ID), zap.Error(err))
	}
	h.discardObject(ctx, material.ObjectKey)
}

func (h *MaterialHandler) discardObject(ctx context.Context, key string) {
	if err := h.store.Delete(context.WithoutCancel(ctx), key); err != nil {
		h.logger.Warn("failed to remove orphaned upload", zap.String("key", key), zap.Error(err))
	}
}

// Upload handles POST /api/v1/projects/{projectID}/materials (multipart: file, category)
func (h *MaterialHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	project, err := h.project(r, urlParam(r, "projectID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+1<<20)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.JSONError(w, http.StatusRequestEntityTooLarge, "file_too_large", "File exceeds the upload size limit")
			return
		}
		utils.JSONError(w, http.StatusBadRequest, "invalid_form", "Expected a multipart form with a file field")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		utils.JSONError(w, http.StatusBadRequest, "missing_file", "file field is required")
		return
	}
	defer file.Close()

	category := models.MaterialCategory(r.FormValue("category"))
	if category == "" {
		category = models.CategoryOther
	}
	if !models.ValidCategories[category] {
		utils.JSONError(w, http.StatusBadRequest, "invalid_category",
			"category must be one of: lecture_notes, sample_exams, book_chapters, other")
		return
	}
	ext := utils.NormalizeExtension(header.Filename)
	if !models.AllowedExtensions[ext] {
		utils.JSONError(w, http.StatusBadRequest, "unsupported_file_type", "Allowed file types: .pdf, .docx, .pptx, .txt, .md")
		return
	}
	if header.Size > h.maxBytes {
		utils.JSONError(w, http.StatusRequestEntityTooLarge, "file_too_large", "File exceeds the upload size limit")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		if byExt := mime.TypeByExtension(ext); byExt != "" {
			contentType = byExt
		}
	}

	material := &models.Material{
		ProjectID:        project.ID,
		Filename:         header.Filename,
		Category:         category,
		ContentType:      contentType,
		SizeBytes:        header.Size,
		ValidationStatus: models.ValidationPending,
	}
	material.ID = uuid.NewString()
	material.ObjectKey = storage.MaterialObjectKey(project.ID, material.ID, header.Filename)

	if err := h.store.Put(ctx, material.ObjectKey, file, contentType); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.repos.Materials.Create(ctx, material); err != nil {
		h.discardObject(ctx, material.ObjectKey)
		writeError(w, h.logger, err)
		return
	}
	if err := h.repos.Projects.SetStatus(ctx, project.ID, models.ProjectMaterialsUploaded); err != nil {
		h.discardUpload(ctx, material)
		writeError(w, h.logger, err)
		return
	}

	job, deduplicated, err := h.jobs.Submit(ctx, jobs.SubmitRequest{
		UserID:    project.UserID,
		ProjectID: project.ID,
		JobType:   models.JobValidateMaterial,
		Input:     jobs.MaterialInput{MaterialID: material.ID},
		ClientKey: r.Header.Get(IdempotencyKeyHeader),
	})
	if err != nil {
		// nothing would ever validate the row, so the client retries from scratch
		h.discardUpload(ctx, material)
		writeError(w, h.logger, err)
		return
	}
	metrics.ObserveUpload(string(category), ext, material.SizeBytes)

	h.logger.Info("material uploaded",
		zap.String("material_id", material.ID),
		zap.String("project_id", project.ID),
		zap.Int64("size_bytes", material.SizeBytes))
	utils.JSON(w, http.StatusCreated, uploadResponse{Material: material, Job: job, Deduplicated: deduplicated})
}

// List handles GET /api/v1/projects/{projectID}/materials
func (h *MaterialHandler) List(w http.ResponseWriter, r *http.Request) {
	project, err := h.project(r, urlParam(r, "projectID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	materials, err := h.repos.Materials.ListByProject(r.Context(), project.ID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	utils.JSON(w, http.StatusOK, map[string]any{"materials": materials})
}

// Get handles GET /api/v1/materials/{materialID}
func (h *MaterialHandler) Get(w http.ResponseWriter, r *http.Request) {
	material, err := h.material(r, urlParam(r, "materialID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	utils.JSON(w, http.StatusOK, material)
}

// Download handles GET /api/v1/materials/{materialID}/download. Stores that can sign
// URLs answer with one; the local store streams the file.
func (h *MaterialHandler) Download(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	material, err := h.material(r, urlParam(r, "materialID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	url, err := h.store.URL(ctx, material.ObjectKey, h.urlTTL)
	if err == nil {
		utils.JSON(w, http.StatusOK, map[string]any{
			"url":        url,
			"expires_at": time.Now().Add(h.urlTTL).UTC(),
		})
		return
	}
	if !errors.Is(err, storage.ErrURLUnsupported) {
		writeError(w, h.logger, err)
		return
	}

	rc, err := h.store.Open(ctx, material.ObjectKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			utils.JSONError(w, http.StatusNotFound, "not_found", "Stored file is missing")
			return
		}
		writeError(w, h.logger, err)
		return
	}
	defer rc.Close()

	contentType := material.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": material.Filename}))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("material download interrupted", zap.String("material_id", material.ID), zap.Error(err))
	}
}

// Delete handles DELETE /api/v1/materials/{materialID}
func (h *MaterialHandler) Delete(w http.ResponseWriter, r *http.Request) {
	material, err := h.material(r, urlParam(r, "materialID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.repos.Materials.Delete(r.Context(), material.ID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.store.Delete(r.Context(), material.ObjectKey); err != nil && !errors.Is(err, storage.ErrNotFound) {
		h.logger.Warn("failed to delete material object", zap.String("key", material.ObjectKey), zap.Error(err))
	}
	w.WriteHeader(http.StatusNoContent)
}
