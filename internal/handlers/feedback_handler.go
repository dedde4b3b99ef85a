package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/harishm17/study-buddy-sub001/internal/feedback"
	"github.com/harishm17/study-buddy-sub001/internal/middleware"
	"github.com/harishm17/study-buddy-sub001/internal/models"
	"github.com/harishm17/study-buddy-sub001/internal/repositories"
	"github.com/harishm17/study-buddy-sub001/internal/utils"
)

type FeedbackHandler struct {
	owner
	manager  *feedback.Manager
	exporter *feedback.Exporter
	logger   *zap.Logger
}

// NewFeedbackHandler wires the feedback endpoints. exporter may be nil when exports
// are disabled.
func NewFeedbackHandler(repos repositories.Set, manager *feedback.Manager, exporter *feedback.Exporter, logger *zap.Logger) *FeedbackHandler {
	return &FeedbackHandler{owner: owner{repos: repos}, manager: manager, exporter: exporter, logger: logger}
}

// Submit handles POST /api/v1/content/{contentID}/feedback
func (h *FeedbackHandler) Submit(w http.ResponseWriter, r *http.Request) {
	c, _, err := h.content(r, urlParam(r, "contentID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	req := middleware.GetValidatedRequest[*models.FeedbackRequest](r)

	fb, err := h.manager.Submit(r.Context(), middleware.UserID(r), c, *req.IsPositive, req.Comment)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	utils.JSON(w, http.StatusOK, fb)
}

// Stats handles GET /api/v1/feedback/stats
func (h *FeedbackHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.manager.Stats(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	utils.JSON(w, http.StatusOK, stats)
}

// Export handles POST /internal/feedback/export, for schedulers outside the process.
func (h *FeedbackHandler) Export(w http.ResponseWriter, r *http.Request) {
	if h.exporter == nil {
		utils.JSONError(w, http.StatusNotFound, "export_disabled", "Feedback export is not enabled")
		return
	}
	key, err := h.exporter.RunOnce(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	utils.JSON(w, http.StatusOK, map[string]any{
		"exported": key != "",
		"key":      key,
	})
}
