package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/harishm17/study-buddy-sub001/internal/middleware"
	"github.com/harishm17/study-buddy-sub001/internal/models"
	"github.com/harishm17/study-buddy-sub001/internal/repositories"
	"github.com/harishm17/study-buddy-sub001/internal/utils"
	"github.com/harishm17/study-buddy-sub001/internal/voice"
)

type VoiceHandler struct {
	owner
	voice  *voice.Service
	logger *zap.Logger
}

func NewVoiceHandler(repos repositories.Set, svc *voice.Service, logger *zap.Logger) *VoiceHandler {
	return &VoiceHandler{owner: owner{repos: repos}, voice: svc, logger: logger}
}

// Drill handles POST /api/v1/topics/{topicID}/voice-drill. A reused drill answers 200,
// a fresh one 201.
func (h *VoiceHandler) Drill(w http.ResponseWriter, r *http.Request) {
	topic, _, err := h.topic(r, urlParam(r, "topicID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	req := middleware.GetValidatedRequest[*models.VoiceDrillRequest](r)

	drill, err := h.voice.Drill(r.Context(), topic, *req)
	switch {
	case errors.Is(err, voice.ErrNoSource):
		utils.JSONError(w, http.StatusBadRequest, "no_source", "Generate notes or map materials to this topic first")
		return
	case errors.Is(err, voice.ErrEmptyDrill):
		utils.JSONError(w, http.StatusUnprocessableEntity, "empty_drill", err.Error())
		return
	case err != nil:
		writeError(w, h.logger, err)
		return
	}

	for i := range drill.Questions {
		drill.Questions[i] = drill.Questions[i].Public()
	}
	drill.Content.ContentData = hideAnswers(drill.Content.ContentType, drill.Content.ContentData)
	status := http.StatusCreated
	if drill.Reused {
		status = http.StatusOK
	}
	utils.JSON(w, status, drill)
}

// Attempt handles POST /api/v1/topics/{topicID}/voice-attempts
func (h *VoiceHandler) Attempt(w http.ResponseWriter, r *http.Request) {
	topic, _, err := h.topic(r, urlParam(r, "topicID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	req := middleware.GetValidatedRequest[*models.VoiceAttemptRequest](r)

	result, err := h.voice.GradeAttempt(r.Context(), middleware.UserID(r), topic, *req)
	if errors.Is(err, voice.ErrQuestionNotFound) {
		utils.JSONError(w, http.StatusNotFound, "question_not_found", err.Error())
		return
	}
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	utils.JSON(w, http.StatusOK, result)
}
