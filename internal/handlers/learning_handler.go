package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/harishm17/study-buddy-sub001/internal/content"
	"github.com/harishm17/study-buddy-sub001/internal/grading"
	"github.com/harishm17/study-buddy-sub001/internal/learning"
	"github.com/harishm17/study-buddy-sub001/internal/middleware"
	"github.com/harishm17/study-buddy-sub001/internal/models"
	"github.com/harishm17/study-buddy-sub001/internal/repositories"
	"github.com/harishm17/study-buddy-sub001/internal/utils"
)

const maxActionLimit = 20

type LearningHandler struct {
	owner
	learning *learning.Service
	grader   *grading.Grader
	logger   *zap.Logger
}

func NewLearningHandler(repos repositories.Set, learn *learning.Service, grader *grading.Grader, logger *zap.Logger) *LearningHandler {
	return &LearningHandler{owner: owner{repos: repos}, learning: learn, grader: grader, logger: logger}
}

// Mastery handles GET /api/v1/projects/{projectID}/mastery
func (h *LearningHandler) Mastery(w http.ResponseWriter, r *http.Request) {
	project, err := h.project(r, urlParam(r, "projectID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	topics, err := h.learning.ProjectMastery(r.Context(), middleware.UserID(r), project.ID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	utils.JSON(w, http.StatusOK, map[string]any{"topics": topics})
}

// NextActions handles GET /api/v1/projects/{projectID}/next-actions?limit=
func (h *LearningHandler) NextActions(w http.ResponseWriter, r *http.Request) {
	project, err := h.project(r, urlParam(r, "projectID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	limit := queryInt(r, "limit", learning.DefaultActionLimit, 1, maxActionLimit)
	actions, err := h.learning.NextActions(r.Context(), middleware.UserID(r), project, limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	utils.JSON(w, http.StatusOK, map[string]any{"actions": actions})
}

// DueReviews handles GET /api/v1/projects/{projectID}/reviews/due
func (h *LearningHandler) DueReviews(w http.ResponseWriter, r *http.Request) {
	project, err := h.project(r, urlParam(r, "projectID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	due, err := h.learning.DueReviews(r.Context(), middleware.UserID(r), project.ID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	utils.JSON(w, http.StatusOK, map[string]any{"reviews": due})
}

type quizAttemptResponse struct {
	Result   *grading.Result         `json:"result"`
	Progress *learning.TopicProgress `json:"progress"`
}

// QuizAttempt handles POST /api/v1/topics/{topicID}/quiz-attempts. The quiz is graded
// here and the score feeds the topic's mastery.
func (h *LearningHandler) QuizAttempt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	topic, project, err := h.topic(r, urlParam(r, "topicID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	req := middleware.GetValidatedRequest[*models.QuizAttemptRequest](r)

	quiz, err := h.repos.Content.Get(ctx, req.ContentID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if quiz.TopicID != topic.ID {
		writeError(w, h.logger, repositories.ErrNotFound)
		return
	}
	if quiz.ContentType != models.ContentTopicQuiz {
		utils.JSONError(w, http.StatusBadRequest, "not_a_quiz", "content_id must reference a topic quiz")
		return
	}
	questions, err := content.DecodeQuestions(quiz.ContentData)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if len(questions) == 0 {
		utils.JSONError(w, http.StatusUnprocessableEntity, "empty_quiz", "The quiz has no questions")
		return
	}

	result := h.grader.Grade(ctx, questions, req.Answers)
	details, err := json.Marshal(result)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	progress, err := h.learning.RecordAttempt(ctx, &models.Attempt{
		UserID:    middleware.UserID(r),
		ProjectID: project.ID,
		TopicID:   topic.ID,
		Kind:      models.AttemptQuiz,
		ContentID: quiz.ID,
		Score:     result.Fraction(),
		Details:   datatypes.JSON(details),
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	utils.JSON(w, http.StatusOK, quizAttemptResponse{Result: result, Progress: progress})
}
