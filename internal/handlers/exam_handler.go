package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/harishm17/study-buddy-sub001/internal/content"
	"github.com/harishm17/study-buddy-sub001/internal/jobs"
	"github.com/harishm17/study-buddy-sub001/internal/middleware"
	"github.com/harishm17/study-buddy-sub001/internal/models"
	"github.com/harishm17/study-buddy-sub001/internal/repositories"
	"github.com/harishm17/study-buddy-sub001/internal/utils"
)

type ExamHandler struct {
	owner
	jobs   *jobs.Service
	logger *zap.Logger
	now    func() time.Time
}

func NewExamHandler(repos repositories.Set, jobSvc *jobs.Service, logger *zap.Logger) *ExamHandler {
	return &ExamHandler{owner: owner{repos: repos}, jobs: jobSvc, logger: logger, now: time.Now}
}

// Generate handles POST /api/v1/projects/{projectID}/exams. Without topic_ids the
// exam covers every confirmed topic.
func (h *ExamHandler) Generate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	project, err := h.project(r, urlParam(r, "projectID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	req := middleware.GetValidatedRequest[*models.GenerateExamRequest](r)

	var topicIDs []string
	if len(req.TopicIDs) == 0 {
		topics, err := h.repos.Topics.ListByProject(ctx, project.ID)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		for _, t := range topics {
			if t.UserConfirmed {
				topicIDs = append(topicIDs, t.ID)
			}
		}
		if len(topicIDs) == 0 {
			utils.JSONError(w, http.StatusBadRequest, "no_confirmed_topics", "Confirm at least one topic before generating an exam")
			return
		}
	} else {
		unique := dedupe(req.TopicIDs)
		if len(unique) == 0 {
			utils.JSONError(w, http.StatusBadRequest, "invalid_topics", "topic_ids must not be blank")
			return
		}
		topics, err := h.repos.Topics.ListByIDs(ctx, project.ID, unique)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		if len(topics) != len(unique) {
			utils.JSONError(w, http.StatusBadRequest, "invalid_topics", "Some topic_ids do not belong to this project")
			return
		}
		for _, t := range topics {
			topicIDs = append(topicIDs, t.ID)
		}
	}

	submit(w, r, h.jobs, h.logger, jobs.SubmitRequest{
		ProjectID: project.ID,
		JobType:   models.JobGenerateExam,
		Input: jobs.ExamInput{
			ProjectID: project.ID,
			TopicIDs:  topicIDs,
			Config: content.ExamConfig{
				QuestionCount:   req.QuestionCount,
				DurationMinutes: req.DurationMinutes,
				Difficulty:      req.DifficultyLevel,
				Distribution:    req.QuestionTypeDistribution,
			},
		},
	})
}

// List handles GET /api/v1/projects/{projectID}/exams
func (h *ExamHandler) List(w http.ResponseWriter, r *http.Request) {
	project, err := h.project(r, urlParam(r, "projectID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	exams, err := h.repos.Exams.ListExams(r.Context(), project.ID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	for i := range exams {
		exams[i].Questions = publicQuestions(exams[i].Questions)
	}
	utils.JSON(w, http.StatusOK, map[string]any{"exams": exams})
}

// Get handles GET /api/v1/exams/{examID}; answers and explanations are stripped.
func (h *ExamHandler) Get(w http.ResponseWriter, r *http.Request) {
	exam, err := h.exam(r, urlParam(r, "examID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	exam.Questions = publicQuestions(exam.Questions)
	utils.JSON(w, http.StatusOK, exam)
}

type submissionResponse struct {
	Submission   *models.ExamSubmission `json:"submission"`
	Job          *models.ProcessingJob  `json:"job"`
	Deduplicated bool                   `json:"deduplicated"`
}

// Submit handles POST /api/v1/exams/{examID}/submissions
func (h *ExamHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	exam, err := h.exam(r, urlParam(r, "examID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	req := middleware.GetValidatedRequest[*models.SubmitExamRequest](r)
	answers, err := json.Marshal(req.Answers)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	sub := &models.ExamSubmission{
		ExamID:      exam.ID,
		UserID:      middleware.UserID(r),
		Answers:     datatypes.JSON(answers),
		TotalPoints: exam.TotalPoints,
		SubmittedAt: h.now(),
	}
	if err := h.repos.Exams.CreateSubmission(ctx, sub); err != nil {
		writeError(w, h.logger, err)
		return
	}

	job, deduplicated, err := h.jobs.Submit(ctx, jobs.SubmitRequest{
		UserID:    sub.UserID,
		ProjectID: exam.ProjectID,
		JobType:   models.JobGradeExam,
		Input:     jobs.SubmissionInput{SubmissionID: sub.ID},
		ClientKey: r.Header.Get(IdempotencyKeyHeader),
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	utils.JSON(w, http.StatusAccepted, submissionResponse{Submission: sub, Job: job, Deduplicated: deduplicated})
}

// GetSubmission handles GET /api/v1/submissions/{submissionID}
func (h *ExamHandler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	sub, err := h.repos.Exams.GetSubmission(r.Context(), urlParam(r, "submissionID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if sub.UserID != middleware.UserID(r) {
		writeError(w, h.logger, repositories.ErrNotFound)
		return
	}
	utils.JSON(w, http.StatusOK, sub)
}

// publicQuestions rewrites a stored question array without answers. Rows that do not
// decode are returned empty rather than leaking their content.
func publicQuestions(data datatypes.JSON) datatypes.JSON {
	var questions []models.Question
	if len(data) == 0 || json.Unmarshal(data, &questions) != nil {
		return datatypes.JSON("[]")
	}
	for i := range questions {
		questions[i] = questions[i].Public()
	}
	out, err := json.Marshal(questions)
	if err != nil {
		return datatypes.JSON("[]")
	}
	return out
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
