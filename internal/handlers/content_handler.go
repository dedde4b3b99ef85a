package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/yuin/goldmark"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/harishm17/study-buddy-sub001/internal/content"
	"github.com/harishm17/study-buddy-sub001/internal/jobs"
	"github.com/harishm17/study-buddy-sub001/internal/middleware"
	"github.com/harishm17/study-buddy-sub001/internal/models"
	"github.com/harishm17/study-buddy-sub001/internal/repositories"
	"github.com/harishm17/study-buddy-sub001/internal/utils"
)

type ContentHandler struct {
	owner
	jobs     *jobs.Service
	markdown goldmark.Markdown
	logger   *zap.Logger
}

func NewContentHandler(repos repositories.Set, jobSvc *jobs.Service, logger *zap.Logger) *ContentHandler {
	return &ContentHandler{owner: owner{repos: repos}, jobs: jobSvc, markdown: goldmark.New(), logger: logger}
}

// Generate handles POST /api/v1/topics/{topicID}/content
func (h *ContentHandler) Generate(w http.ResponseWriter, r *http.Request) {
	topic, project, err := h.topic(r, urlParam(r, "topicID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	req := middleware.GetValidatedRequest[*models.GenerateContentRequest](r)
	submit(w, r, h.jobs, h.logger, jobs.SubmitRequest{
		ProjectID: project.ID,
		JobType:   models.JobGenerateContent,
		Input: jobs.ContentInput{
			TopicID:     topic.ID,
			ContentType: req.ContentType,
			Preferences: req.Preferences,
		},
	})
}

// List handles GET /api/v1/topics/{topicID}/content?type=
func (h *ContentHandler) List(w http.ResponseWriter, r *http.Request) {
	topic, _, err := h.topic(r, urlParam(r, "topicID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	contentType := models.ContentType(r.URL.Query().Get("type"))
	if contentType != "" && !models.ValidContentTypes[contentType] {
		utils.JSONError(w, http.StatusBadRequest, "invalid_content_type", "Unknown content type")
		return
	}
	contents, err := h.repos.Content.ListByTopic(r.Context(), topic.ID, contentType)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	for i := range contents {
		contents[i].ContentData = hideAnswers(contents[i].ContentType, contents[i].ContentData)
	}
	utils.JSON(w, http.StatusOK, map[string]any{"content": contents})
}

// Get handles GET /api/v1/content/{contentID}. With ?format=html section notes are
// rendered from markdown.
func (h *ContentHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, _, err := h.content(r, urlParam(r, "contentID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if r.URL.Query().Get("format") != "html" {
		c.ContentData = hideAnswers(c.ContentType, c.ContentData)
		utils.JSON(w, http.StatusOK, c)
		return
	}
	if c.ContentType != models.ContentSectionNotes {
		utils.JSONError(w, http.StatusBadRequest, "html_unsupported", "Only section notes can be rendered as HTML")
		return
	}

	var notes struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(c.ContentData, &notes); err != nil {
		writeError(w, h.logger, err)
		return
	}
	var buf bytes.Buffer
	if err := h.markdown.Convert([]byte(notes.Content), &buf); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// hideAnswers strips answers from quiz and drill payloads. Graded attempts return them.
func hideAnswers(contentType models.ContentType, data datatypes.JSON) datatypes.JSON {
	if contentType != models.ContentTopicQuiz && contentType != models.ContentVoiceDrill {
		return data
	}
	questions, err := content.DecodeQuestions(data)
	if err != nil || len(questions) == 0 {
		return data
	}
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return data
	}
	public := make([]models.Question, len(questions))
	for i, q := range questions {
		public[i] = q.Public()
	}
	payload["questions"] = public
	out, err := json.Marshal(payload)
	if err != nil {
		return data
	}
	return out
}
