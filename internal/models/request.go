package models

import (
	"net/mail"
	"strings"
	"time"
	"unicode"
)

const maxNameLength = 200

type RegisterRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// implements the Validator interface
func (r *RegisterRequest) Validate() error {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Name = strings.TrimSpace(r.Name)

	if r.Email == "" {
		return &ErrorResponse{Code: "missing_email", Message: "Email field is required"}
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return &ErrorResponse{Code: "invalid_email", Message: "Email address is not valid"}
	}
	if r.Name == "" {
		return &ErrorResponse{Code: "missing_name", Message: "Name field is required"}
	}
	if !strongPassword(r.Password) {
		return &ErrorResponse{
			Code:    "weak_password",
			Message: "Password must be at least 8 characters and contain a special character",
		}
	}
	return nil
}

func strongPassword(pw string) bool {
	if len(pw) < 8 {
		return false
	}
	for _, r := range pw {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *LoginRequest) Validate() error {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	if r.Email == "" || r.Password == "" {
		return &ErrorResponse{Code: "missing_credentials", Message: "Email and password are required"}
	}
	return nil
}

type CreateProjectRequest struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	ExamDate    *time.Time `json:"exam_date"`
}

func (r *CreateProjectRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return &ErrorResponse{Code: "missing_name", Message: "Project name is required"}
	}
	if len(r.Name) > maxNameLength {
		return &ErrorResponse{Code: "name_too_long", Message: "Project name must be at most 200 characters"}
	}
	return nil
}

type UpdateProjectRequest struct {
	Name          *string    `json:"name"`
	Description   *string    `json:"description"`
	ExamDate      *time.Time `json:"exam_date"`
	ClearExamDate bool       `json:"clear_exam_date"`
}

func (r *UpdateProjectRequest) Validate() error {
	if r.Name != nil {
		trimmed := strings.TrimSpace(*r.Name)
		if trimmed == "" {
			return &ErrorResponse{Code: "missing_name", Message: "Project name cannot be empty"}
		}
		if len(trimmed) > maxNameLength {
			return &ErrorResponse{Code: "name_too_long", Message: "Project name must be at most 200 characters"}
		}
		r.Name = &trimmed
	}
	return nil
}

type UpdateTopicRequest struct {
	Name          *string  `json:"name"`
	Description   *string  `json:"description"`
	Keywords      []string `json:"keywords"`
	UserConfirmed *bool    `json:"user_confirmed"`
}

func (r *UpdateTopicRequest) Validate() error {
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		return &ErrorResponse{Code: "missing_name", Message: "Topic name cannot be empty"}
	}
	if r.Name == nil && r.Description == nil && r.Keywords == nil && r.UserConfirmed == nil {
		return &ErrorResponse{Code: "empty_update", Message: "At least one field must be provided"}
	}
	return nil
}

type ConfirmTopicsRequest struct {
	TopicIDs []string `json:"topic_ids"`
}

func (r *ConfirmTopicsRequest) Validate() error { return nil }

type GenerateContentRequest struct {
	ContentType ContentType    `json:"content_type"`
	Preferences map[string]any `json:"preferences"`
}

func (r *GenerateContentRequest) Validate() error {
	if r.ContentType == "" {
		return &ErrorResponse{Code: "missing_content_type", Message: "content_type is required"}
	}
	if !ValidContentTypes[r.ContentType] || r.ContentType == ContentVoiceDrill {
		return &ErrorResponse{
			Code:    "invalid_content_type",
			Message: "content_type must be one of: section_notes, solved_examples, interactive_examples, topic_quiz",
		}
	}
	if r.Preferences == nil {
		r.Preferences = map[string]any{}
	}
	return nil
}

// question type mix used when a request does not give one
var DefaultQuestionDistribution = map[string]int{
	"multiple_choice": 60,
	"short_answer":    30,
	"numerical":       10,
}

var ValidQuestionTypes = map[string]bool{
	"multiple_choice": true,
	"short_answer":    true,
	"numerical":       true,
	"true_false":      true,
}

var ValidDifficulties = map[string]bool{
	"easy":   true,
	"medium": true,
	"hard":   true,
}

type GenerateExamRequest struct {
	TopicIDs                 []string       `json:"topic_ids"`
	QuestionCount            int            `json:"question_count"`
	DurationMinutes          int            `json:"duration_minutes"`
	DifficultyLevel          string         `json:"difficulty_level"`
	QuestionTypeDistribution map[string]int `json:"question_type_distribution"`
}

func (r *GenerateExamRequest) Validate() error {
	if r.QuestionCount == 0 {
		r.QuestionCount = 20
	}
	if r.DurationMinutes == 0 {
		r.DurationMinutes = 120
	}
	r.DifficultyLevel = strings.ToLower(strings.TrimSpace(r.DifficultyLevel))
	if r.DifficultyLevel == "" {
		r.DifficultyLevel = "medium"
	}
	if len(r.QuestionTypeDistribution) == 0 {
		r.QuestionTypeDistribution = DefaultQuestionDistribution
	}

	if r.QuestionCount < 1 || r.QuestionCount > 100 {
		return &ErrorResponse{Code: "invalid_question_count", Message: "question_count must be between 1 and 100"}
	}
	if r.DurationMinutes < 5 || r.DurationMinutes > 480 {
		return &ErrorResponse{Code: "invalid_duration", Message: "duration_minutes must be between 5 and 480"}
	}
	if !ValidDifficulties[r.DifficultyLevel] {
		return &ErrorResponse{Code: "invalid_difficulty", Message: "difficulty_level must be easy, medium or hard"}
	}

	total := 0
	var details []ValidationErrorDetail
	for qt, pct := range r.QuestionTypeDistribution {
		if !ValidQuestionTypes[qt] {
			details = append(details, ValidationErrorDetail{Field: qt, Reason: "unknown question type"})
		}
		if pct < 0 {
			details = append(details, ValidationErrorDetail{Field: qt, Reason: "percentage must not be negative"})
		}
		total += pct
	}
	if len(details) > 0 {
		return &ErrorResponse{Code: "invalid_distribution", Message: "question_type_distribution is invalid", Details: details}
	}
	if total != 100 {
		return &ErrorResponse{Code: "invalid_distribution", Message: "question_type_distribution must sum to 100"}
	}
	return nil
}

type SubmitExamRequest struct {
	Answers map[string]any `json:"answers"`
}

func (r *SubmitExamRequest) Validate() error {
	if r.Answers == nil {
		r.Answers = map[string]any{}
	}
	return nil
}

type QuizAttemptRequest struct {
	ContentID string         `json:"content_id"`
	Answers   map[string]any `json:"answers"`
}

func (r *QuizAttemptRequest) Validate() error {
	if r.ContentID == "" {
		return &ErrorResponse{Code: "missing_content_id", Message: "content_id is required"}
	}
	if r.Answers == nil {
		r.Answers = map[string]any{}
	}
	return nil
}

type VoiceDrillRequest struct {
	Count      int    `json:"count"`
	Difficulty string `json:"difficulty"`
	Regenerate bool   `json:"regenerate"`
}

func (r *VoiceDrillRequest) Validate() error {
	if r.Count == 0 {
		r.Count = 10
	}
	if r.Count < 3 || r.Count > 20 {
		return &ErrorResponse{Code: "invalid_count", Message: "count must be between 3 and 20"}
	}
	r.Difficulty = strings.ToLower(strings.TrimSpace(r.Difficulty))
	if r.Difficulty == "" {
		r.Difficulty = "medium"
	}
	if !ValidDifficulties[r.Difficulty] {
		return &ErrorResponse{Code: "invalid_difficulty", Message: "difficulty must be easy, medium or hard"}
	}
	return nil
}

type VoiceAttemptRequest struct {
	ContentID     string   `json:"content_id"`
	QuestionIndex *int     `json:"question_index"`
	QuestionText  string   `json:"question_text"`
	KeyPoints     []string `json:"key_points"`
	SampleAnswer  string   `json:"sample_answer"`
	Transcript    string   `json:"transcript"`
}

func (r *VoiceAttemptRequest) Validate() error {
	if strings.TrimSpace(r.Transcript) == "" {
		return &ErrorResponse{Code: "missing_transcript", Message: "transcript is required"}
	}
	if r.QuestionIndex == nil && len(r.KeyPoints) == 0 && strings.TrimSpace(r.SampleAnswer) == "" {
		return &ErrorResponse{
			Code:    "missing_reference",
			Message: "Either question_index or key_points/sample_answer must be provided",
		}
	}
	if r.QuestionIndex != nil && (r.ContentID == "" || *r.QuestionIndex < 0) {
		return &ErrorResponse{Code: "invalid_question_reference", Message: "question_index requires content_id and must not be negative"}
	}
	return nil
}

type FeedbackRequest struct {
	IsPositive *bool  `json:"is_positive"`
	Comment    string `json:"comment"`
}

func (r *FeedbackRequest) Validate() error {
	if r.IsPositive == nil {
		return &ErrorResponse{Code: "missing_is_positive", Message: "is_positive is required"}
	}
	if len(r.Comment) > 2000 {
		return &ErrorResponse{Code: "comment_too_long", Message: "comment must be at most 2000 characters"}
	}
	return nil
}

// JobResponse is returned whenever work is queued.
type JobResponse struct {
	Job          *ProcessingJob `json:"job"`
	Deduplicated bool           `json:"deduplicated"`
}
