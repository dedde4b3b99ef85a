package models

import (
	"testing"
	"time"
)

func expectErrCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error code %s but got nil", code)
	}
	resp, ok := err.(*ErrorResponse)
	if !ok {
		t.Fatalf("expected ErrorResponse, got %T", err)
	}
	if resp.Code != code {
		t.Fatalf("expected error code %s, got %s", code, resp.Code)
	}
}

func TestErrorResponse_Error(t *testing.T) {
	err := &ErrorResponse{Message: "failed"}
	if err.Error() != "failed" {
		t.Fatalf("expected message to be returned, got %s", err.Error())
	}
}

func TestRegisterRequestValidate(t *testing.T) {
	expectErrCode(t, (&RegisterRequest{}).Validate(), "missing_email")
	expectErrCode(t, (&RegisterRequest{Email: "nope"}).Validate(), "invalid_email")
	expectErrCode(t, (&RegisterRequest{Email: "a@b.com"}).Validate(), "missing_name")
	expectErrCode(t, (&RegisterRequest{Email: "a@b.com", Name: "A", Password: "short!"}).Validate(), "weak_password")
	expectErrCode(t, (&RegisterRequest{Email: "a@b.com", Name: "A", Password: "longenough1"}).Validate(), "weak_password")

	req := &RegisterRequest{Email: "  Ada@Example.COM ", Name: " Ada ", Password: "correct-horse"}
	if err := req.Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}
	if req.Email != "ada@example.com" || req.Name != "Ada" {
		t.Fatalf("expected normalized fields, got %+v", req)
	}
}

func TestProjectRequestsValidate(t *testing.T) {
	expectErrCode(t, (&CreateProjectRequest{Name: "   "}).Validate(), "missing_name")

	long := make([]byte, 201)
	for i := range long {
		long[i] = 'a'
	}
	expectErrCode(t, (&CreateProjectRequest{Name: string(long)}).Validate(), "name_too_long")

	empty := "  "
	expectErrCode(t, (&UpdateProjectRequest{Name: &empty}).Validate(), "missing_name")

	name := " Biology "
	upd := &UpdateProjectRequest{Name: &name}
	if err := upd.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *upd.Name != "Biology" {
		t.Fatalf("expected trimmed name, got %q", *upd.Name)
	}
}

func TestUpdateTopicRequestValidate(t *testing.T) {
	expectErrCode(t, (&UpdateTopicRequest{}).Validate(), "empty_update")
	blank := ""
	expectErrCode(t, (&UpdateTopicRequest{Name: &blank}).Validate(), "missing_name")
	confirmed := true
	if err := (&UpdateTopicRequest{UserConfirmed: &confirmed}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGenerateContentRequestValidate(t *testing.T) {
	expectErrCode(t, (&GenerateContentRequest{}).Validate(), "missing_content_type")
	expectErrCode(t, (&GenerateContentRequest{ContentType: "poems"}).Validate(), "invalid_content_type")
	expectErrCode(t, (&GenerateContentRequest{ContentType: ContentVoiceDrill}).Validate(), "invalid_content_type")

	req := &GenerateContentRequest{ContentType: ContentTopicQuiz}
	if err := req.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Preferences == nil {
		t.Fatal("expected preferences to default to an empty map")
	}
}

func TestGenerateExamRequestDefaults(t *testing.T) {
	req := &GenerateExamRequest{}
	if err := req.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.QuestionCount != 20 || req.DurationMinutes != 120 || req.DifficultyLevel != "medium" {
		t.Fatalf("unexpected defaults: %+v", req)
	}
	if req.QuestionTypeDistribution["multiple_choice"] != 60 {
		t.Fatalf("expected default distribution, got %v", req.QuestionTypeDistribution)
	}
}

func TestGenerateExamRequestValidate(t *testing.T) {
	expectErrCode(t, (&GenerateExamRequest{QuestionCount: 500}).Validate(), "invalid_question_count")
	expectErrCode(t, (&GenerateExamRequest{DurationMinutes: 1}).Validate(), "invalid_duration")
	expectErrCode(t, (&GenerateExamRequest{DifficultyLevel: "brutal"}).Validate(), "invalid_difficulty")
	expectErrCode(t, (&GenerateExamRequest{QuestionTypeDistribution: map[string]int{"essay": 100}}).Validate(), "invalid_distribution")
	expectErrCode(t, (&GenerateExamRequest{QuestionTypeDistribution: map[string]int{"numerical": 50}}).Validate(), "invalid_distribution")
}

func TestVoiceRequestsValidate(t *testing.T) {
	expectErrCode(t, (&VoiceDrillRequest{Count: 2}).Validate(), "invalid_count")
	drill := &VoiceDrillRequest{}
	if err := drill.Validate(); err != nil || drill.Count != 10 || drill.Difficulty != "medium" {
		t.Fatalf("unexpected drill defaults %+v err=%v", drill, err)
	}

	expectErrCode(t, (&VoiceAttemptRequest{}).Validate(), "missing_transcript")
	expectErrCode(t, (&VoiceAttemptRequest{Transcript: "answer"}).Validate(), "missing_reference")
	idx := 1
	expectErrCode(t, (&VoiceAttemptRequest{Transcript: "answer", QuestionIndex: &idx}).Validate(), "invalid_question_reference")
	if err := (&VoiceAttemptRequest{Transcript: "answer", KeyPoints: []string{"x"}}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFeedbackRequestValidate(t *testing.T) {
	expectErrCode(t, (&FeedbackRequest{}).Validate(), "missing_is_positive")
	yes := true
	if err := (&FeedbackRequest{IsPositive: &yes}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestProjectDaysUntilExam(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	p := &Project{}
	if p.DaysUntilExam(now) != -1 {
		t.Fatal("expected -1 without exam date")
	}
	exam := now.Add(72 * time.Hour)
	p.ExamDate = &exam
	if got := p.DaysUntilExam(now); got != 3 {
		t.Fatalf("expected 3 days, got %d", got)
	}
	past := now.Add(-time.Hour)
	p.ExamDate = &past
	if got := p.DaysUntilExam(now); got != 0 {
		t.Fatalf("expected 0 for a past exam, got %d", got)
	}
}
