package grading

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/harishm17/study-buddy-sub001/internal/llm"
	"github.com/harishm17/study-buddy-sub001/internal/models"
	"github.com/harishm17/study-buddy-sub001/internal/prompts"
)

const notAnswered = "Question not answered"

type GradedQuestion struct {
	QuestionIndex  int     `json:"question_index"`
	QuestionText   string  `json:"question_text"`
	QuestionType   string  `json:"question_type"`
	TopicID        string  `json:"topic_id,omitempty"`
	PointsPossible float64 `json:"points_possible"`
	PointsEarned   float64 `json:"points_earned"`
	IsCorrect      bool    `json:"is_correct"`
	StudentAnswer  any     `json:"student_answer"`
	Feedback       string  `json:"feedback"`
	CorrectAnswer  any     `json:"correct_answer,omitempty"`
}

type Result struct {
	GradedQuestions []GradedQuestion `json:"graded_questions"`
	TotalPoints     float64          `json:"total_points"`
	EarnedPoints    float64          `json:"earned_points"`
	OverallScore    float64          `json:"overall_score"`
	GradedAt        time.Time        `json:"graded_at"`
}

// Fraction is the overall score on a 0..1 scale.
func (r *Result) Fraction() float64 {
	if r.TotalPoints == 0 {
		return 0
	}
	return r.EarnedPoints / r.TotalPoints
}

// TopicScores returns earned/possible per topic for questions tagged with one.
func (r *Result) TopicScores() map[string]float64 {
	earned := map[string]float64{}
	possible := map[string]float64{}
	for _, g := range r.GradedQuestions {
		if g.TopicID == "" {
			continue
		}
		earned[g.TopicID] += g.PointsEarned
		possible[g.TopicID] += g.PointsPossible
	}
	out := make(map[string]float64, len(possible))
	for id, p := range possible {
		if p > 0 {
			out[id] = earned[id] / p
		}
	}
	return out
}

type outcome struct {
	points   float64
	correct  bool
	feedback string
}

// Grader grades objective questions locally and short answers with the model, or by
// token overlap when no provider is configured.
type Grader struct {
	provider llm.Provider
	prompts  prompts.PromptProvider
	logger   *zap.Logger
	now      func() time.Time
}

func NewGrader(provider llm.Provider, pp prompts.PromptProvider, logger *zap.Logger) *Grader {
	return &Grader{provider: provider, prompts: pp, logger: logger, now: time.Now}
}

// Grade scores answers keyed by question index ("0", "1", ...).
func (g *Grader) Grade(ctx context.Context, questions []models.Question, answers map[string]any) *Result {
	res := &Result{GradedQuestions: make([]GradedQuestion, 0, len(questions))}
	for i, q := range questions {
		maxPoints := q.MaxPoints()
		graded := GradedQuestion{
			QuestionIndex:  i,
			QuestionText:   q.QuestionText,
			QuestionType:   q.QuestionType,
			TopicID:        q.TopicID,
			PointsPossible: maxPoints,
		}
		res.TotalPoints += maxPoints

		answer, ok := answers[strconv.Itoa(i)]
		if !ok || answer == nil {
			graded.Feedback = notAnswered
			res.GradedQuestions = append(res.GradedQuestions, graded)
			continue
		}

		var out outcome
		switch q.QuestionType {
		case models.QuestionMultipleChoice:
			out = gradeMultipleChoice(q, answer)
		case models.QuestionTrueFalse:
			out = gradeTrueFalse(q, answer)
		case models.QuestionNumerical:
			out = gradeNumerical(q, answer)
		case models.QuestionShortAnswer, models.QuestionConceptual:
			out = g.gradeShortAnswer(ctx, q, answer)
		default:
			out = outcome{feedback: "Unknown question type"}
		}

		graded.PointsEarned = out.points
		graded.IsCorrect = out.correct
		graded.StudentAnswer = answer
		graded.Feedback = out.feedback
		if q.QuestionType != models.QuestionShortAnswer && q.QuestionType != models.QuestionConceptual {
			graded.CorrectAnswer = q.CorrectAnswer
		}
		res.EarnedPoints += out.points
		res.GradedQuestions = append(res.GradedQuestions, graded)
	}

	if res.TotalPoints > 0 {
		res.OverallScore = math.Round(res.EarnedPoints/res.TotalPoints*100*100) / 100
	}
	res.GradedAt = g.now().UTC()
	return res
}

func objective(q models.Question, correct bool) outcome {
	if correct {
		return outcome{points: q.MaxPoints(), correct: true, feedback: strings.TrimSpace("Correct! " + q.Explanation)}
	}
	return outcome{feedback: strings.TrimSpace(fmt.Sprintf("Incorrect. The correct answer is %v. %s", q.CorrectAnswer, q.Explanation))}
}

func gradeMultipleChoice(q models.Question, answer any) outcome {
	got := strings.ToUpper(strings.TrimSpace(fmt.Sprint(answer)))
	want := strings.ToUpper(strings.TrimSpace(fmt.Sprint(q.CorrectAnswer)))
	return objective(q, q.CorrectAnswer != nil && got == want)
}

// truthy accepts bools, numbers and the strings true/1/yes/t.
func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case int:
		return t != 0
	case json.Number:
		f, err := t.Float64()
		return err == nil && f != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes", "t":
			return true
		}
	}
	return false
}

func gradeTrueFalse(q models.Question, answer any) outcome {
	return objective(q, truthy(answer) == truthy(q.CorrectAnswer))
}

func number(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}

func gradeNumerical(q models.Question, answer any) outcome {
	got, ok1 := number(answer)
	want, ok2 := number(q.CorrectAnswer)
	return objective(q, ok1 && ok2 && math.Abs(got-want) <= q.Tolerance)
}

func (g *Grader) gradeShortAnswer(ctx context.Context, q models.Question, answer any) outcome {
	text := strings.TrimSpace(fmt.Sprint(answer))
	maxPoints := q.MaxPoints()
	if text == "" {
		return outcome{feedback: notAnswered}
	}

	if g.provider == nil {
		ov := GradeOverlap(text, q.KeyPoints, q.SampleAnswer)
		return outcome{points: math.Round(ov.Score*maxPoints*100) / 100, correct: ov.Correct, feedback: ov.Feedback}
	}

	fallback := outcome{
		points:   maxPoints * 0.5,
		feedback: "Unable to fully grade this response. Please review with your instructor.",
	}
	p, err := g.prompts.Build("grade_short_answer", map[string]any{
		"Question":     q.QuestionText,
		"SampleAnswer": q.SampleAnswer,
		"KeyPoints":    q.KeyPoints,
		"Answer":       text,
		"MaxPoints":    maxPoints,
	})
	if err != nil {
		g.logger.Error("Failed to build grading prompt", zap.Error(err))
		return fallback
	}
	var verdict struct {
		PointsEarned float64 `json:"points_earned"`
		IsCorrect    bool    `json:"is_correct"`
		Feedback     string  `json:"feedback"`
	}
	_, err = llm.GenerateJSON(ctx, g.provider, llm.Request{
		System:      p.System,
		Prompt:      p.Text,
		Temperature: p.Temperature,
		UseMini:     p.UseMini,
	}, &verdict)
	if err != nil {
		g.logger.Warn("Short answer grading failed, awarding partial credit", zap.Error(err))
		return fallback
	}
	if verdict.Feedback == "" {
		verdict.Feedback = "Graded by AI"
	}
	return outcome{
		points:   math.Max(0, math.Min(maxPoints, verdict.PointsEarned)),
		correct:  verdict.IsCorrect,
		feedback: verdict.Feedback,
	}
}
