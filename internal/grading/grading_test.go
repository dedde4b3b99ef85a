package grading

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/harishm17/study-buddy-sub001/internal/llm"
	"github.com/harishm17/study-buddy-sub001/internal/models"
	"github.com/harishm17/study-buddy-sub001/internal/prompts"
	"github.com/harishm17/study-buddy-sub001/internal/testhelpers"
)

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"plant", "convert", "light", "energy"}, Tokenize("The plants are converting light-energy!"))
	assert.Equal(t, []string{"process", "class", "mov"}, Tokenize("processes class moved"))
	assert.Empty(t, Tokenize("the and of"))
}

func TestStemJoinsWordForms(t *testing.T) {
	pairs := []struct{ base, inflected string }{
		{"cache", "caches"},
		{"database", "databases"},
		{"queue", "queues"},
		{"base", "based"},
		{"index", "indexes"},
		{"class", "classes"},
		{"box", "boxes"},
		{"branch", "branches"},
		{"study", "studies"},
		{"study", "studied"},
		{"move", "moving"},
		{"use", "uses"},
		{"bus", "buses"},
	}
	for _, p := range pairs {
		t.Run(p.inflected, func(t *testing.T) {
			assert.Equal(t, stem(p.base), stem(p.inflected))
			assert.Equal(t, 1.0, GradeOverlap("the "+p.inflected, []string{p.base}, "").Score)
		})
	}
	assert.Equal(t, "status", stem("status"))
	assert.Equal(t, "analysis", stem("analysis"))
}

func TestGradeOverlap(t *testing.T) {
	keyPoints := []string{"chlorophyll absorbs light", "produces glucose", "releases oxygen"}

	full := GradeOverlap("Chlorophyll absorbed the light; the plant produced glucose and released oxygen.", keyPoints, "")
	assert.Equal(t, 1.0, full.Score)
	assert.True(t, full.Correct)
	assert.Empty(t, full.Missing)
	assert.Contains(t, full.Feedback, "all the key points")

	partial := GradeOverlap("It makes glucose using light absorbed by chlorophyll", keyPoints, "")
	assert.InDelta(t, 2.0/3.0, partial.Score, 1e-9)
	assert.False(t, partial.Correct)
	assert.Equal(t, []string{"releases oxygen"}, partial.Missing)
	assert.Contains(t, partial.Feedback, "Missing: releases oxygen.")

	// half of a two-token key point is enough
	assert.Equal(t, 1.0, GradeOverlap("glucose", []string{"produces glucose"}, "").Score)
}

func TestGradeOverlapSampleAnswer(t *testing.T) {
	res := GradeOverlap("mitochondria make energy", nil, "Mitochondria make cellular energy")
	assert.InDelta(t, 0.75, res.Score, 1e-9)
	assert.True(t, res.Correct)

	empty := GradeOverlap("anything", []string{"the of"}, "")
	assert.Zero(t, empty.Score)
	assert.False(t, empty.Correct)
}

func newGrader(t *testing.T, provider llm.Provider) *Grader {
	t.Helper()
	pm, err := prompts.NewPromptManager()
	require.NoError(t, err)
	g := NewGrader(provider, pm, zap.NewNop())
	g.now = func() time.Time { return time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC) }
	return g
}

var examQuestions = []models.Question{
	{QuestionType: "multiple_choice", QuestionText: "MC", CorrectAnswer: "B", Points: 2, TopicID: "t1"},
	{QuestionType: "true_false", QuestionText: "TF", CorrectAnswer: true, Points: 1, TopicID: "t1"},
	{QuestionType: "numerical", QuestionText: "NUM", CorrectAnswer: 42.5, Tolerance: 0.1, Points: 3, TopicID: "t2"},
	{QuestionType: "short_answer", QuestionText: "SA", KeyPoints: []string{"light energy", "glucose"}, Points: 4, TopicID: "t2"},
	{QuestionType: "essay", QuestionText: "??"},
	{QuestionType: "multiple_choice", QuestionText: "skipped", CorrectAnswer: "A"},
}

func TestGradeWithoutProvider(t *testing.T) {
	answers := map[string]any{
		"0": " b ",
		"1": "yes",
		"2": json.Number("42.45"),
		"3": "Light energy is stored",
		"4": "whatever",
	}
	res := newGrader(t, nil).Grade(context.Background(), examQuestions, answers)
	require.Len(t, res.GradedQuestions, 6)

	g := res.GradedQuestions
	assert.True(t, g[0].IsCorrect)
	assert.Equal(t, 2.0, g[0].PointsEarned)
	assert.True(t, g[1].IsCorrect)
	assert.True(t, g[2].IsCorrect)
	assert.Equal(t, 2.0, g[3].PointsEarned, "one of two key points covered")
	assert.Nil(t, g[3].CorrectAnswer)
	assert.Equal(t, "Unknown question type", g[4].Feedback)
	assert.Equal(t, "Question not answered", g[5].Feedback)
	assert.Nil(t, g[5].StudentAnswer)

	assert.Equal(t, 12.0, res.TotalPoints)
	assert.Equal(t, 8.0, res.EarnedPoints)
	assert.Equal(t, 66.67, res.OverallScore)
	assert.Equal(t, time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), res.GradedAt)

	scores := res.TopicScores()
	assert.Equal(t, 1.0, scores["t1"])
	assert.InDelta(t, 5.0/7.0, scores["t2"], 1e-9)
}

func TestObjectiveGradingEdgeCases(t *testing.T) {
	tf := models.Question{QuestionType: "true_false", CorrectAnswer: "False", Explanation: "Because."}
	assert.True(t, gradeTrueFalse(tf, false).correct)
	assert.True(t, gradeTrueFalse(tf, 0.0).correct)
	assert.False(t, gradeTrueFalse(tf, "t").correct)
	assert.Equal(t, "Incorrect. The correct answer is False. Because.", gradeTrueFalse(tf, "t").feedback)

	num := models.Question{QuestionType: "numerical", CorrectAnswer: "10", Tolerance: 0}
	assert.True(t, gradeNumerical(num, "10.0").correct)
	assert.False(t, gradeNumerical(num, "ten").correct)
	assert.False(t, gradeNumerical(models.Question{CorrectAnswer: "n/a"}, 1.0).correct)

	mc := models.Question{QuestionType: "multiple_choice"}
	assert.False(t, gradeMultipleChoice(mc, "<nil>").correct)
}

func TestGradeEmptyExam(t *testing.T) {
	res := newGrader(t, nil).Grade(context.Background(), nil, nil)
	assert.Zero(t, res.OverallScore)
	assert.Zero(t, res.Fraction())
}

func TestShortAnswerWithProvider(t *testing.T) {
	q := []models.Question{{QuestionType: "short_answer", QuestionText: "Explain", SampleAnswer: "S", KeyPoints: []string{"k1"}, Points: 3}}

	t.Run("verdict is clamped", func(t *testing.T) {
		fake := &testhelpers.FakeLLM{Respond: testhelpers.ReplyWith(`{"points_earned": 7, "is_correct": true, "feedback": "Nice"}`)}
		res := newGrader(t, fake).Grade(context.Background(), q, map[string]any{"0": "my answer"})
		assert.Equal(t, 3.0, res.EarnedPoints)
		assert.Equal(t, "Nice", res.GradedQuestions[0].Feedback)

		req := fake.Requests()[0]
		assert.True(t, req.UseMini)
		assert.Contains(t, req.Prompt, "- k1")
		assert.Contains(t, req.Prompt, "Student Answer: my answer")
	})

	t.Run("provider failure gives half credit", func(t *testing.T) {
		fake := &testhelpers.FakeLLM{Respond: func(llm.Request) (string, error) { return "", errors.New("quota") }}
		res := newGrader(t, fake).Grade(context.Background(), q, map[string]any{"0": "my answer"})
		assert.Equal(t, 1.5, res.EarnedPoints)
		assert.False(t, res.GradedQuestions[0].IsCorrect)
		assert.Equal(t, 50.0, res.OverallScore)
	})

	t.Run("blank answer", func(t *testing.T) {
		fake := &testhelpers.FakeLLM{}
		res := newGrader(t, fake).Grade(context.Background(), q, map[string]any{"0": "   "})
		assert.Zero(t, res.EarnedPoints)
		assert.Empty(t, fake.Requests())
	})
}
