package voice

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/harishm17/study-buddy-sub001/internal/content"
	"github.com/harishm17/study-buddy-sub001/internal/learning"
	"github.com/harishm17/study-buddy-sub001/internal/models"
	"github.com/harishm17/study-buddy-sub001/internal/prompts"
	"github.com/harishm17/study-buddy-sub001/internal/repositories"
	"github.com/harishm17/study-buddy-sub001/internal/testhelpers"
)

func TestIsConceptual(t *testing.T) {
	assert.True(t, IsConceptual("Why do cells need a membrane?"))
	assert.False(t, IsConceptual("What is 2 + 2?"))
	assert.False(t, IsConceptual("Calculate the osmotic pressure"))
	assert.False(t, IsConceptual("Write the EQUATION for respiration"))
	assert.False(t, IsConceptual("x = y"))
}

func TestFilterConceptual(t *testing.T) {
	qs := []models.Question{
		{QuestionType: models.QuestionConceptual, QuestionText: "Explain diffusion."},
		{QuestionType: models.QuestionNumerical, QuestionText: "Explain osmosis."},
		{QuestionType: models.QuestionConceptual, QuestionText: "Explain transport.", KeyPoints: []string{"uses 3 proteins"}},
		{QuestionType: models.QuestionShortAnswer, QuestionText: "Describe mitosis.", CorrectAnswer: 4.0},
		{QuestionType: models.QuestionMultipleChoice, QuestionText: "Pick one.", Options: []models.QuestionOption{{ID: "A", Text: "sum of parts"}}},
		{QuestionType: models.QuestionShortAnswer, QuestionText: "Describe meiosis.", SampleAnswer: "Two divisions produce gametes."},
	}
	out := FilterConceptual(qs)
	require.Len(t, out, 2)
	assert.Equal(t, "Explain diffusion.", out[0].QuestionText)
	assert.Equal(t, "Describe meiosis.", out[1].QuestionText)
}

type fixture struct {
	repos repositories.Set
	svc   *Service
	topic *models.Topic
}

func setup(t *testing.T) fixture {
	t.Helper()
	db := testhelpers.SetupTestDB(t)
	repos := repositories.NewSet(db)
	ctx := context.Background()

	project := &models.Project{UserID: "u1", Name: "Bio", Status: models.ProjectTopicsConfirmed}
	require.NoError(t, repos.Projects.Create(ctx, project))
	topic := &models.Topic{ProjectID: project.ID, Name: "Cell Transport", UserConfirmed: true}
	require.NoError(t, repos.Topics.Create(ctx, topic))

	pm, err := prompts.NewPromptManager()
	require.NoError(t, err)
	gen := content.NewGenerator(nil, pm, zap.NewNop())
	svc := NewService(repos, gen, learning.NewService(repos, zap.NewNop()), zap.NewNop())
	return fixture{repos: repos, svc: svc, topic: topic}
}

func addNotes(t *testing.T, f fixture, text string) {
	t.Helper()
	data, err := json.Marshal(map[string]any{"content": text})
	require.NoError(t, err)
	require.NoError(t, f.repos.Content.Create(context.Background(), &models.TopicContent{
		TopicID:     f.topic.ID,
		ContentType: models.ContentSectionNotes,
		ContentData: datatypes.JSON(data),
	}))
}

func TestDrillRequiresSource(t *testing.T) {
	f := setup(t)
	_, err := f.svc.Drill(context.Background(), f.topic, models.VoiceDrillRequest{Count: 5, Difficulty: "medium"})
	assert.ErrorIs(t, err, ErrNoSource)
}

func TestDrillReuseAndRegenerate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	addNotes(t, f, "Diffusion moves particles down a concentration gradient.")

	req := models.VoiceDrillRequest{Count: 5, Difficulty: "medium"}
	first, err := f.svc.Drill(ctx, f.topic, req)
	require.NoError(t, err)
	assert.False(t, first.Reused)
	assert.Len(t, first.Questions, 5)
	assert.Equal(t, models.ContentVoiceDrill, first.Content.ContentType)

	var meta drillMeta
	require.NoError(t, json.Unmarshal(first.Content.Metadata, &meta))
	assert.Equal(t, drillMeta{Count: 5, Difficulty: "medium"}, meta)

	again, err := f.svc.Drill(ctx, f.topic, req)
	require.NoError(t, err)
	assert.True(t, again.Reused)
	assert.Equal(t, first.Content.ID, again.Content.ID)

	other, err := f.svc.Drill(ctx, f.topic, models.VoiceDrillRequest{Count: 5, Difficulty: "hard"})
	require.NoError(t, err)
	assert.False(t, other.Reused)

	req.Regenerate = true
	fresh, err := f.svc.Drill(ctx, f.topic, req)
	require.NoError(t, err)
	assert.False(t, fresh.Reused)
	assert.NotEqual(t, first.Content.ID, fresh.Content.ID)

	drills, err := f.repos.Content.ListByTopic(ctx, f.topic.ID, models.ContentVoiceDrill)
	require.NoError(t, err)
	assert.Len(t, drills, 3)
}

func TestGradeAttemptByIndex(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	addNotes(t, f, "Membranes regulate transport.")

	drill, err := f.svc.Drill(ctx, f.topic, models.VoiceDrillRequest{Count: 3, Difficulty: "easy"})
	require.NoError(t, err)

	idx := 1
	res, err := f.svc.GradeAttempt(ctx, "u1", f.topic, models.VoiceAttemptRequest{
		ContentID:     drill.Content.ID,
		QuestionIndex: &idx,
		Transcript:    "It starts from the core definition and it has practical relevance in labs.",
	})
	require.NoError(t, err)
	assert.Equal(t, drill.Questions[1].QuestionText, res.QuestionText)
	assert.InDelta(t, 1.0, res.Grade.Score, 1e-9)
	assert.True(t, res.Grade.Correct)
	require.NotNil(t, res.Progress)
	assert.Equal(t, 1, res.Progress.AttemptCount)

	attempts, err := f.repos.Learning.ListAttempts(ctx, "u1", f.topic.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, models.AttemptVoice, attempts[0].Kind)
	assert.Equal(t, drill.Content.ID, attempts[0].ContentID)

	idx = 7
	_, err = f.svc.GradeAttempt(ctx, "u1", f.topic, models.VoiceAttemptRequest{
		ContentID:     drill.Content.ID,
		QuestionIndex: &idx,
		Transcript:    "anything",
	})
	assert.ErrorIs(t, err, ErrQuestionNotFound)
}

func TestGradeAttemptAdHoc(t *testing.T) {
	f := setup(t)
	res, err := f.svc.GradeAttempt(context.Background(), "u1", f.topic, models.VoiceAttemptRequest{
		QuestionText: "What does a membrane do?",
		KeyPoints:    []string{"selective permeability", "protects the cell"},
		Transcript:   "Selective permeability controls what enters.",
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, res.Grade.Score, 1e-9)
	assert.False(t, res.Grade.Correct)
	assert.Contains(t, res.Grade.Missing, "protects the cell")
}
