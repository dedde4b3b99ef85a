package jobs

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/harishm17/study-buddy-sub001/internal/content"
	"github.com/harishm17/study-buddy-sub001/internal/document"
	"github.com/harishm17/study-buddy-sub001/internal/grading"
	"github.com/harishm17/study-buddy-sub001/internal/learning"
	"github.com/harishm17/study-buddy-sub001/internal/models"
	"github.com/harishm17/study-buddy-sub001/internal/prompts"
	"github.com/harishm17/study-buddy-sub001/internal/repositories"
	"github.com/harishm17/study-buddy-sub001/internal/search"
	"github.com/harishm17/study-buddy-sub001/internal/storage"
	"github.com/harishm17/study-buddy-sub001/internal/tasks"
	"github.com/harishm17/study-buddy-sub001/internal/testhelpers"
)

const biologyNotes = `# Cell Biology

Every cell is surrounded by a membrane. Cell biology studies how the membrane controls
transport and how organelles cooperate inside the cell.

# Genetics

Genetics explains how traits are inherited. Genes are carried on chromosomes and
copied before the cell divides, so genetics and inheritance go together.
`

type pipeline struct {
	repos      repositories.Set
	store      storage.ObjectStore
	processor  *Processor
	service    *Service
	dispatcher *recordingDispatcher
	project    *models.Project
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	db := testhelpers.SetupTestDB(t)
	repos := repositories.NewSet(db)
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	locker := NewMemoryLocker(time.Minute)
	t.Cleanup(locker.Stop)
	dispatcher := &recordingDispatcher{}
	svc := NewService(repos.Jobs, dispatcher, locker, 10*time.Minute, time.Second, zap.NewNop())

	logger := zap.NewNop()
	pm, err := prompts.NewPromptManager()
	require.NoError(t, err)
	fake := &testhelpers.FakeLLM{Dims: 16}
	steps := &Steps{
		Repos:     repos,
		Store:     store,
		Provider:  fake,
		Validator: document.NewValidator(nil, pm, logger),
		Generator: content.NewGenerator(nil, pm, logger),
		Grader:    grading.NewGrader(nil, pm, logger),
		Searcher:  search.NewSearcher(db, fake, logger),
		Learning:  learning.NewService(repos, logger),
		Submitter: svc,
		MaxBytes:  1 << 20,
		Logger:    logger,
		now:       func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) },
	}
	processor := NewProcessor(repos.Jobs, logger)
	steps.Register(processor)

	project := &models.Project{UserID: "u1", Name: "Biology", Status: models.ProjectCreated}
	require.NoError(t, repos.Projects.Create(context.Background(), project))

	return &pipeline{repos: repos, store: store, processor: processor, service: svc, dispatcher: dispatcher, project: project}
}

func (p *pipeline) upload(t *testing.T, filename, body string) *models.Material {
	t.Helper()
	ctx := context.Background()
	m := &models.Material{
		ProjectID:        p.project.ID,
		Filename:         filename,
		Category:         models.CategoryLectureNotes,
		ObjectKey:        "projects/" + p.project.ID + "/materials/" + filename,
		ValidationStatus: models.ValidationPending,
	}
	require.NoError(t, p.repos.Materials.Create(ctx, m))
	require.NoError(t, p.store.Put(ctx, m.ObjectKey, strings.NewReader(body), "text/plain"))
	return m
}

func (p *pipeline) run(t *testing.T, jobType models.JobType, input any) map[string]any {
	t.Helper()
	ctx := context.Background()
	job, _, err := p.service.Submit(ctx, SubmitRequest{UserID: "u1", ProjectID: p.project.ID, JobType: jobType, Input: input})
	require.NoError(t, err)
	require.NoError(t, p.processor.Handle(ctx, tasks.JobPayload{JobID: job.ID, JobType: string(jobType)}))
	return p.completed(t, job.ID)
}

func (p *pipeline) completed(t *testing.T, jobID string) map[string]any {
	t.Helper()
	got, err := p.repos.Jobs.Get(context.Background(), jobID)
	require.NoError(t, err)
	require.Equal(t, models.JobCompleted, got.Status, got.ErrorMessage)
	var result map[string]any
	require.NoError(t, json.Unmarshal(got.ResultData, &result))
	return result
}

func TestStepsPipeline(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()
	material := p.upload(t, "biology.md", biologyNotes)

	result := p.run(t, models.JobValidateMaterial, MaterialInput{MaterialID: material.ID})
	assert.Equal(t, "valid", result["validation_status"])
	chunkJobID, _ := result["chunk_job_id"].(string)
	require.NotEmpty(t, chunkJobID)

	require.Len(t, p.dispatcher.payloads, 2)
	chunkPayload := p.dispatcher.payloads[1]
	assert.Equal(t, string(models.JobChunkMaterial), chunkPayload.JobType)
	require.NoError(t, p.processor.Handle(ctx, chunkPayload))
	result = p.completed(t, chunkJobID)
	assert.Equal(t, true, result["embedded"])

	chunks, err := p.repos.Materials.ListChunks(ctx, material.ID)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.NotNil(t, chunks[0].Embedding)

	result = p.run(t, models.JobExtractTopics, ProjectInput{ProjectID: p.project.ID})
	assert.EqualValues(t, 2, result["topic_count"])

	topics, err := p.repos.Topics.ListByProject(ctx, p.project.ID)
	require.NoError(t, err)
	require.Len(t, topics, 2)
	assert.Equal(t, "Cell Biology", topics[0].Name)
	assert.Equal(t, "Genetics", topics[1].Name)

	project, err := p.repos.Projects.Get(ctx, p.project.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProjectTopicsPending, project.Status)

	mapped, err := p.repos.Topics.ChunksForTopic(ctx, topics[0].ID, 0)
	require.NoError(t, err)
	require.NotEmpty(t, mapped)

	result = p.run(t, models.JobGenerateContent, ContentInput{TopicID: topics[0].ID, ContentType: models.ContentSectionNotes})
	contentID, _ := result["content_id"].(string)
	notes, err := p.repos.Content.Get(ctx, contentID)
	require.NoError(t, err)
	assert.Equal(t, models.ContentSectionNotes, notes.ContentType)
	assert.Contains(t, string(notes.ContentData), "Cell Biology")

	result = p.run(t, models.JobGenerateExam, ExamInput{
		ProjectID: p.project.ID,
		TopicIDs:  []string{topics[0].ID, topics[1].ID},
		Config: content.ExamConfig{
			QuestionCount:   4,
			DurationMinutes: 60,
			Difficulty:      "medium",
			Distribution:    map[string]int{"multiple_choice": 50, "true_false": 50},
		},
	})
	examID, _ := result["exam_id"].(string)
	exam, err := p.repos.Exams.GetExam(ctx, examID)
	require.NoError(t, err)
	assert.Equal(t, "Sample Exam - 2026-03-01", exam.Name)
	assert.ElementsMatch(t, []string{"Cell Biology", "Genetics"}, []string(exam.TopicsCovered))

	var questions []models.Question
	require.NoError(t, json.Unmarshal(exam.Questions, &questions))
	require.Len(t, questions, 4)

	all := map[string]any{}
	for i, q := range questions {
		all[strconv.Itoa(i)] = q.CorrectAnswer
	}
	answers, err := json.Marshal(all)
	require.NoError(t, err)
	sub := &models.ExamSubmission{ExamID: exam.ID, UserID: "u1", Answers: datatypes.JSON(answers), SubmittedAt: time.Now()}
	require.NoError(t, p.repos.Exams.CreateSubmission(ctx, sub))

	result = p.run(t, models.JobGradeExam, SubmissionInput{SubmissionID: sub.ID})
	assert.InDelta(t, 100.0, result["overall_score"], 1e-9)

	graded, err := p.repos.Exams.GetSubmission(ctx, sub.ID)
	require.NoError(t, err)
	require.NotNil(t, graded.OverallScore)
	assert.NotNil(t, graded.GradedAt)

	for _, topic := range topics {
		attempts, err := p.repos.Learning.ListAttempts(ctx, "u1", topic.ID)
		require.NoError(t, err)
		require.Len(t, attempts, 1, topic.Name)
		assert.Equal(t, models.AttemptExam, attempts[0].Kind)
		assert.InDelta(t, 1.0, attempts[0].Score, 1e-9)
	}
}

func TestValidateUnreadableMaterial(t *testing.T) {
	p := newPipeline(t)
	material := p.upload(t, "scan.pdf", "definitely not a pdf")

	result := p.run(t, models.JobValidateMaterial, MaterialInput{MaterialID: material.ID})
	assert.Equal(t, "invalid", result["validation_status"])
	assert.NotContains(t, result, "chunk_job_id")
	assert.Len(t, p.dispatcher.payloads, 1)

	got, err := p.repos.Materials.Get(context.Background(), material.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ValidationInvalid, got.ValidationStatus)
	assert.Contains(t, got.ValidationNotes, "could not read document")
}

func TestValidateShortMaterial(t *testing.T) {
	p := newPipeline(t)
	material := p.upload(t, "tiny.txt", "too short")

	result := p.run(t, models.JobValidateMaterial, MaterialInput{MaterialID: material.ID})
	assert.Equal(t, "invalid", result["validation_status"])
	assert.Equal(t, "document appears to be empty or contains only images", result["notes"])
}

func TestExtractTopicsWithoutMaterialsFails(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()
	job, _, err := p.service.Submit(ctx, SubmitRequest{UserID: "u1", JobType: models.JobExtractTopics, Input: ProjectInput{ProjectID: p.project.ID}})
	require.NoError(t, err)
	require.Error(t, p.processor.Handle(ctx, tasks.JobPayload{JobID: job.ID}))

	got, err := p.repos.Jobs.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobFailed, got.Status)
	assert.Equal(t, "project has no valid materials", got.ErrorMessage)
}
