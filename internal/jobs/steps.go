package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/harishm17/study-buddy-sub001/internal/content"
	"github.com/harishm17/study-buddy-sub001/internal/document"
	"github.com/harishm17/study-buddy-sub001/internal/grading"
	"github.com/harishm17/study-buddy-sub001/internal/learning"
	"github.com/harishm17/study-buddy-sub001/internal/llm"
	"github.com/harishm17/study-buddy-sub001/internal/models"
	"github.com/harishm17/study-buddy-sub001/internal/repositories"
	"github.com/harishm17/study-buddy-sub001/internal/search"
	"github.com/harishm17/study-buddy-sub001/internal/storage"
)

const contentChunkLimit = 20

// Job inputs. Field names follow the payloads the queue has always carried.
type (
	MaterialInput struct {
		MaterialID string `json:"materialId"`
	}
	ProjectInput struct {
		ProjectID string `json:"projectId"`
	}
	ContentInput struct {
		TopicID     string             `json:"topicId"`
		ContentType models.ContentType `json:"contentType"`
		Preferences map[string]any     `json:"preferences,omitempty"`
	}
	ExamInput struct {
		ProjectID string             `json:"projectId"`
		TopicIDs  []string           `json:"topicIds"`
		Config    content.ExamConfig `json:"config"`
	}
	SubmissionInput struct {
		SubmissionID string `json:"submissionId"`
	}
)

// Steps holds what the typed job handlers need.
type Steps struct {
	Repos     repositories.Set
	Store     storage.ObjectStore
	Provider  llm.Provider
	Validator *document.Validator
	Generator *content.Generator
	Grader    *grading.Grader
	Searcher  *search.Searcher
	Learning  *learning.Service
	// Submitter queues follow-up jobs, e.g. chunking after a material validates.
	Submitter *Service
	MaxBytes  int64
	Logger    *zap.Logger

	now func() time.Time
}

// Register binds every job type to p.
func (s *Steps) Register(p *Processor) {
	if s.now == nil {
		s.now = time.Now
	}
	p.Register(models.JobValidateMaterial, s.validateMaterial)
	p.Register(models.JobChunkMaterial, s.chunkMaterial)
	p.Register(models.JobExtractTopics, s.extractTopics)
	p.Register(models.JobGenerateContent, s.generateContent)
	p.Register(models.JobGenerateExam, s.generateExam)
	p.Register(models.JobGradeExam, s.gradeExam)
}

func (s *Steps) download(ctx context.Context, material *models.Material) ([]byte, error) {
	data, err := storage.ReadAll(ctx, s.Store, material.ObjectKey, s.MaxBytes)
	if err != nil {
		return nil, fmt.Errorf("download material: %w", err)
	}
	return data, nil
}

func (s *Steps) validateMaterial(ctx context.Context, job *models.ProcessingJob, data json.RawMessage, progress Progress) (any, error) {
	var in MaterialInput
	if err := decodeInput(data, &in); err != nil {
		return nil, err
	}
	material, err := s.Repos.Materials.Get(ctx, in.MaterialID)
	if err != nil {
		return nil, fmt.Errorf("load material %s: %w", in.MaterialID, err)
	}

	raw, err := s.download(ctx, material)
	if err != nil {
		return nil, err
	}
	// a file we cannot read is an invalid material, not a failed job
	var verdict document.ValidationResult
	doc, err := document.Extract(material.Filename, raw)
	if err != nil {
		verdict = document.ValidationResult{Status: models.ValidationInvalid, Notes: "could not read document: " + err.Error()}
	} else {
		progress(30)
		verdict = s.Validator.Validate(ctx, doc, material.Filename, material.Category)
	}
	progress(70)

	if err := s.Repos.Materials.UpdateValidation(ctx, material.ID, verdict.Status, verdict.Notes, verdict.PageCount); err != nil {
		return nil, fmt.Errorf("save validation: %w", err)
	}

	result := map[string]any{
		"material_id":       material.ID,
		"validation_status": verdict.Status,
		"notes":             verdict.Notes,
		"page_count":        verdict.PageCount,
	}
	if verdict.Status == models.ValidationValid && s.Submitter != nil {
		next, _, err := s.Submitter.Submit(ctx, SubmitRequest{
			UserID:    job.UserID,
			ProjectID: material.ProjectID,
			JobType:   models.JobChunkMaterial,
			Input:     MaterialInput{MaterialID: material.ID},
		})
		if err != nil {
			return nil, fmt.Errorf("queue chunking: %w", err)
		}
		result["chunk_job_id"] = next.ID
	}
	return result, nil
}

func (s *Steps) chunkMaterial(ctx context.Context, _ *models.ProcessingJob, data json.RawMessage, progress Progress) (any, error) {
	var in MaterialInput
	if err := decodeInput(data, &in); err != nil {
		return nil, err
	}
	material, err := s.Repos.Materials.Get(ctx, in.MaterialID)
	if err != nil {
		return nil, fmt.Errorf("load material %s: %w", in.MaterialID, err)
	}
	if material.ValidationStatus != models.ValidationValid {
		return nil, fmt.Errorf("material %s is not valid", material.ID)
	}

	raw, err := s.download(ctx, material)
	if err != nil {
		return nil, err
	}
	doc, err := document.Extract(material.Filename, raw)
	if err != nil {
		return nil, err
	}
	chunks := document.ChunkDocument(doc, document.DefaultChunkTokens)
	progress(30)

	var vectors [][]float32
	if s.Provider != nil && len(chunks) > 0 {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Text
		}
		vectors, err = search.EmbedAll(ctx, s.Provider, texts, search.DefaultBatchSize)
		if err != nil {
			return nil, err
		}
	}
	progress(70)

	rows := make([]models.MaterialChunk, len(chunks))
	for i, c := range chunks {
		rows[i] = models.MaterialChunk{
			MaterialID:       material.ID,
			ChunkIndex:       c.Index,
			ChunkText:        c.Text,
			SectionHierarchy: c.SectionHierarchy,
			PageStart:        intPtr(c.PageStart),
			PageEnd:          intPtr(c.PageEnd),
			TokenCount:       c.TokenCount,
		}
		if vectors != nil {
			v := pgvector.NewVector(vectors[i])
			rows[i].Embedding = &v
		}
	}
	if err := s.Repos.Materials.ReplaceChunks(ctx, material.ID, rows); err != nil {
		return nil, fmt.Errorf("store chunks: %w", err)
	}

	s.Logger.Info("Chunked material",
		zap.String("material_id", material.ID),
		zap.Int("chunks", len(rows)),
		zap.Bool("embedded", vectors != nil))
	return map[string]any{
		"material_id": material.ID,
		"chunk_count": len(rows),
		"embedded":    vectors != nil,
	}, nil
}

func intPtr(v int) *int {
	if v <= 0 {
		return nil
	}
	return &v
}

func (s *Steps) extractTopics(ctx context.Context, _ *models.ProcessingJob, data json.RawMessage, progress Progress) (any, error) {
	var in ProjectInput
	if err := decodeInput(data, &in); err != nil {
		return nil, err
	}
	materials, err := s.Repos.Materials.ListValidByProject(ctx, in.ProjectID)
	if err != nil {
		return nil, err
	}
	if len(materials) == 0 {
		return nil, errors.New("project has no valid materials")
	}
	samples, err := s.Repos.Materials.SectionSamples(ctx, in.ProjectID, content.SampleChunkLimit)
	if err != nil {
		return nil, err
	}

	extracted, _, err := s.Generator.ExtractTopics(ctx, materials, samples)
	if err != nil {
		return nil, err
	}
	if len(extracted) == 0 {
		return nil, errors.New("no topics could be extracted from the materials")
	}
	progress(30)

	topics := make([]models.Topic, len(extracted))
	for i, t := range extracted {
		topics[i] = models.Topic{Name: t.Name, Description: t.Description, Keywords: t.Keywords}
	}
	if err := s.Repos.Topics.ReplaceUnconfirmed(ctx, in.ProjectID, topics); err != nil {
		return nil, fmt.Errorf("store topics: %w", err)
	}

	mapped := 0
	for i := range topics {
		t := &topics[i]
		results, err := s.Searcher.Hybrid(ctx, in.ProjectID, search.Query{
			Name:        t.Name,
			Description: t.Description,
			Keywords:    t.Keywords,
		}, search.DefaultLimit)
		if err != nil {
			return nil, fmt.Errorf("map topic %q: %w", t.Name, err)
		}
		mappings := make([]models.TopicChunkMapping, len(results))
		for j, r := range results {
			mappings[j] = models.TopicChunkMapping{ChunkID: r.ChunkID, RelevanceScore: r.Score, RelevanceSource: r.Source}
		}
		if err := s.Repos.Topics.ReplaceMappings(ctx, t.ID, mappings); err != nil {
			return nil, fmt.Errorf("store mappings: %w", err)
		}
		mapped += len(mappings)
		progress(30 + 60*(i+1)/len(topics))
	}

	if err := s.Repos.Projects.SetStatus(ctx, in.ProjectID, models.ProjectTopicsPending); err != nil {
		return nil, err
	}

	names := make([]string, len(topics))
	for i, t := range topics {
		names[i] = t.Name
	}
	return map[string]any{
		"project_id":    in.ProjectID,
		"topic_count":   len(topics),
		"topics":        names,
		"mapped_chunks": mapped,
	}, nil
}

func (s *Steps) generateContent(ctx context.Context, _ *models.ProcessingJob, data json.RawMessage, progress Progress) (any, error) {
	var in ContentInput
	if err := decodeInput(data, &in); err != nil {
		return nil, err
	}
	topic, err := s.Repos.Topics.Get(ctx, in.TopicID)
	if err != nil {
		return nil, fmt.Errorf("load topic %s: %w", in.TopicID, err)
	}
	chunks, err := s.Repos.Topics.ChunksForTopic(ctx, topic.ID, contentChunkLimit)
	if err != nil {
		return nil, err
	}
	progress(30)

	gen, err := s.Generator.Generate(ctx, topic, chunks, in.ContentType, content.Preferences(in.Preferences))
	if err != nil {
		return nil, err
	}
	progress(70)

	body, err := json.Marshal(gen.Data)
	if err != nil {
		return nil, err
	}
	meta, err := json.Marshal(gen.Metadata)
	if err != nil {
		return nil, err
	}
	tc := &models.TopicContent{
		TopicID:     topic.ID,
		ContentType: gen.ContentType,
		ContentData: datatypes.JSON(body),
		Metadata:    datatypes.JSON(meta),
		Prompt:      gen.Prompt,
	}
	if err := s.Repos.Content.Create(ctx, tc); err != nil {
		return nil, fmt.Errorf("store content: %w", err)
	}
	return map[string]any{
		"content_id":   tc.ID,
		"topic_id":     topic.ID,
		"content_type": tc.ContentType,
	}, nil
}

func (s *Steps) generateExam(ctx context.Context, _ *models.ProcessingJob, data json.RawMessage, progress Progress) (any, error) {
	var in ExamInput
	if err := decodeInput(data, &in); err != nil {
		return nil, err
	}
	topics, err := s.Repos.Topics.ListByIDs(ctx, in.ProjectID, in.TopicIDs)
	if err != nil {
		return nil, err
	}
	if len(topics) == 0 {
		return nil, errors.New("no topics found for exam")
	}
	progress(30)

	exam, err := s.Generator.Exam(ctx, topics, s.Repos.Topics, in.Config)
	if err != nil {
		return nil, err
	}
	progress(70)

	questions, err := json.Marshal(exam.Questions)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(topics))
	for i, t := range topics {
		ids[i] = t.ID
	}
	row := &models.SampleExam{
		ProjectID:       in.ProjectID,
		Name:            "Sample Exam - " + s.now().Format("2006-01-02"),
		Questions:       datatypes.JSON(questions),
		DurationMinutes: in.Config.DurationMinutes,
		DifficultyLevel: in.Config.Difficulty,
		TotalPoints:     exam.TotalPoints,
		TopicsCovered:   exam.TopicsCovered,
		TopicIDs:        ids,
	}
	if err := s.Repos.Exams.CreateExam(ctx, row); err != nil {
		return nil, fmt.Errorf("store exam: %w", err)
	}
	return map[string]any{
		"exam_id":        row.ID,
		"question_count": len(exam.Questions),
		"total_points":   exam.TotalPoints,
	}, nil
}

func (s *Steps) gradeExam(ctx context.Context, _ *models.ProcessingJob, data json.RawMessage, progress Progress) (any, error) {
	var in SubmissionInput
	if err := decodeInput(data, &in); err != nil {
		return nil, err
	}
	sub, err := s.Repos.Exams.GetSubmission(ctx, in.SubmissionID)
	if err != nil {
		return nil, fmt.Errorf("load submission %s: %w", in.SubmissionID, err)
	}
	exam, err := s.Repos.Exams.GetExam(ctx, sub.ExamID)
	if err != nil {
		return nil, fmt.Errorf("load exam %s: %w", sub.ExamID, err)
	}

	var questions []models.Question
	if err := json.Unmarshal(exam.Questions, &questions); err != nil {
		return nil, fmt.Errorf("decode exam questions: %w", err)
	}
	answers := map[string]any{}
	if len(sub.Answers) > 0 {
		if err := json.Unmarshal(sub.Answers, &answers); err != nil {
			return nil, fmt.Errorf("decode answers: %w", err)
		}
	}
	progress(30)

	res := s.Grader.Grade(ctx, questions, answers)
	progress(70)

	encoded, err := json.Marshal(res)
	if err != nil {
		return nil, err
	}
	if err := s.Repos.Exams.SaveGrading(ctx, sub.ID, datatypes.JSON(encoded), res.OverallScore, res.EarnedPoints, res.TotalPoints); err != nil {
		return nil, fmt.Errorf("save grading: %w", err)
	}

	scores := res.TopicScores()
	topicIDs := make([]string, 0, len(scores))
	for id := range scores {
		topicIDs = append(topicIDs, id)
	}
	slices.Sort(topicIDs)
	var failed []string
	for _, id := range topicIDs {
		_, err := s.Learning.RecordAttempt(ctx, &models.Attempt{
			UserID:    sub.UserID,
			ProjectID: exam.ProjectID,
			TopicID:   id,
			Kind:      models.AttemptExam,
			ContentID: exam.ID,
			Score:     scores[id],
		})
		if err != nil {
			s.Logger.Warn("Failed to record exam attempt", zap.String("topic_id", id), zap.Error(err))
			failed = append(failed, id)
		}
	}

	result := map[string]any{
		"submission_id": sub.ID,
		"overall_score": res.OverallScore,
		"earned_points": res.EarnedPoints,
		"total_points":  res.TotalPoints,
	}
	if len(failed) > 0 {
		result["unrecorded_topics"] = strings.Join(failed, ",")
	}
	return result, nil
}
