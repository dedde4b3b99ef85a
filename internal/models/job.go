package models

import (
	"time"

	"gorm.io/datatypes"
)

type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

type JobType string

const (
	JobValidateMaterial JobType = "validate_material"
	JobChunkMaterial    JobType = "chunk_material"
	JobExtractTopics    JobType = "extract_topics"
	JobGenerateContent  JobType = "generate_content"
	JobGenerateExam     JobType = "generate_exam"
	JobGradeExam        JobType = "grade_exam"
)

var ValidJobTypes = map[JobType]bool{
	JobValidateMaterial: true,
	JobChunkMaterial:    true,
	JobExtractTopics:    true,
	JobGenerateContent:  true,
	JobGenerateExam:     true,
	JobGradeExam:        true,
}

// ProcessingJob tracks one unit of asynchronous AI work.
type ProcessingJob struct {
	Base
	UserID          string         `gorm:"type:uuid;index;not null" json:"user_id"`
	ProjectID       string         `gorm:"index" json:"project_id,omitempty"`
	JobType         JobType        `gorm:"type:varchar(32);not null" json:"job_type"`
	Status          JobStatus      `gorm:"type:varchar(16);not null;index" json:"status"`
	ProgressPercent int            `json:"progress_percent"`
	InputData       datatypes.JSON `json:"input_data"`
	ResultData      datatypes.JSON `json:"result_data,omitempty"`
	ErrorMessage    string         `gorm:"type:text" json:"error_message,omitempty"`
	IdempotencyKey  string         `gorm:"index;size:64" json:"-"`
	TaskName        string         `json:"task_name,omitempty"`
	StartedAt       *time.Time     `json:"started_at,omitempty"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
}

func (j *ProcessingJob) Terminal() bool {
	return j.Status == JobCompleted || j.Status == JobFailed
}
