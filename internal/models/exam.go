package models

import (
	"time"

	"gorm.io/datatypes"
)

type SampleExam struct {
	Base
	ProjectID       string                      `gorm:"type:uuid;index;not null" json:"project_id"`
	Name            string                      `gorm:"not null" json:"name"`
	Questions       datatypes.JSON              `json:"questions"`
	DurationMinutes int                         `json:"duration_minutes"`
	DifficultyLevel string                      `json:"difficulty_level"`
	TotalPoints     float64                     `json:"total_points"`
	TopicsCovered   datatypes.JSONSlice[string] `json:"topics_covered"`
	TopicIDs        datatypes.JSONSlice[string] `json:"topic_ids"`
}

type ExamSubmission struct {
	Base
	ExamID       string         `gorm:"type:uuid;index;not null" json:"exam_id"`
	UserID       string         `gorm:"type:uuid;index;not null" json:"user_id"`
	Answers      datatypes.JSON `json:"answers"`
	Grading      datatypes.JSON `json:"grading,omitempty"`
	OverallScore *float64       `json:"overall_score,omitempty"`
	EarnedPoints float64        `json:"earned_points"`
	TotalPoints  float64        `json:"total_points"`
	SubmittedAt  time.Time      `json:"submitted_at"`
	GradedAt     *time.Time     `json:"graded_at,omitempty"`
}
