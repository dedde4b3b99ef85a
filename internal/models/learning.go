package models

import (
	"time"

	"gorm.io/datatypes"
)

type AttemptKind string

const (
	AttemptQuiz  AttemptKind = "quiz"
	AttemptVoice AttemptKind = "voice"
	AttemptExam  AttemptKind = "exam"
)

// Attempt is one graded piece of evidence about a user's grasp of a topic.
type Attempt struct {
	Base
	UserID    string         `gorm:"type:uuid;index:idx_attempt_user_topic;not null" json:"user_id"`
	ProjectID string         `gorm:"type:uuid;index" json:"project_id"`
	TopicID   string         `gorm:"type:uuid;index:idx_attempt_user_topic;not null" json:"topic_id"`
	Kind      AttemptKind    `gorm:"type:varchar(16);not null" json:"kind"`
	ContentID string         `json:"content_id,omitempty"`
	Score     float64        `json:"score"`
	Details   datatypes.JSON `json:"details,omitempty"`
}

// TopicMastery is the per-user learning state of a topic.
type TopicMastery struct {
	UserID         string     `gorm:"primaryKey;type:uuid" json:"user_id"`
	TopicID        string     `gorm:"primaryKey;type:uuid" json:"topic_id"`
	ProjectID      string     `gorm:"type:uuid;index" json:"project_id"`
	Mastery        float64    `json:"mastery"`
	EaseFactor     float64    `json:"ease_factor"`
	IntervalDays   int        `json:"interval_days"`
	Repetitions    int        `json:"repetitions"`
	Lapses         int        `json:"lapses"`
	Stability      float64    `json:"stability"`
	AttemptCount   int        `json:"attempt_count"`
	LastScore      float64    `json:"last_score"`
	LastReviewedAt *time.Time `json:"last_reviewed_at,omitempty"`
	NextReviewAt   *time.Time `gorm:"index" json:"next_review_at,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
