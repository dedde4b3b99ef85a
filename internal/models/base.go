package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base gives every table a UUID primary key and timestamps.
type Base struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

// AllModels lists every table for AutoMigrate.
func AllModels() []any {
	return []any{
		&User{},
		&Project{},
		&Material{},
		&MaterialChunk{},
		&Topic{},
		&TopicChunkMapping{},
		&TopicContent{},
		&SampleExam{},
		&ExamSubmission{},
		&ProcessingJob{},
		&Attempt{},
		&TopicMastery{},
		&ContentFeedback{},
	}
}
