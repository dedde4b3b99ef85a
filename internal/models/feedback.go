package models

import (
	"time"

	"gorm.io/gorm"
)

// ContentFeedback is a user's thumbs up/down on generated content.
type ContentFeedback struct {
	gorm.Model
	ContentID   string      `gorm:"type:uuid;uniqueIndex:idx_feedback_content_user;not null" json:"content_id"`
	UserID      string      `gorm:"type:uuid;uniqueIndex:idx_feedback_content_user;not null" json:"user_id"`
	ContentType ContentType `gorm:"type:varchar(32);not null" json:"content_type"`
	IsPositive  bool        `gorm:"not null" json:"is_positive"`
	Comment     string      `gorm:"type:text" json:"comment,omitempty"`
	Prompt      string      `gorm:"type:text" json:"-"`
	Response    string      `gorm:"type:text" json:"-"`
	Exported    bool        `gorm:"not null;default:false;index" json:"exported"`
	ExportedAt  *time.Time  `json:"exported_at,omitempty"`
}

// TrainingDataPoint is one JSONL line in Gemini tuning format.
type TrainingDataPoint struct {
	Contents []TrainingContent `json:"contents"`
}

type TrainingContent struct {
	Role  string         `json:"role"` // "user" or "model"
	Parts []TrainingPart `json:"parts"`
}

type TrainingPart struct {
	Text string `json:"text"`
}
