package models

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

type MaterialCategory string

const (
	CategoryLectureNotes MaterialCategory = "lecture_notes"
	CategorySampleExams  MaterialCategory = "sample_exams"
	CategoryBookChapters MaterialCategory = "book_chapters"
	CategoryOther        MaterialCategory = "other"
)

var ValidCategories = map[MaterialCategory]bool{
	CategoryLectureNotes: true,
	CategorySampleExams:  true,
	CategoryBookChapters: true,
	CategoryOther:        true,
}

type ValidationStatus string

const (
	ValidationPending ValidationStatus = "pending"
	ValidationValid   ValidationStatus = "valid"
	ValidationInvalid ValidationStatus = "invalid"
)

// AllowedExtensions are the upload formats the extractor understands.
var AllowedExtensions = map[string]bool{
	".pdf":  true,
	".docx": true,
	".pptx": true,
	".txt":  true,
	".md":   true,
}

type Material struct {
	Base
	ProjectID        string           `gorm:"type:uuid;index;not null" json:"project_id"`
	Filename         string           `gorm:"not null" json:"filename"`
	Category         MaterialCategory `gorm:"type:varchar(32);not null" json:"category"`
	ObjectKey        string           `gorm:"not null" json:"object_key"`
	ContentType      string           `json:"content_type"`
	SizeBytes        int64            `json:"size_bytes"`
	ValidationStatus ValidationStatus `gorm:"type:varchar(16);not null;index" json:"validation_status"`
	ValidationNotes  string           `gorm:"type:text" json:"validation_notes,omitempty"`
	PageCount        int              `json:"page_count"`
	ValidatedAt      *time.Time       `json:"validated_at,omitempty"`
}

// EmbeddingDimensions must match the vector column width below.
const EmbeddingDimensions = 1536

type MaterialChunk struct {
	Base
	MaterialID       string           `gorm:"type:uuid;index;not null" json:"material_id"`
	ChunkIndex       int              `gorm:"not null" json:"chunk_index"`
	ChunkText        string           `gorm:"type:text;not null" json:"chunk_text"`
	SectionHierarchy string           `json:"section_hierarchy"`
	PageStart        *int             `json:"page_start,omitempty"`
	PageEnd          *int             `json:"page_end,omitempty"`
	TokenCount       int              `json:"token_count"`
	Embedding        *pgvector.Vector `gorm:"type:vector(1536)" json:"-"`
}
