package models

import (
	"time"

	"gorm.io/datatypes"
)

type Topic struct {
	Base
	ProjectID     string                      `gorm:"type:uuid;index;not null" json:"project_id"`
	Name          string                      `gorm:"not null" json:"name"`
	Description   string                      `gorm:"type:text" json:"description"`
	Keywords      datatypes.JSONSlice[string] `json:"keywords"`
	OrderIndex    int                         `json:"order_index"`
	UserConfirmed bool                        `gorm:"not null;default:false" json:"user_confirmed"`
}

const (
	SourceKeyword            = "keyword_match"
	SourceSemantic           = "semantic_search"
	SourceKeywordAndSemantic = "keyword_and_semantic"
)

type TopicChunkMapping struct {
	TopicID         string    `gorm:"primaryKey;type:uuid" json:"topic_id"`
	ChunkID         string    `gorm:"primaryKey;type:uuid" json:"chunk_id"`
	RelevanceScore  float64   `json:"relevance_score"`
	RelevanceSource string    `gorm:"type:varchar(32)" json:"relevance_source"`
	CreatedAt       time.Time `json:"created_at"`
}

type ContentType string

const (
	ContentSectionNotes       ContentType = "section_notes"
	ContentSolvedExamples     ContentType = "solved_examples"
	ContentInteractiveExample ContentType = "interactive_examples"
	ContentTopicQuiz          ContentType = "topic_quiz"
	ContentVoiceDrill         ContentType = "voice_drill"
)

var ValidContentTypes = map[ContentType]bool{
	ContentSectionNotes:       true,
	ContentSolvedExamples:     true,
	ContentInteractiveExample: true,
	ContentTopicQuiz:          true,
	ContentVoiceDrill:         true,
}

type TopicContent struct {
	Base
	TopicID     string         `gorm:"type:uuid;index;not null" json:"topic_id"`
	ContentType ContentType    `gorm:"type:varchar(32);index;not null" json:"content_type"`
	ContentData datatypes.JSON `json:"content_data"`
	Metadata    datatypes.JSON `json:"metadata,omitempty"`
	Prompt      string         `gorm:"type:text" json:"-"`
}
