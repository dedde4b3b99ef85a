package models

import "time"

type ProjectStatus string

const (
	ProjectCreated           ProjectStatus = "created"
	ProjectMaterialsUploaded ProjectStatus = "materials_uploaded"
	ProjectTopicsPending     ProjectStatus = "topics_pending"
	ProjectTopicsConfirmed   ProjectStatus = "topics_confirmed"
	ProjectReady             ProjectStatus = "ready"
)

type Project struct {
	Base
	UserID      string        `gorm:"type:uuid;index;not null" json:"user_id"`
	Name        string        `gorm:"not null" json:"name"`
	Description string        `json:"description"`
	ExamDate    *time.Time    `json:"exam_date,omitempty"`
	Status      ProjectStatus `gorm:"type:varchar(32);not null" json:"status"`
}

// DaysUntilExam returns whole days left until the exam, or -1 when no date is set.
func (p *Project) DaysUntilExam(now time.Time) int {
	if p.ExamDate == nil {
		return -1
	}
	d := p.ExamDate.Sub(now).Hours() / 24
	if d < 0 {
		return 0
	}
	return int(d)
}
