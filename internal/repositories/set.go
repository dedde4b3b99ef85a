package repositories

import "gorm.io/gorm"

// Set bundles every repository over one database handle.
type Set struct {
	DB        *gorm.DB
	Users     *UserRepository
	Projects  *ProjectRepository
	Materials *MaterialRepository
	Topics    *TopicRepository
	Content   *ContentRepository
	Exams     *ExamRepository
	Jobs      *JobRepository
	Learning  *LearningRepository
}

func NewSet(db *gorm.DB) Set {
	return Set{
		DB:        db,
		Users:     &UserRepository{DB: db},
		Projects:  &ProjectRepository{DB: db},
		Materials: &MaterialRepository{DB: db},
		Topics:    &TopicRepository{DB: db},
		Content:   &ContentRepository{DB: db},
		Exams:     &ExamRepository{DB: db},
		Jobs:      &JobRepository{DB: db},
		Learning:  &LearningRepository{DB: db},
	}
}
