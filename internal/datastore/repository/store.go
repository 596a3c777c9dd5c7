package repository

import "gorm.io/gorm"

// Store bundles the repositories that share one database handle.
type Store struct {
	Jobs     JobRepository
	Segments SegmentRepository
	Labels   LabelRepository
	Runs     TrainingRunRepository
}

// NewStore creates all repositories over db.
func NewStore(db *gorm.DB) *Store {
	return &Store{
		Jobs:     NewJobRepository(db),
		Segments: NewSegmentRepository(db),
		Labels:   NewLabelRepository(db),
		Runs:     NewTrainingRunRepository(db),
	}
}
