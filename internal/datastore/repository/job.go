package repository

import (
	"context"

	"github.com/tphakala/segmentlab/internal/datastore/entities"
)

// JobRepository provides access to the audio_jobs table.
type JobRepository interface {
	// Create inserts a new job. The ID is set on the passed entity.
	Create(ctx context.Context, job *entities.AudioJob) error

	// GetByID retrieves a job by its ID.
	// Returns ErrJobNotFound if not found.
	GetByID(ctx context.Context, id uint) (*entities.AudioJob, error)

	// List returns all jobs ordered by creation time.
	List(ctx context.Context, ascending bool) ([]*entities.AudioJob, error)

	// ListPending returns the jobs still waiting for processing, oldest first.
	ListPending(ctx context.Context) ([]*entities.AudioJob, error)

	// SetState commits status, progress and error message in one statement.
	// A job that is COMPLETED or FAILED is not changed and ErrTerminalState
	// is returned.
	SetState(ctx context.Context, id uint, status entities.JobStatus, progress int, errMsg string) error

	// SetResultPath records where segment artifacts are written.
	SetResultPath(ctx context.Context, id uint, path string) error

	// SetSourcePath records where the uploaded recording was stored.
	SetSourcePath(ctx context.Context, id uint, path string) error

	// Delete removes jobs by ID; their segments are removed with them.
	// Returns the number of rows deleted.
	Delete(ctx context.Context, ids []uint) (int64, error)
}
