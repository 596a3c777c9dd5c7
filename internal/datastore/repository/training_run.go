package repository

import (
	"context"

	"github.com/tphakala/segmentlab/internal/datastore/entities"
)

// TrainingRunRepository provides access to the training_runs table.
type TrainingRunRepository interface {
	// Create inserts a new run in PENDING state.
	Create(ctx context.Context, run *entities.TrainingRun) error

	// GetByID retrieves a run by its ID.
	// Returns ErrTrainingRunNotFound if not found.
	GetByID(ctx context.Context, id uint) (*entities.TrainingRun, error)

	// List returns all runs, newest first.
	List(ctx context.Context) ([]*entities.TrainingRun, error)

	// ListPending returns the runs still waiting for training, oldest first.
	ListPending(ctx context.Context) ([]*entities.TrainingRun, error)

	// SetState commits status, progress and error message in one statement.
	// Finished runs are left alone and ErrTerminalState is returned.
	SetState(ctx context.Context, id uint, status entities.RunStatus, progress int, errMsg string) error

	// SaveResults stores evaluation metrics and the results location.
	SaveResults(ctx context.Context, id uint, metrics *entities.TrainingMetrics, resultsPath string) error

	// Delete removes runs by ID and returns the number deleted.
	Delete(ctx context.Context, ids []uint) (int64, error)
}
