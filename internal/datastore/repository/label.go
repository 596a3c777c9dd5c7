package repository

import (
	"context"

	"github.com/tphakala/segmentlab/internal/datastore/entities"
)

// LabelRepository provides access to the labels table.
type LabelRepository interface {
	// Create inserts a label. Returns ErrDuplicateKey if the name is taken.
	Create(ctx context.Context, name, description string) (*entities.Label, error)

	// GetOrCreate returns the label with name, inserting it if absent.
	// Concurrent inserts of the same name resolve to one row.
	GetOrCreate(ctx context.Context, name string) (*entities.Label, error)

	// GetByID retrieves a label by its ID.
	// Returns ErrLabelNotFound if not found.
	GetByID(ctx context.Context, id uint) (*entities.Label, error)

	// GetByName retrieves a label by its unique name.
	// Returns ErrLabelNotFound if not found.
	GetByName(ctx context.Context, name string) (*entities.Label, error)

	// List returns all labels ordered by name.
	List(ctx context.Context) ([]*entities.Label, error)

	// Delete removes a label and clears it from every segment.
	// Returns ErrLabelNotFound if not found.
	Delete(ctx context.Context, id uint) error
}
