package repository

import (
	"context"

	"github.com/tphakala/segmentlab/internal/datastore/entities"
)

// SegmentRepository provides access to the segments table.
type SegmentRepository interface {
	// CreateBatch inserts segments in a single transaction, preserving slice order.
	CreateBatch(ctx context.Context, segments []entities.Segment) error

	// GetByID retrieves a segment with its label.
	// Returns ErrSegmentNotFound if not found.
	GetByID(ctx context.Context, id uint) (*entities.Segment, error)

	// ListByJob returns every segment of a job ordered by ordinal, labels preloaded.
	ListByJob(ctx context.Context, jobID uint) ([]*entities.Segment, error)

	// Page returns one page of a job's segments ordered by ordinal and the total count.
	Page(ctx context.Context, jobID uint, offset, limit int) ([]*entities.Segment, int64, error)

	// ListLabeled returns labeled segments of the given jobs ordered by job and ordinal.
	ListLabeled(ctx context.Context, jobIDs []uint) ([]*entities.Segment, error)

	// SetLabel assigns or clears (nil) the label of one segment.
	SetLabel(ctx context.Context, id uint, labelID *uint) error

	// ApplyLabels assigns labels to many segments in one transaction.
	ApplyLabels(ctx context.Context, assignments map[uint]uint) error

	// CountByJob returns the number of segments of a job.
	CountByJob(ctx context.Context, jobID uint) (int64, error)
}
