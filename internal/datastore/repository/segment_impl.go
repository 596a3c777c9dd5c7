package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/tphakala/segmentlab/internal/datastore/entities"
)

// segmentInsertBatch bounds statement size under SQLite's variable limit.
const segmentInsertBatch = 200

// segmentRepository implements SegmentRepository.
type segmentRepository struct {
	db *gorm.DB
}

// NewSegmentRepository creates a new SegmentRepository.
func NewSegmentRepository(db *gorm.DB) SegmentRepository {
	return &segmentRepository{db: db}
}

func (r *segmentRepository) CreateBatch(ctx context.Context, segments []entities.Segment) error {
	if len(segments) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return translate(tx.CreateInBatches(segments, segmentInsertBatch).Error, ErrJobNotFound)
	})
}

func (r *segmentRepository) GetByID(ctx context.Context, id uint) (*entities.Segment, error) {
	var seg entities.Segment
	if err := r.db.WithContext(ctx).Preload("Label").First(&seg, id).Error; err != nil {
		return nil, translate(err, ErrSegmentNotFound)
	}
	return &seg, nil
}

func (r *segmentRepository) ListByJob(ctx context.Context, jobID uint) ([]*entities.Segment, error) {
	var segs []*entities.Segment
	err := r.db.WithContext(ctx).
		Preload("Label").
		Where("job_id = ?", jobID).
		Order("ordinal ASC").
		Find(&segs).Error
	return segs, err
}

func (r *segmentRepository) Page(ctx context.Context, jobID uint, offset, limit int) ([]*entities.Segment, int64, error) {
	if offset < 0 || limit <= 0 {
		return nil, 0, ErrInvalidInput
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&entities.Segment{}).Where("job_id = ?", jobID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var segs []*entities.Segment
	err := r.db.WithContext(ctx).
		Preload("Label").
		Where("job_id = ?", jobID).
		Order("ordinal ASC").
		Offset(offset).
		Limit(limit).
		Find(&segs).Error
	return segs, total, err
}

func (r *segmentRepository) ListLabeled(ctx context.Context, jobIDs []uint) ([]*entities.Segment, error) {
	if len(jobIDs) == 0 {
		return nil, nil
	}
	var segs []*entities.Segment
	err := r.db.WithContext(ctx).
		Preload("Label").
		Where("job_id IN ? AND label_id IS NOT NULL", jobIDs).
		Order("job_id ASC, ordinal ASC").
		Find(&segs).Error
	return segs, err
}

func (r *segmentRepository) SetLabel(ctx context.Context, id uint, labelID *uint) error {
	result := r.db.WithContext(ctx).Model(&entities.Segment{}).
		Where("id = ?", id).
		Update("label_id", labelID)
	if result.Error != nil {
		if labelID != nil {
			return translate(result.Error, ErrLabelNotFound)
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return exists(ctx, r.db, &entities.Segment{}, id, ErrSegmentNotFound)
	}
	return nil
}

func (r *segmentRepository) ApplyLabels(ctx context.Context, assignments map[uint]uint) error {
	if len(assignments) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for segID, labelID := range assignments {
			if err := tx.Model(&entities.Segment{}).
				Where("id = ?", segID).
				Update("label_id", labelID).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *segmentRepository) CountByJob(ctx context.Context, jobID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entities.Segment{}).Where("job_id = ?", jobID).Count(&count).Error
	return count, err
}
