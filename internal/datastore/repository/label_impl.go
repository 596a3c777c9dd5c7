package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tphakala/segmentlab/internal/datastore/entities"
	"github.com/tphakala/segmentlab/internal/errors"
)

// labelRepository implements LabelRepository.
type labelRepository struct {
	db *gorm.DB
}

// NewLabelRepository creates a new LabelRepository.
func NewLabelRepository(db *gorm.DB) LabelRepository {
	return &labelRepository{db: db}
}

func (r *labelRepository) Create(ctx context.Context, name, description string) (*entities.Label, error) {
	if name == "" {
		return nil, ErrInvalidInput
	}
	label := entities.Label{Name: name, Description: description}
	if err := r.db.WithContext(ctx).Create(&label).Error; err != nil {
		return nil, translate(err, ErrLabelNotFound)
	}
	return &label, nil
}

// GetOrCreate inserts with ON CONFLICT DO NOTHING and re-reads, so a row
// created by a concurrent caller is returned rather than an error.
func (r *labelRepository) GetOrCreate(ctx context.Context, name string) (*entities.Label, error) {
	if name == "" {
		return nil, ErrInvalidInput
	}

	label, err := r.GetByName(ctx, name)
	if err == nil {
		return label, nil
	}
	if !errors.Is(err, ErrLabelNotFound) {
		return nil, err
	}

	candidate := entities.Label{Name: name}
	createErr := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(&candidate).Error
	if createErr != nil && !errors.Is(createErr, gorm.ErrDuplicatedKey) {
		return nil, createErr
	}

	label, err = r.GetByName(ctx, name)
	if err != nil {
		if createErr != nil {
			return nil, createErr
		}
		return nil, err
	}
	return label, nil
}

func (r *labelRepository) GetByID(ctx context.Context, id uint) (*entities.Label, error) {
	var label entities.Label
	if err := r.db.WithContext(ctx).First(&label, id).Error; err != nil {
		return nil, translate(err, ErrLabelNotFound)
	}
	return &label, nil
}

func (r *labelRepository) GetByName(ctx context.Context, name string) (*entities.Label, error) {
	var label entities.Label
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&label).Error; err != nil {
		return nil, translate(err, ErrLabelNotFound)
	}
	return &label, nil
}

func (r *labelRepository) List(ctx context.Context) ([]*entities.Label, error) {
	var labels []*entities.Label
	err := r.db.WithContext(ctx).Order("name ASC").Find(&labels).Error
	return labels, err
}

func (r *labelRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&entities.Segment{}).
			Where("label_id = ?", id).
			Update("label_id", nil).Error; err != nil {
			return err
		}
		result := tx.Delete(&entities.Label{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrLabelNotFound
		}
		return nil
	})
}
