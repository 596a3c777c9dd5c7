package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/tphakala/segmentlab/internal/datastore/entities"
)

var terminalRunStatuses = []string{string(entities.RunSuccess), string(entities.RunFailure)}

// trainingRunRepository implements TrainingRunRepository.
type trainingRunRepository struct {
	db *gorm.DB
}

// NewTrainingRunRepository creates a new TrainingRunRepository.
func NewTrainingRunRepository(db *gorm.DB) TrainingRunRepository {
	return &trainingRunRepository{db: db}
}

func (r *trainingRunRepository) Create(ctx context.Context, run *entities.TrainingRun) error {
	if run.Status == "" {
		run.Status = entities.RunPending
	}
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *trainingRunRepository) GetByID(ctx context.Context, id uint) (*entities.TrainingRun, error) {
	var run entities.TrainingRun
	if err := r.db.WithContext(ctx).First(&run, id).Error; err != nil {
		return nil, translate(err, ErrTrainingRunNotFound)
	}
	return &run, nil
}

func (r *trainingRunRepository) List(ctx context.Context) ([]*entities.TrainingRun, error) {
	var runs []*entities.TrainingRun
	err := r.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&runs).Error
	return runs, err
}

func (r *trainingRunRepository) ListPending(ctx context.Context) ([]*entities.TrainingRun, error) {
	var runs []*entities.TrainingRun
	err := r.db.WithContext(ctx).
		Where("status = ?", entities.RunPending).
		Order("created_at ASC, id ASC").
		Find(&runs).Error
	return runs, err
}

func (r *trainingRunRepository) SetState(ctx context.Context, id uint, status entities.RunStatus, progress int, errMsg string) error {
	result := r.db.WithContext(ctx).Model(&entities.TrainingRun{}).
		Where("id = ? AND status NOT IN ?", id, terminalRunStatuses).
		Updates(map[string]any{
			"status":   status,
			"progress": progress,
			"error":    errMsg,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return stateUpdateMissed(ctx, r.db, &entities.TrainingRun{}, id, terminalRunStatuses, ErrTrainingRunNotFound)
	}
	return nil
}

// SaveResults goes through Updates on a struct so the json serializer applies to Metrics.
func (r *trainingRunRepository) SaveResults(ctx context.Context, id uint, metrics *entities.TrainingMetrics, resultsPath string) error {
	result := r.db.WithContext(ctx).Model(&entities.TrainingRun{ID: id}).
		Select("Metrics", "ResultsPath").
		Updates(&entities.TrainingRun{Metrics: metrics, ResultsPath: resultsPath})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return exists(ctx, r.db, &entities.TrainingRun{}, id, ErrTrainingRunNotFound)
	}
	return nil
}

func (r *trainingRunRepository) Delete(ctx context.Context, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&entities.TrainingRun{})
	return result.RowsAffected, result.Error
}
