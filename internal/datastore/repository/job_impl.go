package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/tphakala/segmentlab/internal/datastore/entities"
)

// terminalJobStatuses are never left once committed.
var terminalJobStatuses = []string{string(entities.JobCompleted), string(entities.JobFailed)}

// jobRepository implements JobRepository.
type jobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new JobRepository.
func NewJobRepository(db *gorm.DB) JobRepository {
	return &jobRepository{db: db}
}

func (r *jobRepository) Create(ctx context.Context, job *entities.AudioJob) error {
	if job.Status == "" {
		job.Status = entities.JobPending
	}
	return translate(r.db.WithContext(ctx).Create(job).Error, ErrJobNotFound)
}

func (r *jobRepository) GetByID(ctx context.Context, id uint) (*entities.AudioJob, error) {
	var job entities.AudioJob
	if err := r.db.WithContext(ctx).First(&job, id).Error; err != nil {
		return nil, translate(err, ErrJobNotFound)
	}
	return &job, nil
}

func (r *jobRepository) List(ctx context.Context, ascending bool) ([]*entities.AudioJob, error) {
	order := "created_at DESC, id DESC"
	if ascending {
		order = "created_at ASC, id ASC"
	}
	var jobs []*entities.AudioJob
	err := r.db.WithContext(ctx).Order(order).Find(&jobs).Error
	return jobs, err
}

func (r *jobRepository) ListPending(ctx context.Context) ([]*entities.AudioJob, error) {
	var jobs []*entities.AudioJob
	err := r.db.WithContext(ctx).
		Where("status = ?", entities.JobPending).
		Order("created_at ASC, id ASC").
		Find(&jobs).Error
	return jobs, err
}

func (r *jobRepository) SetState(ctx context.Context, id uint, status entities.JobStatus, progress int, errMsg string) error {
	result := r.db.WithContext(ctx).Model(&entities.AudioJob{}).
		Where("id = ? AND status NOT IN ?", id, terminalJobStatuses).
		Updates(map[string]any{
			"status":   status,
			"progress": progress,
			"error":    errMsg,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return stateUpdateMissed(ctx, r.db, &entities.AudioJob{}, id, terminalJobStatuses, ErrJobNotFound)
	}
	return nil
}

func (r *jobRepository) SetResultPath(ctx context.Context, id uint, path string) error {
	return r.setColumn(ctx, id, "result_path", path)
}

func (r *jobRepository) SetSourcePath(ctx context.Context, id uint, path string) error {
	return r.setColumn(ctx, id, "source_path", path)
}

func (r *jobRepository) setColumn(ctx context.Context, id uint, column, value string) error {
	result := r.db.WithContext(ctx).Model(&entities.AudioJob{}).
		Where("id = ?", id).
		Update(column, value)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return exists(ctx, r.db, &entities.AudioJob{}, id, ErrJobNotFound)
	}
	return nil
}

func (r *jobRepository) Delete(ctx context.Context, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Explicit child delete keeps MySQL and pre-constraint SQLite files consistent
		if err := tx.Where("job_id IN ?", ids).Delete(&entities.Segment{}).Error; err != nil {
			return err
		}
		result := tx.Where("id IN ?", ids).Delete(&entities.AudioJob{})
		deleted = result.RowsAffected
		return result.Error
	})
	return deleted, err
}
