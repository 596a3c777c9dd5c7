// Package repository provides repository interfaces and GORM implementations
// for the segmentlab schema.
package repository

import (
	"context"
	"slices"

	"gorm.io/gorm"

	"github.com/tphakala/segmentlab/internal/errors"
)

// Sentinel errors for repository operations.
var (
	// ErrJobNotFound indicates the requested audio job does not exist.
	ErrJobNotFound = errors.NewStd("audio job not found")

	// ErrSegmentNotFound indicates the requested segment does not exist.
	ErrSegmentNotFound = errors.NewStd("segment not found")

	// ErrLabelNotFound indicates the requested label does not exist.
	ErrLabelNotFound = errors.NewStd("label not found")

	// ErrTrainingRunNotFound indicates the requested training run does not exist.
	ErrTrainingRunNotFound = errors.NewStd("training run not found")

	// ErrDuplicateKey indicates a unique constraint violation.
	ErrDuplicateKey = errors.NewStd("duplicate key")

	// ErrInvalidInput indicates invalid input parameters.
	ErrInvalidInput = errors.NewStd("invalid input")

	// ErrTerminalState indicates a state update on a job or run that has
	// already finished.
	ErrTerminalState = errors.NewStd("job is already in a terminal state")
)

// translate maps GORM sentinel errors onto repository sentinels. A foreign key
// violation means the referenced row is missing and maps to notFound too.
func translate(err, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, gorm.ErrForeignKeyViolated):
		return notFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicateKey
	default:
		return err
	}
}

// exists returns notFound unless a row with id exists in model's table.
// MySQL reports zero affected rows for updates that change nothing, so an
// update alone cannot tell a missing row from an unchanged one.
func exists(ctx context.Context, db *gorm.DB, model any, id uint, notFound error) error {
	var count int64
	if err := db.WithContext(ctx).Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return notFound
	}
	return nil
}

// stateUpdateMissed explains a guarded state update that affected no row:
// notFound for a missing row, ErrTerminalState for a finished one and nil
// for an update that changed nothing.
func stateUpdateMissed(ctx context.Context, db *gorm.DB, model any, id uint, terminal []string, notFound error) error {
	var statuses []string
	err := db.WithContext(ctx).Model(model).Where("id = ?", id).Pluck("status", &statuses).Error
	if err != nil {
		return err
	}
	if len(statuses) == 0 {
		return notFound
	}
	if slices.Contains(terminal, statuses[0]) {
		return ErrTerminalState
	}
	return nil
}
