package dataset

import (
	"sync"

	"github.com/tphakala/segmentlab/internal/logger"
)

var (
	serviceLogger logger.Logger
	initOnce      sync.Once
)

// GetLogger returns the dataset module logger.
func GetLogger() logger.Logger {
	initOnce.Do(func() {
		serviceLogger = logger.Global().Module("dataset")
	})
	return serviceLogger
}
