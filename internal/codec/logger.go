package codec

import (
	"github.com/tphakala/segmentlab/internal/logger"
)

// GetLogger returns the codec package logger.
// Fetched dynamically to ensure it uses the current centralized logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("codec")
}
