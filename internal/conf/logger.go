package conf

import "github.com/tphakala/segmentlab/internal/logger"

// GetLogger returns the config package logger. It is fetched from the global
// logger on each call since configuration is loaded before SetGlobal runs.
func GetLogger() logger.Logger {
	return logger.Global().Module("config")
}
