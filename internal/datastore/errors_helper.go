package datastore

import (
	"strings"

	"github.com/tphakala/segmentlab/internal/errors"
)

// dbError creates a categorized database error. Disk exhaustion is escalated
// to critical so it surfaces in telemetry.
func dbError(err error, operation string, context ...any) error {
	priority := errors.PriorityMedium
	category := errors.CategoryDatabase
	if msg := strings.ToLower(err.Error()); strings.Contains(msg, "no space") || strings.Contains(msg, "disk full") {
		priority = errors.PriorityCritical
		category = errors.CategoryDiskUsage
	}

	builder := errors.New(err).
		Component("datastore").
		Category(category).
		Priority(priority).
		Context("operation", operation)

	for i := 0; i+1 < len(context); i += 2 {
		if key, ok := context[i].(string); ok {
			builder = builder.Context(key, context[i+1])
		}
	}
	return builder.Build()
}
