package diskmanager

import (
	"fmt"

	"github.com/tphakala/segmentlab/internal/errors"
	"github.com/tphakala/segmentlab/internal/logger"
	"github.com/tphakala/segmentlab/internal/observability/metrics"
)

// ErrInsufficientSpace is returned by Guard.Check when free space is below the minimum.
var ErrInsufficientSpace = errors.NewStd("insufficient free disk space")

// UsageFunc reports disk space for a path.
type UsageFunc func(path string) (DiskSpaceInfo, error)

// Guard refuses new work when the data directory volume is nearly full.
type Guard struct {
	dir            string
	minFreePercent float64
	usage          UsageFunc
	metrics        *metrics.DiskMetrics
	log            logger.Logger
}

// NewGuard creates a guard for dir. A minFreePercent of 0 disables the check.
// m may be nil.
func NewGuard(dir string, minFreePercent float64, m *metrics.DiskMetrics) *Guard {
	return &Guard{
		dir:            dir,
		minFreePercent: minFreePercent,
		usage:          GetDetailedDiskUsage,
		metrics:        m,
		log:            GetLogger(),
	}
}

// WithUsageFunc replaces the usage source, for tests.
func (g *Guard) WithUsageFunc(fn UsageFunc) *Guard {
	g.usage = fn
	return g
}

// Check returns ErrInsufficientSpace when free space is below the minimum.
// A failure to read usage is logged and does not block work.
func (g *Guard) Check() error {
	if g == nil || g.minFreePercent <= 0 {
		return nil
	}
	info, err := g.usage(g.dir)
	if err != nil {
		g.log.Warn("failed to read disk usage", logger.String("path", g.dir), logger.Error(err))
		return nil
	}

	free := info.FreePercent()
	if g.metrics != nil {
		g.metrics.FreePercent.Set(free)
	}
	if free >= g.minFreePercent {
		return nil
	}

	if g.metrics != nil {
		g.metrics.Rejections.Inc()
	}
	return errors.New(fmt.Errorf("%w: %.1f%% free, %.1f%% required", ErrInsufficientSpace, free, g.minFreePercent)).
		Component("diskmanager").
		Category(errors.CategoryDiskUsage).
		Priority(errors.PriorityHigh).
		Context("path", g.dir).
		Build()
}
