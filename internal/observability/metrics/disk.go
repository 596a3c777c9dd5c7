package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// DiskMetrics reports free space of the data directory.
type DiskMetrics struct {
	FreePercent prometheus.Gauge
	Rejections  prometheus.Counter
}

// NewDiskMetrics creates and registers the disk collectors.
func NewDiskMetrics(registry *prometheus.Registry) (*DiskMetrics, error) {
	m := &DiskMetrics{
		FreePercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "segmentlab_disk_free_percent",
			Help: "Free space on the data directory volume in percent",
		}),
		Rejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "segmentlab_disk_rejections_total",
			Help: "Uploads or tasks refused because free space was below the minimum",
		}),
	}
	for _, c := range []prometheus.Collector{m.FreePercent, m.Rejections} {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register disk metrics: %w", err)
		}
	}
	return m, nil
}
