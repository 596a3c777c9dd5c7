package conf

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/tphakala/segmentlab/internal/errors"
)

// ValidationError collects every problem found in a Settings value.
type ValidationError struct {
	Errors []string
}

func (ve ValidationError) Error() string {
	return fmt.Sprintf("validation errors: %s", strings.Join(ve.Errors, "; "))
}

// ValidateSettings checks settings for values the pipeline cannot run with.
func ValidateSettings(s *Settings) error {
	ve := ValidationError{}

	if s.Storage.DataDir == "" {
		ve.Errors = append(ve.Errors, "storage.datadir must be set")
	}
	if s.Storage.MinFreePercent < 0 || s.Storage.MinFreePercent >= 100 {
		ve.Errors = append(ve.Errors, "storage.minfreepercent must be in [0,100)")
	}

	switch s.Database.Type {
	case DBTypeSQLite:
		if s.Database.SQLite.Path == "" {
			ve.Errors = append(ve.Errors, "database.sqlite.path must be set")
		}
	case DBTypeMySQL:
		if s.Database.MySQL.Host == "" || s.Database.MySQL.Database == "" {
			ve.Errors = append(ve.Errors, "database.mysql host and database must be set")
		}
	default:
		ve.Errors = append(ve.Errors, fmt.Sprintf("database.type %q is not sqlite or mysql", s.Database.Type))
	}

	seg := s.Segmentation
	if seg.SegmentDuration <= 0 {
		ve.Errors = append(ve.Errors, "segmentation.segmentduration must be positive")
	}
	if seg.Overlap < 0 || seg.Overlap >= 100 {
		ve.Errors = append(ve.Errors, "segmentation.overlap must be in [0,100)")
	}
	if seg.Channels != "mono" && seg.Channels != "stereo" {
		ve.Errors = append(ve.Errors, "segmentation.channels must be mono or stereo")
	}
	if seg.SampleRate < 0 {
		ve.Errors = append(ve.Errors, "segmentation.samplerate must not be negative")
	}
	if seg.MaxSegments < 0 {
		ve.Errors = append(ve.Errors, "segmentation.maxsegments must not be negative")
	}

	if s.Training.Epochs <= 0 {
		ve.Errors = append(ve.Errors, "training.epochs must be positive")
	}
	if _, err := url.ParseRequestURI(s.Training.ServiceURL); err != nil {
		ve.Errors = append(ve.Errors, "training.serviceurl is not a valid URL")
	}

	if s.Queue.Workers <= 0 {
		ve.Errors = append(ve.Errors, "queue.workers must be positive")
	}
	if s.Queue.Capacity <= 0 {
		ve.Errors = append(ve.Errors, "queue.capacity must be positive")
	}

	if s.MQTT.Enabled && s.MQTT.Broker == "" {
		ve.Errors = append(ve.Errors, "mqtt.broker must be set when mqtt is enabled")
	}
	if s.Telemetry.Enabled && s.Telemetry.DSN == "" {
		ve.Errors = append(ve.Errors, "telemetry.dsn must be set when telemetry is enabled")
	}

	if len(ve.Errors) > 0 {
		return errors.New(ve).
			Category(errors.CategoryConfiguration).
			Build()
	}
	return nil
}
