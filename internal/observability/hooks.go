package observability

import (
	"github.com/tphakala/segmentlab/internal/taskqueue"
)

// TaskHooks returns queue hooks recording task starts, outcomes and durations.
func (m *Metrics) TaskHooks() taskqueue.Hooks {
	return taskqueue.Hooks{
		OnStart: func(info taskqueue.Info) {
			m.Pipeline.TaskStarted(info.Kind)
		},
		OnFinish: func(info taskqueue.Info) {
			m.Pipeline.TaskFinished(info.Kind, info.Duration, info.Err)
		},
	}
}
