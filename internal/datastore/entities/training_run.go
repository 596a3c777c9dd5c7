package entities

import "time"

// RunStatus is the lifecycle state of a TrainingRun.
type RunStatus string

const (
	RunPending RunStatus = "PENDING"
	RunRunning RunStatus = "RUNNING"
	RunSuccess RunStatus = "SUCCESS"
	RunFailure RunStatus = "FAILURE"
)

// TrainingParams is the serialized request a run was created with.
type TrainingParams struct {
	ModelName string `json:"model_name"`
	JobIDs    []uint `json:"job_ids"`
	Epochs    int    `json:"epochs,omitempty"`
	ImageSize int    `json:"imgsz,omitempty"`
}

// ClassMetrics holds the scores of a single class.
type ClassMetrics struct {
	Name      string  `json:"name"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1-score"`
}

// TrainingMetrics is the evaluation summary stored on a successful run.
type TrainingMetrics struct {
	AccuracyTop1 *float64      `json:"accuracy_top1"`
	PerClass     []ClassMetrics `json:"per_class_list"`
}

// TrainingRun is one model training attempt.
type TrainingRun struct {
	ID          uint             `gorm:"primaryKey"`
	Status      RunStatus        `gorm:"size:16;not null;default:PENDING;index"`
	Progress    int              `gorm:"not null;default:0"`
	Params      TrainingParams   `gorm:"type:text;serializer:json"`
	Metrics     *TrainingMetrics `gorm:"type:text;serializer:json"`
	ResultsPath string           `gorm:"size:1024"` // relative to the training runs directory
	Error       string           `gorm:"size:2048"`
	CreatedAt   time.Time        `gorm:"autoCreateTime;index"`
	UpdatedAt   time.Time        `gorm:"autoUpdateTime"`
}

// TableName returns the table name for GORM.
func (TrainingRun) TableName() string {
	return "training_runs"
}
