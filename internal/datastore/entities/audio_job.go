package entities

import "time"

// JobStatus is the lifecycle state of an AudioJob.
type JobStatus string

const (
	JobPending    JobStatus = "PENDING"
	JobProcessing JobStatus = "PROCESSING"
	JobCompleted  JobStatus = "COMPLETED"
	JobFailed     JobStatus = "FAILED"
)

// AudioJob is one uploaded recording and the parameters it is segmented with.
type AudioJob struct {
	ID         uint   `gorm:"primaryKey"`
	SourceName string `gorm:"size:512;not null"`  // original upload file name
	SourcePath string `gorm:"size:1024;not null"` // stored upload location
	ResultPath string `gorm:"size:1024"`          // directory holding segment artifacts

	SegmentDuration float64 `gorm:"not null"` // seconds
	Overlap         float64 `gorm:"not null"` // percent in [0,100)
	SampleRate      int     // 0 keeps the source rate
	Channels        string  `gorm:"size:16;not null;default:mono"`
	SpecType        string  `gorm:"size:16;not null;default:mel"`

	Status   JobStatus `gorm:"size:16;not null;default:PENDING;index"`
	Progress int       `gorm:"not null;default:0"`
	Error    string    `gorm:"size:2048"`

	CreatedAt time.Time `gorm:"autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	Segments []Segment `gorm:"foreignKey:JobID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM.
func (AudioJob) TableName() string {
	return "audio_jobs"
}

// OverlapRatio converts the stored percentage to a ratio in [0,1).
func (j *AudioJob) OverlapRatio() float64 {
	return j.Overlap / 100
}
