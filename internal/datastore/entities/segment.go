package entities

// Segment is one planned window of an AudioJob and its rendered artifacts.
// Ordinal is dense from 0 and equals the window index produced by the planner.
type Segment struct {
	ID      uint `gorm:"primaryKey"`
	JobID   uint `gorm:"not null;uniqueIndex:idx_segment_job_ordinal"`
	Ordinal int  `gorm:"not null;uniqueIndex:idx_segment_job_ordinal"`

	StartSeconds float64 `gorm:"not null"`
	EndSeconds   float64 `gorm:"not null"`

	AudioPath         string `gorm:"size:1024"` // empty when no clip was written
	DisplayImagePath  string `gorm:"size:1024"`
	TrainingImagePath string `gorm:"size:1024"`

	LabelID *uint  `gorm:"index"`
	Label   *Label `gorm:"foreignKey:LabelID;constraint:OnDelete:SET NULL"`
}

// TableName returns the table name for GORM.
func (Segment) TableName() string {
	return "segments"
}

// LabelName returns the assigned label name or "" when unlabeled.
func (s *Segment) LabelName() string {
	if s.Label == nil {
		return ""
	}
	return s.Label.Name
}
