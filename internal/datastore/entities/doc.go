// Package entities defines the GORM models persisted by segmentlab.
//
// An AudioJob owns its Segments (cascade delete). A Segment optionally
// references a Label; deleting the Label nulls the reference. A TrainingRun
// refers to its source jobs by value inside Params, never by foreign key.
package entities
