package api

import (
	"path/filepath"
	"time"

	"github.com/tphakala/segmentlab/internal/datastore/entities"
	"github.com/tphakala/segmentlab/internal/export"
	"github.com/tphakala/segmentlab/internal/segmentation"
)

// JobResponse describes one audio job.
type JobResponse struct {
	ID              uint      `json:"id"`
	SourceName      string    `json:"source_name"`
	Status          string    `json:"status"`
	Progress        int       `json:"progress"`
	Error           string    `json:"error,omitempty"`
	SegmentDuration float64   `json:"segment_duration"`
	Overlap         float64   `json:"overlap"`
	SampleRate      int       `json:"sample_rate"`
	Channels        string    `json:"channels"`
	SpecType        string    `json:"spec_type"`
	ResultPath      string    `json:"result_path,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func newJobResponse(j *entities.AudioJob) JobResponse {
	return JobResponse{
		ID:              j.ID,
		SourceName:      j.SourceName,
		Status:          string(j.Status),
		Progress:        j.Progress,
		Error:           j.Error,
		SegmentDuration: j.SegmentDuration,
		Overlap:         j.Overlap,
		SampleRate:      j.SampleRate,
		Channels:        j.Channels,
		SpecType:        j.SpecType,
		ResultPath:      j.ResultPath,
		CreatedAt:       j.CreatedAt,
	}
}

// StatusResponse is returned by the status polling endpoints.
type StatusResponse struct {
	ID       uint   `json:"id"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Error    string `json:"error,omitempty"`
}

// SegmentResponse describes one segment. Start, End and TimeSegment are
// recomputed from the job parameters rather than read from storage.
type SegmentResponse struct {
	ID            uint    `json:"id"`
	Ordinal       int     `json:"ordinal"`
	Start         float64 `json:"start"`
	End           float64 `json:"end"`
	TimeSegment   string  `json:"time_segment"`
	AudioFile     string  `json:"audio_file,omitempty"`
	DisplayImage  string  `json:"display_image,omitempty"`
	TrainingImage string  `json:"training_image,omitempty"`
	LabelID       *uint   `json:"label_id"`
	Label         string  `json:"label,omitempty"`
}

func newSegmentResponse(job *entities.AudioJob, s *entities.Segment) SegmentResponse {
	w := segmentation.WindowAt(s.Ordinal, segmentation.ParamsFromPercent(job.SegmentDuration, job.Overlap))
	return SegmentResponse{
		ID:            s.ID,
		Ordinal:       s.Ordinal,
		Start:         w.Start,
		End:           w.End,
		TimeSegment:   export.TimeSegment(job, s.Ordinal),
		AudioFile:     baseName(s.AudioPath),
		DisplayImage:  baseName(s.DisplayImagePath),
		TrainingImage: baseName(s.TrainingImagePath),
		LabelID:       s.LabelID,
		Label:         s.LabelName(),
	}
}

// SegmentPage is one page of a job's segments.
type SegmentPage struct {
	JobID      uint              `json:"job_id"`
	Items      []SegmentResponse `json:"items"`
	Page       int               `json:"page"`
	PerPage    int               `json:"per_page"`
	Total      int64             `json:"total"`
	TotalPages int               `json:"total_pages"`
}

// LabelResponse describes one label.
type LabelResponse struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func newLabelResponse(l *entities.Label) LabelResponse {
	return LabelResponse{ID: l.ID, Name: l.Name, Description: l.Description}
}

// RunResponse describes one training run.
type RunResponse struct {
	ID        uint                      `json:"id"`
	Status    string                    `json:"status"`
	Progress  int                       `json:"progress"`
	Error     string                    `json:"error,omitempty"`
	Params    entities.TrainingParams   `json:"params"`
	Metrics   *entities.TrainingMetrics `json:"metrics,omitempty"`
	CreatedAt time.Time                 `json:"created_at"`
}

func newRunResponse(r *entities.TrainingRun) RunResponse {
	return RunResponse{
		ID:        r.ID,
		Status:    string(r.Status),
		Progress:  r.Progress,
		Error:     r.Error,
		Params:    r.Params,
		Metrics:   r.Metrics,
		CreatedAt: r.CreatedAt,
	}
}

// ReportResponse is the evaluation report of a successful run.
type ReportResponse struct {
	ID          uint                      `json:"id"`
	ModelName   string                    `json:"model_name"`
	Metrics     *entities.TrainingMetrics `json:"metrics"`
	ResultsPath string                    `json:"results_path"`
	Images      []string                  `json:"images"`
}

// DeleteResponse reports a bulk deletion.
type DeleteResponse struct {
	Deleted int64  `json:"deleted"`
	Missing []uint `json:"missing,omitempty"`
}

func baseName(path string) string {
	if path == "" {
		return ""
	}
	return filepath.Base(path)
}
