package domain

import (
	"time"

	"github.com/google/uuid"
)

// JobState represents the current state of a transcode job
type JobState string

const (
	StateCreated     JobState = "created"
	StateFetching    JobState = "fetching"
	StateTranscoding JobState = "transcoding"
	StateSucceeded   JobState = "succeeded"
	StateFailed      JobState = "failed"
)

// DownloadRequest is what a caller asks the pipeline for
type DownloadRequest struct {
	SourceURL string `json:"url"`
	Format    Format `json:"format"`
}

// SourceMetadata is the descriptive information resolved for a source URL
type SourceMetadata struct {
	VideoID     string        `json:"video_id"`
	Title       string        `json:"title"`
	Author      string        `json:"author,omitempty"`
	Duration    time.Duration `json:"duration"`
	IsAvailable bool          `json:"is_available"`
}

// Job is one end-to-end run of the pipeline. It is owned by the request
// that created it and is never stored.
type Job struct {
	ID           string          `json:"id"`
	Request      DownloadRequest `json:"request"`
	Metadata     *SourceMetadata `json:"metadata,omitempty"`
	Profile      EncodingProfile `json:"profile"`
	Stream       StreamSpec      `json:"stream"`
	OutputPath   string          `json:"output_path,omitempty"`
	State        JobState        `json:"state"`
	FailureStage FailureStage    `json:"failure_stage,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Progress     float64         `json:"progress"`
	Artifact     *OutputArtifact `json:"artifact,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	FinishedAt   *time.Time      `json:"finished_at,omitempty"`
}

// NewJob creates a job for an already validated request
func NewJob(req DownloadRequest, profile EncodingProfile) *Job {
	return &Job{
		ID:        uuid.New().String(),
		Request:   req,
		Profile:   profile,
		Stream:    SelectStream(req.Format),
		State:     StateCreated,
		CreatedAt: time.Now(),
	}
}

// MarkFetching records the resolved metadata and moves the job to fetching
func (j *Job) MarkFetching(meta *SourceMetadata) {
	j.Metadata = meta
	j.State = StateFetching
	now := time.Now()
	j.StartedAt = &now
}

// MarkTranscoding marks the job as streaming into the encoder
func (j *Job) MarkTranscoding() {
	j.State = StateTranscoding
}

// UpdateProgress records a progress percentage. Values are clamped to
// [0,100] and never move backwards. It reports whether the value changed.
func (j *Job) UpdateProgress(percent float64) bool {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	if percent <= j.Progress {
		return false
	}
	j.Progress = percent
	return true
}

// MarkSucceeded marks the job as completed with its artifact
func (j *Job) MarkSucceeded(artifact *OutputArtifact) {
	j.State = StateSucceeded
	j.Artifact = artifact
	j.Progress = 100
	now := time.Now()
	j.FinishedAt = &now
}

// MarkFailed marks the job as failed at the given stage
func (j *Job) MarkFailed(stage FailureStage, err error) {
	j.State = StateFailed
	j.FailureStage = stage
	j.ErrorMessage = err.Error()
	now := time.Now()
	j.FinishedAt = &now
}

// IsTerminal checks if the job is in a terminal state
func (j *Job) IsTerminal() bool {
	return j.State == StateSucceeded || j.State == StateFailed
}

// Elapsed returns how long the job ran, or zero if it never started
func (j *Job) Elapsed() time.Duration {
	if j.StartedAt == nil {
		return 0
	}
	if j.FinishedAt == nil {
		return time.Since(*j.StartedAt)
	}
	return j.FinishedAt.Sub(*j.StartedAt)
}
