package domain

import "time"

// OutputArtifact is a finished file in the output directory
type OutputArtifact struct {
	Name        string    `json:"name"`
	SizeBytes   int64     `json:"size"`
	CreatedAt   time.Time `json:"created"`
	DownloadURL string    `json:"downloadUrl"`
}

// ArtifactStore defines the interface for the output directory
type ArtifactStore interface {
	// EnsureDir creates the output directory if needed
	EnsureDir() error

	// PathFor returns the final path of name
	PathFor(name string) (string, error)

	// TempPath returns a hidden in-progress path for name that is
	// unique to jobID
	TempPath(name, jobID string) (string, error)

	// Remove deletes an existing artifact; a missing one is not an error
	Remove(name string) error

	// Commit publishes a finished temp file under name
	Commit(tempPath, name string) (*OutputArtifact, error)

	// Discard removes a temp file left by a failed job
	Discard(tempPath string)

	// List returns visible artifacts ordered newest first
	List() ([]OutputArtifact, error)

	// Delete removes a named artifact, failing with ErrNotFound if absent
	Delete(name string) error
}
