package domain

import (
	"context"
	"io"
	"time"
)

// Source defines the interface for the remote media provider
type Source interface {
	// Validate checks the shape of a URL without touching the network
	Validate(rawURL string) error

	// Metadata resolves descriptive information with a single round trip
	Metadata(ctx context.Context, rawURL string) (*SourceMetadata, error)

	// Open returns a readable media stream matching spec and its size in
	// bytes, or 0 when the provider does not know it
	Open(ctx context.Context, rawURL string, spec StreamSpec) (io.ReadCloser, int64, error)
}

// ProgressFunc receives advisory progress percentages
type ProgressFunc func(percent float64)

// EncodeRequest describes one encoder run
type EncodeRequest struct {
	JobID      string
	Source     io.Reader
	OutputPath string
	Profile    EncodingProfile
	Duration   time.Duration // progress hint, zero when unknown
	Progress   ProgressFunc  // may be nil
}

// Encoder defines the interface for the transcoder
type Encoder interface {
	// Encode reads req.Source until EOF and writes req.OutputPath in the
	// container described by req.Profile
	Encode(ctx context.Context, req EncodeRequest) error
}
