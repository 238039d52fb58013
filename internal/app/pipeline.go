package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/yourusername/yt-convert-go/internal/domain"
	"github.com/yourusername/yt-convert-go/internal/infrastructure"
	"github.com/yourusername/yt-convert-go/pkg/logger"
)

// Pipeline turns a DownloadRequest into a finished artifact in the output
// store. Each call to RunJob is independent; a Pipeline holds no job state
// and is safe for concurrent use.
type Pipeline struct {
	source      domain.Source
	encoder     domain.Encoder
	store       domain.ArtifactStore
	config      *domain.TranscodeConfig
	logger      *zap.Logger
	multiLogger *logger.MultiLogger
	metrics     *infrastructure.Metrics
	notifier    *infrastructure.NotificationService
}

// NewPipeline creates a new pipeline. multiLogger, metrics and notifier
// may be nil.
func NewPipeline(
	source domain.Source,
	encoder domain.Encoder,
	store domain.ArtifactStore,
	config *domain.TranscodeConfig,
	logger *zap.Logger,
	multiLogger *logger.MultiLogger,
	metrics *infrastructure.Metrics,
	notifier *infrastructure.NotificationService,
) *Pipeline {
	if config == nil {
		config = &domain.TranscodeConfig{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		source:      source,
		encoder:     encoder,
		store:       store,
		config:      config,
		logger:      logger,
		multiLogger: multiLogger,
		metrics:     metrics,
		notifier:    notifier,
	}
}

// ValidateURL checks a source URL without any I/O
func (p *Pipeline) ValidateURL(rawURL string) error {
	return p.source.Validate(strings.TrimSpace(rawURL))
}

// Validate checks a request without any I/O and returns it normalized
func (p *Pipeline) Validate(req domain.DownloadRequest) (domain.DownloadRequest, error) {
	format, err := domain.ParseFormat(string(req.Format))
	if err != nil {
		return req, err
	}
	req.Format = format
	req.SourceURL = strings.TrimSpace(req.SourceURL)
	if err := p.source.Validate(req.SourceURL); err != nil {
		return req, err
	}
	return req, nil
}

// JobObserver follows a running job
type JobObserver interface {
	// JobTranscoding is called once metadata is resolved and the stream is open
	JobTranscoding(job *domain.Job)
	// JobProgress receives non-decreasing percentages in [0,100]
	JobProgress(percent float64)
}

type progressObserver domain.ProgressFunc

func (o progressObserver) JobTranscoding(*domain.Job) {}

func (o progressObserver) JobProgress(percent float64) {
	if o != nil {
		o(percent)
	}
}

// RunJob runs one conversion to completion. progress, if set, receives
// non-decreasing percentages in [0,100]. Cancelling ctx does not abort a
// started job; only the configured transcode timeout does. On failure the
// returned error is a *domain.JobError and the job, if one was created,
// is returned alongside it.
func (p *Pipeline) RunJob(ctx context.Context, req domain.DownloadRequest, progress domain.ProgressFunc) (*domain.Job, error) {
	return p.RunJobObserved(ctx, req, progressObserver(progress))
}

// RunJobObserved is RunJob with a full observer. obs may be nil.
func (p *Pipeline) RunJobObserved(ctx context.Context, req domain.DownloadRequest, obs JobObserver) (*domain.Job, error) {
	if obs == nil {
		obs = progressObserver(nil)
	}

	req, err := p.Validate(req)
	if err != nil {
		if p.metrics != nil {
			label := "unknown"
			if domain.ValidateFormat(req.Format) {
				label = string(req.Format)
			}
			p.metrics.Rejected(label, domain.StageValidation)
		}
		return nil, &domain.JobError{Stage: domain.StageValidation, Err: err}
	}

	profile, err := domain.ProfileFor(req.Format)
	if err != nil {
		return nil, &domain.JobError{Stage: domain.StageValidation, Err: err}
	}

	job := domain.NewJob(req, profile)
	p.logger.Info("Job created",
		zap.String("job_id", job.ID),
		zap.String("url", req.SourceURL),
		zap.String("format", string(req.Format)))
	p.logJobEvent("job_created", job)

	if p.metrics != nil {
		p.metrics.JobStarted()
	}
	counter := &countingReader{}
	defer func() {
		if p.metrics != nil {
			p.metrics.JobFinished(job, counter.Count())
		}
	}()

	ctx = context.WithoutCancel(ctx)
	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}

	meta, err := p.source.Metadata(ctx, req.SourceURL)
	if err != nil {
		return job, p.fail(job, domain.StageMetadata, err)
	}
	if !meta.IsAvailable {
		return job, p.fail(job, domain.StageMetadata,
			fmt.Errorf("%w: %q has no playable formats", domain.ErrSourceUnavailable, meta.Title))
	}
	job.MarkFetching(meta)
	p.logJobEvent("job_fetching", job, zap.String("title", meta.Title), zap.Duration("duration", meta.Duration))

	name := domain.ArtifactFileName(meta.Title, req.Format)
	if err := p.store.Remove(name); err != nil {
		return job, p.fail(job, domain.StageStore, err)
	}
	tempPath, err := p.store.TempPath(name, job.ID)
	if err != nil {
		return job, p.fail(job, domain.StageStore, err)
	}
	job.OutputPath = tempPath
	committed := false
	defer func() {
		if !committed {
			p.store.Discard(tempPath)
		}
	}()

	stream, size, err := p.source.Open(ctx, req.SourceURL, job.Stream)
	if err != nil {
		return job, p.fail(job, domain.StageStream, err)
	}
	defer stream.Close()

	job.MarkTranscoding()
	p.logJobEvent("job_transcoding", job, zap.String("output", name), zap.Int64("stream_size", size))
	if p.notifier != nil {
		p.notifier.NotifyJobStarted(job)
	}
	obs.JobTranscoding(job)

	report := newProgressReporter(job, obs.JobProgress)
	counter.r = stream
	if meta.Duration <= 0 && size > 0 {
		// no duration to measure encoder output against, fall back to input bytes
		counter.onRead = func(n int64) {
			report.Update(float64(n) / float64(size) * 99)
		}
	}

	encodeErr := p.encoder.Encode(ctx, domain.EncodeRequest{
		JobID:      job.ID,
		Source:     counter,
		OutputPath: tempPath,
		Profile:    profile,
		Duration:   meta.Duration,
		Progress:   report.Update,
	})

	// the source failing is the root cause even when the encoder also failed
	if readErr := counter.Err(); readErr != nil {
		if !errors.Is(readErr, domain.ErrStreamUnavailable) {
			readErr = fmt.Errorf("%w: %v", domain.ErrStreamUnavailable, readErr)
		}
		return job, p.fail(job, domain.StageStream, readErr)
	}
	if encodeErr != nil {
		if !errors.Is(encodeErr, domain.ErrEncode) {
			encodeErr = fmt.Errorf("%w: %v", domain.ErrEncode, encodeErr)
		}
		return job, p.fail(job, domain.StageEncode, encodeErr)
	}

	artifact, err := p.store.Commit(tempPath, name)
	if err != nil {
		return job, p.fail(job, domain.StageStore, err)
	}
	committed = true
	if finalPath, err := p.store.PathFor(name); err == nil {
		job.OutputPath = finalPath
	}

	report.Update(100)
	job.MarkSucceeded(artifact)

	p.logger.Info("Job succeeded",
		zap.String("job_id", job.ID),
		zap.String("file", artifact.Name),
		zap.Int64("size", artifact.SizeBytes),
		zap.Duration("elapsed", job.Elapsed()))
	p.logJobEvent("job_succeeded", job,
		zap.String("file", artifact.Name),
		zap.Int64("size", artifact.SizeBytes),
		zap.Int64("source_bytes", counter.Count()))
	if p.notifier != nil {
		p.notifier.NotifyJobSucceeded(job)
	}

	return job, nil
}

// fail marks job failed and returns the classified error
func (p *Pipeline) fail(job *domain.Job, stage domain.FailureStage, err error) error {
	job.MarkFailed(stage, err)

	p.logger.Error("Job failed",
		zap.String("job_id", job.ID),
		zap.String("stage", string(stage)),
		zap.Error(err))
	p.logJobEvent("job_failed", job, zap.String("stage", string(stage)), zap.Error(err))
	if p.multiLogger != nil {
		p.multiLogger.LogAppError("Job failed",
			zap.String("job_id", job.ID),
			zap.String("stage", string(stage)),
			zap.Error(err))
	}
	if p.notifier != nil {
		p.notifier.NotifyJobFailed(job)
	}

	return &domain.JobError{JobID: job.ID, Stage: stage, Err: err}
}

func (p *Pipeline) logJobEvent(event string, job *domain.Job, fields ...zap.Field) {
	if p.multiLogger == nil {
		return
	}
	base := []zap.Field{
		zap.String("job_id", job.ID),
		zap.String("url", job.Request.SourceURL),
		zap.String("format", string(job.Request.Format)),
		zap.String("state", string(job.State)),
	}
	p.multiLogger.LogJobEvent(event, append(base, fields...)...)
}

// progressReporter serializes progress updates coming from the encoder's
// goroutines into the job and the observer
type progressReporter struct {
	mu       sync.Mutex
	job      *domain.Job
	callback domain.ProgressFunc
}

func newProgressReporter(job *domain.Job, callback domain.ProgressFunc) *progressReporter {
	return &progressReporter{job: job, callback: callback}
}

func (r *progressReporter) Update(percent float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.job.UpdateProgress(percent) {
		r.callback(r.job.Progress)
	}
}

// countingReader counts bytes read from the source and remembers the
// first read error other than io.EOF
type countingReader struct {
	r      io.Reader
	onRead func(total int64)

	mu  sync.Mutex
	n   int64
	err error
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)

	c.mu.Lock()
	c.n += int64(n)
	total := c.n
	if err != nil && err != io.EOF && c.err == nil {
		c.err = err
	}
	c.mu.Unlock()

	if n > 0 && c.onRead != nil {
		c.onRead(total)
	}
	return n, err
}

// Count returns the number of bytes read so far
func (c *countingReader) Count() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// Err returns the first source read error, if any
func (c *countingReader) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}
