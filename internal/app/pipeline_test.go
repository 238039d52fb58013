package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/yt-convert-go/internal/domain"
	"github.com/yourusername/yt-convert-go/internal/infrastructure"
	"github.com/yourusername/yt-convert-go/pkg/logger"
)

const testURL = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"

// fakeSource implements domain.Source for testing
type fakeSource struct {
	mu            sync.Mutex
	meta          *domain.SourceMetadata
	metadataErr   error
	openErr       error
	payload       string
	failAfter     int // bytes served before the stream breaks, 0 = never
	size          int64
	metadataCalls int
	openCalls     int
	openedSpec    domain.StreamSpec
	closed        bool
}

func newFakeSource(title string, duration time.Duration) *fakeSource {
	return &fakeSource{
		meta:    &domain.SourceMetadata{VideoID: "dQw4w9WgXcQ", Title: title, Duration: duration, IsAvailable: true},
		payload: strings.Repeat("media", 1000),
	}
}

func (s *fakeSource) Validate(rawURL string) error {
	if !strings.HasPrefix(rawURL, "https://www.youtube.com/watch?v=") {
		return fmt.Errorf("%w: %q", domain.ErrInvalidURL, rawURL)
	}
	return nil
}

func (s *fakeSource) Metadata(ctx context.Context, rawURL string) (*domain.SourceMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metadataCalls++
	if s.metadataErr != nil {
		return nil, s.metadataErr
	}
	return s.meta, nil
}

func (s *fakeSource) Open(ctx context.Context, rawURL string, spec domain.StreamSpec) (io.ReadCloser, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openCalls++
	s.openedSpec = spec
	if s.openErr != nil {
		return nil, 0, s.openErr
	}
	var r io.Reader = strings.NewReader(s.payload)
	if s.failAfter > 0 {
		r = io.MultiReader(strings.NewReader(s.payload[:s.failAfter]), &errReader{err: errors.New("connection reset by peer")})
	}
	return &trackedStream{Reader: r, source: s}, s.size, nil
}

type trackedStream struct {
	io.Reader
	source *fakeSource
}

func (t *trackedStream) Close() error {
	t.source.mu.Lock()
	t.source.closed = true
	t.source.mu.Unlock()
	return nil
}

type errReader struct{ err error }

func (e *errReader) Read([]byte) (int, error) { return 0, e.err }

// fakeEncoder copies the source to the output path and reports scripted
// progress values. A non-nil barrier holds every call after its output is
// written until all callers have arrived.
type fakeEncoder struct {
	mu       sync.Mutex
	progress []float64
	err      error
	sawTemp  string
	temps    []string
	barrier  *sync.WaitGroup
}

func (e *fakeEncoder) Encode(ctx context.Context, req domain.EncodeRequest) error {
	e.mu.Lock()
	e.sawTemp = req.OutputPath
	e.temps = append(e.temps, req.OutputPath)
	e.mu.Unlock()

	file, err := os.OpenFile(req.OutputPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err := io.Copy(file, req.Source); err != nil {
		return fmt.Errorf("ffmpeg exited: exit status 1")
	}
	if e.barrier != nil {
		e.barrier.Done()
		e.barrier.Wait()
	}
	for _, p := range e.progress {
		if req.Progress != nil {
			req.Progress(p)
		}
	}
	return e.err
}

type pipelineFixture struct {
	pipeline *Pipeline
	source   *fakeSource
	encoder  *fakeEncoder
	store    *infrastructure.FSOutputStore
	metrics  *infrastructure.Metrics
}

func newPipelineFixture(t *testing.T, source *fakeSource) *pipelineFixture {
	t.Helper()
	store := infrastructure.NewFSOutputStore(filepath.Join(t.TempDir(), "output"), "/output", nil)
	require.NoError(t, store.EnsureDir())

	ml, err := logger.NewMultiLogger(logger.MultiLoggerConfig{Level: "info", LogsDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { ml.Close() })

	encoder := &fakeEncoder{progress: []float64{10, 50, 40, 90}}
	metrics := infrastructure.NewMetrics(prometheus.NewRegistry())
	pipeline := NewPipeline(source, encoder, store, &domain.TranscodeConfig{Timeout: time.Minute}, nil, ml, metrics, nil)

	return &pipelineFixture{pipeline: pipeline, source: source, encoder: encoder, store: store, metrics: metrics}
}

func TestPipeline_RunJob_Success(t *testing.T) {
	f := newPipelineFixture(t, newFakeSource("Test Song", 10*time.Second))

	var updates []float64
	job, err := f.pipeline.RunJob(context.Background(),
		domain.DownloadRequest{SourceURL: testURL, Format: "mp3"},
		func(p float64) { updates = append(updates, p) })
	require.NoError(t, err)

	assert.Equal(t, domain.StateSucceeded, job.State)
	require.NotNil(t, job.Artifact)
	assert.Equal(t, "Test Song.mp3", job.Artifact.Name)
	assert.Equal(t, "/output/Test%20Song.mp3", job.Artifact.DownloadURL)
	assert.Equal(t, domain.SelectStream(domain.FormatMP3), f.source.openedSpec)
	assert.True(t, f.source.closed)

	artifacts, err := f.store.List()
	require.NoError(t, err)
	require.Len(t, artifacts, 1)
	assert.Equal(t, "Test Song.mp3", artifacts[0].Name)
	assert.Equal(t, int64(5000), artifacts[0].SizeBytes)
	assert.NoFileExists(t, f.encoder.sawTemp)
	assert.Equal(t, filepath.Join(f.store.Dir(), "Test Song.mp3"), job.OutputPath)
	assert.FileExists(t, job.OutputPath)

	assert.Equal(t, []float64{10, 50, 90, 100}, updates)
}

func TestPipeline_RunJob_ConcurrentSameTitle(t *testing.T) {
	f := newPipelineFixture(t, newFakeSource("Same Video", 10*time.Second))
	f.encoder.progress = nil
	f.encoder.barrier = &sync.WaitGroup{}
	f.encoder.barrier.Add(2)

	var wg sync.WaitGroup
	jobs := make([]*domain.Job, 2)
	errs := make([]error, 2)
	for i := range jobs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			jobs[i], errs[i] = f.pipeline.RunJob(context.Background(),
				domain.DownloadRequest{SourceURL: testURL, Format: "mp3"}, nil)
		}(i)
	}
	wg.Wait()

	for i := range jobs {
		require.NoError(t, errs[i])
		assert.Equal(t, domain.StateSucceeded, jobs[i].State)
		assert.Equal(t, "Same Video.mp3", jobs[i].Artifact.Name)
	}

	require.Len(t, f.encoder.temps, 2)
	assert.NotEqual(t, f.encoder.temps[0], f.encoder.temps[1])
	for _, tmp := range f.encoder.temps {
		assert.NoFileExists(t, tmp)
	}

	artifacts, err := f.store.List()
	require.NoError(t, err)
	require.Len(t, artifacts, 1)
	assert.Equal(t, "Same Video.mp3", artifacts[0].Name)
	assert.Equal(t, int64(5000), artifacts[0].SizeBytes)
}

func TestPipeline_RunJob_TranscodeTimeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake encoder needs a POSIX shell")
	}
	binary := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(binary, []byte("#!/bin/sh\nexec sleep 30\n"), 0755))

	f := newPipelineFixture(t, newFakeSource("Slow Song", 10*time.Second))
	encoder := infrastructure.NewFFmpegEncoder(&domain.EncoderConfig{FFmpegBinary: binary}, t.TempDir(), nil)
	pipeline := NewPipeline(f.source, encoder, f.store,
		&domain.TranscodeConfig{Timeout: 300 * time.Millisecond}, nil, nil, f.metrics, nil)

	start := time.Now()
	job, err := pipeline.RunJob(context.Background(), domain.DownloadRequest{SourceURL: testURL, Format: "mp3"}, nil)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEncode)
	assert.Equal(t, domain.StageEncode, domain.StageOf(err))
	assert.Contains(t, err.Error(), "killed")
	require.NotNil(t, job)
	assert.Equal(t, domain.StateFailed, job.State)
	assert.Equal(t, domain.StageEncode, job.FailureStage)
	assert.Less(t, elapsed, 10*time.Second)

	f.source.mu.Lock()
	assert.True(t, f.source.closed)
	f.source.mu.Unlock()

	artifacts, err := f.store.List()
	require.NoError(t, err)
	assert.Empty(t, artifacts)
	entries, err := os.ReadDir(f.store.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPipeline_RunJob_NormalizesFormat(t *testing.T) {
	f := newPipelineFixture(t, newFakeSource("Clip", 10*time.Second))

	job, err := f.pipeline.RunJob(context.Background(),
		domain.DownloadRequest{SourceURL: "  " + testURL + " ", Format: " MP4 "}, nil)
	require.NoError(t, err)

	assert.Equal(t, domain.FormatMP4, job.Request.Format)
	assert.Equal(t, "Clip.mp4", job.Artifact.Name)
	assert.Equal(t, domain.ModeVideoPlusAudio, f.source.openedSpec.Mode)
}

func TestPipeline_RunJob_UnsupportedFormatRejectedBeforeIO(t *testing.T) {
	f := newPipelineFixture(t, newFakeSource("Song", 10*time.Second))

	job, err := f.pipeline.RunJob(context.Background(),
		domain.DownloadRequest{SourceURL: testURL, Format: "ogg"}, nil)

	assert.Nil(t, job)
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
	assert.Equal(t, domain.StageValidation, domain.StageOf(err))
	assert.True(t, domain.IsValidationError(err))
	assert.Zero(t, f.source.metadataCalls)
	assert.Zero(t, f.source.openCalls)
}

func TestPipeline_RunJob_InvalidURLRejectedBeforeIO(t *testing.T) {
	f := newPipelineFixture(t, newFakeSource("Song", 10*time.Second))

	_, err := f.pipeline.RunJob(context.Background(),
		domain.DownloadRequest{SourceURL: "not-a-url", Format: "mp3"}, nil)

	assert.ErrorIs(t, err, domain.ErrInvalidURL)
	assert.True(t, domain.IsValidationError(err))
	assert.Zero(t, f.source.metadataCalls)
}

func TestPipeline_RunJob_MetadataFailure(t *testing.T) {
	source := newFakeSource("Song", 10*time.Second)
	source.metadataErr = fmt.Errorf("%w: video is private", domain.ErrSourceUnavailable)
	f := newPipelineFixture(t, source)

	job, err := f.pipeline.RunJob(context.Background(), domain.DownloadRequest{SourceURL: testURL, Format: "wav"}, nil)

	require.NotNil(t, job)
	assert.Equal(t, domain.StateFailed, job.State)
	assert.Equal(t, domain.StageMetadata, domain.StageOf(err))
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
	assert.Zero(t, source.openCalls)
}

func TestPipeline_RunJob_UnavailableSource(t *testing.T) {
	source := newFakeSource("Song", 10*time.Second)
	source.meta.IsAvailable = false
	f := newPipelineFixture(t, source)

	_, err := f.pipeline.RunJob(context.Background(), domain.DownloadRequest{SourceURL: testURL, Format: "wav"}, nil)

	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
	assert.Equal(t, domain.StageMetadata, domain.StageOf(err))
}

func TestPipeline_RunJob_OpenFailure(t *testing.T) {
	source := newFakeSource("Song", 10*time.Second)
	source.openErr = fmt.Errorf("%w: no audio formats", domain.ErrStreamUnavailable)
	f := newPipelineFixture(t, source)

	_, err := f.pipeline.RunJob(context.Background(), domain.DownloadRequest{SourceURL: testURL, Format: "aac"}, nil)

	assert.ErrorIs(t, err, domain.ErrStreamUnavailable)
	assert.Equal(t, domain.StageStream, domain.StageOf(err))
}

func TestPipeline_RunJob_MidStreamFailure(t *testing.T) {
	source := newFakeSource("Broken", 10*time.Second)
	source.failAfter = 100
	f := newPipelineFixture(t, source)

	job, err := f.pipeline.RunJob(context.Background(), domain.DownloadRequest{SourceURL: testURL, Format: "mp3"}, nil)

	require.Error(t, err)
	assert.Equal(t, domain.StageStream, domain.StageOf(err))
	assert.ErrorIs(t, err, domain.ErrStreamUnavailable)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, domain.StateFailed, job.State)
	assert.True(t, source.closed)

	artifacts, err := f.store.List()
	require.NoError(t, err)
	assert.Empty(t, artifacts)
	assert.NoFileExists(t, f.encoder.sawTemp)
}

func TestPipeline_RunJob_EncoderFailure(t *testing.T) {
	f := newPipelineFixture(t, newFakeSource("Song", 10*time.Second))
	f.encoder.err = errors.New("Invalid data found when processing input")

	_, err := f.pipeline.RunJob(context.Background(), domain.DownloadRequest{SourceURL: testURL, Format: "m4a"}, nil)

	assert.Equal(t, domain.StageEncode, domain.StageOf(err))
	assert.ErrorIs(t, err, domain.ErrEncode)

	artifacts, listErr := f.store.List()
	require.NoError(t, listErr)
	assert.Empty(t, artifacts)
}

func TestPipeline_RunJob_ReplacesExistingArtifact(t *testing.T) {
	f := newPipelineFixture(t, newFakeSource("Song", 10*time.Second))
	existing := filepath.Join(f.store.Dir(), "Song.mp3")
	require.NoError(t, os.WriteFile(existing, []byte("old"), 0644))

	_, err := f.pipeline.RunJob(context.Background(), domain.DownloadRequest{SourceURL: testURL, Format: "mp3"}, nil)
	require.NoError(t, err)

	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, f.source.payload, string(data))
}

func TestPipeline_RunJob_FailureRemovesStaleArtifact(t *testing.T) {
	f := newPipelineFixture(t, newFakeSource("Song", 10*time.Second))
	f.encoder.err = errors.New("exit status 1")
	require.NoError(t, os.WriteFile(filepath.Join(f.store.Dir(), "Song.mp3"), []byte("old"), 0644))

	_, err := f.pipeline.RunJob(context.Background(), domain.DownloadRequest{SourceURL: testURL, Format: "mp3"}, nil)
	require.Error(t, err)

	artifacts, err := f.store.List()
	require.NoError(t, err)
	assert.Empty(t, artifacts)
}

func TestPipeline_RunJob_ByteProgressWithoutDuration(t *testing.T) {
	source := newFakeSource("Live", 0)
	source.size = int64(len(source.payload))
	f := newPipelineFixture(t, source)
	f.encoder.progress = nil

	var updates []float64
	_, err := f.pipeline.RunJob(context.Background(), domain.DownloadRequest{SourceURL: testURL, Format: "wav"},
		func(p float64) { updates = append(updates, p) })
	require.NoError(t, err)

	require.NotEmpty(t, updates)
	for i := 1; i < len(updates); i++ {
		assert.GreaterOrEqual(t, updates[i], updates[i-1])
	}
	assert.Equal(t, 100.0, updates[len(updates)-1])
}

func TestPipeline_RunJob_IgnoresCallerCancellation(t *testing.T) {
	f := newPipelineFixture(t, newFakeSource("Song", 10*time.Second))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	job, err := f.pipeline.RunJob(ctx, domain.DownloadRequest{SourceURL: testURL, Format: "mp3"}, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StateSucceeded, job.State)
}

func TestCountingReader(t *testing.T) {
	var seen []int64
	c := &countingReader{
		r:      io.MultiReader(strings.NewReader("abc"), &errReader{err: errors.New("boom")}),
		onRead: func(total int64) { seen = append(seen, total) },
	}

	_, err := io.ReadAll(c)
	assert.EqualError(t, err, "boom")
	assert.Equal(t, int64(3), c.Count())
	assert.EqualError(t, c.Err(), "boom")
	assert.Equal(t, []int64{3}, seen)

	clean := &countingReader{r: strings.NewReader("abc")}
	_, err = io.ReadAll(clean)
	require.NoError(t, err)
	assert.NoError(t, clean.Err())
}

type recordingObserver struct {
	transcoding *domain.Job
	state       domain.JobState
	progress    []float64
}

func (o *recordingObserver) JobTranscoding(job *domain.Job) {
	o.transcoding = job
	o.state = job.State
}

func (o *recordingObserver) JobProgress(percent float64) {
	o.progress = append(o.progress, percent)
}

func TestPipeline_RunJobObserved(t *testing.T) {
	f := newPipelineFixture(t, newFakeSource("Observed", 10*time.Second))
	obs := &recordingObserver{}

	job, err := f.pipeline.RunJobObserved(context.Background(), domain.DownloadRequest{SourceURL: testURL, Format: "aac"}, obs)
	require.NoError(t, err)

	require.NotNil(t, obs.transcoding)
	assert.Same(t, job, obs.transcoding)
	assert.Equal(t, domain.StateTranscoding, obs.state)
	assert.Equal(t, "Observed", obs.transcoding.Metadata.Title)
	assert.Equal(t, []float64{10, 50, 90, 100}, obs.progress)

	_, err = f.pipeline.RunJobObserved(context.Background(), domain.DownloadRequest{SourceURL: testURL, Format: "aac"}, nil)
	assert.NoError(t, err)
}

func TestPipeline_ThreeJobsListNewestFirst(t *testing.T) {
	source := newFakeSource("", 10*time.Second)
	f := newPipelineFixture(t, source)

	base := time.Now().Add(-time.Hour)
	for i, title := range []string{"First", "Second", "Third"} {
		source.meta = &domain.SourceMetadata{Title: title, Duration: 10 * time.Second, IsAvailable: true}
		job, err := f.pipeline.RunJob(context.Background(), domain.DownloadRequest{SourceURL: testURL, Format: "mp3"}, nil)
		require.NoError(t, err)

		mtime := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, os.Chtimes(job.OutputPath, mtime, mtime))
	}

	artifacts, err := f.store.List()
	require.NoError(t, err)
	require.Len(t, artifacts, 3)

	names := make([]string, len(artifacts))
	for i, artifact := range artifacts {
		names[i] = artifact.Name
	}
	assert.Equal(t, []string{"Third.mp3", "Second.mp3", "First.mp3"}, names)
}
