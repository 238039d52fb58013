package infrastructure

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yourusername/yt-convert-go/internal/domain"
)

const (
	// diagnosticTail is how many encoder output lines are carried in errors
	diagnosticTail = 5
	// maxLineLength caps a single buffered encoder output line
	maxLineLength = 1024 * 1024
	// defaultWaitDelay is how long Wait waits for stderr after ffmpeg exits
	defaultWaitDelay = 5 * time.Second
)

// progressKeys are the keys ffmpeg emits with -progress
var progressKeys = map[string]bool{
	"frame":        true,
	"fps":          true,
	"bitrate":      true,
	"total_size":   true,
	"out_time_us":  true,
	"out_time_ms":  true,
	"out_time":     true,
	"dup_frames":   true,
	"drop_frames":  true,
	"speed":        true,
	"progress":     true,
	"stream_0_0_q": true,
	"stream_0_1_q": true,
}

// FFmpegEncoder implements domain.Encoder by piping the source into ffmpeg
type FFmpegEncoder struct {
	config  *domain.EncoderConfig
	logsDir   string
	logger    *zap.Logger
	waitDelay time.Duration
	mu        sync.Mutex // serializes writes to the encode log
}

// NewFFmpegEncoder creates a new ffmpeg encoder. Raw encoder output is
// appended to logsDir/encode-YYYYMMDD.log; an empty logsDir disables it.
func NewFFmpegEncoder(config *domain.EncoderConfig, logsDir string, logger *zap.Logger) *FFmpegEncoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FFmpegEncoder{
		config:    config,
		logsDir:   logsDir,
		logger:    logger,
		waitDelay: defaultWaitDelay,
	}
}

// BuildArgs builds the ffmpeg argument list for writing dst
func (e *FFmpegEncoder) BuildArgs(dst string, profile domain.EncodingProfile) []string {
	args := []string{"-hide_banner", "-nostats", "-y", "-i", "pipe:0"}

	if profile.HasVideo() {
		args = append(args, "-c:v", profile.VideoCodec)
	}
	if profile.AudioCodec != "" {
		args = append(args, "-c:a", profile.AudioCodec)
	}
	if profile.AudioBitrateKbps > 0 {
		args = append(args, "-b:a", fmt.Sprintf("%dk", profile.AudioBitrateKbps))
	}

	return append(args, "-f", profile.Muxer, "-progress", "pipe:2", dst)
}

// Encode runs ffmpeg with req.Source on stdin until the source is drained
// and ffmpeg exits
func (e *FFmpegEncoder) Encode(ctx context.Context, req domain.EncodeRequest) error {
	args := e.BuildArgs(req.OutputPath, req.Profile)
	cmdLine := FormatCommandLine(e.config.FFmpegBinary, args...)

	e.logger.Debug("Starting encoder",
		zap.String("job_id", req.JobID),
		zap.String("command", cmdLine))

	var diagnostics bytes.Buffer
	var tail []string
	stderr := &lineWriter{handle: func(line string) {
		percent, ok := parseProgressLine(line, req.Duration)
		if ok {
			if percent >= 0 && req.Progress != nil {
				req.Progress(percent)
			}
			return
		}
		diagnostics.WriteString(line)
		diagnostics.WriteByte('\n')
		if strings.TrimSpace(line) != "" {
			tail = append(tail, line)
			if len(tail) > diagnosticTail {
				tail = tail[1:]
			}
		}
	}}

	g, gctx := errgroup.WithContext(ctx)
	cmd := exec.CommandContext(gctx, e.config.FFmpegBinary, args...)
	cmd.Stderr = stderr
	// Bounds Wait when a leftover child keeps stderr open
	cmd.WaitDelay = e.waitDelay

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("%w: stdin pipe: %v", domain.ErrEncode, err)
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		e.writeLog(req.JobID, cmdLine, nil, false, fmt.Sprintf("failed to start: %v", err))
		return fmt.Errorf("%w: start %s: %v", domain.ErrEncode, e.config.FFmpegBinary, err)
	}

	g.Go(func() error {
		_, copyErr := io.Copy(stdin, &contextReader{ctx: gctx, r: req.Source})
		closeErr := stdin.Close()
		if copyErr != nil {
			return copyErr
		}
		return closeErr
	})

	g.Go(func() error {
		err := cmd.Wait()
		if errors.Is(err, exec.ErrWaitDelay) {
			e.logger.Warn("Encoder output left open after exit",
				zap.String("job_id", req.JobID),
				zap.Duration("wait_delay", e.waitDelay))
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s exited: %w", e.config.FFmpegBinary, err)
		}
		return nil
	})

	err = g.Wait()
	stderr.Flush()
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		e.writeLog(req.JobID, cmdLine, diagnostics.Bytes(), false, err.Error())
		if len(tail) > 0 {
			return fmt.Errorf("%w: %v: %s", domain.ErrEncode, err, strings.Join(tail, " | "))
		}
		return fmt.Errorf("%w: %v", domain.ErrEncode, err)
	}

	e.writeLog(req.JobID, cmdLine, diagnostics.Bytes(), true, fmt.Sprintf("Encoded: %s", req.OutputPath))
	return nil
}

// parseProgressLine parses one -progress line. ok reports whether the line
// belongs to the progress stream; percent is -1 when the line carries no
// position. out_time_ms is in microseconds as well, despite its name.
func parseProgressLine(line string, duration time.Duration) (percent float64, ok bool) {
	key, value, found := strings.Cut(strings.TrimSpace(line), "=")
	if !found || !progressKeys[key] {
		return -1, false
	}

	switch key {
	case "progress":
		if value == "end" {
			return 100, true
		}
	case "out_time_us", "out_time_ms":
		if duration <= 0 {
			return -1, true
		}
		us, err := strconv.ParseInt(value, 10, 64)
		if err != nil || us < 0 {
			return -1, true
		}
		p := float64(us) / float64(duration.Microseconds()) * 100
		if p > 100 {
			p = 100
		}
		return p, true
	}
	return -1, true
}

// writeLog appends one invocation block to the encode log for today
func (e *FFmpegEncoder) writeLog(jobID, cmdLine string, output []byte, success bool, message string) {
	if e.logsDir == "" {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	file, err := e.openLogFile()
	if err != nil {
		e.logger.Warn("Failed to open encode log", zap.Error(err))
		return
	}
	defer file.Close()

	var block bytes.Buffer
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	fmt.Fprintf(&block, "\n=== [%s] Encode: %s ===\n", timestamp, jobID)
	fmt.Fprintf(&block, "$ %s\n", cmdLine)
	block.Write(output)

	status := "SUCCESS"
	if !success {
		status = "FAILED"
	}
	fmt.Fprintf(&block, "[%s] %s: %s\n", time.Now().Format("2006-01-02 15:04:05"), status, message)
	block.WriteString("=== END ===\n\n")

	if _, err := file.Write(block.Bytes()); err != nil {
		e.logger.Warn("Failed to write encode log", zap.Error(err))
	}
}

// openLogFile opens the encode log file for today
func (e *FFmpegEncoder) openLogFile() (*os.File, error) {
	if err := os.MkdirAll(e.logsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}

	dateStr := time.Now().Format("20060102")
	path := filepath.Join(e.logsDir, "encode-"+dateStr+".log")
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}

// contextReader stops feeding the encoder once ctx is done
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// lineWriter splits encoder stderr into lines. Lines longer than
// maxLineLength are cut at that length.
type lineWriter struct {
	mu     sync.Mutex
	buf    []byte
	handle func(line string)
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.emit(w.buf[:i])
		w.buf = w.buf[i+1:]
	}
	for len(w.buf) >= maxLineLength {
		w.emit(w.buf[:maxLineLength])
		w.buf = w.buf[maxLineLength:]
	}
	return len(p), nil
}

// Flush hands any unterminated trailing line to the handler
func (w *lineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.buf) > 0 {
		w.emit(w.buf)
		w.buf = nil
	}
}

func (w *lineWriter) emit(line []byte) {
	w.handle(strings.TrimSuffix(string(line), "\r"))
}
