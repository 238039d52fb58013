package infrastructure

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/kkdai/youtube/v2"
	"go.uber.org/zap"

	"github.com/yourusername/yt-convert-go/internal/domain"
)

// youtubeHosts are the hosts Validate accepts, without a leading "www."
var youtubeHosts = map[string]bool{
	"youtube.com":        true,
	"m.youtube.com":      true,
	"music.youtube.com":  true,
	"gaming.youtube.com": true,
	"youtu.be":           true,
}

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// YouTubeSource implements domain.Source on top of kkdai/youtube
type YouTubeSource struct {
	client *youtube.Client
	logger *zap.Logger
}

// NewYouTubeSource creates a new YouTube source. A nil httpClient uses
// http.DefaultClient; it must not carry a whole-request timeout since
// stream bodies are read for the full length of a job.
func NewYouTubeSource(httpClient *http.Client, logger *zap.Logger) *YouTubeSource {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &YouTubeSource{
		client: &youtube.Client{HTTPClient: httpClient},
		logger: logger,
	}
}

// Validate validates that the URL points at a single YouTube video
func (s *YouTubeSource) Validate(rawURL string) error {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%w: %q is not an http(s) URL", domain.ErrInvalidURL, rawURL)
	}
	host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
	if !youtubeHosts[host] {
		return fmt.Errorf("%w: %q is not a YouTube host", domain.ErrInvalidURL, parsed.Host)
	}
	id, err := youtube.ExtractVideoID(parsed.String())
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidURL, err)
	}
	if !videoIDPattern.MatchString(id) {
		return fmt.Errorf("%w: no video id in %q", domain.ErrInvalidURL, rawURL)
	}
	return nil
}

// Metadata fetches the video title and duration
func (s *YouTubeSource) Metadata(ctx context.Context, rawURL string) (*domain.SourceMetadata, error) {
	video, err := s.client.GetVideoContext(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}

	s.logger.Debug("Resolved video metadata",
		zap.String("video_id", video.ID),
		zap.String("title", video.Title),
		zap.Duration("duration", video.Duration),
		zap.Int("formats", len(video.Formats)))

	return &domain.SourceMetadata{
		VideoID:     video.ID,
		Title:       video.Title,
		Author:      video.Author,
		Duration:    video.Duration,
		IsAvailable: len(video.Formats) > 0,
	}, nil
}

// Open opens the best stream matching spec
func (s *YouTubeSource) Open(ctx context.Context, rawURL string, spec domain.StreamSpec) (io.ReadCloser, int64, error) {
	video, err := s.client.GetVideoContext(ctx, rawURL)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", domain.ErrStreamUnavailable, err)
	}

	format, err := pickFormat(video.Formats, spec)
	if err != nil {
		return nil, 0, err
	}

	s.logger.Debug("Opening stream",
		zap.String("video_id", video.ID),
		zap.Int("itag", format.ItagNo),
		zap.String("mime_type", format.MimeType),
		zap.Int("bitrate", format.Bitrate),
		zap.Int("height", format.Height))

	stream, size, err := s.client.GetStreamContext(ctx, video, format)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", domain.ErrStreamUnavailable, err)
	}
	return stream, size, nil
}

// pickFormat selects the stream for spec. Audio-only wants audio channels
// and no picture; video+audio wants a progressive format since the encoder
// reads a single input.
func pickFormat(formats youtube.FormatList, spec domain.StreamSpec) (*youtube.Format, error) {
	var best *youtube.Format
	for i := range formats {
		f := &formats[i]
		if f.AudioChannels == 0 {
			continue
		}
		hasVideo := f.Width > 0 || f.Height > 0
		switch spec.Mode {
		case domain.ModeAudioOnly:
			if hasVideo {
				continue
			}
		case domain.ModeVideoPlusAudio:
			if !hasVideo {
				continue
			}
		default:
			return nil, fmt.Errorf("%w: unknown stream mode %q", domain.ErrStreamUnavailable, spec.Mode)
		}

		if best == nil || betterFormat(f, best, spec.Quality) {
			best = f
		}
	}

	if best == nil {
		return nil, fmt.Errorf("%w: no %s formats available", domain.ErrStreamUnavailable, spec.Mode)
	}
	return best, nil
}

func betterFormat(candidate, current *youtube.Format, quality domain.QualityTier) bool {
	if quality == domain.QualityHighestVideo && candidate.Height != current.Height {
		return candidate.Height > current.Height
	}
	return formatBitrate(candidate) > formatBitrate(current)
}

func formatBitrate(f *youtube.Format) int {
	if f.AverageBitrate > 0 {
		return f.AverageBitrate
	}
	return f.Bitrate
}
