package app

import (
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/yourusername/yt-convert-go/internal/domain"
	"github.com/yourusername/yt-convert-go/internal/infrastructure"
	"github.com/yourusername/yt-convert-go/pkg/logger"
)

// Components are the long-lived pieces built from a Config
type Components struct {
	Pipeline *Pipeline
	Store    *infrastructure.FSOutputStore
	Metrics  *infrastructure.Metrics
}

// Build wires the YouTube source, ffmpeg encoder and output store into a
// pipeline and creates the output directory. reg and multiLog may be nil.
func Build(config *domain.Config, log *zap.Logger, multiLog *logger.MultiLogger, reg prometheus.Registerer) (*Components, error) {
	store := infrastructure.NewFSOutputStore(config.Output.Dir, config.Server.DownloadPrefix, log)
	if err := store.EnsureDir(); err != nil {
		return nil, err
	}

	source := infrastructure.NewYouTubeSource(newSourceHTTPClient(), log)
	encoder := infrastructure.NewFFmpegEncoder(&config.Encoder, config.Output.LogsDir, log)
	notifier := infrastructure.NewNotificationService(&config.Notification, log)

	var metrics *infrastructure.Metrics
	if reg != nil {
		metrics = infrastructure.NewMetrics(reg)
	}

	pipeline := NewPipeline(source, encoder, store, &config.Transcode, log, multiLog, metrics, notifier)
	return &Components{Pipeline: pipeline, Store: store, Metrics: metrics}, nil
}

// newSourceHTTPClient bounds connection setup and response headers only;
// stream bodies are read for as long as a job runs
func newSourceHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   15 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   15 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
			IdleConnTimeout:       90 * time.Second,
			MaxIdleConns:          16,
		},
	}
}
