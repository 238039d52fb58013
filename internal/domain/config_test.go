package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.NotNil(t, config)
	assert.Equal(t, "0.0.0.0", config.Server.Host)
	assert.Equal(t, 3000, config.Server.Port)
	assert.Equal(t, "/output", config.Server.DownloadPrefix)
	assert.Equal(t, "./output", config.Output.Dir)
	assert.Equal(t, "ffmpeg", config.Encoder.FFmpegBinary)
	assert.Equal(t, 30*time.Minute, config.Transcode.Timeout)
	assert.False(t, config.Notification.Enabled)
	assert.Equal(t, "info", config.Logging.Level)
}
