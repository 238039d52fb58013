package domain

import "time"

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Output       OutputConfig       `mapstructure:"output"`
	Encoder      EncoderConfig      `mapstructure:"encoder"`
	Transcode    TranscodeConfig    `mapstructure:"transcode"`
	Notification NotificationConfig `mapstructure:"notification"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	DownloadPrefix string `mapstructure:"download_prefix"` // URL prefix the output directory is served under
}

// OutputConfig describes where artifacts and log files live
type OutputConfig struct {
	Dir     string `mapstructure:"dir"`
	LogsDir string `mapstructure:"logs_dir"`
}

// EncoderConfig contains encoder-related configuration
type EncoderConfig struct {
	FFmpegBinary string `mapstructure:"ffmpeg_binary"`
}

// TranscodeConfig bounds a single job. A zero timeout disables the bound.
type TranscodeConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// NotificationConfig contains notification-related configuration
type NotificationConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Sound   bool   `mapstructure:"sound"`
	Method  string `mapstructure:"method"` // osascript, notify-send
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, or file path
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           3000,
			DownloadPrefix: "/output",
		},
		Output: OutputConfig{
			Dir:     "./output",
			LogsDir: "./logs",
		},
		Encoder: EncoderConfig{
			FFmpegBinary: "ffmpeg",
		},
		Transcode: TranscodeConfig{
			Timeout: 30 * time.Minute,
		},
		Notification: NotificationConfig{
			Enabled: false,
			Sound:   false,
			Method:  "notify-send",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stdout",
		},
	}
}
