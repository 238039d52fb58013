package infrastructure

import (
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/yourusername/yt-convert-go/internal/domain"
)

// NotificationService raises desktop notifications for job events
type NotificationService struct {
	config *domain.NotificationConfig
	logger *zap.Logger
}

// NewNotificationService creates a new notification service
func NewNotificationService(config *domain.NotificationConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		config: config,
		logger: logger,
	}
}

// Send sends a notification
func (n *NotificationService) Send(title, message string) error {
	if n.config == nil || !n.config.Enabled {
		n.logger.Debug("Notifications disabled, skipping",
			zap.String("title", title),
			zap.String("message", message))
		return nil
	}

	name, args, err := n.command(title, message)
	if err != nil {
		n.logger.Warn("Unknown notification method", zap.String("method", n.config.Method))
		return nil
	}

	if err := exec.Command(name, args...).Run(); err != nil {
		n.logger.Error("Failed to send notification",
			zap.String("method", n.config.Method),
			zap.Error(err))
		return err
	}

	n.logger.Debug("Notification sent",
		zap.String("title", title),
		zap.String("message", message))
	return nil
}

// command builds the notifier invocation for the configured method
func (n *NotificationService) command(title, message string) (string, []string, error) {
	switch n.config.Method {
	case "osascript":
		script := fmt.Sprintf(`display notification %s with title %s`, appleScriptString(message), appleScriptString(title))
		if n.config.Sound {
			script += ` sound name "Glass"`
		}
		return "osascript", []string{"-e", script}, nil
	case "notify-send":
		return "notify-send", []string{title, message}, nil
	default:
		return "", nil, fmt.Errorf("unknown notification method %q", n.config.Method)
	}
}

// NotifyJobStarted sends a notification when a job starts transcoding
func (n *NotificationService) NotifyJobStarted(job *domain.Job) {
	n.Send("Conversion Started", fmt.Sprintf("%s (%s)", truncateString(jobLabel(job), 40), job.Request.Format))
}

// NotifyJobSucceeded sends a notification when a job's artifact is saved
func (n *NotificationService) NotifyJobSucceeded(job *domain.Job) {
	name := jobLabel(job)
	if job.Artifact != nil {
		name = job.Artifact.Name
	}
	n.Send("Conversion Completed", "Saved: "+truncateString(name, 40))
}

// NotifyJobFailed sends a notification when a job fails
func (n *NotificationService) NotifyJobFailed(job *domain.Job) {
	n.Send("Conversion Failed", fmt.Sprintf("%s failed at %s", truncateString(jobLabel(job), 30), job.FailureStage))
}

func jobLabel(job *domain.Job) string {
	if job.Metadata != nil && job.Metadata.Title != "" {
		return job.Metadata.Title
	}
	return job.Request.SourceURL
}

func appleScriptString(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
}

// truncateString truncates a string to at most maxLen runes
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
