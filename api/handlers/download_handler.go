package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/yt-convert-go/internal/domain"
)

// JobRunner runs a conversion job to completion
type JobRunner interface {
	RunJob(ctx context.Context, req domain.DownloadRequest, progress domain.ProgressFunc) (*domain.Job, error)
}

// DownloadHandler handles conversion requests
type DownloadHandler struct {
	runner JobRunner
	logger *zap.Logger
}

// NewDownloadHandler creates a new download handler
func NewDownloadHandler(runner JobRunner, logger *zap.Logger) *DownloadHandler {
	return &DownloadHandler{
		runner: runner,
		logger: logger,
	}
}

// DownloadRequest is the body of POST /download
type DownloadRequest struct {
	URL    string `json:"url"`
	Format string `json:"format"`
}

// DownloadResponse is returned once the artifact is saved
type DownloadResponse struct {
	Success     bool   `json:"success"`
	Filename    string `json:"filename"`
	DownloadURL string `json:"downloadUrl"`
}

// Download handles POST /download. The response is sent only after the
// job has finished.
func (h *DownloadHandler) Download(c *gin.Context) {
	var req DownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.URL == "" || req.Format == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "url and format are required"})
		return
	}

	job, err := h.runner.RunJob(c.Request.Context(), domain.DownloadRequest{
		SourceURL: req.URL,
		Format:    domain.Format(req.Format),
	}, nil)
	if err != nil {
		if domain.IsValidationError(err) {
			h.logger.Debug("Rejected download request",
				zap.String("url", req.URL),
				zap.String("format", req.Format),
				zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"message": validationMessage(err)})
			return
		}
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, DownloadResponse{
		Success:     true,
		Filename:    job.Artifact.Name,
		DownloadURL: job.Artifact.DownloadURL,
	})
}

func validationMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidURL):
		return "Invalid YouTube URL"
	case errors.Is(err, domain.ErrUnsupportedFormat):
		return "Unsupported format, expected one of " + domain.FormatChoices()
	}
	return err.Error()
}
