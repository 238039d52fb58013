package handlers

import (
	"net/http"
	"os"
	"os/exec"

	"github.com/gin-gonic/gin"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// HealthHandler handles health check requests
type HealthHandler struct {
	outputDir    string
	ffmpegBinary string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(outputDir, ffmpegBinary string) *HealthHandler {
	return &HealthHandler{
		outputDir:    outputDir,
		ffmpegBinary: ffmpegBinary,
	}
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: Version,
	})
}

// Ready handles GET /ready. It fails when the encoder binary cannot be
// found or the output directory is gone.
func (h *HealthHandler) Ready(c *gin.Context) {
	if _, err := exec.LookPath(h.ffmpegBinary); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "encoder binary not found",
		})
		return
	}

	if info, err := os.Stat(h.outputDir); err != nil || !info.IsDir() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "output directory unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
