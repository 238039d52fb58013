package handlers

import (
	"errors"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/yt-convert-go/internal/domain"
)

// FilesHandler exposes the output directory
type FilesHandler struct {
	store  domain.ArtifactStore
	logger *zap.Logger
}

// NewFilesHandler creates a new files handler
func NewFilesHandler(store domain.ArtifactStore, logger *zap.Logger) *FilesHandler {
	return &FilesHandler{
		store:  store,
		logger: logger,
	}
}

// List handles GET /files
func (h *FilesHandler) List(c *gin.Context) {
	artifacts, err := h.store.List()
	if err != nil {
		h.logger.Error("Failed to list files", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to list files"})
		return
	}

	c.JSON(http.StatusOK, artifacts)
}

// Delete handles DELETE /files/:filename
func (h *FilesHandler) Delete(c *gin.Context) {
	name := c.Param("filename")

	err := h.store.Delete(name)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "File deleted"})
	case errors.Is(err, domain.ErrInvalidName):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid file name"})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "File not found"})
	default:
		h.logger.Error("Failed to delete file", zap.String("name", name), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to delete file"})
	}
}

// Serve handles GET <prefix>/:filename. Only visible regular files are
// served; there is no directory listing.
func (h *FilesHandler) Serve(c *gin.Context) {
	path, err := h.store.PathFor(c.Param("filename"))
	if err != nil {
		c.Status(http.StatusNotFound)
		return
	}

	file, err := os.Open(path)
	if err != nil {
		c.Status(http.StatusNotFound)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil || !info.Mode().IsRegular() {
		c.Status(http.StatusNotFound)
		return
	}

	// ServeContent rather than c.File: ServeFile redirects names ending in index.html
	http.ServeContent(c.Writer, c.Request, info.Name(), info.ModTime(), file)
}
