package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/yourusername/yt-convert-go/api/handlers"
	"github.com/yourusername/yt-convert-go/api/middleware"
	"github.com/yourusername/yt-convert-go/internal/domain"
	"github.com/yourusername/yt-convert-go/pkg/logger"
	"github.com/yourusername/yt-convert-go/web"
)

// RouterConfig carries everything the HTTP layer needs
type RouterConfig struct {
	Runner         handlers.JobRunner
	Store          domain.ArtifactStore
	Gatherer       prometheus.Gatherer // nil disables /metrics
	Logger         *zap.Logger
	MultiLogger    *logger.MultiLogger
	DownloadPrefix string
	OutputDir      string
	FFmpegBinary   string
}

// SetupRouter sets up the HTTP router
func SetupRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.Recovery(cfg.Logger, cfg.MultiLogger))
	router.Use(middleware.CORS())

	healthHandler := handlers.NewHealthHandler(cfg.OutputDir, cfg.FFmpegBinary)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	if cfg.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	downloadHandler := handlers.NewDownloadHandler(cfg.Runner, cfg.Logger)
	router.POST("/download", downloadHandler.Download)

	filesHandler := handlers.NewFilesHandler(cfg.Store, cfg.Logger)
	router.GET("/files", filesHandler.List)
	router.DELETE("/files/:filename", filesHandler.Delete)

	prefix := strings.TrimRight(cfg.DownloadPrefix, "/")
	if prefix == "" {
		prefix = "/output"
	}
	router.GET(prefix+"/:filename", filesHandler.Serve)
	router.HEAD(prefix+"/:filename", filesHandler.Serve)

	router.GET("/", serveIndexHTML)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"message": "not found"})
	})

	return router
}

// serveIndexHTML serves the embedded landing page
func serveIndexHTML(c *gin.Context) {
	content, err := web.IndexHTML()
	if err != nil {
		c.String(http.StatusInternalServerError, "Failed to read landing page: %v", err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", content)
}
