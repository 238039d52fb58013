package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/yourusername/yt-convert-go/api"
	"github.com/yourusername/yt-convert-go/api/handlers"
	"github.com/yourusername/yt-convert-go/internal/app"
	"github.com/yourusername/yt-convert-go/pkg/logger"
)

var configPath = flag.String("config", "", "Path to config file (default: search ./configs, ~/.yt-convert, /etc/yt-convert)")

func main() {
	flag.Parse()

	config, err := app.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:      config.Logging.Level,
		Format:     config.Logging.Format,
		OutputPath: config.Logging.OutputPath,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	multiLog, err := logger.NewMultiLogger(logger.MultiLoggerConfig{
		Level:   config.Logging.Level,
		LogsDir: config.Output.LogsDir,
	})
	if err != nil {
		log.Fatal("Failed to initialize job logs", zap.Error(err))
	}
	defer multiLog.Close()

	log.Info("Starting yt-convert server",
		zap.String("version", handlers.Version),
		zap.String("host", config.Server.Host),
		zap.Int("port", config.Server.Port),
		zap.String("output_dir", config.Output.Dir),
		zap.Duration("transcode_timeout", config.Transcode.Timeout))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	components, err := app.Build(config, log, multiLog, reg)
	if err != nil {
		log.Fatal("Failed to initialize pipeline", zap.Error(err))
	}

	router := api.SetupRouter(api.RouterConfig{
		Runner:         components.Pipeline,
		Store:          components.Store,
		Gatherer:       reg,
		Logger:         log,
		MultiLogger:    multiLog,
		DownloadPrefix: config.Server.DownloadPrefix,
		OutputDir:      config.Output.Dir,
		FFmpegBinary:   config.Encoder.FFmpegBinary,
	})

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// in-flight conversions keep their connection until they finish or this expires
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}
