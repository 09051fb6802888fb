// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/telemetryd/telemetryd/internal/archive"
	"github.com/telemetryd/telemetryd/internal/config"
	"github.com/telemetryd/telemetryd/internal/httpapi"
	"github.com/telemetryd/telemetryd/internal/logging"
	"github.com/telemetryd/telemetryd/internal/receiver"
)

const httpShutdownTimeout = 5 * time.Second

func main() {
	configPath := flag.String("config", "/etc/telemetryd/receiver.yaml", "path to receiver config file")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bootLogger, _ := logging.NewLogger("info", "json", "")
	watcher, err := config.WatchReceiverConfig(ctx, *configPath, bootLogger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	cfg := watcher.Current()

	logger, logCloser := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)
	defer logCloser.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	persist := make(chan receiver.Envelope, 10)
	metrics := receiver.NewMetrics(func() int { return len(persist) })

	store, err := receiver.NewStore(ctx, cfg.DatabaseURL, logger, metrics)
	if err != nil {
		logger.Error("connecting to database failed", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	listener := receiver.NewListener(cfg.Server.Listen, persist, metrics, logger)

	go store.Run(ctx, persist)
	go func() {
		if err := listener.Run(ctx); err != nil {
			logger.Error("listener stopped with error", "error", err)
		}
	}()

	if sweepSched := startArchiveScheduler(ctx, watcher, store, logger); sweepSched != nil {
		defer sweepSched.Stop(context.Background())
	}

	httpServer := &http.Server{
		Addr:    cfg.HTTP.Listen,
		Handler: httpapi.NewRouter(store, cfg.HTTP.StaticDir, func() []string { return watcher.Current().HTTP.CORSOrigins }, logger),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("read API listening", "address", cfg.HTTP.Listen)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("http server error", "error", err)
		os.Exit(1)
	}
}

func startArchiveScheduler(ctx context.Context, watcher *config.ReceiverWatcher, store *receiver.Store, logger *slog.Logger) *archive.Scheduler {
	cfg := watcher.Current()
	if !cfg.Archive.Enabled() {
		logger.Info("archive sweep disabled, no bucket configured")
		return nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Archive.Region))
	if err != nil {
		logger.Error("loading AWS config failed, archive sweep disabled", "error", err)
		return nil
	}

	uploader := archive.NewS3Uploader(s3.NewFromConfig(awsCfg), cfg.Archive.Bucket, cfg.Archive.UploadBytesPerSec)
	sweeper := archive.NewSweeper(store, uploader, cfg.Archive.Prefix, cfg.Archive.Retention, archive.NewMetrics(), logger)

	scheduler, err := archive.NewScheduler(cfg.Archive.Schedule, sweeper, logger)
	if err != nil {
		logger.Error("scheduling archive sweep failed, archive sweep disabled", "error", err)
		return nil
	}
	scheduler.Start()
	return scheduler
}
