// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/telemetryd/telemetryd/internal/collector"
	"github.com/telemetryd/telemetryd/internal/config"
	"github.com/telemetryd/telemetryd/internal/logging"
	"github.com/telemetryd/telemetryd/internal/wire"
)

func main() {
	configPath := flag.String("config", "/etc/telemetryd/collector.yaml", "path to collector config file")
	flag.Parse()

	cfg, err := config.LoadCollectorConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	logger, logCloser := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)
	defer logCloser.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	collectorID, err := wire.NewCollectorID()
	if err != nil {
		logger.Error("generating collector id failed", "error", err)
		os.Exit(1)
	}
	logger.Info("starting collector", "collector_id", collectorID.String(), "server", cfg.Server.Address)

	sampler := collector.NewSampler(collectorID, cfg.Sampler.Period, cfg.Sampler.QueueCapacity, logger)
	if err := sampler.Start(); err != nil {
		logger.Error("starting sampler failed", "error", err)
		os.Exit(1)
	}

	sender := collector.NewSender(cfg.Server.Address, collectorID, sampler.Queue(), cfg.Sender.MaxMessages, sampler.Stop, logger)
	if err := sender.Run(ctx); err != nil {
		logger.Error("sender stopped", "error", err)
		sampler.Stop()
		os.Exit(1)
	}

	sampler.Stop()
	logger.Info("collector stopped")
}
