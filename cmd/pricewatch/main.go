package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"pricewatch/internal/app"
	"pricewatch/internal/config"
	"pricewatch/internal/logger"
)

func main() {
	defaultPath := os.Getenv("PRICEWATCH_CONFIG")
	if defaultPath == "" {
		defaultPath = "configs/config.yaml"
	}
	cfgPath := flag.String("config", defaultPath, "path to the configuration file")
	flag.Parse()

	store, err := config.OpenOrCreate(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	cfg := store.Snapshot().Config
	logFile, err := setupLogOutput(cfg.App.LogPath)
	if err != nil {
		log.Fatalf("open log file failed: %v", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}
	logger.SetLevel(cfg.App.LogLevel)
	logger.Infof("✓ config loaded from %s (markets=%d alarms=%d)", store.Path(), len(cfg.Markets), len(cfg.Alarms))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.NewApp(store)
	if err != nil {
		log.Fatalf("init app failed: %v", err)
	}
	if err := a.Run(ctx); err != nil {
		log.Fatalf("run failed: %v", err)
	}
}

func setupLogOutput(path string) (*os.File, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
	}
	dir := filepath.Dir(trimmed)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	mw := io.MultiWriter(os.Stdout, file)
	log.SetOutput(mw)
	logger.SetOutput(mw)
	return file, nil
}
