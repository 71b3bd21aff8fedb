// Package main is the entry point for the Nightscout Bridge daemon
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/mrcode/nightscout-bridge/internal/app"
	"github.com/mrcode/nightscout-bridge/internal/automation"
	"github.com/mrcode/nightscout-bridge/internal/autostart"
	"github.com/mrcode/nightscout-bridge/internal/logger"
	"github.com/mrcode/nightscout-bridge/internal/models"
	"github.com/mrcode/nightscout-bridge/internal/nightscout"
	"github.com/mrcode/nightscout-bridge/internal/store"
)

func main() {
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	logFormat := flag.String("log-format", "console", "log format: console or json")
	flag.Parse()

	log, err := logger.New(*logLevel, *logFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "initializing logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	settings := models.DefaultSettings()
	if err := settings.Load(); err != nil {
		log.Warn("loading settings, continuing with defaults", zap.Error(err))
	}
	if !settings.IsConfigured() {
		path, _ := models.GetConfigPath()
		log.Fatal("nightscout URL not configured", zap.String("settings", path))
	}

	if settings.AutoStart {
		if err := autostart.Enable(); err != nil {
			log.Warn("enabling autostart", zap.Error(err))
		}
	} else {
		if err := autostart.Disable(); err != nil {
			log.Warn("disabling autostart", zap.Error(err))
		}
	}

	client := nightscout.NewClient(
		settings.NightscoutURL,
		settings.APISecret,
		settings.APIToken,
		settings.UseToken,
	)
	if err := client.TestConnection(); err != nil {
		log.Warn("nightscout unreachable at startup, uploads will retry", zap.Error(err))
	}

	configDir, err := models.GetConfigDir()
	if err != nil {
		log.Fatal("resolving config directory", zap.Error(err))
	}
	st, err := store.Open(filepath.Join(configDir, "readings.msgpack"))
	if err != nil {
		log.Fatal("opening reading store", zap.Error(err))
	}

	driver := automation.NewDriver(settings.ADBPath, settings.DeviceSerial, log)
	ocr := automation.NewTesseractEngine(settings.TesseractPath, settings.OCRLanguage)

	svc := app.NewService(settings, log, driver, client, ocr, st)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		s := <-sig
		log.Info("shutting down", zap.String("signal", s.String()))
		svc.Stop()
		cancel()
	}()

	log.Info("nightscout bridge started",
		zap.Int("pollIntervalSeconds", settings.PollIntervalSeconds),
		zap.String("device", settings.DeviceName))
	svc.Start(ctx)
}
