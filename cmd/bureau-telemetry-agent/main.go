// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/telemetry-agent/lib/clock"
	"github.com/bureau-foundation/telemetry-agent/lib/config"
	"github.com/bureau-foundation/telemetry-agent/lib/process"
	"github.com/bureau-foundation/telemetry-agent/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		configPath  string
		logLevel    string
		showVersion bool
	)
	pflag.StringVarP(&configPath, "config", "c", "",
		"configuration file (default: $"+config.EnvironmentVariable+")")
	pflag.StringVar(&logLevel, "log-level", "",
		"log level override (debug, info, warn, error); pins the level across reloads")
	pflag.BoolVar(&showVersion, "version", false, "print version information and exit")
	pflag.Parse()

	if showVersion {
		process.Printf("%s %s\n", version.Product, version.Full())
		return nil
	}

	if configPath == "" {
		configPath = os.Getenv(config.EnvironmentVariable)
	}
	if configPath == "" {
		return fmt.Errorf("--config or $%s is required", config.EnvironmentVariable)
	}
	initial, err := config.LoadFile(configPath)
	if err != nil {
		return err
	}

	levelName := initial.Log.Level
	if logLevel != "" {
		levelName = logLevel
	}
	level, err := config.ParseLevel(levelName)
	if err != nil {
		return err
	}
	levelVar := new(slog.LevelVar)
	levelVar.Set(level)
	logger := newLogger(levelVar)

	provider, err := config.NewProvider(initial, configPath, logger)
	if err != nil {
		return err
	}
	if logLevel == "" {
		provider.Subscribe(func(old, new *config.Config) {
			if level, err := config.ParseLevel(new.Log.Level); err == nil {
				levelVar.Set(level)
			}
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	agent, err := newAgent(provider, clock.Real(), logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := agent.close(); err != nil {
			logger.Error("closing agent", "error", err)
		}
	}()

	return agent.run(ctx)
}

// newLogger returns a JSON logger on stderr whose level follows
// levelVar, and installs it as the slog default.
func newLogger(levelVar *slog.LevelVar) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: levelVar,
	}))
	slog.SetDefault(logger)
	return logger
}
