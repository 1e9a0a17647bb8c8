// Command server runs the queryassist HTTP API.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/project-euler/queryassist/internal/app"
	"github.com/project-euler/queryassist/internal/config"
)

func main() {
	flags := pflag.NewFlagSet("server", pflag.ExitOnError)
	cfgFile := flags.String("config", "", "config file (default: ./"+config.DefaultFile+")")
	flags.Int("port", 0, "listen port")
	flags.StringSliceP("file", "f", nil, "dataset to load at startup, repeatable")
	flags.String("log-level", "", "log level (debug|info|warn|error)")
	flags.String("log-format", "", "log format (text|json)")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load(*cfgFile, flags)
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}
	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("starting", "error", err)
		os.Exit(1)
	}
	if err := a.LoadFiles(ctx, cfg.Data.Files); err != nil {
		logger.Error("loading datasets", "error", err)
		os.Exit(1)
	}

	if err := a.Serve(ctx); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}
