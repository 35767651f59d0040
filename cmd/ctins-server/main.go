package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/vovakirdan/ctins/internal/app"
	"github.com/vovakirdan/ctins/internal/config"
	"github.com/vovakirdan/ctins/internal/log"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	addr := flag.String("addr", "", "HTTP listen address")
	dbPath := flag.String("db", "", "SQLite database path")
	logLevel := flag.String("log-level", "", "log level (debug, info, warn, error)")
	flag.Parse()

	bootLogger := log.New("info")
	cfg, cfgPath, err := config.Load(bootLogger, *configPath)
	if err != nil {
		bootLogger.Fatal().Err(err).Str("path", cfgPath).Msg("load config")
	}

	cfg.UpdateFrom(config.Config{
		LogLevel: *logLevel,
		Server: config.ServerConfig{
			Addr:   *addr,
			DBPath: *dbPath,
		},
	})

	logger := log.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(cfg.Server, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("init server")
	}

	logger.Info().Str("addr", cfg.Server.Addr).Msg("starting ctins server")
	if err := application.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server exited with error")
	}
	logger.Info().Msg("server stopped")
}
