package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/ctins/internal/cli"
	"github.com/vovakirdan/ctins/internal/config"
	"github.com/vovakirdan/ctins/internal/identity"
	"github.com/vovakirdan/ctins/internal/log"
	"github.com/vovakirdan/ctins/internal/session"
	"github.com/vovakirdan/ctins/internal/store"
	"github.com/vovakirdan/ctins/internal/store/memory"
	"github.com/vovakirdan/ctins/internal/store/remote"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	serverURL := flag.String("server", "", "server base URL")
	room := flag.String("room", "", "room to join")
	logLevel := flag.String("log-level", "", "log level (debug, info, warn, error)")
	local := flag.Bool("local", false, "run against an in-process store, no server")
	flag.Parse()

	// Stdout carries the chat log; logging goes to stderr.
	bootLogger := log.NewTo(os.Stderr, "info")
	cfg, cfgPath, err := config.Load(bootLogger, *configPath)
	if err != nil {
		bootLogger.Fatal().Err(err).Str("path", cfgPath).Msg("load config")
	}

	cfg.UpdateFrom(config.Config{
		LogLevel: *logLevel,
		Client: config.ClientConfig{
			ServerURL: *serverURL,
			Room:      *room,
		},
	})
	if *local {
		cfg.Client.ServerURL = ""
	}

	logger := log.NewTo(os.Stderr, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg.Client, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("client exited with error")
	}
	logger.Info().Msg("bye")
}

func run(ctx context.Context, cfg config.ClientConfig, logger *zerolog.Logger) error {
	provider, st, err := connect(ctx, cfg, logger)
	if err != nil {
		return err
	}

	sess, err := session.Open(ctx, provider, st, cfg.Room, cfg.SendTimeout, logger)
	if err != nil {
		st.Close()
		return err
	}
	defer sess.Close()

	ui := cli.New(sess, cfg.Room, os.Stdin, os.Stdout, logger)
	return ui.Run(ctx)
}

// connect picks the store and identity pair for the configured mode. The
// remote path authenticates up front because the store needs the token at
// dial time.
func connect(ctx context.Context, cfg config.ClientConfig, logger *zerolog.Logger) (identity.Provider, store.Store, error) {
	if cfg.ServerURL == "" {
		logger.Info().Msg("no server configured, using in-process store")
		return identity.NewLocal(), memory.New(), nil
	}

	provider := identity.NewRemote(cfg.ServerURL, logger)
	participant, err := provider.AuthenticateAnonymously(ctx)
	if err != nil {
		return nil, nil, err
	}

	st, err := remote.New(remote.Config{
		URL:            cfg.ServerURL,
		Token:          participant.Token,
		OptimisticEcho: cfg.OptimisticEcho,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	return provider, st, nil
}
