package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/tensorplex-labs/molgan/internal/artifact"
	"github.com/tensorplex-labs/molgan/internal/config"
	"github.com/tensorplex-labs/molgan/internal/server"
	"github.com/tensorplex-labs/molgan/internal/utils/logger"
)

func main() {
	var opts logger.Options
	flag.BoolVar(&opts.Debug, "debug", false, "enable debug logging")
	flag.BoolVar(&opts.Trace, "trace", false, "enable trace logging")
	flag.Parse()

	logger.Init(opts)
	log.Info().Msg("Starting report server...")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load environment configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s := server.NewServer(server.ConfigFromEnv(cfg.ServerEnvConfig), artifact.NewStore(cfg.DataDir, cfg.OutputDir))
	if err := s.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("report server stopped with error")
	}
	log.Info().Msg("report server stopped")
}
