package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tensorplex-labs/molgan/internal/config"
	"github.com/tensorplex-labs/molgan/internal/lookup"
	"github.com/tensorplex-labs/molgan/internal/pipeline"
	"github.com/tensorplex-labs/molgan/internal/utils/logger"
)

var logOpts logger.Options

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := &cobra.Command{
		Use:   "molgan",
		Short: "generate and evaluate synthetic drug fingerprints",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.Init(logOpts)
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVar(&logOpts.Debug, "debug", false, "enable debug logging")
	root.PersistentFlags().BoolVar(&logOpts.Trace, "trace", false, "enable trace logging")
	root.PersistentFlags().BoolVar(&logOpts.Info, "info", false, "force info logging")

	root.AddCommand(
		encodeCmd(),
		trainClassifierCmd(),
		trainGANCmd(),
		evaluateCmd(),
		reportCmd(),
		runCmd(),
	)

	if err := root.ExecuteContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("molgan failed")
	}
}

func loadConfig() *config.AppConfig {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load environment configuration")
	}
	return cfg
}

// newResolver builds the PubChem client, fronted by Redis when enabled.
func newResolver(ctx context.Context, cfg *config.AppConfig) lookup.Resolver {
	clientCfg, err := lookup.LoadClientConfig(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load lookup client config")
	}
	client, err := lookup.NewPubChem(clientCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init pubchem client")
	}
	if !cfg.CacheEnabled {
		return client
	}

	cache, err := lookup.NewRedisCache(&cfg.RedisEnvConfig)
	if err != nil {
		log.Error().Err(err).Msg("failed to init redis client, continuing without structure cache")
		return client
	}
	return lookup.NewCachedResolver(client, cache, cfg.CacheTTL)
}

func encodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encode",
		Short: "fingerprint the drug table and a random negative pool",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			p := pipeline.New(cfg, pipeline.WithResolver(newResolver(cmd.Context(), cfg)))
			_, err := p.Encode(cmd.Context())
			return err
		},
	}
}

func trainClassifierCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "train-classifier",
		Short: "train the random forest and write the classification report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := pipeline.New(loadConfig()).TrainClassifier(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Println(res.Report.String())
			return nil
		},
	}
}

func trainGANCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "train-gan",
		Short: "train the generator on positive fingerprints and sample synthetic ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := pipeline.New(loadConfig()).TrainGAN(cmd.Context())
			return err
		},
	}
}

func evaluateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "evaluate",
		Short: "score synthetic fingerprints and project them alongside real ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ev, err := pipeline.New(loadConfig()).Evaluate(cmd.Context())
			if err != nil {
				return err
			}
			for _, r := range ev.Similarity {
				cmd.Printf("synthetic %d -> real %d (tanimoto %.4f)\n", r.SyntheticIndex, r.NearestRealIndex, r.Score)
			}
			if ev.Candidates.Total > 0 {
				cmd.Println(ev.Candidates.String())
			}
			return nil
		},
	}
}

func reportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "render figures from persisted artifacts",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			written := pipeline.New(loadConfig(), pipeline.WithTerminal(cmd.OutOrStdout())).Report()
			for _, path := range written {
				cmd.Println(path)
			}
		},
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "run every stage in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			p := pipeline.New(cfg,
				pipeline.WithResolver(newResolver(cmd.Context(), cfg)),
				pipeline.WithTerminal(cmd.OutOrStdout()),
			)
			return p.Run(cmd.Context())
		},
	}
}
