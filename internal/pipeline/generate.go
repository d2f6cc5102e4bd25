package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/tensorplex-labs/molgan/internal/artifact"
	"github.com/tensorplex-labs/molgan/internal/fingerprint"
	"github.com/tensorplex-labs/molgan/internal/gan"
)

type GANResult struct {
	Synthetic []fingerprint.Vector
	Stats     gan.TrainStats
}

// GANStage trains the generator on positives and samples the configured
// number of synthetic fingerprints.
func (p *Pipeline) GANStage(ctx context.Context, positives []fingerprint.Vector) (GANResult, error) {
	if len(positives) == 0 {
		return GANResult{}, fmt.Errorf("gan: no positive fingerprints to train on")
	}
	cfg, err := gan.ConfigFromEnv(p.cfg.GANEnvConfig, positives[0].Len())
	if err != nil {
		return GANResult{}, err
	}
	trainer, err := gan.NewTrainer(cfg, p.exec, seeded("gan", p.cfg.GANEnvConfig.Seed))
	if err != nil {
		return GANResult{}, err
	}

	stats, err := trainer.Train(ctx, positives)
	if err != nil {
		return GANResult{Stats: stats}, fmt.Errorf("gan: %w", err)
	}
	synthetic, _ := trainer.Sample(cfg.Samples)
	log.Info().Int("synthetic", len(synthetic)).Msg("synthetic fingerprints sampled")

	if err := p.store.WriteSynthetic(synthetic, cfg.NumBits); err != nil {
		return GANResult{}, err
	}
	if err := p.store.WriteCheckpoint(trainer.Checkpoint()); err != nil {
		return GANResult{}, err
	}
	if err := artifact.WriteTable(p.store, artifact.TrainStats, stats.Epochs); err != nil {
		return GANResult{}, err
	}
	return GANResult{Synthetic: synthetic, Stats: stats}, nil
}

// TrainGAN runs GANStage on the persisted positive fingerprints.
func (p *Pipeline) TrainGAN(ctx context.Context) (GANResult, error) {
	if err := p.store.Require(artifact.PositiveFingerprints); err != nil {
		return GANResult{}, err
	}
	positives, err := p.store.ReadFingerprints(artifact.PositiveFingerprints)
	if err != nil {
		return GANResult{}, err
	}
	return p.GANStage(ctx, positives)
}
