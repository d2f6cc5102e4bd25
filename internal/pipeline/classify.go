package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/tensorplex-labs/molgan/internal/artifact"
	"github.com/tensorplex-labs/molgan/internal/classifier"
)

// ClassifierResult carries two forests. HoldOut was fit on the training split
// and produced Report and the importance table; Forest was refit on every
// labelled sample and scores synthetic candidates.
type ClassifierResult struct {
	Forest  *classifier.Forest
	HoldOut *classifier.Forest
	Report  classifier.Report
}

// ClassifierStage splits the set, trains a forest on the training part and
// reports on the held-out part. It then refits on the full set and persists
// that forest for candidate scoring.
func (p *Pipeline) ClassifierStage(ctx context.Context, set EncodedSet) (ClassifierResult, error) {
	opts := classifier.OptionsFromEnv(p.cfg.ClassifierEnvConfig, p.exec)
	samples := set.Samples()

	rng := seeded("classifier", p.cfg.ClassifierEnvConfig.Seed)
	train, test, err := classifier.StratifiedSplit(samples, p.cfg.TestFraction, rng)
	if err != nil {
		return ClassifierResult{}, fmt.Errorf("split: %w", err)
	}
	log.Info().Int("train", len(train)).Int("test", len(test)).Msg("stratified split")

	holdOut, err := classifier.Fit(ctx, train, opts, rng)
	if err != nil {
		return ClassifierResult{}, fmt.Errorf("fit: %w", err)
	}
	report, err := holdOut.Evaluate(test, p.cfg.TopFeatures)
	if err != nil {
		return ClassifierResult{}, fmt.Errorf("evaluate: %w", err)
	}
	log.Info().Float64("accuracy", report.Accuracy).Msg("classification report\n" + report.String())

	forest, err := classifier.Fit(ctx, samples, opts, seeded("classifier", p.cfg.ClassifierEnvConfig.Seed))
	if err != nil {
		return ClassifierResult{}, fmt.Errorf("refit on full set: %w", err)
	}

	if err := p.store.WriteForest(forest); err != nil {
		return ClassifierResult{}, err
	}
	if err := p.store.WriteText(artifact.ClassificationReport, report.String()); err != nil {
		return ClassifierResult{}, err
	}
	if err := artifact.WriteTable(p.store, artifact.FeatureImportance, holdOut.TopFeatures(-1)); err != nil {
		return ClassifierResult{}, err
	}
	return ClassifierResult{Forest: forest, HoldOut: holdOut, Report: report}, nil
}

// TrainClassifier runs ClassifierStage on the persisted encoded set.
func (p *Pipeline) TrainClassifier(ctx context.Context) (ClassifierResult, error) {
	set, err := p.LoadEncoded()
	if err != nil {
		return ClassifierResult{}, err
	}
	return p.ClassifierStage(ctx, set)
}
