package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/tensorplex-labs/molgan/internal/artifact"
	"github.com/tensorplex-labs/molgan/internal/classifier"
	"github.com/tensorplex-labs/molgan/internal/fingerprint"
	"github.com/tensorplex-labs/molgan/internal/projection"
	"github.com/tensorplex-labs/molgan/internal/similarity"
)

type Evaluation struct {
	Similarity []similarity.Result
	Summary    similarity.Summary
	Candidates classifier.CandidateScore
	Projection projection.Projection
}

// EvaluateStage scores synthetic fingerprints against the real set: nearest
// real neighbour, classifier verdict when a forest is given, and 2-D
// projections of both sets.
func (p *Pipeline) EvaluateStage(ctx context.Context, forest *classifier.Forest, positives, synthetic []fingerprint.Vector) (Evaluation, error) {
	var ev Evaluation
	if err := ctx.Err(); err != nil {
		return ev, err
	}

	results, err := similarity.NewEvaluator(similarity.WithCosine()).Nearest(synthetic, positives)
	if err != nil {
		return ev, fmt.Errorf("similarity: %w", err)
	}
	ev.Similarity = results
	if ev.Summary, err = similarity.Summarize(results); err != nil {
		return ev, err
	}
	log.Info().Int("count", ev.Summary.Count).Float64("mean", ev.Summary.Mean).Float64("max", ev.Summary.Max).
		Msg("nearest real neighbour similarity")

	if forest != nil {
		if ev.Candidates, err = forest.ScoreCandidates(synthetic); err != nil {
			return ev, fmt.Errorf("score candidates: %w", err)
		}
	} else {
		log.Warn().Msg("no classifier available, skipping candidate scoring")
	}

	vis := projection.NewVisualizer(projection.TSNEConfigFromEnv(p.cfg.ProjectionEnvConfig), seeded("projection", p.cfg.ProjectionEnvConfig.Seed))
	if ev.Projection, err = vis.Project(positives, synthetic); err != nil {
		return ev, fmt.Errorf("projection: %w", err)
	}

	if err := artifact.WriteTable(p.store, artifact.SimilarityResults, ev.Similarity); err != nil {
		return ev, err
	}
	if err := artifact.WriteTable(p.store, artifact.CandidatePredictions, ev.Candidates.Predictions); err != nil {
		return ev, err
	}
	if err := artifact.WriteTable(p.store, artifact.ProjectionCoordinates, ev.Projection.All()); err != nil {
		return ev, err
	}
	return ev, nil
}

// Evaluate runs EvaluateStage on persisted artifacts. The forest is optional.
func (p *Pipeline) Evaluate(ctx context.Context) (Evaluation, error) {
	if err := p.store.Require(artifact.PositiveFingerprints, artifact.SyntheticFingerprints); err != nil {
		return Evaluation{}, err
	}
	positives, err := p.store.ReadFingerprints(artifact.PositiveFingerprints)
	if err != nil {
		return Evaluation{}, err
	}
	synthetic, err := p.store.ReadSynthetic()
	if err != nil {
		return Evaluation{}, err
	}
	forest, err := p.store.ReadForest()
	if err != nil && !artifact.IsMissing(err) {
		return Evaluation{}, err
	}
	return p.EvaluateStage(ctx, forest, positives, synthetic)
}
