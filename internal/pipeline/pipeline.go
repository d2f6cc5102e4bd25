// Package pipeline wires the encoding, classification, generation, evaluation
// and reporting stages together. Each stage takes typed input, persists its
// artifacts before returning, and can run on its own from artifacts on disk.
package pipeline

import (
	"context"
	"io"
	"math/rand/v2"

	"github.com/rs/zerolog/log"

	"github.com/tensorplex-labs/molgan/internal/artifact"
	"github.com/tensorplex-labs/molgan/internal/config"
	"github.com/tensorplex-labs/molgan/internal/lookup"
)

type Pipeline struct {
	cfg      *config.AppConfig
	store    *artifact.Store
	exec     config.ExecutionContext
	resolver lookup.Resolver
	terminal io.Writer
}

type Option func(*Pipeline)

// WithResolver sets the structure lookup used to fill missing drug structures
// and to assemble the negative pool.
func WithResolver(r lookup.Resolver) Option {
	return func(p *Pipeline) {
		p.resolver = r
	}
}

// WithTerminal sets where the report stage prints its bar chart.
func WithTerminal(w io.Writer) Option {
	return func(p *Pipeline) {
		p.terminal = w
	}
}

func New(cfg *config.AppConfig, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:   cfg,
		store: artifact.NewStore(cfg.DataDir, cfg.OutputDir),
		exec:  config.NewExecutionContext(cfg.ExecutionEnvConfig),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pipeline) Store() *artifact.Store { return p.store }

func seeded(name string, seed uint64) *rand.Rand {
	s := config.ResolveSeed(seed)
	if s != seed {
		log.Warn().Str("stage", name).Uint64("seed", s).Msg("no seed configured, using a time-derived one")
	}
	return rand.New(rand.NewPCG(s, s))
}

// Run executes every stage in order, handing each stage's output to the next.
// Report failures are logged and do not fail the run.
func (p *Pipeline) Run(ctx context.Context) error {
	set, err := p.Encode(ctx)
	if err != nil {
		return err
	}
	cls, err := p.ClassifierStage(ctx, set)
	if err != nil {
		return err
	}
	gen, err := p.GANStage(ctx, set.Positives)
	if err != nil {
		return err
	}
	ev, err := p.EvaluateStage(ctx, cls.Forest, set.Positives, gen.Synthetic)
	if err != nil {
		return err
	}
	p.ReportStage(ReportInputs(ev, cls.Report.TopFeatures, gen.Stats.Epochs))
	return nil
}
