// Package classifier trains a class-balanced random forest over fingerprint
// bits and reports how well it separates disease-relevant drugs from controls.
package classifier

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/tensorplex-labs/molgan/internal/config"
	"github.com/tensorplex-labs/molgan/internal/fingerprint"
)

const numClasses = 2

const (
	LabelControl  = 0
	LabelRelevant = 1
)

// Sample is a fingerprint with its class label.
type Sample struct {
	Vector fingerprint.Vector
	Label  int
}

// Options configures forest training.
type Options struct {
	Trees           int
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	// MaxFeatures of 0 means sqrt(number of bits).
	MaxFeatures int
	Workers     int
}

func DefaultOptions() Options {
	return Options{Trees: 100, MinSamplesSplit: 2, MinSamplesLeaf: 1}
}

func OptionsFromEnv(env config.ClassifierEnvConfig, exec config.ExecutionContext) Options {
	return Options{
		Trees:           env.Trees,
		MaxDepth:        env.MaxDepth,
		MinSamplesSplit: env.MinSamplesSplit,
		MinSamplesLeaf:  env.MinSamplesLeaf,
		Workers:         exec.Workers,
	}
}

// Forest is an ensemble of trees whose class distributions are averaged.
// Samples is the number of rows it was fit on.
type Forest struct {
	Trees       []*Tree   `json:"trees"`
	FeatureSize int       `json:"feature_size"`
	Importance  []float64 `json:"importance"`
	Samples     int       `json:"samples"`
}

// BalancedWeights returns n / (classes * count(class)) for every class
// present in labels.
func BalancedWeights(labels []int) [numClasses]float64 {
	var counts [numClasses]int
	for _, l := range labels {
		counts[l]++
	}
	present := 0
	for _, c := range counts {
		if c > 0 {
			present++
		}
	}
	var w [numClasses]float64
	for k, c := range counts {
		if c > 0 {
			w[k] = float64(len(labels)) / float64(present*c)
		}
	}
	return w
}

func validate(samples []Sample) (int, error) {
	if len(samples) == 0 {
		return 0, fmt.Errorf("no training samples")
	}
	n := samples[0].Vector.Len()
	for i, s := range samples {
		if s.Vector.Len() != n {
			return 0, fmt.Errorf("sample %d has %d bits, want %d", i, s.Vector.Len(), n)
		}
		if s.Label != LabelControl && s.Label != LabelRelevant {
			return 0, fmt.Errorf("sample %d has label %d, want 0 or 1", i, s.Label)
		}
	}
	return n, nil
}

// Fit trains a forest on samples. Every tree receives a seed drawn from rng
// before any tree is built, so the result does not depend on scheduling.
func Fit(ctx context.Context, samples []Sample, opts Options, rng *rand.Rand) (*Forest, error) {
	n, err := validate(samples)
	if err != nil {
		return nil, err
	}
	if opts.Trees <= 0 {
		return nil, fmt.Errorf("tree count must be positive, got %d", opts.Trees)
	}
	if rng == nil {
		return nil, fmt.Errorf("nil random source")
	}
	params := treeParams{
		maxDepth:        opts.MaxDepth,
		minSamplesSplit: max(opts.MinSamplesSplit, 2),
		minSamplesLeaf:  max(opts.MinSamplesLeaf, 1),
		maxFeatures:     opts.MaxFeatures,
	}
	if params.maxFeatures <= 0 {
		params.maxFeatures = max(1, int(math.Sqrt(float64(n))))
	}

	rows := make([]fingerprint.Vector, len(samples))
	labels := make([]int, len(samples))
	for i, s := range samples {
		rows[i], labels[i] = s.Vector, s.Label
	}
	classWeight := BalancedWeights(labels)

	seeds := make([][2]uint64, opts.Trees)
	for i := range seeds {
		seeds[i] = [2]uint64{rng.Uint64(), rng.Uint64()}
	}

	trees := make([]*Tree, opts.Trees)
	g, ctx := errgroup.WithContext(ctx)
	if opts.Workers > 0 {
		g.SetLimit(opts.Workers)
	}
	for t := range trees {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			treeRng := rand.New(rand.NewPCG(seeds[t][0], seeds[t][1]))
			counts := make([]int, len(rows))
			for range rows {
				counts[treeRng.IntN(len(rows))]++
			}
			weights := make([]float64, len(rows))
			idx := make([]int, 0, len(rows))
			for i, c := range counts {
				if c > 0 {
					weights[i] = float64(c) * classWeight[labels[i]]
					idx = append(idx, i)
				}
			}
			trees[t] = buildTree(rows, labels, weights, idx, params, treeRng)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	f := &Forest{Trees: trees, FeatureSize: n, Importance: make([]float64, n), Samples: len(samples)}
	for _, t := range trees {
		total := 0.0
		for _, v := range t.importance {
			total += v
		}
		if total == 0 {
			continue
		}
		for i, v := range t.importance {
			f.Importance[i] += v / total
		}
	}
	normalize(f.Importance)

	log.Info().Int("trees", len(trees)).Int("samples", len(samples)).Int("features", n).Msg("random forest trained")
	return f, nil
}

func normalize(v []float64) {
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	if sum <= 0 {
		return
	}
	for i := range v {
		v[i] /= sum
	}
}

// PredictProba averages the leaf distributions of every tree.
func (f *Forest) PredictProba(v fingerprint.Vector) ([]float64, error) {
	if v.Len() != f.FeatureSize {
		return nil, fmt.Errorf("fingerprint has %d bits, forest expects %d", v.Len(), f.FeatureSize)
	}
	out := make([]float64, numClasses)
	for _, t := range f.Trees {
		p := t.Proba(v)
		for k := range out {
			out[k] += p[k]
		}
	}
	for k := range out {
		out[k] /= float64(len(f.Trees))
	}
	return out, nil
}

// Predict returns the most probable label; ties go to the lower label.
func (f *Forest) Predict(v fingerprint.Vector) (int, error) {
	p, err := f.PredictProba(v)
	if err != nil {
		return 0, err
	}
	if p[LabelRelevant] > p[LabelControl] {
		return LabelRelevant, nil
	}
	return LabelControl, nil
}

func (f *Forest) PredictAll(vs []fingerprint.Vector) ([]int, error) {
	out := make([]int, len(vs))
	for i, v := range vs {
		p, err := f.Predict(v)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = p
	}
	return out, nil
}

// CandidatePrediction is the forest's verdict on one synthetic fingerprint.
type CandidatePrediction struct {
	SyntheticIndex int     `csv:"synthetic_index" json:"synthetic_index"`
	Label          int     `csv:"predicted_label" json:"predicted_label"`
	Probability    float64 `csv:"relevant_probability" json:"relevant_probability"`
}

// CandidateScore summarises the forest's verdict on synthetic fingerprints.
type CandidateScore struct {
	Predictions []CandidatePrediction
	Relevant    int
	Total       int
}

func (c CandidateScore) String() string {
	return fmt.Sprintf("%d of %d synthetic candidates predicted disease-relevant", c.Relevant, c.Total)
}

// ScoreCandidates labels every synthetic fingerprint.
func (f *Forest) ScoreCandidates(vs []fingerprint.Vector) (CandidateScore, error) {
	c := CandidateScore{Predictions: make([]CandidatePrediction, len(vs)), Total: len(vs)}
	for i, v := range vs {
		p, err := f.PredictProba(v)
		if err != nil {
			return CandidateScore{}, fmt.Errorf("candidate %d: %w", i, err)
		}
		label := LabelControl
		if p[LabelRelevant] > p[LabelControl] {
			label = LabelRelevant
			c.Relevant++
		}
		c.Predictions[i] = CandidatePrediction{SyntheticIndex: i, Label: label, Probability: p[LabelRelevant]}
	}
	log.Info().Int("relevant", c.Relevant).Int("total", c.Total).Msg(c.String())
	return c, nil
}
