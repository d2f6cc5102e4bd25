// Package similarity finds, for every synthetic fingerprint, the most similar
// real fingerprint by Tanimoto overlap.
package similarity

import (
	"errors"
	"fmt"

	"github.com/montanaflynn/stats"
	"github.com/rs/zerolog/log"

	"github.com/tensorplex-labs/molgan/internal/fingerprint"
)

var ErrNoReference = errors.New("no real fingerprints to compare against")

// Result is the nearest real neighbour of one synthetic fingerprint. Cosine is
// only filled when the evaluator was built WithCosine.
type Result struct {
	SyntheticIndex   int     `csv:"synthetic_index" json:"synthetic_index"`
	NearestRealIndex int     `csv:"nearest_real_index" json:"nearest_real_index"`
	Score            float64 `csv:"similarity" json:"similarity"`
	Cosine           float64 `csv:"cosine" json:"cosine"`
}

type Evaluator struct {
	cosine bool
}

type EvaluatorOption func(*Evaluator)

// WithCosine also records the cosine similarity to the chosen neighbour.
func WithCosine() EvaluatorOption {
	return func(e *Evaluator) {
		e.cosine = true
	}
}

func NewEvaluator(opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Nearest returns one Result per synthetic fingerprint, in input order. Among
// real fingerprints with equal similarity the lowest index wins.
func (e *Evaluator) Nearest(synthetic, positives []fingerprint.Vector) ([]Result, error) {
	if len(positives) == 0 {
		return nil, ErrNoReference
	}
	n := positives[0].Len()
	for i, r := range positives {
		if r.Len() != n {
			return nil, fmt.Errorf("real fingerprint %d has %d bits, want %d", i, r.Len(), n)
		}
	}
	out := make([]Result, len(synthetic))
	for i, s := range synthetic {
		if s.Len() != n {
			return nil, fmt.Errorf("synthetic fingerprint %d has %d bits, want %d", i, s.Len(), n)
		}
		best, bestScore := 0, -1.0
		for j, r := range positives {
			if sc := fingerprint.Tanimoto(s, r); sc > bestScore {
				best, bestScore = j, sc
			}
		}
		out[i] = Result{SyntheticIndex: i, NearestRealIndex: best, Score: bestScore}
		if e.cosine {
			out[i].Cosine = CalculateCosineSimilarity(s.Floats(), positives[best].Floats())
		}
	}
	log.Debug().Int("synthetic", len(synthetic)).Int("real", len(positives)).Msg("nearest neighbours computed")
	return out, nil
}

// Summary describes the distribution of nearest-neighbour scores.
type Summary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	P90    float64 `json:"p90"`
}

// Summarize returns a zero Summary for no results.
func Summarize(results []Result) (Summary, error) {
	if len(results) == 0 {
		return Summary{}, nil
	}
	data := make(stats.Float64Data, len(results))
	for i, r := range results {
		data[i] = r.Score
	}
	var s Summary
	var err error
	s.Count = len(results)
	if s.Mean, err = stats.Mean(data); err != nil {
		return s, fmt.Errorf("mean: %w", err)
	}
	if s.Median, err = stats.Median(data); err != nil {
		return s, fmt.Errorf("median: %w", err)
	}
	if s.Min, err = stats.Min(data); err != nil {
		return s, fmt.Errorf("min: %w", err)
	}
	if s.Max, err = stats.Max(data); err != nil {
		return s, fmt.Errorf("max: %w", err)
	}
	if s.P90, err = stats.Percentile(data, 90); err != nil {
		return s, fmt.Errorf("p90: %w", err)
	}
	return s, nil
}
