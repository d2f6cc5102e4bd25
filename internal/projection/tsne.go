package projection

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// TSNEConfig holds the exact t-SNE optimisation settings.
type TSNEConfig struct {
	Perplexity          float64
	Iterations          int
	LearningRate        float64
	EarlyExaggeration   float64
	ExaggerationIters   int
	InitialMomentum     float64
	FinalMomentum       float64
	MinGain             float64
	perplexityTolerance float64
	perplexitySteps     int
}

func DefaultTSNEConfig() TSNEConfig {
	return TSNEConfig{
		Perplexity:        30,
		Iterations:        1000,
		LearningRate:      200,
		EarlyExaggeration: 12,
		ExaggerationIters: 250,
		InitialMomentum:   0.5,
		FinalMomentum:     0.8,
		MinGain:           0.01,
	}
}

// EffectivePerplexity clamps perplexity to (n-1)/3 so that small inputs
// still have enough neighbours.
func EffectivePerplexity(perplexity float64, n int) float64 {
	limit := float64(n-1) / 3
	if perplexity > limit {
		return limit
	}
	return perplexity
}

func squaredDistances(x *mat.Dense) [][]float64 {
	n, _ := x.Dims()
	d := make([][]float64, n)
	for i := range d {
		d[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		ri := x.RawRowView(i)
		for j := i + 1; j < n; j++ {
			rj := x.RawRowView(j)
			v := floats.Distance(ri, rj, 2)
			d[i][j], d[j][i] = v*v, v*v
		}
	}
	return d
}

// conditionalRow finds the Gaussian precision for row i whose entropy matches
// log(perplexity) and writes the conditional probabilities into p. If the
// precision grows until every affinity underflows, the last representable
// distribution is kept.
func conditionalRow(dist []float64, i int, perplexity float64, tol float64, steps int, p []float64) {
	target := math.Log(math.Max(perplexity, 1e-12))
	beta, lo, hi := 1.0, math.Inf(-1), math.Inf(1)
	cand := make([]float64, len(p))
	// shifting by the nearest distance leaves the normalised row unchanged
	shift := math.Inf(1)
	for j, d := range dist {
		if j != i && d < shift {
			shift = d
		}
	}
	for step := 0; step < steps; step++ {
		sum := 0.0
		for j, d := range dist {
			if j == i {
				cand[j] = 0
				continue
			}
			cand[j] = math.Exp(-(d - shift) * beta)
			sum += cand[j]
		}
		if sum == 0 {
			return
		}
		h := 0.0
		for j := range cand {
			cand[j] /= sum
			if cand[j] > 1e-300 {
				h -= cand[j] * math.Log(cand[j])
			}
		}
		copy(p, cand)
		diff := h - target
		if math.Abs(diff) < tol {
			return
		}
		if diff > 0 {
			lo = beta
			if math.IsInf(hi, 1) {
				beta *= 2
			} else {
				beta = (beta + hi) / 2
			}
		} else {
			hi = beta
			if math.IsInf(lo, -1) {
				beta /= 2
			} else {
				beta = (beta + lo) / 2
			}
		}
	}
}

func jointProbabilities(x *mat.Dense, perplexity, tol float64, steps int) [][]float64 {
	n, _ := x.Dims()
	dist := squaredDistances(x)
	cond := make([][]float64, n)
	for i := range cond {
		cond[i] = make([]float64, n)
		conditionalRow(dist[i], i, perplexity, tol, steps, cond[i])
	}
	p := make([][]float64, n)
	for i := range p {
		p[i] = make([]float64, n)
		for j := range p[i] {
			if i != j {
				p[i][j] = math.Max((cond[i][j]+cond[j][i])/(2*float64(n)), 1e-12)
			}
		}
	}
	return p
}

// TSNE embeds the rows of x in two dimensions with exact gradients. All
// randomness comes from rng.
func TSNE(x *mat.Dense, cfg TSNEConfig, rng *rand.Rand) ([][2]float64, error) {
	n, _ := x.Dims()
	out := make([][2]float64, n)
	if n < 2 {
		return out, nil
	}
	if rng == nil {
		return nil, fmt.Errorf("nil random source")
	}
	if cfg.LearningRate <= 0 || cfg.Iterations < 0 {
		return nil, fmt.Errorf("invalid t-SNE settings: learning rate %v, iterations %d", cfg.LearningRate, cfg.Iterations)
	}
	tol, steps := cfg.perplexityTolerance, cfg.perplexitySteps
	if tol <= 0 {
		tol = 1e-5
	}
	if steps <= 0 {
		steps = 50
	}
	perp := EffectivePerplexity(cfg.Perplexity, n)
	p := jointProbabilities(x, perp, tol, steps)

	y := make([][2]float64, n)
	for i := range y {
		y[i] = [2]float64{rng.NormFloat64() * 1e-4, rng.NormFloat64() * 1e-4}
	}
	update := make([][2]float64, n)
	gains := make([][2]float64, n)
	for i := range gains {
		gains[i] = [2]float64{1, 1}
	}
	num := make([][]float64, n)
	for i := range num {
		num[i] = make([]float64, n)
	}
	grad := make([][2]float64, n)

	for it := 0; it < cfg.Iterations; it++ {
		exag, momentum := 1.0, cfg.FinalMomentum
		if it < cfg.ExaggerationIters {
			exag, momentum = cfg.EarlyExaggeration, cfg.InitialMomentum
		}

		sum := 0.0
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				dx, dy := y[i][0]-y[j][0], y[i][1]-y[j][1]
				v := 1 / (1 + dx*dx + dy*dy)
				num[i][j], num[j][i] = v, v
				sum += 2 * v
			}
		}
		sum = math.Max(sum, 1e-12)

		for i := 0; i < n; i++ {
			grad[i] = [2]float64{}
			for j := 0; j < n; j++ {
				if i == j {
					continue
				}
				q := math.Max(num[i][j]/sum, 1e-12)
				m := 4 * (exag*p[i][j] - q) * num[i][j]
				grad[i][0] += m * (y[i][0] - y[j][0])
				grad[i][1] += m * (y[i][1] - y[j][1])
			}
		}

		var mean [2]float64
		for i := 0; i < n; i++ {
			for d := 0; d < 2; d++ {
				if (grad[i][d] > 0) != (update[i][d] > 0) {
					gains[i][d] += 0.2
				} else {
					gains[i][d] *= 0.8
				}
				gains[i][d] = math.Max(gains[i][d], cfg.MinGain)
				update[i][d] = momentum*update[i][d] - cfg.LearningRate*gains[i][d]*grad[i][d]
				y[i][d] += update[i][d]
				mean[d] += y[i][d]
			}
		}
		for i := 0; i < n; i++ {
			y[i][0] -= mean[0] / float64(n)
			y[i][1] -= mean[1] / float64(n)
		}
	}
	copy(out, y)
	return out, nil
}
