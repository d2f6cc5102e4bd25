// Package projection embeds real and synthetic fingerprints in two dimensions
// for visual comparison.
package projection

import (
	"fmt"
	"math/rand/v2"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"

	"github.com/tensorplex-labs/molgan/internal/config"
	"github.com/tensorplex-labs/molgan/internal/fingerprint"
)

type Provenance string

const (
	Real      Provenance = "real"
	Synthetic Provenance = "synthetic"
)

type Method string

const (
	MethodPCA  Method = "pca"
	MethodTSNE Method = "tsne"
)

// Point is one embedded fingerprint. Index is the row in the combined input,
// real rows first.
type Point struct {
	Method     Method     `csv:"method" json:"method"`
	Index      int        `csv:"index" json:"index"`
	Provenance Provenance `csv:"provenance" json:"provenance"`
	X          float64    `csv:"x" json:"x"`
	Y          float64    `csv:"y" json:"y"`
}

type Projection struct {
	PCA  []Point `json:"pca"`
	TSNE []Point `json:"tsne"`
}

// All returns the PCA points followed by the t-SNE points.
func (p Projection) All() []Point {
	return append(append([]Point{}, p.PCA...), p.TSNE...)
}

// FromPoints regroups points by method, as read back from the coordinates table.
func FromPoints(points []Point) Projection {
	var p Projection
	for _, pt := range points {
		switch pt.Method {
		case MethodPCA:
			p.PCA = append(p.PCA, pt)
		case MethodTSNE:
			p.TSNE = append(p.TSNE, pt)
		}
	}
	return p
}

type Visualizer struct {
	tsne TSNEConfig
	rng  *rand.Rand
}

func NewVisualizer(cfg TSNEConfig, rng *rand.Rand) *Visualizer {
	return &Visualizer{tsne: cfg, rng: rng}
}

func TSNEConfigFromEnv(env config.ProjectionEnvConfig) TSNEConfig {
	cfg := DefaultTSNEConfig()
	cfg.Perplexity = env.Perplexity
	cfg.Iterations = env.Iterations
	cfg.LearningRate = env.LearningRate
	return cfg
}

func combine(positives, synthetic []fingerprint.Vector) (*mat.Dense, []Provenance, error) {
	total := len(positives) + len(synthetic)
	if total == 0 {
		return nil, nil, nil
	}
	all := append(append([]fingerprint.Vector{}, positives...), synthetic...)
	n := all[0].Len()
	data := make([]float64, 0, total*n)
	prov := make([]Provenance, 0, total)
	for i, v := range all {
		if v.Len() != n {
			return nil, nil, fmt.Errorf("fingerprint %d has %d bits, want %d", i, v.Len(), n)
		}
		data = append(data, v.Floats()...)
		if i < len(positives) {
			prov = append(prov, Real)
		} else {
			prov = append(prov, Synthetic)
		}
	}
	return mat.NewDense(total, n, data), prov, nil
}

func toPoints(method Method, coords [][2]float64, prov []Provenance) []Point {
	out := make([]Point, len(coords))
	for i, c := range coords {
		out[i] = Point{Method: method, Index: i, Provenance: prov[i], X: c[0], Y: c[1]}
	}
	return out
}

// Project computes both embeddings of positives followed by synthetic.
// Empty input yields an empty Projection.
func (v *Visualizer) Project(positives, synthetic []fingerprint.Vector) (Projection, error) {
	x, prov, err := combine(positives, synthetic)
	if err != nil {
		return Projection{}, err
	}
	if x == nil {
		return Projection{}, nil
	}

	pca, err := PCA(x)
	if err != nil {
		return Projection{}, fmt.Errorf("pca: %w", err)
	}
	emb, err := TSNE(x, v.tsne, v.rng)
	if err != nil {
		return Projection{}, fmt.Errorf("t-sne: %w", err)
	}
	rows, _ := x.Dims()
	log.Info().Int("rows", rows).Int("real", len(positives)).Int("synthetic", len(synthetic)).
		Float64("perplexity", EffectivePerplexity(v.tsne.Perplexity, rows)).Msg("projections computed")
	return Projection{
		PCA:  toPoints(MethodPCA, pca, prov),
		TSNE: toPoints(MethodTSNE, emb, prov),
	}, nil
}
