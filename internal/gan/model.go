package gan

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/tensorplex-labs/molgan/internal/fingerprint"
)

// Generator maps standard-normal noise to per-bit probabilities.
type Generator struct {
	net      *network
	noiseDim int
	numBits  int
}

// Discriminator scores fingerprint-shaped rows with a probability of being real.
type Discriminator struct {
	net *network
}

func newGenerator(cfg Config, rng *rand.Rand) (*Generator, error) {
	net, err := newNetwork(cfg.generatorSizes(), actReLU, 0, rng)
	if err != nil {
		return nil, err
	}
	return &Generator{net: net, noiseDim: cfg.NoiseDim, numBits: cfg.NumBits}, nil
}

func newDiscriminator(cfg Config, rng *rand.Rand) (*Discriminator, error) {
	net, err := newNetwork(cfg.discriminatorSizes(), actLeakyReLU, cfg.LeakySlope, rng)
	if err != nil {
		return nil, err
	}
	return &Discriminator{net: net}, nil
}

func (g *Generator) NoiseDim() int { return g.noiseDim }
func (g *Generator) NumBits() int  { return g.numBits }

// Generate returns a rows × NumBits matrix of probabilities in [0,1].
func (g *Generator) Generate(noise *mat.Dense) *mat.Dense {
	return g.net.forward(noise)
}

// Score returns one probability per row.
func (d *Discriminator) Score(x *mat.Dense) []float64 {
	out := d.net.forward(x)
	rows, _ := out.Dims()
	p := make([]float64, rows)
	for i := range p {
		p[i] = out.At(i, 0)
	}
	return p
}

func noise(rng *rand.Rand, rows, dim int) *mat.Dense {
	data := make([]float64, rows*dim)
	for i := range data {
		data[i] = rng.NormFloat64()
	}
	return mat.NewDense(rows, dim, data)
}

// Binarize thresholds every row of probs into a fingerprint.
func Binarize(probs *mat.Dense, threshold float64) []fingerprint.Vector {
	rows, _ := probs.Dims()
	out := make([]fingerprint.Vector, rows)
	for i := range out {
		out[i] = fingerprint.Binarize(probs.RawRowView(i), threshold)
	}
	return out
}
