package gan

import (
	"fmt"
	"io"

	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/zstd"
	"gonum.org/v1/gonum/mat"
)

type LayerState struct {
	In         int       `json:"in"`
	Out        int       `json:"out"`
	Activation string    `json:"activation"`
	Weights    []float64 `json:"weights"`
	Bias       []float64 `json:"bias"`
}

// Checkpoint is a serialisable snapshot of both networks.
type Checkpoint struct {
	NumBits       int          `json:"num_bits"`
	NoiseDim      int          `json:"noise_dim"`
	LeakySlope    float64      `json:"leaky_slope"`
	Threshold     float64      `json:"threshold"`
	Generator     []LayerState `json:"generator"`
	Discriminator []LayerState `json:"discriminator"`
}

func snapshot(n *network) []LayerState {
	out := make([]LayerState, len(n.layers))
	for i, l := range n.layers {
		in, o := l.dims()
		w := make([]float64, in*o)
		copy(w, l.w.RawMatrix().Data)
		out[i] = LayerState{
			In:         in,
			Out:        o,
			Activation: l.act.String(),
			Weights:    w,
			Bias:       append([]float64(nil), l.b...),
		}
	}
	return out
}

func restore(n *network, states []LayerState) error {
	if len(states) != len(n.layers) {
		return fmt.Errorf("checkpoint has %d layers, network has %d", len(states), len(n.layers))
	}
	for i, s := range states {
		l := n.layers[i]
		in, out := l.dims()
		if s.In != in || s.Out != out || len(s.Weights) != in*out || len(s.Bias) != out {
			return fmt.Errorf("layer %d: checkpoint shape %dx%d does not match %dx%d", i, s.In, s.Out, in, out)
		}
		l.w = mat.NewDense(in, out, append([]float64(nil), s.Weights...))
		l.b = append([]float64(nil), s.Bias...)
	}
	return nil
}

// Checkpoint captures the current weights of both networks.
func (t *Trainer) Checkpoint() Checkpoint {
	return Checkpoint{
		NumBits:       t.cfg.NumBits,
		NoiseDim:      t.cfg.NoiseDim,
		LeakySlope:    t.cfg.LeakySlope,
		Threshold:     t.cfg.Threshold,
		Generator:     snapshot(t.g.net),
		Discriminator: snapshot(t.d.net),
	}
}

// Restore loads weights into a trainer built with matching shapes. Optimiser
// moments are reset.
func (t *Trainer) Restore(c Checkpoint) error {
	if c.NumBits != t.cfg.NumBits || c.NoiseDim != t.cfg.NoiseDim {
		return fmt.Errorf("checkpoint is for %d bits / %d noise, trainer is %d / %d",
			c.NumBits, c.NoiseDim, t.cfg.NumBits, t.cfg.NoiseDim)
	}
	if err := restore(t.g.net, c.Generator); err != nil {
		return fmt.Errorf("generator: %w", err)
	}
	if err := restore(t.d.net, c.Discriminator); err != nil {
		return fmt.Errorf("discriminator: %w", err)
	}
	t.optG = newAdam(t.g.net.params(), t.cfg.LearningRate, t.cfg.Beta1, t.cfg.Beta2, t.cfg.Epsilon)
	t.optD = newAdam(t.d.net.params(), t.cfg.LearningRate, t.cfg.Beta1, t.cfg.Beta2, t.cfg.Epsilon)
	return nil
}

// WriteCheckpoint encodes c as zstd-compressed JSON.
func WriteCheckpoint(w io.Writer, c Checkpoint) error {
	b, err := sonic.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("zstd: failed to create writer: %w", err)
	}
	if _, err := zw.Write(b); err != nil {
		_ = zw.Close()
		return fmt.Errorf("zstd: failed to compress checkpoint: %w", err)
	}
	return zw.Close()
}

func ReadCheckpoint(r io.Reader) (Checkpoint, error) {
	var c Checkpoint
	zr, err := zstd.NewReader(r)
	if err != nil {
		return c, fmt.Errorf("zstd: failed to create reader: %w", err)
	}
	defer zr.Close()
	data, err := io.ReadAll(zr)
	if err != nil {
		return c, fmt.Errorf("zstd: failed to decompress checkpoint: %w", err)
	}
	if err := sonic.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	return c, nil
}
