// Package gan trains a generator and discriminator of multilayer perceptrons
// on real fingerprints and samples synthetic ones from the generator.
package gan

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"

	"github.com/tensorplex-labs/molgan/internal/config"
	"github.com/tensorplex-labs/molgan/internal/fingerprint"
)

// NonFiniteLossError reports the first NaN or Inf loss under the abort policy.
type NonFiniteLossError struct {
	Epoch int
	Batch int
	Loss  string
	Value float64
}

func (e *NonFiniteLossError) Error() string {
	return fmt.Sprintf("non-finite %s loss %v at epoch %d batch %d", e.Loss, e.Value, e.Epoch, e.Batch)
}

// EpochStats records the losses of one epoch. DLoss and GLoss are the values
// of the final batch; the means cover every batch that was applied.
type EpochStats struct {
	Epoch          int     `csv:"epoch" json:"epoch"`
	DLoss          float64 `csv:"d_loss" json:"d_loss"`
	GLoss          float64 `csv:"g_loss" json:"g_loss"`
	MeanDLoss      float64 `csv:"mean_d_loss" json:"mean_d_loss"`
	MeanGLoss      float64 `csv:"mean_g_loss" json:"mean_g_loss"`
	SkippedBatches int     `csv:"skipped_batches" json:"skipped_batches"`
}

type TrainStats struct {
	Epochs         []EpochStats
	SkippedBatches int
}

type step int

const (
	stepDiscriminator step = iota
	stepGenerator
)

// Trainer owns one generator/discriminator pair and their optimisers.
type Trainer struct {
	cfg  Config
	rng  *rand.Rand
	g    *Generator
	d    *Discriminator
	optG *adam
	optD *adam

	// onStep observes every applied optimiser step.
	onStep func(step)
}

// NewTrainer initialises both networks from rng. All subsequent randomness
// (shuffling, noise) is drawn from the same source. exec.Workers bounds the
// row blocks of every matrix product.
func NewTrainer(cfg Config, exec config.ExecutionContext, rng *rand.Rand) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, fmt.Errorf("nil random source")
	}
	g, err := newGenerator(cfg, rng)
	if err != nil {
		return nil, fmt.Errorf("generator: %w", err)
	}
	d, err := newDiscriminator(cfg, rng)
	if err != nil {
		return nil, fmt.Errorf("discriminator: %w", err)
	}
	g.net.setWorkers(exec.Workers)
	d.net.setWorkers(exec.Workers)
	return &Trainer{
		cfg:  cfg,
		rng:  rng,
		g:    g,
		d:    d,
		optG: newAdam(g.net.params(), cfg.LearningRate, cfg.Beta1, cfg.Beta2, cfg.Epsilon),
		optD: newAdam(d.net.params(), cfg.LearningRate, cfg.Beta1, cfg.Beta2, cfg.Epsilon),
	}, nil
}

func (t *Trainer) Generator() *Generator         { return t.g }
func (t *Trainer) Discriminator() *Discriminator { return t.d }
func (t *Trainer) Config() Config                { return t.cfg }

func realMatrix(positives []fingerprint.Vector, numBits int) (*mat.Dense, error) {
	if len(positives) == 0 {
		return nil, fmt.Errorf("no real fingerprints to train on")
	}
	data := make([]float64, 0, len(positives)*numBits)
	for i, v := range positives {
		if v.Len() != numBits {
			return nil, fmt.Errorf("fingerprint %d has length %d, want %d", i, v.Len(), numBits)
		}
		data = append(data, v.Floats()...)
	}
	return mat.NewDense(len(positives), numBits, data), nil
}

// Train runs the configured number of epochs over positives. Within each
// mini-batch the discriminator is stepped first on real and detached fake
// rows, then the generator is stepped on fresh noise scored by the updated
// discriminator.
func (t *Trainer) Train(ctx context.Context, positives []fingerprint.Vector) (TrainStats, error) {
	var stats TrainStats
	x, err := realMatrix(positives, t.cfg.NumBits)
	if err != nil {
		return stats, err
	}
	n := len(positives)

	log.Info().Int("samples", n).Int("epochs", t.cfg.Epochs).Int("batch_size", t.cfg.BatchSize).Msg("starting adversarial training")
	for epoch := 1; epoch <= t.cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		es := EpochStats{Epoch: epoch}
		applied := 0
		perm := t.rng.Perm(n)
		for batch, start := 0, 0; start < n; batch, start = batch+1, start+t.cfg.BatchSize {
			end := min(start+t.cfg.BatchSize, n)
			rows := perm[start:end]
			realBatch := mat.NewDense(len(rows), t.cfg.NumBits, nil)
			for i, r := range rows {
				realBatch.SetRow(i, x.RawRowView(r))
			}

			dLoss, gLoss, err := t.trainBatch(realBatch, epoch, batch+1)
			if err != nil {
				return stats, err
			}
			if !isFinite(dLoss) || !isFinite(gLoss) {
				es.SkippedBatches++
				continue
			}
			es.DLoss, es.GLoss = dLoss, gLoss
			es.MeanDLoss += dLoss
			es.MeanGLoss += gLoss
			applied++
		}
		if applied > 0 {
			es.MeanDLoss /= float64(applied)
			es.MeanGLoss /= float64(applied)
		}
		stats.SkippedBatches += es.SkippedBatches
		stats.Epochs = append(stats.Epochs, es)

		if t.shouldLog(epoch) {
			log.Info().
				Int("epoch", epoch).
				Float64("d_loss", es.DLoss).
				Float64("g_loss", es.GLoss).
				Int("skipped", es.SkippedBatches).
				Msgf("Epoch %d/%d | D_loss: %.4f | G_loss: %.4f", epoch, t.cfg.Epochs, es.DLoss, es.GLoss)
		}
	}
	if stats.SkippedBatches > 0 {
		log.Warn().Int("skipped_batches", stats.SkippedBatches).Msg("batches skipped because of non-finite loss")
	}
	return stats, nil
}

func (t *Trainer) shouldLog(epoch int) bool {
	if epoch == 2 || epoch == t.cfg.Epochs {
		return true
	}
	return t.cfg.LogEvery > 0 && epoch%t.cfg.LogEvery == 0
}

// trainBatch performs one discriminator step and then one generator step.
// Under the skip policy a non-finite discriminator loss drops the whole batch
// and a non-finite generator loss drops the generator step; the returned loss
// pair then contains the offending value.
func (t *Trainer) trainBatch(realBatch *mat.Dense, epoch, batch int) (float64, float64, error) {
	rows, _ := realBatch.Dims()

	fake := t.g.Generate(noise(t.rng, rows, t.cfg.NoiseDim))
	// detach: copy so the discriminator passes below cannot alias generator state
	fake = mat.DenseCopyOf(fake)

	realPred := t.d.Score(realBatch)
	realLoss := bce(realPred, 1)
	realGrads, _ := t.d.net.backward(logitGrad(realPred, 1), true)

	fakePred := t.d.Score(fake)
	fakeLoss := bce(fakePred, 0)
	fakeGrads, _ := t.d.net.backward(logitGrad(fakePred, 0), true)

	dLoss := realLoss + fakeLoss
	if !isFinite(dLoss) {
		if err := t.nonFinite(epoch, batch, "discriminator", dLoss); err != nil {
			return dLoss, 0, err
		}
		return dLoss, 0, nil
	}
	addGrads(realGrads, fakeGrads)
	t.optD.step(t.d.net.params(), flattenGrads(realGrads))
	t.observe(stepDiscriminator)

	gen := t.g.Generate(noise(t.rng, rows, t.cfg.NoiseDim))
	pred := t.d.Score(gen)
	gLoss := bce(pred, 1)
	if !isFinite(gLoss) {
		if err := t.nonFinite(epoch, batch, "generator", gLoss); err != nil {
			return dLoss, gLoss, err
		}
		return dLoss, gLoss, nil
	}
	// gradients flow through the discriminator but only the generator steps
	dGen := t.d.net.inputGrad(logitGrad(pred, 1), true)
	gGrads, _ := t.g.net.backward(dGen, false)
	t.optG.step(t.g.net.params(), flattenGrads(gGrads))
	t.observe(stepGenerator)

	return dLoss, gLoss, nil
}

func (t *Trainer) nonFinite(epoch, batch int, which string, v float64) error {
	if t.cfg.NonFinite == config.NonFiniteSkip {
		log.Warn().Int("epoch", epoch).Int("batch", batch).Str("loss", which).Float64("value", v).Msg("skipping batch with non-finite loss")
		return nil
	}
	return &NonFiniteLossError{Epoch: epoch, Batch: batch, Loss: which, Value: v}
}

func (t *Trainer) observe(s step) {
	if t.onStep != nil {
		t.onStep(s)
	}
}

// logitGrad is dBCE/dz for a sigmoid output p against a constant target,
// averaged over the batch.
func logitGrad(p []float64, target float64) *mat.Dense {
	d := make([]float64, len(p))
	for i, v := range p {
		d[i] = (v - target) / float64(len(p))
	}
	return mat.NewDense(len(p), 1, d)
}

// Sample draws k fresh noise vectors and returns the generator probabilities
// along with their thresholded fingerprints.
func (t *Trainer) Sample(k int) ([]fingerprint.Vector, *mat.Dense) {
	if k <= 0 {
		return nil, nil
	}
	probs := mat.DenseCopyOf(t.g.Generate(noise(t.rng, k, t.cfg.NoiseDim)))
	return Binarize(probs, t.cfg.Threshold), probs
}
