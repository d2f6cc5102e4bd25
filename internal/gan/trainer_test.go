package gan

import (
	"bytes"
	"context"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/tensorplex-labs/molgan/internal/config"
	"github.com/tensorplex-labs/molgan/internal/fingerprint"
)

func smallConfig() Config {
	cfg := DefaultConfig(16)
	cfg.NoiseDim = 4
	cfg.GeneratorHidden = []int{8}
	cfg.DiscriminatorHidden = []int{8}
	cfg.Epochs = 3
	cfg.BatchSize = 4
	cfg.Samples = 5
	cfg.LearningRate = 1e-3
	return cfg
}

func realSet(t *testing.T, rows, bits int) []fingerprint.Vector {
	t.Helper()
	rng := rand.New(rand.NewPCG(7, 7))
	out := make([]fingerprint.Vector, rows)
	for i := range out {
		var on []int
		for b := 0; b < bits; b++ {
			if rng.Float64() < 0.3 {
				on = append(on, b)
			}
		}
		v, err := fingerprint.NewVector(bits, on...)
		require.NoError(t, err)
		out[i] = v
	}
	return out
}

var serial = config.ExecutionContext{Workers: 1}

func seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

func assertCheckpointsClose(t *testing.T, want, got Checkpoint) {
	t.Helper()
	for _, pair := range [][2][]LayerState{{want.Generator, got.Generator}, {want.Discriminator, got.Discriminator}} {
		require.Len(t, pair[1], len(pair[0]))
		for i := range pair[0] {
			assert.InDeltaSlice(t, pair[0][i].Weights, pair[1][i].Weights, 1e-9)
			assert.InDeltaSlice(t, pair[0][i].Bias, pair[1][i].Bias, 1e-9)
		}
	}
}

func TestSampleShapeAndBinary(t *testing.T) {
	cfg := smallConfig()
	tr, err := NewTrainer(cfg, serial, seeded(1))
	require.NoError(t, err)
	_, err = tr.Train(context.Background(), realSet(t, 10, cfg.NumBits))
	require.NoError(t, err)

	vecs, probs := tr.Sample(cfg.Samples)
	require.Len(t, vecs, cfg.Samples)
	r, c := probs.Dims()
	assert.Equal(t, cfg.Samples, r)
	assert.Equal(t, cfg.NumBits, c)
	for i, v := range vecs {
		assert.Equal(t, cfg.NumBits, v.Len())
		for j, f := range v.Floats() {
			p := probs.At(i, j)
			assert.True(t, p >= 0 && p <= 1)
			assert.Equal(t, p > cfg.Threshold, f == 1)
		}
	}
}

func TestTrainingIsReproducibleWithSeed(t *testing.T) {
	cfg := smallConfig()
	positives := realSet(t, 10, cfg.NumBits)

	run := func() (Checkpoint, []fingerprint.Vector, TrainStats) {
		tr, err := NewTrainer(cfg, serial, seeded(42))
		require.NoError(t, err)
		stats, err := tr.Train(context.Background(), positives)
		require.NoError(t, err)
		vecs, _ := tr.Sample(cfg.Samples)
		return tr.Checkpoint(), vecs, stats
	}
	c1, v1, s1 := run()
	c2, v2, s2 := run()
	assert.Equal(t, c1, c2)
	assert.Equal(t, s1, s2)
	require.Len(t, v2, len(v1))
	for i := range v1 {
		assert.True(t, v1[i].Equal(v2[i]))
	}
}

func TestDiscriminatorStepsBeforeGenerator(t *testing.T) {
	cfg := smallConfig()
	tr, err := NewTrainer(cfg, serial, seeded(3))
	require.NoError(t, err)
	var steps []step
	tr.onStep = func(s step) { steps = append(steps, s) }

	stats, err := tr.Train(context.Background(), realSet(t, 10, cfg.NumBits))
	require.NoError(t, err)

	batches := 3 // ceil(10/4)
	require.Len(t, steps, 2*batches*cfg.Epochs)
	for i := 0; i < len(steps); i += 2 {
		assert.Equal(t, stepDiscriminator, steps[i])
		assert.Equal(t, stepGenerator, steps[i+1])
	}
	assert.Len(t, stats.Epochs, cfg.Epochs)
	assert.Zero(t, stats.SkippedBatches)
}

func TestZeroEpochsLeavesWeightsUntouched(t *testing.T) {
	cfg := smallConfig()
	cfg.Epochs = 0
	tr, err := NewTrainer(cfg, serial, seeded(5))
	require.NoError(t, err)
	before := tr.Checkpoint()
	stats, err := tr.Train(context.Background(), realSet(t, 4, cfg.NumBits))
	require.NoError(t, err)
	assert.Empty(t, stats.Epochs)
	assert.Equal(t, before, tr.Checkpoint())
}

func poison(tr *Trainer) {
	tr.d.net.layers[0].w.Set(0, 0, math.NaN())
}

func TestNonFiniteLossAborts(t *testing.T) {
	cfg := smallConfig()
	tr, err := NewTrainer(cfg, serial, seeded(9))
	require.NoError(t, err)
	poison(tr)

	_, err = tr.Train(context.Background(), realSet(t, 10, cfg.NumBits))
	require.Error(t, err)
	var nf *NonFiniteLossError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, 1, nf.Epoch)
	assert.Equal(t, 1, nf.Batch)
	assert.Equal(t, "discriminator", nf.Loss)
}

func TestNonFiniteLossSkip(t *testing.T) {
	cfg := smallConfig()
	cfg.NonFinite = config.NonFiniteSkip
	tr, err := NewTrainer(cfg, serial, seeded(9))
	require.NoError(t, err)
	poison(tr)
	stepped := 0
	tr.onStep = func(step) { stepped++ }

	genBefore := tr.Checkpoint().Generator
	stats, err := tr.Train(context.Background(), realSet(t, 10, cfg.NumBits))
	require.NoError(t, err)
	assert.Equal(t, 3*cfg.Epochs, stats.SkippedBatches)
	assert.Zero(t, stepped)
	assert.Equal(t, genBefore, tr.Checkpoint().Generator)
}

func TestTrainRejectsBadInput(t *testing.T) {
	cfg := smallConfig()
	tr, err := NewTrainer(cfg, serial, seeded(1))
	require.NoError(t, err)

	_, err = tr.Train(context.Background(), nil)
	assert.Error(t, err)

	_, err = tr.Train(context.Background(), realSet(t, 3, cfg.NumBits+1))
	assert.Error(t, err)
}

func TestTrainHonoursCancellation(t *testing.T) {
	cfg := smallConfig()
	tr, err := NewTrainer(cfg, serial, seeded(1))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = tr.Train(ctx, realSet(t, 4, cfg.NumBits))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCheckpointRoundTrip(t *testing.T) {
	cfg := smallConfig()
	tr, err := NewTrainer(cfg, serial, seeded(11))
	require.NoError(t, err)
	_, err = tr.Train(context.Background(), realSet(t, 8, cfg.NumBits))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCheckpoint(&buf, tr.Checkpoint()))
	ck, err := ReadCheckpoint(&buf)
	require.NoError(t, err)

	other, err := NewTrainer(cfg, serial, seeded(99))
	require.NoError(t, err)
	require.NoError(t, other.Restore(ck))

	z := noise(seeded(5), 3, cfg.NoiseDim)
	a := mat.DenseCopyOf(tr.Generator().Generate(z))
	b := other.Generator().Generate(z)
	assert.True(t, mat.EqualApprox(a, b, 1e-12))
}

func TestRestoreRejectsShapeMismatch(t *testing.T) {
	cfg := smallConfig()
	tr, err := NewTrainer(cfg, serial, seeded(1))
	require.NoError(t, err)

	wider := cfg
	wider.NumBits = 32
	other, err := NewTrainer(wider, serial, seeded(1))
	require.NoError(t, err)
	assert.Error(t, other.Restore(tr.Checkpoint()))
}

// The analytic gradient of the first discriminator layer must match central
// finite differences of the BCE loss.
func TestDiscriminatorGradientMatchesFiniteDifference(t *testing.T) {
	cfg := smallConfig()
	d, err := newDiscriminator(cfg, seeded(21))
	require.NoError(t, err)
	x := mat.NewDense(3, cfg.NumBits, nil)
	for i := range x.RawMatrix().Data {
		x.RawMatrix().Data[i] = float64(i % 2)
	}

	p := d.Score(x)
	grads, _ := d.net.backward(logitGrad(p, 1), true)

	w := d.net.layers[0].w
	const h = 1e-6
	for _, ij := range [][2]int{{0, 0}, {1, 3}, {5, 7}} {
		orig := w.At(ij[0], ij[1])
		w.Set(ij[0], ij[1], orig+h)
		up := bce(d.Score(x), 1)
		w.Set(ij[0], ij[1], orig-h)
		down := bce(d.Score(x), 1)
		w.Set(ij[0], ij[1], orig)
		numeric := (up - down) / (2 * h)
		assert.InDelta(t, numeric, grads[0].dw.At(ij[0], ij[1]), 1e-6)
	}
}

func TestGeneratorGradientThroughDiscriminator(t *testing.T) {
	cfg := smallConfig()
	g, err := newGenerator(cfg, seeded(31))
	require.NoError(t, err)
	d, err := newDiscriminator(cfg, seeded(32))
	require.NoError(t, err)
	z := noise(seeded(33), 4, cfg.NoiseDim)

	loss := func() float64 { return bce(d.Score(g.Generate(z)), 1) }

	pred := d.Score(g.Generate(z))
	_, dGen := d.net.backward(logitGrad(pred, 1), true)
	grads, _ := g.net.backward(dGen, false)

	last := g.net.layers[len(g.net.layers)-1]
	const h = 1e-6
	for _, j := range []int{0, 3, 9} {
		orig := last.b[j]
		last.b[j] = orig + h
		up := loss()
		last.b[j] = orig - h
		down := loss()
		last.b[j] = orig
		assert.InDelta(t, (up-down)/(2*h), grads[len(grads)-1].db[j], 1e-6)
	}
}

func TestConfigFromEnv(t *testing.T) {
	env := config.GANEnvConfig{
		NoiseDim: 10, GeneratorHidden: []int{16}, DiscrimHidden: []int{16}, Epochs: 1, BatchSize: 2,
		LearningRate: 1e-3, Beta1: 0.9, Beta2: 0.999, LeakySlope: 0.2, Samples: 3, Threshold: 0.5,
		NonFinitePolicy: "skip", LogEvery: 1,
	}
	cfg, err := ConfigFromEnv(env, 64)
	require.NoError(t, err)
	assert.Equal(t, config.NonFiniteSkip, cfg.NonFinite)
	assert.Equal(t, []int{10, 16, 64}, cfg.generatorSizes())
	assert.Equal(t, []int{64, 16, 1}, cfg.discriminatorSizes())

	env.NonFinitePolicy = "retry"
	_, err = ConfigFromEnv(env, 64)
	assert.Error(t, err)
}

func TestTrainingIsIdenticalAcrossWorkerCounts(t *testing.T) {
	cfg := smallConfig()
	cfg.BatchSize = 16
	cfg.GeneratorHidden = []int{24}
	cfg.DiscriminatorHidden = []int{24}
	positives := realSet(t, 40, cfg.NumBits)

	run := func(workers int) (Checkpoint, TrainStats, *mat.Dense) {
		tr, err := NewTrainer(cfg, config.ExecutionContext{Workers: workers}, seeded(17))
		require.NoError(t, err)
		stats, err := tr.Train(context.Background(), positives)
		require.NoError(t, err)
		_, probs := tr.Sample(8)
		return tr.Checkpoint(), stats, probs
	}
	c1, s1, p1 := run(1)
	for _, workers := range []int{2, 4, 7} {
		c, s, p := run(workers)
		assertCheckpointsClose(t, c1, c)
		require.Len(t, s.Epochs, len(s1.Epochs))
		for i := range s1.Epochs {
			assert.InDelta(t, s1.Epochs[i].MeanDLoss, s.Epochs[i].MeanDLoss, 1e-9)
			assert.InDelta(t, s1.Epochs[i].MeanGLoss, s.Epochs[i].MeanGLoss, 1e-9)
		}
		assert.True(t, mat.EqualApprox(p1, p, 1e-9), "workers=%d", workers)
	}
}

func TestMulRowsMatchesMul(t *testing.T) {
	rng := seeded(51)
	fill := func(r, c int) *mat.Dense {
		d := make([]float64, r*c)
		for i := range d {
			d[i] = rng.NormFloat64()
		}
		return mat.NewDense(r, c, d)
	}
	a := fill(23, 9)
	b := fill(9, 5)
	at := fill(9, 23)

	var want, wantT mat.Dense
	want.Mul(a, b)
	wantT.Mul(at.T(), b)

	for _, workers := range []int{0, 1, 3, 8, 64} {
		got := mat.NewDense(23, 5, nil)
		mulRows(got, func(r0, r1 int) mat.Matrix { return a.Slice(r0, r1, 0, 9) }, b, workers)
		assert.True(t, mat.EqualApprox(&want, got, 1e-12), "workers=%d", workers)

		gotT := mat.NewDense(23, 5, nil)
		mulRows(gotT, func(r0, r1 int) mat.Matrix { return at.Slice(0, 9, r0, r1).T() }, b, workers)
		assert.True(t, mat.EqualApprox(&wantT, gotT, 1e-12), "workers=%d", workers)
	}
}

func TestInputGradMatchesFullBackward(t *testing.T) {
	cfg := smallConfig()
	d, err := newDiscriminator(cfg, seeded(61))
	require.NoError(t, err)
	x := mat.NewDense(5, cfg.NumBits, nil)
	for i := range x.RawMatrix().Data {
		x.RawMatrix().Data[i] = float64(i % 3 % 2)
	}

	p := d.Score(x)
	_, full := d.net.backward(logitGrad(p, 1), true)
	only := d.net.inputGrad(logitGrad(p, 1), true)
	assert.True(t, mat.EqualApprox(full, only, 1e-12))
}
