package classifier

import (
	"bytes"
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tensorplex-labs/molgan/internal/fingerprint"
)

func vec(t *testing.T, n int, on ...int) fingerprint.Vector {
	t.Helper()
	v, err := fingerprint.NewVector(n, on...)
	require.NoError(t, err)
	return v
}

func toySamples(t *testing.T) []Sample {
	t.Helper()
	var out []Sample
	for i := 0; i < 8; i++ {
		out = append(out, Sample{Vector: vec(t, 4, 0, 1), Label: LabelRelevant})
		out = append(out, Sample{Vector: vec(t, 4, 2, 3), Label: LabelControl})
	}
	// a few noisy rows so splits are not trivial
	out = append(out, Sample{Vector: vec(t, 4, 0), Label: LabelRelevant})
	out = append(out, Sample{Vector: vec(t, 4, 3), Label: LabelControl})
	return out
}

func seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

func TestToyForestPredictsRelevant(t *testing.T) {
	opts := DefaultOptions()
	opts.Trees = 25
	f, err := Fit(context.Background(), toySamples(t), opts, seeded(42))
	require.NoError(t, err)

	label, err := f.Predict(vec(t, 4, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, LabelRelevant, label)

	label, err = f.Predict(vec(t, 4, 2, 3))
	require.NoError(t, err)
	assert.Equal(t, LabelControl, label)

	p, err := f.PredictProba(vec(t, 4, 0, 1))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, p[0]+p[1], 1e-9)
}

func TestForestIsDeterministicAcrossWorkerCounts(t *testing.T) {
	samples := toySamples(t)
	opts := DefaultOptions()
	opts.Trees = 16

	opts.Workers = 1
	a, err := Fit(context.Background(), samples, opts, seeded(7))
	require.NoError(t, err)
	opts.Workers = 4
	b, err := Fit(context.Background(), samples, opts, seeded(7))
	require.NoError(t, err)

	assert.Equal(t, a.Importance, b.Importance)
	for i := range a.Trees {
		assert.Equal(t, a.Trees[i].Nodes, b.Trees[i].Nodes)
		assert.Equal(t, a.Trees[i].Outputs, b.Trees[i].Outputs)
	}
}

func TestImportanceIsNormalised(t *testing.T) {
	opts := DefaultOptions()
	opts.Trees = 10
	f, err := Fit(context.Background(), toySamples(t), opts, seeded(1))
	require.NoError(t, err)

	sum := 0.0
	for _, v := range f.Importance {
		assert.GreaterOrEqual(t, v, 0.0)
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-9)

	top := f.TopFeatures(2)
	require.Len(t, top, 2)
	assert.GreaterOrEqual(t, top[0].Importance, top[1].Importance)
	assert.Len(t, f.TopFeatures(20), 4)
}

func TestFitRejectsBadInput(t *testing.T) {
	_, err := Fit(context.Background(), nil, DefaultOptions(), seeded(1))
	assert.Error(t, err)

	mixed := []Sample{{Vector: vec(t, 4, 0), Label: 1}, {Vector: vec(t, 8, 0), Label: 0}}
	_, err = Fit(context.Background(), mixed, DefaultOptions(), seeded(1))
	assert.Error(t, err)

	badLabel := []Sample{{Vector: vec(t, 4, 0), Label: 2}}
	_, err = Fit(context.Background(), badLabel, DefaultOptions(), seeded(1))
	assert.Error(t, err)
}

func TestBalancedWeights(t *testing.T) {
	w := BalancedWeights([]int{1, 0, 0, 0})
	assert.InDelta(t, 4.0/6.0, w[0], 1e-12)
	assert.InDelta(t, 2.0, w[1], 1e-12)

	// class-weighted totals are equal
	assert.InDelta(t, 3*w[0], 1*w[1], 1e-12)
}

func TestStratifiedSplit(t *testing.T) {
	var samples []Sample
	for i := 0; i < 14; i++ {
		samples = append(samples, Sample{Vector: vec(t, 4, i%4), Label: LabelRelevant})
	}
	for i := 0; i < 6; i++ {
		samples = append(samples, Sample{Vector: vec(t, 4, i%4), Label: LabelControl})
	}

	train, test, err := StratifiedSplit(samples, 0.3, seeded(42))
	require.NoError(t, err)
	assert.Len(t, test, 6)
	assert.Len(t, train, 14)

	count := func(ss []Sample, label int) int {
		n := 0
		for _, s := range ss {
			if s.Label == label {
				n++
			}
		}
		return n
	}
	assert.Equal(t, 4, count(test, LabelRelevant))
	assert.Equal(t, 2, count(test, LabelControl))

	again, _, err := StratifiedSplit(samples, 0.3, seeded(42))
	require.NoError(t, err)
	assert.Equal(t, train, again)
}

func TestStratifiedSplitNeedsTwoPerClass(t *testing.T) {
	samples := []Sample{
		{Vector: vec(t, 4, 0), Label: 1},
		{Vector: vec(t, 4, 0), Label: 1},
		{Vector: vec(t, 4, 1), Label: 0},
	}
	_, _, err := StratifiedSplit(samples, 0.3, seeded(1))
	assert.Error(t, err)
}

func TestEvaluateConfusionSumsToTestSize(t *testing.T) {
	samples := toySamples(t)
	train, test, err := StratifiedSplit(samples, 0.3, seeded(42))
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.Trees = 10
	f, err := Fit(context.Background(), train, opts, seeded(42))
	require.NoError(t, err)

	r, err := f.Evaluate(test, 20)
	require.NoError(t, err)
	total := 0
	for _, row := range r.Confusion {
		for _, c := range row {
			total += c
		}
	}
	assert.Equal(t, len(test), total)
	assert.Equal(t, len(test), r.Total)
	assert.Len(t, r.TopFeatures, 4)
}

func TestNewReport(t *testing.T) {
	truth := []int{1, 1, 1, 0, 0}
	pred := []int{1, 1, 0, 0, 1}
	r, err := NewReport(truth, pred)
	require.NoError(t, err)

	assert.Equal(t, [2][2]int{{1, 1}, {1, 2}}, r.Confusion)
	assert.InDelta(t, 0.6, r.Accuracy, 1e-12)
	assert.InDelta(t, 2.0/3.0, r.Classes[1].Precision, 1e-12)
	assert.InDelta(t, 2.0/3.0, r.Classes[1].Recall, 1e-12)
	assert.InDelta(t, 0.5, r.Classes[0].Precision, 1e-12)
	assert.Equal(t, 3, r.Classes[1].Support)
	assert.Equal(t, 2, r.Classes[0].Support)
	assert.InDelta(t, (0.5+2.0/3.0)/2, r.MacroAvg.Precision, 1e-12)

	s := r.String()
	assert.Contains(t, s, "precision")
	assert.Contains(t, s, "0.6000")
	assert.Contains(t, s, "confusion matrix")
}

func TestNewReportZeroDivision(t *testing.T) {
	r, err := NewReport([]int{0, 0}, []int{0, 0})
	require.NoError(t, err)
	assert.Equal(t, 0.0, r.Classes[1].Precision)
	assert.Equal(t, 0.0, r.Classes[1].F1)
	assert.Equal(t, 1.0, r.Accuracy)

	_, err = NewReport([]int{0}, []int{0, 1})
	assert.Error(t, err)
}

func TestScoreCandidates(t *testing.T) {
	opts := DefaultOptions()
	opts.Trees = 25
	f, err := Fit(context.Background(), toySamples(t), opts, seeded(42))
	require.NoError(t, err)

	c, err := f.ScoreCandidates([]fingerprint.Vector{vec(t, 4, 0, 1), vec(t, 4, 2, 3), vec(t, 4, 0, 1)})
	require.NoError(t, err)
	assert.Equal(t, 3, c.Total)
	assert.Equal(t, 2, c.Relevant)
	assert.Equal(t, "2 of 3 synthetic candidates predicted disease-relevant", c.String())
	require.Len(t, c.Predictions, 3)
	assert.Equal(t, LabelRelevant, c.Predictions[0].Label)
	assert.Equal(t, LabelControl, c.Predictions[1].Label)
	assert.Equal(t, 2, c.Predictions[2].SyntheticIndex)
	assert.Greater(t, c.Predictions[0].Probability, 0.5)

	_, err = f.ScoreCandidates([]fingerprint.Vector{vec(t, 8, 0)})
	assert.Error(t, err)
}

func TestFourSampleScenario(t *testing.T) {
	samples := []Sample{
		{Vector: vec(t, 4, 0, 1), Label: LabelRelevant},
		{Vector: vec(t, 4, 0, 2), Label: LabelRelevant},
		{Vector: vec(t, 4, 2, 3), Label: LabelControl},
		{Vector: vec(t, 4, 1, 3), Label: LabelControl},
	}
	f, err := Fit(context.Background(), samples, DefaultOptions(), seeded(42))
	require.NoError(t, err)

	label, err := f.Predict(vec(t, 4, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, LabelRelevant, label)
}

func TestForestPersistRoundTrip(t *testing.T) {
	opts := DefaultOptions()
	opts.Trees = 10
	f, err := Fit(context.Background(), toySamples(t), opts, seeded(5))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteForest(&buf, f))
	got, err := ReadForest(&buf)
	require.NoError(t, err)

	assert.Equal(t, f.FeatureSize, got.FeatureSize)
	assert.InDeltaSlice(t, f.Importance, got.Importance, 1e-12)
	for _, s := range toySamples(t) {
		want, err := f.PredictProba(s.Vector)
		require.NoError(t, err)
		have, err := got.PredictProba(s.Vector)
		require.NoError(t, err)
		assert.InDeltaSlice(t, want, have, 1e-12)
	}

	_, err = ReadForest(bytes.NewReader([]byte("not zstd")))
	assert.Error(t, err)
}
