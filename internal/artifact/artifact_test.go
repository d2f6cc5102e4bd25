package artifact

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sbinet/npyio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tensorplex-labs/molgan/internal/classifier"
	"github.com/tensorplex-labs/molgan/internal/fingerprint"
	"github.com/tensorplex-labs/molgan/internal/gan"
)

func vec(t *testing.T, n int, on ...int) fingerprint.Vector {
	t.Helper()
	v, err := fingerprint.NewVector(n, on...)
	require.NoError(t, err)
	return v
}

func newStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	return NewStore(filepath.Join(dir, "data"), filepath.Join(dir, "out"))
}

func TestFingerprintsRoundTrip(t *testing.T) {
	s := newStore(t)
	rows := []fingerprint.Vector{vec(t, 8, 0, 3), vec(t, 8), vec(t, 8, 7)}
	require.NoError(t, s.WriteFingerprints(PositiveFingerprints, rows))

	got, err := s.ReadFingerprints(PositiveFingerprints)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i := range rows {
		assert.True(t, rows[i].Equal(got[i]), "row %d", i)
	}
}

func TestEmptyFingerprintSet(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.WriteFingerprints(NegativeFingerprints, nil))
	got, err := s.ReadFingerprints(NegativeFingerprints)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReadNpyAcceptsOtherDtypes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, npyio.Write(&buf, []uint8{0, 1}))
	_, err := ReadNpy(&buf)
	assert.Error(t, err, "1-D non-empty array is not a fingerprint matrix")

	data, shape, err := readFloats(func() *bytes.Buffer {
		var b bytes.Buffer
		require.NoError(t, npyio.Write(&b, []int32{1, 0, 1}))
		return &b
	}())
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 1}, data)
	assert.Equal(t, []int{3}, shape)

	buf.Reset()
	require.NoError(t, npyio.Write(&buf, []bool{true, false}))
	data, _, err = readFloats(&buf)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0}, data)
}

func TestLabelsRoundTrip(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.WriteLabels([]int{1, 1, 0}))
	got, err := s.ReadLabels()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1, 0}, got)
}

func TestMissingArtifactNamesProducer(t *testing.T) {
	s := newStore(t)
	_, err := s.ReadFingerprints(PositiveFingerprints)
	require.Error(t, err)
	assert.True(t, IsMissing(err))

	var m *MissingArtifactError
	require.ErrorAs(t, err, &m)
	assert.Equal(t, PositiveFingerprints, m.Artifact)
	assert.Equal(t, StageEncode, m.ProducedBy)
	assert.Contains(t, err.Error(), "encode")

	err = s.Require(Labels)
	require.ErrorAs(t, err, &m)
	assert.Equal(t, Labels, m.Artifact)

	_, err = s.ReadSynthetic()
	require.ErrorAs(t, err, &m)
	assert.Equal(t, StageTrainGAN, m.ProducedBy)
}

func TestSyntheticTable(t *testing.T) {
	s := newStore(t)
	rows := []fingerprint.Vector{vec(t, 4, 0, 1), vec(t, 4, 3)}
	require.NoError(t, s.WriteSynthetic(rows, 4))

	raw, err := os.ReadFile(s.Path(SyntheticFingerprints))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	assert.Equal(t, "bit_0,bit_1,bit_2,bit_3", lines[0])
	assert.Equal(t, "1,1,0,0", lines[1])
	assert.Equal(t, "0,0,0,1", lines[2])

	got, err := s.ReadSynthetic()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].Equal(rows[0]))
}

func TestReadBitTableRejectsBadInput(t *testing.T) {
	_, err := ReadBitTable(strings.NewReader("bit_0,bit_2\n1,0\n"))
	assert.Error(t, err)
	_, err = ReadBitTable(strings.NewReader("bit_0,bit_1\n1,2\n"))
	assert.Error(t, err)
}

type scoreRow struct {
	SyntheticIndex   int     `csv:"synthetic_index"`
	NearestRealIndex int     `csv:"nearest_real_index"`
	Similarity       float64 `csv:"similarity"`
}

func TestTableRoundTrip(t *testing.T) {
	s := newStore(t)
	rows := []scoreRow{{0, 2, 0.5}, {1, 0, 1}}
	require.NoError(t, WriteTable(s, SimilarityResults, rows))

	raw, err := os.ReadFile(s.Path(SimilarityResults))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "synthetic_index,nearest_real_index,similarity\n"))

	got, err := ReadTable[scoreRow](s, SimilarityResults)
	require.NoError(t, err)
	assert.Equal(t, rows, got)

	require.NoError(t, WriteTable[scoreRow](s, SimilarityResults, nil))
	got, err = ReadTable[scoreRow](s, SimilarityResults)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReportArtifactsLiveInOutputDir(t *testing.T) {
	s := NewStore("data", "out")
	assert.Equal(t, filepath.Join("out", ClassificationReport), s.Path(ClassificationReport))
	assert.Equal(t, filepath.Join("data", Labels), s.Path(Labels))
	assert.Equal(t, filepath.Join("out", "figures", "pca.png"), s.FigurePath("pca.png"))
}

func TestTextRoundTrip(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.WriteText(ClassificationReport, "precision\n"))
	got, err := s.ReadText(ClassificationReport)
	require.NoError(t, err)
	assert.Equal(t, "precision\n", got)
}

func TestCheckpointRoundTrip(t *testing.T) {
	s := newStore(t)
	c := gan.Checkpoint{NumBits: 4, NoiseDim: 2, Generator: []gan.LayerState{{In: 2, Out: 4, Weights: make([]float64, 8), Bias: make([]float64, 4)}}}
	require.NoError(t, s.WriteCheckpoint(c))
	got, err := s.ReadCheckpoint()
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestForestArtifact(t *testing.T) {
	s := newStore(t)
	_, err := s.ReadForest()
	require.True(t, IsMissing(err))
	assert.Contains(t, err.Error(), StageTrainClassifier)

	f := &classifier.Forest{
		Trees:       []*classifier.Tree{{Outputs: [][]float64{{0.25, 0.75}}, FeatureSize: 4}},
		FeatureSize: 4,
		Importance:  []float64{0, 0, 0, 0},
	}
	require.NoError(t, s.WriteForest(f))
	got, err := s.ReadForest()
	require.NoError(t, err)
	p, err := got.PredictProba(vec(t, 4, 1))
	require.NoError(t, err)
	assert.Equal(t, []float64{0.25, 0.75}, p)
}

func TestDrugTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drugs.csv")
	drugs := []Drug{
		{Name: "Riluzole", DrugBank: "DB00740", Structure: "C1=CC2=C(C=C1OC(F)(F)F)SC(=N2)N"},
		{Name: "Edaravone", DrugBank: "DB12070", Structure: "CC1=NN(C(=O)C1)C2=CC=CC=C2"},
		{Name: "Unresolved", DrugBank: "DB99999"},
		{Name: "Riluzole again", DrugBank: "DB00740", Structure: "C"},
	}
	require.NoError(t, WriteDrugTable(path, drugs))

	got, err := ReadDrugTable(path)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, "DB00740", got[0].ID())

	records := Records(got)
	require.Len(t, records, 2)
	assert.Equal(t, "DB00740", records[0].ID)
	assert.Equal(t, "DB12070", records[1].ID)

	_, err = ReadDrugTable(filepath.Join(t.TempDir(), "absent.csv"))
	assert.True(t, IsMissing(err))
}
