package server

import (
	"io"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tensorplex-labs/molgan/internal/artifact"
	"github.com/tensorplex-labs/molgan/internal/classifier"
	"github.com/tensorplex-labs/molgan/internal/config"
	"github.com/tensorplex-labs/molgan/internal/fingerprint"
	"github.com/tensorplex-labs/molgan/internal/gan"
	"github.com/tensorplex-labs/molgan/internal/projection"
	"github.com/tensorplex-labs/molgan/internal/similarity"
)

func newTestServer(t *testing.T) (*Server, *artifact.Store) {
	t.Helper()
	dir := t.TempDir()
	store := artifact.NewStore(filepath.Join(dir, "data"), filepath.Join(dir, "out"))
	return NewServer(nil, store), store
}

func get(t *testing.T, s *Server, target string, headers ...string) (*http.Response, []byte) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := s.App.Test(req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	return resp, body
}

func decode[T any](t *testing.T, body []byte) StdResponse[T] {
	t.Helper()
	var out StdResponse[T]
	require.NoError(t, sonic.Unmarshal(body, &out), string(body))
	return out
}

func vec(t *testing.T, n int, on ...int) fingerprint.Vector {
	t.Helper()
	v, err := fingerprint.NewVector(n, on...)
	require.NoError(t, err)
	return v
}

func TestConfigFromEnv(t *testing.T) {
	cfg := ConfigFromEnv(config.ServerEnvConfig{Address: "0.0.0.0", Port: 9000, BodySizeLimit: 2048})
	assert.Equal(t, &ServerConfig{Host: "0.0.0.0", Port: 9000, BodyLimit: 2048}, cfg)

	s := NewServer(cfg, artifact.NewStore(t.TempDir(), t.TempDir()))
	assert.Equal(t, "0.0.0.0:9000", s.Addr())
}

func TestHealth(t *testing.T) {
	s, store := newTestServer(t)
	require.NoError(t, store.WriteFingerprints(artifact.PositiveFingerprints, nil))

	resp, body := get(t, s, "/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[HealthBody](t, body)
	assert.Nil(t, out.Error)
	assert.Equal(t, "ok", out.Body.Status)
	assert.True(t, out.Body.Artifacts[artifact.PositiveFingerprints])
	assert.False(t, out.Body.Artifacts[artifact.SimilarityResults])
}

func TestMissingArtifactsAre404(t *testing.T) {
	s, _ := newTestServer(t)
	for _, path := range []string{"/similarity", "/projection", "/report", "/synthetic", "/training"} {
		resp, body := get(t, s, path)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
		out := decode[map[string]interface{}](t, body)
		require.NotNil(t, out.Error, path)
		assert.Contains(t, *out.Error, "is missing", path)
	}
}

func TestSimilarity(t *testing.T) {
	s, store := newTestServer(t)
	require.NoError(t, artifact.WriteTable(store, artifact.SimilarityResults, []similarity.Result{
		{SyntheticIndex: 0, NearestRealIndex: 2, Score: 0.5},
		{SyntheticIndex: 1, NearestRealIndex: 0, Score: 1},
	}))

	resp, body := get(t, s, "/similarity")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[SimilarityBody](t, body)
	require.Len(t, out.Body.Results, 2)
	assert.Equal(t, 2, out.Body.Results[0].NearestRealIndex)
	assert.Equal(t, 2, out.Body.Summary.Count)
	assert.InDelta(t, 0.75, out.Body.Summary.Mean, 1e-12)
}

func TestProjectionFilter(t *testing.T) {
	s, store := newTestServer(t)
	require.NoError(t, artifact.WriteTable(store, artifact.ProjectionCoordinates, []projection.Point{
		{Method: projection.MethodPCA, Index: 0, Provenance: projection.Real, X: 1, Y: 2},
		{Method: projection.MethodPCA, Index: 1, Provenance: projection.Synthetic, X: 3, Y: 4},
		{Method: projection.MethodTSNE, Index: 0, Provenance: projection.Real, X: 5, Y: 6},
	}))

	_, body := get(t, s, "/projection")
	assert.Len(t, decode[ProjectionBody](t, body).Body.Points, 3)

	_, body = get(t, s, "/projection?method=tsne")
	points := decode[ProjectionBody](t, body).Body.Points
	require.Len(t, points, 1)
	assert.Equal(t, 5.0, points[0].X)

	resp, _ := get(t, s, "/projection?method=umap")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReport(t *testing.T) {
	s, store := newTestServer(t)
	require.NoError(t, store.WriteText(artifact.ClassificationReport, "accuracy 1.0000\n"))

	_, body := get(t, s, "/report")
	out := decode[ReportBody](t, body)
	assert.Equal(t, "accuracy 1.0000\n", out.Body.Text)
	assert.Empty(t, out.Body.Importance)

	require.NoError(t, artifact.WriteTable(store, artifact.FeatureImportance, []classifier.FeatureImportance{
		{Bit: 4, Importance: 0.6}, {Bit: 1, Importance: 0.3}, {Bit: 0, Importance: 0.1},
	}))
	_, body = get(t, s, "/report?top=2")
	out = decode[ReportBody](t, body)
	require.Len(t, out.Body.Importance, 2)
	assert.Equal(t, 4, out.Body.Importance[0].Bit)
}

func TestSynthetic(t *testing.T) {
	s, store := newTestServer(t)
	require.NoError(t, store.WriteSynthetic([]fingerprint.Vector{vec(t, 8, 1, 5), vec(t, 8)}, 8))
	require.NoError(t, artifact.WriteTable(store, artifact.CandidatePredictions, []classifier.CandidatePrediction{
		{SyntheticIndex: 0, Label: 1, Probability: 0.8},
		{SyntheticIndex: 1, Label: 0, Probability: 0.1},
	}))

	resp, body := get(t, s, "/synthetic")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[SyntheticBody](t, body)
	assert.Equal(t, 8, out.Body.NumBits)
	require.Len(t, out.Body.Fingerprints, 2)
	assert.Equal(t, []int{1, 5}, out.Body.Fingerprints[0].OnBits)
	assert.Empty(t, out.Body.Fingerprints[1].OnBits)
	require.Len(t, out.Body.Predictions, 2)
	assert.Equal(t, 1, out.Body.Predictions[0].Label)
}

func TestTraining(t *testing.T) {
	s, store := newTestServer(t)
	require.NoError(t, artifact.WriteTable(store, artifact.TrainStats, []gan.EpochStats{{Epoch: 1, DLoss: 1.2, GLoss: 0.7}}))

	_, body := get(t, s, "/training")
	out := decode[TrainingBody](t, body)
	require.Len(t, out.Body.Epochs, 1)
	assert.InDelta(t, 1.2, out.Body.Epochs[0].DLoss, 1e-12)
	assert.Nil(t, out.Body.Model)

	cfg := gan.DefaultConfig(16)
	cfg.NoiseDim = 4
	cfg.GeneratorHidden = []int{8}
	cfg.DiscriminatorHidden = []int{6, 3}
	tr, err := gan.NewTrainer(cfg, config.ExecutionContext{Workers: 1}, rand.New(rand.NewPCG(1, 1)))
	require.NoError(t, err)
	require.NoError(t, store.WriteCheckpoint(tr.Checkpoint()))

	_, body = get(t, s, "/training")
	out = decode[TrainingBody](t, body)
	require.NotNil(t, out.Body.Model)
	assert.Equal(t, 16, out.Body.Model.NumBits)
	assert.Equal(t, []int{4, 8, 16}, out.Body.Model.GeneratorLayers)
	assert.Equal(t, []int{16, 6, 3, 1}, out.Body.Model.DiscriminatorLayers)
}

func TestZstdResponse(t *testing.T) {
	s, store := newTestServer(t)
	require.NoError(t, store.WriteText(artifact.ClassificationReport, "report"))

	resp, body := get(t, s, "/report", "Accept-Encoding", "zstd")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "zstd", resp.Header.Get("Content-Encoding"))

	dec, err := zstd.NewReader(nil)
	require.NoError(t, err)
	defer dec.Close()
	plain, err := dec.DecodeAll(body, nil)
	require.NoError(t, err)
	assert.Equal(t, "report", decode[ReportBody](t, plain).Body.Text)
}
