// Package artifact reads and writes the files exchanged between pipeline
// stages: npy fingerprint arrays, CSV tables, the plain-text classification
// report and the compressed model checkpoint.
package artifact

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	PositiveFingerprints  = "positive_fingerprints.npy"
	NegativeFingerprints  = "negative_fingerprints.npy"
	Labels                = "labels.npy"
	EncodedIDs            = "encoded_ids.csv"
	SyntheticFingerprints = "synthetic_fingerprints.csv"
	SimilarityResults     = "similarity.csv"
	ClassificationReport  = "classification_report.txt"
	ProjectionCoordinates = "projection.csv"
	FeatureImportance     = "feature_importance.csv"
	GANCheckpoint         = "gan_checkpoint.json.zst"
	ClassifierModel       = "classifier_forest.json.zst"
	TrainStats            = "train_stats.csv"
	CandidatePredictions  = "candidate_predictions.csv"
)

// Stage names used in MissingArtifactError.
const (
	StageEncode          = "encode"
	StageTrainClassifier = "train-classifier"
	StageTrainGAN        = "train-gan"
	StageEvaluate        = "evaluate"
)

var producers = map[string]string{
	PositiveFingerprints:  StageEncode,
	NegativeFingerprints:  StageEncode,
	Labels:                StageEncode,
	EncodedIDs:            StageEncode,
	ClassificationReport:  StageTrainClassifier,
	FeatureImportance:     StageTrainClassifier,
	ClassifierModel:       StageTrainClassifier,
	SyntheticFingerprints: StageTrainGAN,
	GANCheckpoint:         StageTrainGAN,
	TrainStats:            StageTrainGAN,
	SimilarityResults:     StageEvaluate,
	ProjectionCoordinates: StageEvaluate,
	CandidatePredictions:  StageEvaluate,
}

// ProducedBy names the stage that writes artifact.
func ProducedBy(artifact string) string {
	return producers[artifact]
}

// Store places numeric artifacts under DataDir and reports under OutputDir.
type Store struct {
	DataDir   string
	OutputDir string
}

func NewStore(dataDir, outputDir string) *Store {
	return &Store{DataDir: dataDir, OutputDir: outputDir}
}

var reportArtifacts = map[string]bool{
	ClassificationReport:  true,
	ProjectionCoordinates: true,
	FeatureImportance:     true,
}

// Path returns where artifact lives.
func (s *Store) Path(artifact string) string {
	if reportArtifacts[artifact] {
		return filepath.Join(s.OutputDir, artifact)
	}
	return filepath.Join(s.DataDir, artifact)
}

// FigurePath returns a path for a rendered figure under OutputDir/figures.
func (s *Store) FigurePath(name string) string {
	return filepath.Join(s.OutputDir, "figures", name)
}

// Exists reports whether artifact has been written.
func (s *Store) Exists(artifact string) bool {
	_, err := os.Stat(s.Path(artifact))
	return err == nil
}

// Require returns a MissingArtifactError for the first absent artifact.
func (s *Store) Require(artifacts ...string) error {
	for _, a := range artifacts {
		if !s.Exists(a) {
			return errors.WithStack(&MissingArtifactError{Artifact: a, ProducedBy: producers[a]})
		}
	}
	return nil
}

// create writes to a temporary file in the destination directory and renames
// it into place once write succeeds.
func (s *Store) create(artifact string, write func(*os.File) error) error {
	path := s.Path(artifact)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create directory for %s", artifact)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+artifact+".*")
	if err != nil {
		return errors.Wrapf(err, "create %s", artifact)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(err, "write %s", artifact)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "close %s", artifact)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, "rename %s", artifact)
	}
	log.Debug().Str("artifact", artifact).Str("path", path).Msg("artifact written")
	return nil
}
