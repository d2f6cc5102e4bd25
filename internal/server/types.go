package server

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tensorplex-labs/molgan/internal/artifact"
	"github.com/tensorplex-labs/molgan/internal/classifier"
	"github.com/tensorplex-labs/molgan/internal/gan"
	"github.com/tensorplex-labs/molgan/internal/projection"
	"github.com/tensorplex-labs/molgan/internal/similarity"
)

const (
	DefaultServerHost = "127.0.0.1"
	DefaultServerPort = 8080
	DefaultBodyLimit  = 1024 * 1024 // 1MB
)

// Server exposes persisted evaluation artifacts read-only.
type Server struct {
	App    *fiber.App
	config *ServerConfig
	store  *artifact.Store
}

type ServerConfig struct {
	Host      string
	Port      int
	BodyLimit int
}

// StdResponse represents the standardized response structure
type StdResponse[T any] struct {
	Body  T       `json:"body"`
	Error *string `json:"error,omitempty"`
}

type HealthBody struct {
	Status    string          `json:"status"`
	Artifacts map[string]bool `json:"artifacts"`
}

type SimilarityBody struct {
	Results []similarity.Result `json:"results"`
	Summary similarity.Summary  `json:"summary"`
}

type ProjectionBody struct {
	Points []projection.Point `json:"points"`
}

type ReportBody struct {
	Text       string                         `json:"text"`
	Importance []classifier.FeatureImportance `json:"importance"`
}

// SyntheticFingerprint lists the set bit positions of one generated fingerprint.
type SyntheticFingerprint struct {
	Index  int   `json:"index"`
	OnBits []int `json:"on_bits"`
}

type SyntheticBody struct {
	NumBits      int                               `json:"num_bits"`
	Fingerprints []SyntheticFingerprint            `json:"fingerprints"`
	Predictions  []classifier.CandidatePrediction `json:"predictions,omitempty"`
}

// ModelBody describes the persisted generator and discriminator.
type ModelBody struct {
	NumBits             int     `json:"num_bits"`
	NoiseDim            int     `json:"noise_dim"`
	Threshold           float64 `json:"threshold"`
	GeneratorLayers     []int   `json:"generator_layers"`
	DiscriminatorLayers []int   `json:"discriminator_layers"`
}

// TrainingBody carries the epoch table; Model is nil when no checkpoint was
// written.
type TrainingBody struct {
	Epochs []gan.EpochStats `json:"epochs"`
	Model  *ModelBody       `json:"model"`
}
