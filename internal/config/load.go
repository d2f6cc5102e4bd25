// Package config defines environment configuration structs and loaders.
package config

import (
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type AppConfig struct {
	PathsEnvConfig
	FingerprintEnvConfig
	GANEnvConfig
	ClassifierEnvConfig
	ProjectionEnvConfig
	LookupEnvConfig
	RedisEnvConfig
	ServerEnvConfig
	ExecutionEnvConfig
	Environment string `env:"ENVIRONMENT" envDefault:"prod"`
}

func LoadConfig() (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// PathsEnvConfig locates the persisted artifacts of every stage.
type PathsEnvConfig struct {
	DataDir   string `env:"DATA_DIR" envDefault:"data/processed"`
	OutputDir string `env:"OUTPUT_DIR" envDefault:"outputs"`
	DrugTable string `env:"DRUG_TABLE" envDefault:"data/processed/drugs_with_smiles.csv"`
}

// FingerprintEnvConfig controls circular fingerprint encoding.
type FingerprintEnvConfig struct {
	NumBits int `env:"FP_BITS" envDefault:"2048"`
	Radius  int `env:"FP_RADIUS" envDefault:"2"`
}

// GANEnvConfig holds the adversarial training hyperparameters.
type GANEnvConfig struct {
	NoiseDim        int     `env:"GAN_NOISE_DIM" envDefault:"100"`
	GeneratorHidden []int   `env:"GAN_GENERATOR_HIDDEN" envDefault:"512,1024"`
	DiscrimHidden   []int   `env:"GAN_DISCRIMINATOR_HIDDEN" envDefault:"1024,512"`
	Epochs          int     `env:"GAN_EPOCHS" envDefault:"200"`
	BatchSize       int     `env:"GAN_BATCH_SIZE" envDefault:"32"`
	LearningRate    float64 `env:"GAN_LEARNING_RATE" envDefault:"0.0002"`
	Beta1           float64 `env:"GAN_BETA1" envDefault:"0.9"`
	Beta2           float64 `env:"GAN_BETA2" envDefault:"0.999"`
	LeakySlope      float64 `env:"GAN_LEAKY_SLOPE" envDefault:"0.2"`
	Samples         int     `env:"GAN_SAMPLES" envDefault:"10"`
	Threshold       float64 `env:"GAN_THRESHOLD" envDefault:"0.5"`
	NonFinitePolicy string  `env:"GAN_NON_FINITE_POLICY" envDefault:"abort"`
	LogEvery        int     `env:"GAN_LOG_EVERY" envDefault:"10"`
	Seed            uint64  `env:"GAN_SEED" envDefault:"42"`
}

// ClassifierEnvConfig configures the random forest and its validation split.
type ClassifierEnvConfig struct {
	Trees           int     `env:"RF_TREES" envDefault:"100"`
	MaxDepth        int     `env:"RF_MAX_DEPTH" envDefault:"0"`
	MinSamplesSplit int     `env:"RF_MIN_SAMPLES_SPLIT" envDefault:"2"`
	MinSamplesLeaf  int     `env:"RF_MIN_SAMPLES_LEAF" envDefault:"1"`
	TestFraction    float64 `env:"RF_TEST_FRACTION" envDefault:"0.3"`
	TopFeatures     int     `env:"RF_TOP_FEATURES" envDefault:"20"`
	Seed            uint64  `env:"RF_SEED" envDefault:"42"`
}

// ProjectionEnvConfig configures the 2-D embeddings.
type ProjectionEnvConfig struct {
	Perplexity   float64 `env:"TSNE_PERPLEXITY" envDefault:"30"`
	Iterations   int     `env:"TSNE_ITERATIONS" envDefault:"1000"`
	LearningRate float64 `env:"TSNE_LEARNING_RATE" envDefault:"200"`
	Seed         uint64  `env:"TSNE_SEED" envDefault:"42"`
}

// LookupEnvConfig configures structure resolution and negative pool assembly.
type LookupEnvConfig struct {
	PubChemURL      string        `env:"PUBCHEM_URL" envDefault:"https://pubchem.ncbi.nlm.nih.gov/rest/pug"`
	LookupTimeout   time.Duration `env:"LOOKUP_TIMEOUT" envDefault:"30s"`
	LookupRetries   int           `env:"LOOKUP_RETRIES" envDefault:"3"`
	NegativeCount   int           `env:"NEGATIVE_COUNT" envDefault:"300"`
	CIDMin          int           `env:"NEGATIVE_CID_MIN" envDefault:"10000"`
	CIDMax          int           `env:"NEGATIVE_CID_MAX" envDefault:"500000"`
	Oversample      int           `env:"NEGATIVE_OVERSAMPLE" envDefault:"2"`
	ShortfallPolicy string        `env:"NEGATIVE_SHORTFALL_POLICY" envDefault:"proceed"`
	CacheEnabled    bool          `env:"LOOKUP_CACHE_ENABLED" envDefault:"false"`
	CacheTTL        time.Duration `env:"LOOKUP_CACHE_TTL" envDefault:"168h"`
	Seed            uint64        `env:"NEGATIVE_SEED" envDefault:"42"`
}

// RedisEnvConfig configures Redis connection.
type RedisEnvConfig struct {
	RedisHost     string `env:"REDIS_HOST" envDefault:"127.0.0.1"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisUsername string `env:"REDIS_USERNAME" envDefault:""`
}

// ServerEnvConfig configures the report server.
type ServerEnvConfig struct {
	Address       string `env:"SERVER_ADDRESS" envDefault:"127.0.0.1"`
	Port          int    `env:"SERVER_PORT" envDefault:"8080"`
	BodySizeLimit int    `env:"SERVER_BODY_LIMIT" envDefault:"1048576"`
}

// ExecutionEnvConfig configures how much hardware parallelism a stage may use.
type ExecutionEnvConfig struct {
	Workers int `env:"WORKERS" envDefault:"0"`
}

// IsDev reports whether the configured environment is a development one.
func (c *AppConfig) IsDev() bool {
	switch strings.ToLower(c.Environment) {
	case "dev", "test":
		return true
	}
	return false
}
