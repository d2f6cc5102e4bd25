package gan

import (
	"fmt"

	"github.com/tensorplex-labs/molgan/internal/config"
)

// Config holds the network shapes and optimisation settings for one run.
type Config struct {
	NumBits             int
	NoiseDim            int
	GeneratorHidden     []int
	DiscriminatorHidden []int
	Epochs              int
	BatchSize           int
	LearningRate        float64
	Beta1               float64
	Beta2               float64
	Epsilon             float64
	LeakySlope          float64
	Samples             int
	Threshold           float64
	NonFinite           config.NonFinitePolicy
	LogEvery            int
}

func DefaultConfig(numBits int) Config {
	return Config{
		NumBits:             numBits,
		NoiseDim:            100,
		GeneratorHidden:     []int{512, 1024},
		DiscriminatorHidden: []int{1024, 512},
		Epochs:              200,
		BatchSize:           32,
		LearningRate:        2e-4,
		Beta1:               0.9,
		Beta2:               0.999,
		Epsilon:             1e-8,
		LeakySlope:          0.2,
		Samples:             10,
		Threshold:           0.5,
		NonFinite:           config.NonFiniteAbort,
		LogEvery:            10,
	}
}

// ConfigFromEnv maps the environment section onto a Config for numBits-wide
// fingerprints.
func ConfigFromEnv(env config.GANEnvConfig, numBits int) (Config, error) {
	policy, err := config.ParseNonFinitePolicy(env.NonFinitePolicy)
	if err != nil {
		return Config{}, err
	}
	cfg := DefaultConfig(numBits)
	cfg.NoiseDim = env.NoiseDim
	cfg.GeneratorHidden = env.GeneratorHidden
	cfg.DiscriminatorHidden = env.DiscrimHidden
	cfg.Epochs = env.Epochs
	cfg.BatchSize = env.BatchSize
	cfg.LearningRate = env.LearningRate
	cfg.Beta1 = env.Beta1
	cfg.Beta2 = env.Beta2
	cfg.LeakySlope = env.LeakySlope
	cfg.Samples = env.Samples
	cfg.Threshold = env.Threshold
	cfg.NonFinite = policy
	cfg.LogEvery = env.LogEvery
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch {
	case c.NumBits <= 0:
		return fmt.Errorf("fingerprint length must be positive, got %d", c.NumBits)
	case c.NoiseDim <= 0:
		return fmt.Errorf("noise dimension must be positive, got %d", c.NoiseDim)
	case c.Epochs < 0:
		return fmt.Errorf("epochs must not be negative, got %d", c.Epochs)
	case c.BatchSize <= 0:
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	case c.LearningRate <= 0:
		return fmt.Errorf("learning rate must be positive, got %v", c.LearningRate)
	case c.Samples < 0:
		return fmt.Errorf("sample count must not be negative, got %d", c.Samples)
	}
	return nil
}

func (c Config) generatorSizes() []int {
	sizes := append([]int{c.NoiseDim}, c.GeneratorHidden...)
	return append(sizes, c.NumBits)
}

func (c Config) discriminatorSizes() []int {
	sizes := append([]int{c.NumBits}, c.DiscriminatorHidden...)
	return append(sizes, 1)
}
