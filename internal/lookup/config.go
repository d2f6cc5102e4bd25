package lookup

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-envconfig"

	"github.com/tensorplex-labs/molgan/internal/config"
)

// ClientConfig configures the PubChem client.
type ClientConfig struct {
	BaseURL   string        `env:"PUBCHEM_URL, default=https://pubchem.ncbi.nlm.nih.gov/rest/pug"`
	Timeout   time.Duration `env:"LOOKUP_TIMEOUT, default=30s"`
	Retries   int           `env:"LOOKUP_RETRIES, default=3"`
	RetryWait time.Duration `env:"LOOKUP_RETRY_WAIT, default=500ms"`
}

// LoadClientConfig reads ClientConfig from the process environment.
func LoadClientConfig(ctx context.Context) (*ClientConfig, error) {
	var cfg ClientConfig
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("process lookup env: %w", err)
	}
	log.Debug().Str("base_url", cfg.BaseURL).Dur("timeout", cfg.Timeout).Int("retries", cfg.Retries).Msg("lookup client config loaded")
	return &cfg, nil
}

// PoolOptionsFrom derives negative pool options from the application config.
func PoolOptionsFrom(cfg config.LookupEnvConfig) (PoolOptions, error) {
	policy, err := config.ParseShortfallPolicy(cfg.ShortfallPolicy)
	if err != nil {
		return PoolOptions{}, err
	}
	return PoolOptions{
		Want:       cfg.NegativeCount,
		CIDMin:     cfg.CIDMin,
		CIDMax:     cfg.CIDMax,
		Oversample: cfg.Oversample,
		Policy:     policy,
	}, nil
}
