package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// NonFinitePolicy decides what the trainer does when a loss becomes NaN or Inf.
type NonFinitePolicy string

const (
	NonFiniteAbort NonFinitePolicy = "abort"
	NonFiniteSkip  NonFinitePolicy = "skip"
)

// ShortfallPolicy decides what happens when fewer negatives resolve than requested.
type ShortfallPolicy string

const (
	ShortfallProceed ShortfallPolicy = "proceed"
	ShortfallFail    ShortfallPolicy = "fail"
)

func ParseNonFinitePolicy(s string) (NonFinitePolicy, error) {
	switch p := NonFinitePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case NonFiniteAbort, NonFiniteSkip:
		return p, nil
	}
	return "", fmt.Errorf("unknown non-finite loss policy %q (want abort or skip)", s)
}

func ParseShortfallPolicy(s string) (ShortfallPolicy, error) {
	switch p := ShortfallPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case ShortfallProceed, ShortfallFail:
		return p, nil
	}
	return "", fmt.Errorf("unknown negative shortfall policy %q (want proceed or fail)", s)
}

// ExecutionContext is handed to every stage that does heavy numeric work.
// It replaces any notion of an ambient device selection.
type ExecutionContext struct {
	Workers int
}

func NewExecutionContext(cfg ExecutionEnvConfig) ExecutionContext {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return ExecutionContext{Workers: workers}
}

// ResolveSeed returns seed unchanged unless it is zero, in which case a
// time-derived seed is returned and runs are no longer reproducible.
func ResolveSeed(seed uint64) uint64 {
	if seed != 0 {
		return seed
	}
	return uint64(time.Now().UnixNano())
}

func (c *AppConfig) Validate() error {
	if c.NumBits <= 0 {
		return fmt.Errorf("FP_BITS must be positive, got %d", c.NumBits)
	}
	if c.Radius < 0 {
		return fmt.Errorf("FP_RADIUS must not be negative, got %d", c.Radius)
	}
	if c.NoiseDim <= 0 || c.BatchSize <= 0 || c.Epochs < 0 {
		return fmt.Errorf("invalid GAN shape: noise=%d batch=%d epochs=%d", c.NoiseDim, c.BatchSize, c.Epochs)
	}
	if c.TestFraction <= 0 || c.TestFraction >= 1 {
		return fmt.Errorf("RF_TEST_FRACTION must be in (0,1), got %f", c.TestFraction)
	}
	if c.CIDMax <= c.CIDMin {
		return fmt.Errorf("NEGATIVE_CID_MAX (%d) must exceed NEGATIVE_CID_MIN (%d)", c.CIDMax, c.CIDMin)
	}
	if _, err := ParseNonFinitePolicy(c.NonFinitePolicy); err != nil {
		return err
	}
	if _, err := ParseShortfallPolicy(c.ShortfallPolicy); err != nil {
		return err
	}
	return nil
}
