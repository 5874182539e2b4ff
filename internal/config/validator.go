package config

import (
	"fmt"

	"github.com/standardbeagle/rls-core/internal/rlserrors"
)

// Validator validates a Config and fills in values this package leaves to
// implementation discretion. Grounded on the original Validator's
// validate-then-smart-default two-pass shape (validator.go), generalized
// from lci's index/performance/search sections to RLS's flat key set.
type Validator struct{}

func NewValidator() *Validator { return &Validator{} }

// ValidateAndNormalize checks cfg for out-of-range values, gates
// unstable_features by channel, and fills in values left unset by a partial
// .rls.kdl overlay.
func (v *Validator) ValidateAndNormalize(cfg *Config, channel ReleaseChannel) error {
	if cfg.WaitToBuildMs < 0 {
		return rlserrors.NewConfigError("wait_to_build", fmt.Errorf("must not be negative, got %d", cfg.WaitToBuildMs))
	}
	if cfg.Jobs < 0 {
		return rlserrors.NewConfigError("jobs", fmt.Errorf("must not be negative, got %d", cfg.Jobs))
	}
	switch cfg.ClippyPreference {
	case "", ClippyOff, ClippyOptIn, ClippyOn:
	default:
		return rlserrors.NewConfigError("clippy_preference", fmt.Errorf("must be off/opt-in/on, got %q", cfg.ClippyPreference))
	}
	if cfg.ClippyPreference == "" {
		cfg.ClippyPreference = ClippyOff
	}

	Normalize(cfg, channel)

	if cfg.WaitToBuildMs == 0 {
		cfg.WaitToBuildMs = 1500
	}
	return nil
}
