package scoring

import (
	"fmt"
	"math"
	"time"

	"github.com/soundprediction/ontoscore/pkg/types"
)

// Config carries the tunable parts of the scoring engine: component
// weights, normalization curves, and the issuance lookback window.
type Config struct {
	// Weights maps each component to its share of the total score.
	// They must sum to 1.0.
	Weights map[types.ComponentName]float64

	// Curves maps curve keys to normalization breakpoints.
	Curves map[string]Curve

	// WarningThreshold is the normalized factor score above which a
	// human-readable warning is emitted.
	WarningThreshold float64

	// IssuanceWindow is the trailing window for counting convertible
	// bond issuances.
	IssuanceWindow time.Duration
}

// DefaultConfig returns the shipped weights and curves.
func DefaultConfig() *Config {
	return &Config{
		Weights: map[types.ComponentName]float64{
			types.ComponentInformationAsymmetry: 0.25,
			types.ComponentPowerConcentration:   0.25,
			types.ComponentTransactionPattern:   0.20,
			types.ComponentFundRisk:             0.15,
			types.ComponentNetworkRisk:          0.15,
		},
		Curves:           DefaultCurves(),
		WarningThreshold: 0.7,
		IssuanceWindow:   365 * 24 * time.Hour,
	}
}

// Validate checks weights and curves. Weights must cover every component
// and sum to 1.0 within a small tolerance.
func (c *Config) Validate() error {
	sum := 0.0
	for _, name := range types.ComponentOrder {
		w, ok := c.Weights[name]
		if !ok {
			return fmt.Errorf("missing weight for component %q", name)
		}
		if w < 0 || w > 1 {
			return fmt.Errorf("weight for component %q outside [0,1]: %v", name, w)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("component weights sum to %v, want 1.0", sum)
	}
	for key, curve := range c.Curves {
		if err := curve.Validate(); err != nil {
			return fmt.Errorf("curve %q: %w", key, err)
		}
	}
	if c.WarningThreshold < 0 || c.WarningThreshold > 1 {
		return fmt.Errorf("warning threshold outside [0,1]: %v", c.WarningThreshold)
	}
	if c.IssuanceWindow <= 0 {
		return fmt.Errorf("issuance window must be positive")
	}
	return nil
}

func (c *Config) curve(key string) Curve {
	if curve, ok := c.Curves[key]; ok {
		return curve
	}
	return Curve{{0, 0}, {1, 1}}
}
