package session

import (
	"math"
	"math/rand"
	"time"
)

// NextDelay returns the retry delay for attempt N (1-based): BaseDelay for
// the first attempt, multiplied per attempt after that and capped at
// MaxDelay. A successful connect resets the caller's attempt counter, which
// restarts the sequence at BaseDelay.
func NextDelay(cfg BackoffConfig, attempt int, rng *rand.Rand) time.Duration {
	if cfg.BaseDelay <= 0 {
		return 0
	}
	if attempt <= 1 {
		return cfg.BaseDelay
	}
	if cfg.Multiplier < 1.0 {
		cfg.Multiplier = 1.0
	}
	delay := float64(cfg.BaseDelay) * math.Pow(cfg.Multiplier, float64(attempt-1))
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	if cfg.Jitter {
		f := 0.5
		if rng != nil {
			f = 0.5 + rng.Float64()
		}
		delay = delay * f
	}
	return time.Duration(delay)
}
