package session

import "time"

// BackoffConfig defines reconnect backoff behavior.
type BackoffConfig struct {
	BaseDelay  time.Duration
	Multiplier float64
	MaxDelay   time.Duration
	Jitter     bool
}

// Config defines transport defaults shared by pilot and director.
type Config struct {
	ConnectTimeout time.Duration
	MaxBufferBytes int
	Backoff        BackoffConfig
}

// DefaultBackoff doubles from two seconds up to a ten second cap, with no
// jitter so the retry timing stays observable and deterministic.
func DefaultBackoff() BackoffConfig {
	return BackoffConfig{
		BaseDelay:  2000 * time.Millisecond,
		Multiplier: 2.0,
		MaxDelay:   10000 * time.Millisecond,
		Jitter:     false,
	}
}

// DefaultConfig returns contract-aligned transport defaults.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout: 5 * time.Second,
		MaxBufferBytes: 1 << 20,
		Backoff:        DefaultBackoff(),
	}
}

// WithDefaults fills zero-valued fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.MaxBufferBytes <= 0 {
		c.MaxBufferBytes = def.MaxBufferBytes
	}
	if c.Backoff.BaseDelay <= 0 {
		c.Backoff.BaseDelay = def.Backoff.BaseDelay
	}
	if c.Backoff.Multiplier < 1.0 {
		c.Backoff.Multiplier = def.Backoff.Multiplier
	}
	if c.Backoff.MaxDelay <= 0 {
		c.Backoff.MaxDelay = def.Backoff.MaxDelay
	}
	return c
}
