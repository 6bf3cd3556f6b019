// Package config loads and validates the TOML configuration for both
// binaries. Files are read once at process start; there is no hot reload.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// EnvAPIKey overrides the shared secret from the environment so it can be
// kept out of config files.
const EnvAPIKey = "PAGECTL_API_KEY"

// DirectorConfig configures the decision-service side.
type DirectorConfig struct {
	Name           string   `toml:"name"`
	Listen         string   `toml:"listen"`
	APIKey         string   `toml:"api_key"`
	Policy         string   `toml:"policy"`
	MaxBufferBytes int      `toml:"max_buffer_bytes"`
	OpsAddr        string   `toml:"ops_addr"`
	CorsOrigins    []string `toml:"cors_origins"`
	LogFile        string   `toml:"log_file"`
}

// PilotConfig configures the controller side.
type PilotConfig struct {
	Name           string   `toml:"name"`
	Address        string   `toml:"address"`
	APIKey         string   `toml:"api_key"`
	BaseDelayMS    int64    `toml:"base_delay_ms"`
	MaxDelayMS     int64    `toml:"max_delay_ms"`
	Jitter         bool     `toml:"jitter"`
	MaxBufferBytes int      `toml:"max_buffer_bytes"`
	OpsAddr        string   `toml:"ops_addr"`
	CorsOrigins    []string `toml:"cors_origins"`
	LogFile        string   `toml:"log_file"`
}

func LoadDirectorConfig(path string) (DirectorConfig, error) {
	var cfg DirectorConfig
	if err := loadToml(path, &cfg); err != nil {
		return DirectorConfig{}, err
	}
	if cfg.Name == "" {
		cfg.Name = "director"
	}
	if cfg.Listen == "" {
		cfg.Listen = ":7860"
	}
	if cfg.Policy == "" {
		cfg.Policy = "replace"
	}
	if key := strings.TrimSpace(os.Getenv(EnvAPIKey)); key != "" {
		cfg.APIKey = key
	}
	if err := ValidateDirectorConfig(cfg); err != nil {
		return DirectorConfig{}, err
	}
	return cfg, nil
}

func LoadPilotConfig(path string) (PilotConfig, error) {
	var cfg PilotConfig
	if err := loadToml(path, &cfg); err != nil {
		return PilotConfig{}, err
	}
	if cfg.Name == "" {
		cfg.Name = "pilot"
	}
	if cfg.BaseDelayMS <= 0 {
		cfg.BaseDelayMS = 2000
	}
	if cfg.MaxDelayMS <= 0 {
		cfg.MaxDelayMS = 10000
	}
	if key := strings.TrimSpace(os.Getenv(EnvAPIKey)); key != "" {
		cfg.APIKey = key
	}
	if err := ValidatePilotConfig(cfg); err != nil {
		return PilotConfig{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateDirectorConfig(cfg DirectorConfig) error {
	if strings.TrimSpace(cfg.Listen) == "" {
		return fmt.Errorf("director config missing listen")
	}
	if cfg.APIKey == "" {
		return fmt.Errorf("director config missing api_key (set it or %s)", EnvAPIKey)
	}
	switch strings.TrimSpace(cfg.Policy) {
	case "replace", "reject":
	default:
		return fmt.Errorf("director config policy must be replace or reject, got %q", cfg.Policy)
	}
	if cfg.MaxBufferBytes < 0 {
		return fmt.Errorf("director config max_buffer_bytes must not be negative")
	}
	return nil
}

func ValidatePilotConfig(cfg PilotConfig) error {
	if strings.TrimSpace(cfg.Address) == "" {
		return fmt.Errorf("pilot config missing address")
	}
	if cfg.APIKey == "" {
		return fmt.Errorf("pilot config missing api_key (set it or %s)", EnvAPIKey)
	}
	if cfg.MaxDelayMS < cfg.BaseDelayMS {
		return fmt.Errorf("pilot config max_delay_ms below base_delay_ms")
	}
	return nil
}

// BaseDelay returns the configured initial backoff.
func (c PilotConfig) BaseDelay() time.Duration {
	return time.Duration(c.BaseDelayMS) * time.Millisecond
}

// MaxDelay returns the configured backoff cap.
func (c PilotConfig) MaxDelay() time.Duration {
	return time.Duration(c.MaxDelayMS) * time.Millisecond
}
