package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/pagepilot/pagectl/internal/pilot"
)

// pilotctl config.toml key mapping onto pilot runtime settings.
type fileConfig struct {
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

type serviceConfig struct {
	Pilot       pilot.Config
	OpsAddr     string
	CorsOrigins []string
	LogFile     string
}

func defaultServiceConfig() serviceConfig {
	cfg := serviceConfig{}
	cfg.Pilot.Name = "pilot"
	return cfg
}

func loadServiceConfig(path string) (serviceConfig, error) {
	cfg := defaultServiceConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return serviceConfig{}, fmt.Errorf("load pilot config: %w", err)
	}

	if meta.IsDefined("name") {
		if name := strings.TrimSpace(raw.Name); name != "" {
			cfg.Pilot.Name = name
		}
	}
	if meta.IsDefined("address") {
		cfg.Pilot.Address = strings.TrimSpace(raw.Address)
	}
	if meta.IsDefined("api_key") {
		cfg.Pilot.APIKey = raw.APIKey
	}
	if meta.IsDefined("base_delay_ms") {
		cfg.Pilot.Session.Backoff.BaseDelay = time.Duration(raw.BaseDelayMS) * time.Millisecond
	}
	if meta.IsDefined("max_delay_ms") {
		cfg.Pilot.Session.Backoff.MaxDelay = time.Duration(raw.MaxDelayMS) * time.Millisecond
	}
	if meta.IsDefined("jitter") {
		cfg.Pilot.Session.Backoff.Jitter = raw.Jitter
	}
	if meta.IsDefined("max_buffer_bytes") {
		cfg.Pilot.Session.MaxBufferBytes = raw.MaxBufferBytes
	}
	if meta.IsDefined("ops_addr") {
		cfg.OpsAddr = strings.TrimSpace(raw.OpsAddr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = raw.CorsOrigins
	}
	if meta.IsDefined("log_file") {
		cfg.LogFile = strings.TrimSpace(raw.LogFile)
	}

	return cfg, nil
}
