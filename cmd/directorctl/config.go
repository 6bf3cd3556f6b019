package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/pagepilot/pagectl/internal/director"
)

// directorctl config.toml key mapping onto director runtime settings.
type fileConfig struct {
	Name           string   `toml:"name"`
	Listen         string   `toml:"listen"`
	APIKey         string   `toml:"api_key"`
	Policy         string   `toml:"policy"`
	MaxBufferBytes int      `toml:"max_buffer_bytes"`
	OpsAddr        string   `toml:"ops_addr"`
	CorsOrigins    []string `toml:"cors_origins"`
	LogFile        string   `toml:"log_file"`
}

type serviceConfig struct {
	Director    director.Config
	OpsAddr     string
	CorsOrigins []string
	LogFile     string
}

func defaultServiceConfig() serviceConfig {
	return serviceConfig{
		Director: director.Config{
			Name:   "director",
			Listen: ":7860",
			Policy: director.PolicyReplace,
		},
	}
}

func loadServiceConfig(path string) (serviceConfig, error) {
	cfg := defaultServiceConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return serviceConfig{}, fmt.Errorf("load director config: %w", err)
	}

	if meta.IsDefined("name") {
		if name := strings.TrimSpace(raw.Name); name != "" {
			cfg.Director.Name = name
		}
	}
	if meta.IsDefined("listen") {
		cfg.Director.Listen = strings.TrimSpace(raw.Listen)
	}
	if meta.IsDefined("api_key") {
		cfg.Director.Secret = raw.APIKey
	}
	if meta.IsDefined("policy") {
		cfg.Director.Policy = director.Policy(strings.TrimSpace(raw.Policy))
	}
	if meta.IsDefined("max_buffer_bytes") {
		cfg.Director.MaxBufferBytes = raw.MaxBufferBytes
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
