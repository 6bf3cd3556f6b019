package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pagepilot/pagectl/internal/config"
	"github.com/pagepilot/pagectl/internal/director"
	"github.com/pagepilot/pagectl/internal/dispatch"
	"github.com/pagepilot/pagectl/internal/logging"
	"github.com/pagepilot/pagectl/internal/ops"
)

func main() {
	configPath := flag.String("config", "cmd/directorctl/config.toml", "path to director config")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "directorctl: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := loadServiceConfig(configPath)
	if err != nil {
		return err
	}
	if key := strings.TrimSpace(os.Getenv(config.EnvAPIKey)); key != "" {
		cfg.Director.Secret = key
	}
	logging.ConfigureWith(logging.Config{
		Level:     zerolog.InfoLevel,
		Timestamp: true,
		FilePath:  cfg.LogFile,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d := dispatch.New()
	// The automation/decision logic is an external collaborator; the stock
	// binary just makes inbound traffic visible.
	d.Subscribe(func(msg map[string]any, connID string) {
		log.Info().Str("conn", connID).Interface("frame", msg).Msg("controller frame")
	})
	d.OnConnect(func(connID string) {
		log.Info().Str("conn", connID).Msg("session active")
	})
	d.OnDisconnect(func(connID string) {
		log.Info().Str("conn", connID).Msg("session ended")
	})

	srv, err := director.NewServer(cfg.Director, d)
	if err != nil {
		return err
	}
	if err := srv.Listen(); err != nil {
		return err
	}

	if addr := strings.TrimSpace(cfg.OpsAddr); addr != "" {
		started := time.Now()
		opsSrv := ops.New(cfg.Director.Name, addr, cfg.CorsOrigins, func() any {
			return srv.Status(started)
		})
		go func() {
			if err := opsSrv.Run(ctx); err != nil {
				log.Error().Err(err).Msg("ops endpoint failed")
			}
		}()
	}

	return srv.Serve(ctx)
}
