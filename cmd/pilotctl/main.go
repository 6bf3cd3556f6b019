package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pagepilot/pagectl/internal/config"
	"github.com/pagepilot/pagectl/internal/dispatch"
	"github.com/pagepilot/pagectl/internal/logging"
	"github.com/pagepilot/pagectl/internal/ops"
	"github.com/pagepilot/pagectl/internal/pilot"
	"github.com/pagepilot/pagectl/internal/protocol"
)

func main() {
	configPath := flag.String("config", "cmd/pilotctl/config.toml", "path to pilot config")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "pilotctl: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := loadServiceConfig(configPath)
	if err != nil {
		return err
	}
	if key := strings.TrimSpace(os.Getenv(config.EnvAPIKey)); key != "" {
		cfg.Pilot.APIKey = key
	}
	logging.ConfigureWith(logging.Config{
		Level:     zerolog.InfoLevel,
		Timestamp: true,
		FilePath:  cfg.LogFile,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d := dispatch.New()
	// The browser-driving logic is an external collaborator; the stock
	// binary just logs each instruction as it arrives.
	d.Subscribe(func(msg map[string]any, connID string) {
		text, _ := msg[protocol.FieldText].(string)
		_, hasImage := msg[protocol.FieldImage].(string)
		log.Info().Str("conn", connID).Str("text", text).
			Bool("image", hasImage).Msg("director instruction")
	})

	conn, err := pilot.NewConnector(cfg.Pilot, d)
	if err != nil {
		return err
	}

	if addr := strings.TrimSpace(cfg.OpsAddr); addr != "" {
		opsSrv := ops.New(cfg.Pilot.Name, addr, cfg.CorsOrigins, func() any {
			return conn.Status()
		})
		go func() {
			if err := opsSrv.Run(ctx); err != nil {
				log.Error().Err(err).Msg("ops endpoint failed")
			}
		}()
	}

	return conn.Run(ctx)
}
