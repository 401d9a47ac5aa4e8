package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/qelp/esxi-log-triage/internal/config"
	"github.com/qelp/esxi-log-triage/internal/observability"
	"github.com/qelp/esxi-log-triage/internal/registry"
	"github.com/qelp/esxi-log-triage/internal/rules"
	"github.com/qelp/esxi-log-triage/internal/triage"
)

const version = "1.0.0"

const banner = `
  ___  _____ _     ____
 / _ \| ____| |   |  _ \
| | | |  _| | |   | |_) |
| |_| | |___| |___|  __/
 \__\_\_____|_____|_|

 Quick ESXi Log Parser
`

func main() {
	fmt.Fprint(os.Stderr, banner)

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.LogLevel, cfg.LogFile)

	log.Info().
		Str("version", version).
		Str("input_dir", cfg.InputDir).
		Str("output_dir", cfg.OutputDir).
		Msg("Starting ESXi log triage")

	shutdown, err := observability.InitTracer(observability.TracerConfig{
		ServiceName:    "qelp",
		ServiceVersion: version,
		Endpoint:       cfg.TracingEndpoint,
		Protocol:       cfg.TracingProtocol,
		Enabled:        cfg.TracingEnabled,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize tracer")
	} else {
		defer shutdown(context.Background())
	}

	var reg *registry.Store
	if cfg.StateDB != "" {
		reg, err = registry.Open(cfg.StateDB)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open archive registry")
		}
		defer reg.Close()
	}

	start := time.Now()
	pipeline := triage.New(rules.ESXi, cfg.Workers, reg)
	if err := pipeline.Run(context.Background(), cfg.InputDir, cfg.OutputDir); err != nil {
		log.Fatal().Err(err).Msg("Triage run failed")
	}

	log.Info().
		Int("seconds", int(time.Since(start).Seconds())).
		Msg("ESXi triage completed")
}
