package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bantay-ai/bantay/internal/auth"
	"github.com/bantay-ai/bantay/internal/classifier"
	"github.com/bantay-ai/bantay/internal/events"
	"github.com/bantay-ai/bantay/internal/modelmetrics"
	"github.com/bantay-ai/bantay/internal/redact"
	"github.com/bantay-ai/bantay/internal/server"
	"github.com/bantay-ai/bantay/internal/telemetry"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the classification HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (overrides config)")
	return cmd
}

func (a *app) serve(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := a.cfg

	tel, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:  cfg.Telemetry.Enabled,
		Endpoint: cfg.Telemetry.Endpoint,
		Protocol: cfg.Telemetry.Protocol,
		Service:  "bantay",
		Version:  version,
	})
	if err != nil {
		return err
	}

	engine := a.loadEngine()
	defer engine.Close()
	if cfg.Model.Warmup && engine.Ready() {
		if d, err := engine.Warmup(ctx); err != nil {
			redact.Logf("bantay: warmup failed: %v", err)
		} else {
			redact.Logf("bantay: warmup took %s", d)
		}
	}

	sinks, err := events.BuildSinks(cfg.Events.Sinks)
	if err != nil {
		return err
	}
	emitter := events.NewEmitter(events.EmitterConfig{
		QueueSize:       cfg.Events.QueueSize,
		Workers:         cfg.Events.Workers,
		ShutdownTimeout: 5 * time.Second,
	}, sinks)

	authz, err := auth.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if !authz.Enabled() {
		redact.Logf("bantay: auth.api_keys empty; the API is open to any caller on %s", cfg.Server.Addr)
	}

	srv := server.New(cfg, authz, server.Deps{
		Pipeline:  classifier.NewPipeline(engine),
		Metrics:   modelmetrics.LoadOrDefault(cfg.Model.MetricsPath),
		Emitter:   emitter,
		Telemetry: tel,
	})

	runErr := srv.Run(ctx, cfg.Server.Addr)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	emitter.Close(shutdownCtx)
	tel.Shutdown(shutdownCtx)
	return runErr
}
