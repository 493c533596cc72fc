// Command registry runs the agent registry: an HTTP service where agents
// register their cards and send heartbeats, with a background monitor that
// marks silent agents stale and later removes them.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/kbukum/agentmesh/auth"
	"github.com/kbukum/agentmesh/bootstrap"
	"github.com/kbukum/agentmesh/config"
	"github.com/kbukum/agentmesh/logger"
	"github.com/kbukum/agentmesh/observability"
	"github.com/kbukum/agentmesh/registry"
	"github.com/kbukum/agentmesh/server"
	"github.com/kbukum/agentmesh/server/middleware"
	"github.com/kbukum/agentmesh/sse"
)

func main() {
	configFile := flag.String("config", "", "path to config.yml")
	envFile := flag.String("env", "", "path to .env")
	flag.Parse()

	var opts []config.LoaderOption
	if *configFile != "" {
		opts = append(opts, config.WithConfigFile(*configFile))
	}
	if *envFile != "" {
		opts = append(opts, config.WithEnvFile(*envFile))
	}

	cfg, err := loadConfig(opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	app, err := bootstrap.NewApp(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	app.OnConfigure(configure)

	if err := app.Run(context.Background()); err != nil {
		app.Logger.Fatal("registry exited", logger.ErrorFields("run", err))
	}
}

// configure builds the registry and registers its components in start order:
// telemetry, the event hub, the monitor, then the HTTP server.
func configure(_ context.Context, app *bootstrap.App[*Config]) error {
	cfg := app.Cfg
	log := app.Logger

	obs := observability.NewComponent(cfg.Observability, observability.Resource{
		ServiceName:    cfg.Name,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Environment,
	}, log)
	if err := app.RegisterComponent(obs); err != nil {
		return err
	}
	metrics, err := observability.NewMetrics(observability.Meter(cfg.Name))
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	hub := sse.NewHub(log)
	if err := app.RegisterComponent(sse.NewComponent(hub)); err != nil {
		return err
	}
	// Open streams would otherwise hold the server's graceful shutdown.
	app.OnStop(func(context.Context) error {
		hub.Stop()
		return nil
	})

	store := registry.NewStore(registry.WithLogger(log), registry.WithMetrics(metrics), registry.WithEvents(hub))
	monitor := registry.NewMonitor(store, cfg.Registry, log)
	if err := app.RegisterComponent(monitor); err != nil {
		return err
	}

	var (
		reg  registry.Registry = store
		opts = []registry.HandlerOption{registry.WithEventStream(hub)}
	)
	if cfg.Auth.Enabled {
		validator, err := auth.NewValidator(&cfg.Auth)
		if err != nil {
			return fmt.Errorf("token validator: %w", err)
		}
		gate := registry.NewGate(store, validator, registry.Policy{
			RequiredScope: cfg.Auth.RequiredScope,
			GateReads:     cfg.Auth.GateReads,
		}, registry.WithGateLogger(log), registry.WithGateMetrics(metrics))
		reg = gate
		opts = append(opts, registry.WithIdentifier(gate))
		log.Info("Authentication enabled", logger.Fields(
			"auth", cfg.Auth.Describe(), "validator", validator.Describe(),
		))
	} else {
		log.Warn("Authentication disabled; registry mutations are open")
	}

	srv := server.New(cfg.Server, log)
	srv.ApplyMiddleware(metrics)
	srv.Use(middleware.RequireHTTPS(cfg.Auth.Enabled && cfg.Auth.RequireHTTPS))
	registry.NewHandler(cfg.Name, reg, opts...).RegisterRoutes(srv.GinEngine())
	srv.RegisterProbes(cfg.Name, app.Components.HealthAll)

	log.Info("Registry configured", logger.Fields(
		"heartbeat_interval", cfg.Registry.HeartbeatInterval,
		"stale_threshold", cfg.Registry.StaleThreshold,
		"removal_threshold", cfg.Registry.RemovalThreshold,
	))
	return app.RegisterComponent(server.NewComponent(srv))
}
