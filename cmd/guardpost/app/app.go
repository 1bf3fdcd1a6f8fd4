/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package app wires the guardpost components together and runs them until shutdown.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"

	"github.com/carverauto/guardpost/pkg/api"
	"github.com/carverauto/guardpost/pkg/auth"
	"github.com/carverauto/guardpost/pkg/clock"
	"github.com/carverauto/guardpost/pkg/config"
	"github.com/carverauto/guardpost/pkg/db"
	"github.com/carverauto/guardpost/pkg/dispatch"
	"github.com/carverauto/guardpost/pkg/fleet"
	"github.com/carverauto/guardpost/pkg/gateway"
	"github.com/carverauto/guardpost/pkg/identity"
	"github.com/carverauto/guardpost/pkg/inventory"
	"github.com/carverauto/guardpost/pkg/lifecycle"
	"github.com/carverauto/guardpost/pkg/logger"
	"github.com/carverauto/guardpost/pkg/metrics"
	"github.com/carverauto/guardpost/pkg/models"
	"github.com/carverauto/guardpost/pkg/natsutil"
	"github.com/carverauto/guardpost/pkg/presence"
	"github.com/carverauto/guardpost/pkg/reconcile"
	"github.com/carverauto/guardpost/pkg/version"
)

const (
	initialLoadTimeout = time.Minute
	flushTimeout       = 5 * time.Second
)

// Options contains runtime configuration derived from CLI flags.
type Options struct {
	ConfigPath string
	DotenvPath string
}

// Run loads configuration, builds every component and blocks until SIGINT/SIGTERM.
func Run(ctx context.Context, opts Options) error {
	if ctx == nil {
		ctx = context.Background()
	}

	bootLogger, err := logger.New(logger.DefaultConfig())
	if err != nil {
		return err
	}

	var cfg models.Config
	if err := config.NewConfig(bootLogger).WithDotenv(opts.DotenvPath).LoadAndValidate(ctx, opts.ConfigPath, &cfg); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if _, err := lifecycle.InitializeLogger(cfg.Logging); err != nil {
		return err
	}

	mainLogger, err := lifecycle.CreateComponentLogger("guardpost", cfg.Logging)
	if err != nil {
		return err
	}

	ctx, stop := lifecycle.SignalContext(ctx)
	defer stop()

	return run(ctx, &cfg, mainLogger)
}

func run(ctx context.Context, cfg *models.Config, log logger.Logger) error {
	clk := clock.Real()

	source, err := inventory.NewSheetsSource(ctx, &cfg.Inventory, logger.Component(log, "inventory"))
	if err != nil {
		return err
	}

	cache := identity.NewCache(source, logger.Component(log, "identity"))

	writer, closeDB, err := openMetricsStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeDB()

	recorder := metrics.NewRecorder(writer, &cfg.Metrics, clk, logger.Component(log, "metrics"))
	retention := metrics.NewRetention(writer, &cfg.Metrics, clk, logger.Component(log, "retention"))

	events, nc, err := openEventPublisher(ctx, cfg, log)
	if err != nil {
		return err
	}

	if nc != nil {
		defer nc.Close()
	}

	tracker := presence.NewTracker(cfg.Presence.BatteryDelta, logger.Component(log, "presence"))

	fleetSvc := fleet.NewService(cache, tracker, recorder, logger.Component(log, "fleet"),
		fleet.WithClock(clk),
		fleet.WithLowBatteryThreshold(cfg.Presence.LowBatteryThreshold),
	)

	alarms := dispatch.AlarmRecorders{recorder}
	if events != nil {
		alarms = append(alarms, events)
	}

	dispatcher := dispatch.NewDispatcher(fleetSvc, alarms, logger.Component(log, "dispatch"),
		dispatch.WithClock(clk),
		dispatch.WithTimeout(time.Duration(cfg.Commands.Timeout)),
		dispatch.WithMaintenanceWindow(time.Duration(cfg.Commands.MaintenanceMaxAhead)),
	)

	verifier := auth.NewVerifier(cfg.Auth.JWTSecret)

	hub := gateway.NewHub(ctx, fleetSvc, dispatcher, verifier, cfg.AllowedOrigins, logger.Component(log, "gateway"))
	defer hub.Close()

	tracker.Subscribe(hub)
	tracker.Subscribe(recorder)

	notifiers := []reconcile.Notifier{hub}

	if events != nil {
		tracker.Subscribe(events)
		notifiers = append(notifiers, events)
	}

	loop := reconcile.NewLoop(source, cache, fleetSvc, clk, time.Duration(cfg.Inventory.PollInterval),
		logger.Component(log, "reconcile"), notifiers...)

	loadCtx, cancel := context.WithTimeout(ctx, initialLoadTimeout)
	err = loop.Load(loadCtx)

	cancel()

	if err != nil {
		return fmt.Errorf("initial inventory load: %w", err)
	}

	sweeper := presence.NewSweeper(tracker, clk, logger.Component(log, "sweeper"),
		time.Duration(cfg.Presence.SweepInterval), time.Duration(cfg.Presence.OfflineAfter))

	server := api.NewServer(verifier, logger.Component(log, "api"),
		api.WithDevices(fleetSvc),
		api.WithReloader(loop),
		api.WithSockets(hub),
		api.WithIdentities(cache),
		api.WithAllowedOrigins(cfg.AllowedOrigins),
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		loop.Start(gctx)
		return nil
	})

	g.Go(func() error {
		sweeper.Start(gctx)
		return nil
	})

	g.Go(func() error { return recorder.Run(gctx) })
	g.Go(func() error { return retention.Run(gctx) })
	g.Go(func() error { return server.Serve(gctx, cfg.ListenAddr) })

	log.Info().
		Str("listen_addr", cfg.ListenAddr).
		Str("version", version.GetFullVersion()).
		Msg("Guardpost started")

	err = g.Wait()

	if events != nil {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
		if flushErr := events.Flush(flushCtx); flushErr != nil {
			log.Warn().Err(flushErr).Msg("Event publisher did not flush before shutdown")
		}

		cancel()
	}

	log.Info().Msg("Guardpost stopped")

	return err
}

// openMetricsStore returns the Postgres-backed writer, or a no-op writer when no database is
// configured.
func openMetricsStore(ctx context.Context, cfg *models.Config, log logger.Logger) (metrics.Writer, func(), error) {
	if cfg.Metrics.Database == nil {
		log.Info().Msg("No metrics database configured, metrics are discarded")
		return metrics.NopWriter{}, func() {}, nil
	}

	dbLogger := logger.Component(log, "db")

	pool, err := db.NewPool(ctx, cfg.Metrics.Database, dbLogger)
	if err != nil {
		return nil, nil, err
	}

	if err := db.RunMigrations(ctx, pool, dbLogger); err != nil {
		pool.Close()
		return nil, nil, err
	}

	return db.NewStore(pool, dbLogger), pool.Close, nil
}

// openEventPublisher connects to NATS when a URL is configured.
func openEventPublisher(ctx context.Context, cfg *models.Config, log logger.Logger) (*natsutil.EventPublisher, *nats.Conn, error) {
	if cfg.NATS.URL == "" {
		return nil, nil, nil
	}

	return natsutil.ConnectWithEventPublisher(ctx, &cfg.NATS, logger.Component(log, "events"))
}
