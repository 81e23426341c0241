// Copyright 2025 Drivepipe Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package bootstrap wires configuration, storage, collaborators, and the
// engines into a runnable application.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron"

	"github.com/Navneeth-G/TEST-DATA-PIPELINE/internal/engine/config"
	"github.com/Navneeth-G/TEST-DATA-PIPELINE/internal/engine/repo"
	"github.com/Navneeth-G/TEST-DATA-PIPELINE/internal/pkg/continuity"
	"github.com/Navneeth-G/TEST-DATA-PIPELINE/internal/pkg/run"
	"github.com/Navneeth-G/TEST-DATA-PIPELINE/internal/pkg/source"
	"github.com/Navneeth-G/TEST-DATA-PIPELINE/internal/pkg/stage"
	"github.com/Navneeth-G/TEST-DATA-PIPELINE/internal/pkg/target"
	"github.com/Navneeth-G/TEST-DATA-PIPELINE/pkg/database"
	"github.com/Navneeth-G/TEST-DATA-PIPELINE/pkg/log"
	"github.com/Navneeth-G/TEST-DATA-PIPELINE/pkg/metrics"
)

// App is the assembled application: one pipeline's continuity engine and
// phase runner sharing a drive table.
type App struct {
	AppConf       *config.AppConfig
	Logger        *log.Logger
	DriveRepo     repo.IDriveTableRepository
	Engine        *continuity.Engine
	Runner        *run.Runner
	MetricsServer *metrics.Server

	driveMgr database.Manager
	whMgr    database.Manager
}

// NewApp loads configuration from the given file and wires every component.
// The returned cleanup closes connections and flushes logs.
func NewApp(configPath string) (*App, func(), error) {
	appConf := config.NewConf(configPath)
	if appConf == nil {
		return nil, nil, fmt.Errorf("load config %s", configPath)
	}

	if err := log.Init(&appConf.Log); err != nil {
		return nil, nil, fmt.Errorf("init logging: %w", err)
	}
	logger := log.NewLogger()

	driveMgr, err := database.NewManager(appConf.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect drive table database: %w", err)
	}
	whMgr, err := database.NewManager(appConf.Warehouse)
	if err != nil {
		_ = driveMgr.Close()
		return nil, nil, fmt.Errorf("connect warehouse: %w", err)
	}

	var metricsServer *metrics.Server
	var sink *metrics.Sink
	if appConf.Metrics.Enabled {
		metricsServer = metrics.NewServer(appConf.Metrics)
		sink = metricsServer.GetSink()
	}

	pipe := &appConf.Pipeline
	driveRepo := repo.NewDriveTableRepo(database.NewDatabaseAdapter(driveMgr))

	engine, err := continuity.NewEngine(pipe, driveRepo, logger, sink)
	if err != nil {
		_ = driveMgr.Close()
		_ = whMgr.Close()
		return nil, nil, fmt.Errorf("build continuity engine: %w", err)
	}

	sourceClient := source.NewClient(appConf.Source, pipe, logger)
	stageStore, err := stage.NewStore(appConf.Stage, pipe, sourceClient, logger)
	if err != nil {
		_ = driveMgr.Close()
		_ = whMgr.Close()
		return nil, nil, fmt.Errorf("build stage store: %w", err)
	}
	warehouse := target.NewWarehouse(database.NewDatabaseAdapter(whMgr), pipe, logger)
	pipeClient := target.NewPipeClient(appConf.Target, pipe, logger)
	targetStore := target.NewStore(warehouse, pipeClient)

	runner, err := run.NewRunner(pipe, driveRepo, sourceClient, warehouse, stageStore, targetStore, logger, sink)
	if err != nil {
		_ = driveMgr.Close()
		_ = whMgr.Close()
		return nil, nil, fmt.Errorf("build runner: %w", err)
	}

	app := &App{
		AppConf:       appConf,
		Logger:        logger,
		DriveRepo:     driveRepo,
		Engine:        engine,
		Runner:        runner,
		MetricsServer: metricsServer,
		driveMgr:      driveMgr,
		whMgr:         whMgr,
	}

	cleanup := func() {
		if metricsServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metricsServer.Stop(shutdownCtx); err != nil {
				log.Errorw("failed to stop metrics server", "err", err)
			}
		}
		if err := whMgr.Close(); err != nil {
			log.Errorw("failed to close warehouse connection", "err", err)
		}
		if err := driveMgr.Close(); err != nil {
			log.Errorw("failed to close drive table connection", "err", err)
		}
		_ = log.Sync()
	}
	return app, cleanup, nil
}

// Populate runs one continuity pass.
func (a *App) Populate(ctx context.Context) error {
	return a.Engine.Populate(ctx)
}

// RunCycle runs one scheduling cycle.
func (a *App) RunCycle(ctx context.Context) error {
	return a.Runner.RunCycle(ctx)
}

// Serve runs populate and run cycles on their cron schedules until SIGINT or
// SIGTERM. Overlapping fires of the same job are skipped.
func (a *App) Serve(ctx context.Context) error {
	if a.MetricsServer != nil {
		a.MetricsServer.Start()
	}

	sched := a.AppConf.Schedule
	c := cron.New()

	populateBusy := make(chan struct{}, 1)
	if err := c.AddFunc(sched.PopulateCron, func() {
		select {
		case populateBusy <- struct{}{}:
			defer func() { <-populateBusy }()
		default:
			a.Logger.Warnw("previous populate still running, skipping fire")
			return
		}
		if err := a.Populate(ctx); err != nil {
			a.Logger.Errorw("scheduled populate failed", "err", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule populate (%s): %w", sched.PopulateCron, err)
	}

	runBusy := make(chan struct{}, 1)
	if err := c.AddFunc(sched.RunCron, func() {
		select {
		case runBusy <- struct{}{}:
			defer func() { <-runBusy }()
		default:
			a.Logger.Warnw("previous run cycle still running, skipping fire")
			return
		}
		if err := a.RunCycle(ctx); err != nil {
			a.Logger.Errorw("scheduled run cycle failed", "err", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule run (%s): %w", sched.RunCron, err)
	}

	c.Start()
	defer c.Stop()
	a.Logger.Infow("scheduler started",
		"pipeline", a.AppConf.Pipeline.Name,
		"populateCron", sched.PopulateCron, "runCron", sched.RunCron)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		a.Logger.Infow("shutting down", "signal", sig.String())
	case <-ctx.Done():
		a.Logger.Infow("shutting down", "reason", ctx.Err())
	}
	return nil
}
