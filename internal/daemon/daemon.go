// SPDX-License-Identifier: BSD-2-Clause
//
// Copyright (c) 2025 The FreeBSD Foundation.
//
// This software was developed by Hayzam Sherif <hayzam@alchemilla.io>
// of Alchemilla Ventures Pvt. Ltd. <hello@alchemilla.io>,
// under sponsorship from the FreeBSD Foundation.

// Package daemon wires together the catalog, storage engines, transport
// registry, job-runner pool, and scheduler into the running planb
// process. It is the single place that turns internal/config.Config
// into live collaborators, shared by
// the "bqcluster" CLI subcommand and any other entry point that needs
// the full runtime rather than a one-shot catalog read.
package daemon

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"gorm.io/gorm"

	"github.com/planb-backup/planb/internal/catalog"
	"github.com/planb-backup/planb/internal/config"
	"github.com/planb-backup/planb/internal/db"
	"github.com/planb-backup/planb/internal/logger"
	"github.com/planb-backup/planb/internal/runner"
	"github.com/planb-backup/planb/internal/scheduler"
	"github.com/planb-backup/planb/internal/storage"
	"github.com/planb-backup/planb/internal/transport"
)

// Runtime holds every long-lived collaborator of a running planb
// daemon.
type Runtime struct {
	Cfg  *config.Config
	DB   *gorm.DB
	Repo catalog.Repository

	Engines map[string]storage.Engine

	Queue       *db.Queue
	DutreeQueue *db.Queue

	Pool      *runner.Pool
	Scheduler *scheduler.Scheduler
}

// New parses configPath, opens the catalog and caches, builds the
// configured storage engines and transport registry, and assembles the
// job-runner pool and scheduler. It does not yet start any loops; call
// Start for that.
func New(configPath string) (*Runtime, error) {
	cfg, err := config.Parse(configPath)
	if err != nil {
		return nil, fmt.Errorf("daemon: parse config: %w", err)
	}

	if err := logger.Init(cfg.DataPath, cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("daemon: init logger: %w", err)
	}

	gdb, err := catalog.Open(cfg.DataPath)
	if err != nil {
		return nil, fmt.Errorf("daemon: open catalog: %w", err)
	}
	repo := catalog.NewRepository(gdb)

	if _, err := db.SetupCache(cfg.DataPath); err != nil {
		return nil, fmt.Errorf("daemon: open size-stat cache: %w", err)
	}

	queueDir := filepath.Join(cfg.DataPath, "queue")
	runsQueue, err := db.OpenQueue(filepath.Join(queueDir, "runs.db"), "runs", cfg.RunnerWorkers, time.Second, logger.L)
	if err != nil {
		return nil, fmt.Errorf("daemon: open runs queue: %w", err)
	}
	dutreeQueue, err := db.OpenQueue(filepath.Join(queueDir, "dutree.db"), "dutree", cfg.DutreeWorkers, time.Second, logger.L)
	if err != nil {
		return nil, fmt.Errorf("daemon: open dutree queue: %w", err)
	}

	engines, err := buildEngines(cfg)
	if err != nil {
		return nil, err
	}

	pool := &runner.Pool{
		Repo:        repo,
		Engines:     engines,
		Transport:   transportFactory(cfg),
		Notifier:    runner.LoggingNotifier{},
		Retention:   runner.ParseRetention(cfg.Defaults.Retention),
		Queue:       runsQueue,
		DutreeQueue: dutreeQueue,
	}
	pool.RegisterHandlers()

	sched := &scheduler.Scheduler{
		Repo:            repo,
		Dispatcher:      pool,
		TickInterval:    time.Duration(cfg.TickInterval) * time.Second,
		ClaimBackoff:    time.Duration(cfg.ClaimBackoffSec) * time.Second,
		GlobalBlacklist: cfg.Defaults.BlacklistHours,
		DoNotRunDir:     cfg.DoNotRunDir,
	}

	return &Runtime{
		Cfg:         cfg,
		DB:          gdb,
		Repo:        repo,
		Engines:     engines,
		Queue:       runsQueue,
		DutreeQueue: dutreeQueue,
		Pool:        pool,
		Scheduler:   sched,
	}, nil
}

func buildEngines(cfg *config.Config) (map[string]storage.Engine, error) {
	engines := make(map[string]storage.Engine, len(cfg.StoragePools))
	for _, p := range cfg.StoragePools {
		switch p.Engine {
		case "dummy":
			engines[p.Alias] = storage.NewDummyEngine(p.Root)
		case "cow":
			engines[p.Alias] = storage.NewCoWEngine(p.Binary, p.SudoCmd, p.Root)
		default:
			return nil, fmt.Errorf("daemon: storage pool %q: unknown engine %q", p.Alias, p.Engine)
		}
	}
	return engines, nil
}

func transportFactory(cfg *config.Config) runner.TransportFactory {
	return func(fs catalog.Fileset, snapshotName, dataDir string) (transport.Transport, error) {
		tc, ok := cfg.Transport(fs.TransportRef)
		if !ok {
			return nil, fmt.Errorf("daemon: fileset %q: unknown transport_ref %q", fs.FriendlyName, fs.TransportRef)
		}
		return transport.Build(tc, fs, snapshotName, dataDir)
	}
}

// Start starts the queue worker pools and the scheduler tick loop; it
// returns immediately, running everything in background goroutines
// until ctx is canceled.
func (r *Runtime) Start(ctx context.Context) {
	go r.Queue.Start(ctx)
	go r.DutreeQueue.Start(ctx)
	go r.Scheduler.Run(ctx)
	go runCacheGC(ctx)
}

// runCacheGC periodically reclaims badger value-log space for the
// size-stat cache (internal/db.RunCacheGC), off the hot path.
func runCacheGC(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			db.RunCacheGC()
		}
	}
}

// Close releases the catalog's sql.DB handle.
func (r *Runtime) Close() {
	if r == nil || r.DB == nil {
		return
	}
	if sqlDB, err := r.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
