// SPDX-License-Identifier: BSD-2-Clause
//
// Copyright (c) 2025 The FreeBSD Foundation.
//
// This software was developed by Hayzam Sherif <hayzam@alchemilla.io>
// of Alchemilla Ventures Pvt. Ltd. <hello@alchemilla.io>,
// under sponsorship from the FreeBSD Foundation.

// Package runner implements the per-fileset job pipeline: a
// bounded worker pool, backed by a goqite queue, that carries a claimed
// fileset from Queued through Running to Success or Failure, then
// optionally enqueues a dutree post-processing job.
package runner

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/planb-backup/planb/internal/catalog"
	"github.com/planb-backup/planb/internal/db"
	"github.com/planb-backup/planb/internal/logger"
	"github.com/planb-backup/planb/internal/retention"
	"github.com/planb-backup/planb/internal/storage"
	"github.com/planb-backup/planb/internal/transport"
)

const jobName = "planb_run"
const dutreeJobName = "planb_dutree"

// Job is the payload enqueued per run.
type Job struct {
	FilesetID    uint
	SnapshotName string
}

// TransportFactory builds the configured Transport for a fileset, given
// the snapshot name this run will create and the dataset's mounted data
// path (needed by the exec transport's environment).
type TransportFactory func(fs catalog.Fileset, snapshotName, dataDir string) (transport.Transport, error)

// Notifier is the logging-only default collaborator for recovered /
// first-failure notifications. Actual delivery is an outer concern;
// the default only logs.
type Notifier interface {
	Recovered(fs catalog.Fileset)
	FirstFailure(fs catalog.Fileset, errText string)
}

// LoggingNotifier is the default Notifier: it only logs.
type LoggingNotifier struct{}

func (LoggingNotifier) Recovered(fs catalog.Fileset) {
	logger.L.Info().Uint("fileset_id", fs.ID).Msg("backup recovered after prior failure")
}

func (LoggingNotifier) FirstFailure(fs catalog.Fileset, errText string) {
	logger.L.Warn().Uint("fileset_id", fs.ID).Str("error", errText).Msg("backup failed")
}

// Pool is the job-runner worker pool. It implements
// scheduler.Dispatcher.
type Pool struct {
	Repo      catalog.Repository
	Engines   map[string]storage.Engine // by storage_alias
	Transport TransportFactory
	Notifier  Notifier
	Retention retention.Map // default; per-fileset retention parsed from Fileset.Retention overrides when set

	Queue       *db.Queue
	DutreeQueue *db.Queue
}

// RegisterHandlers wires the "planb_run" and "planb_dutree" job handlers
// into their respective queues. Call once at daemon startup.
func (p *Pool) RegisterHandlers() {
	db.RegisterJSON(p.Queue, jobName, func(ctx context.Context, job Job) error {
		p.run(ctx, job)
		return nil
	})
	db.RegisterJSON(p.DutreeQueue, dutreeJobName, func(ctx context.Context, job DutreeJob) error {
		return p.runDutree(ctx, job)
	})
}

// Dispatch implements scheduler.Dispatcher: enqueue a run job for a
// fileset the scheduler has already claimed.
func (p *Pool) Dispatch(filesetID uint, snapshotName string) {
	ctx := context.Background()
	if err := db.EnqueueJSON(ctx, p.Queue, jobName, Job{FilesetID: filesetID, SnapshotName: snapshotName}); err != nil {
		logger.L.Error().Err(err).Uint("fileset_id", filesetID).Msg("runner: dispatch failed")
	}
}

func (p *Pool) run(ctx context.Context, job Job) {
	fs, err := p.loadFileset(job.FilesetID)
	if err != nil {
		logger.L.Error().Err(err).Uint("fileset_id", job.FilesetID).Msg("runner: load fileset failed")
		if err := p.Repo.ClearRuntimeFlags(job.FilesetID); err != nil {
			logger.L.Error().Err(err).Msg("runner: clear_runtime_flags failed")
		}
		return
	}

	var success bool

	// Leave Running: release workon happens inside execute;
	// clear_runtime_flags and backup_done always run, however the
	// pipeline exits.
	defer func() {
		if err := p.Repo.ClearRuntimeFlags(fs.ID); err != nil {
			logger.L.Error().Err(err).Msg("runner: clear_runtime_flags failed")
		}
		logger.L.Info().Uint("fileset_id", fs.ID).Bool("success", success).Msg("backup_done")
	}()

	if err := p.Repo.MarkRunning(fs.ID); err != nil {
		logger.L.Error().Err(err).Msg("runner: mark_running failed")
		return
	}

	run, err := p.Repo.RecordRunStart(fs.ID, catalog.RunAttributes{
		Snapshot:              job.SnapshotName,
		DoSnapshotSizeListing: fs.DoSnapshotSizeListing,
	})
	if err != nil {
		logger.L.Error().Err(err).Msg("runner: record_run_start failed")
		return
	}

	t0 := time.Now()
	var errText string
	success, errText = p.execute(ctx, fs, job.SnapshotName)
	duration := time.Since(t0)

	now := time.Now().UTC()
	if success {
		usedMB, refMB, sizeErr := p.recordSizes(ctx, fs)
		if sizeErr != nil {
			logger.L.Warn().Err(sizeErr).Msg("runner: recording dataset sizes failed")
		}
		if err := p.Repo.RecordRunEnd(run.ID, catalog.RunOutcome{
			Success: true, DurationSeconds: duration.Seconds(),
			TotalSizeMB: usedMB, SnapshotSizeMB: refMB,
		}); err != nil {
			logger.L.Error().Err(err).Msg("runner: record_run_end failed")
		}

		wasFailing := fs.FirstFail != nil
		if err := p.Repo.UpdateFilesetSuccessMetrics(fs.ID, now, duration, usedMB); err != nil {
			logger.L.Error().Err(err).Msg("runner: update_fileset_success_metrics failed")
		}
		if wasFailing {
			p.Notifier.Recovered(fs)
		}

		if fs.DoSnapshotSizeListing {
			if err := db.EnqueueJSON(ctx, p.DutreeQueue, dutreeJobName, DutreeJob{
				FilesetID: fs.ID, RunID: run.ID, SnapshotName: job.SnapshotName,
			}); err != nil {
				logger.L.Error().Err(err).Msg("runner: enqueue dutree job failed")
			}
		}
		return
	}

	if err := p.Repo.RecordRunEnd(run.ID, catalog.RunOutcome{
		Success: false, ErrorText: errText, DurationSeconds: duration.Seconds(),
	}); err != nil {
		logger.L.Error().Err(err).Msg("runner: record_run_end failed")
	}
	if err := p.Repo.UpdateFilesetFailure(fs.ID, now); err != nil {
		logger.L.Error().Err(err).Msg("runner: update_fileset_failure failed")
	}
	// Only the transition into a failing state is notified; repeats of an
	// already-failing fileset stay quiet until it recovers.
	if fs.FirstFail == nil {
		p.Notifier.FirstFailure(fs, errText)
	}
}

// execute runs the middle of the pipeline: acquire workon, invoke transport,
// snapshot, run retention. Retention/post-processing failures are
// logged but never flip success to false.
func (p *Pool) execute(ctx context.Context, fs catalog.Fileset, snapshotName string) (success bool, errText string) {
	if err := ValidateSnapshotName(snapshotName); err != nil {
		return false, err.Error()
	}
	engine, ok := p.Engines[fs.StorageAlias]
	if !ok {
		return false, fmt.Sprintf("unknown storage_alias %q", fs.StorageAlias)
	}
	dataset := engine.GetDataset(fs.Group.Name, fs.FriendlyName)

	wo, err := dataset.Workon(ctx)
	if err != nil {
		return false, err.Error()
	}
	defer wo.Close()

	tr, err := p.Transport(fs, snapshotName, wo.Path())
	if err != nil {
		return false, err.Error()
	}

	if err := tr.RunTransport(ctx, wo.Path()); err != nil {
		if te, ok := err.(*transport.Error); ok && te.Class == transport.ClassHarmless {
			logger.L.Warn().Err(err).Uint("fileset_id", fs.ID).Msg("transport reported harmless warning")
		} else {
			return false, err.Error()
		}
	}

	if _, err := dataset.SnapshotCreate(ctx, snapshotName); err != nil {
		return false, err.Error()
	}

	names, err := dataset.SnapshotList(ctx)
	if err != nil {
		logger.L.Warn().Err(err).Uint("fileset_id", fs.ID).Msg("retention: listing snapshots failed")
	} else {
		retain := retentionMapFor(fs, p.Retention)
		for _, name := range retention.Plan(names, retain) {
			if err := dataset.SnapshotDelete(ctx, name); err != nil {
				logger.L.Warn().Err(err).Str("snapshot", name).Msg("retention: delete failed")
			}
		}
	}

	return true, ""
}

// recordSizes reads the dataset's used ("disk usage") and referenced
// ("snapshot") sizes, in MiB.
func (p *Pool) recordSizes(ctx context.Context, fs catalog.Fileset) (usedMB, refMB float64, err error) {
	engine, ok := p.Engines[fs.StorageAlias]
	if !ok {
		return 0, 0, fmt.Errorf("unknown storage_alias %q", fs.StorageAlias)
	}
	dataset := engine.GetDataset(fs.Group.Name, fs.FriendlyName)
	used, err := dataset.UsedSize(ctx)
	if err != nil {
		return 0, 0, err
	}
	ref, err := dataset.ReferencedSize(ctx)
	if err != nil {
		return 0, 0, err
	}
	return float64(used) / (1024 * 1024), float64(ref) / (1024 * 1024), nil
}

func (p *Pool) loadFileset(id uint) (catalog.Fileset, error) {
	return p.Repo.GetFileset(id)
}

var (
	schedulerNameRE = regexp.MustCompile(`^planb-\d{8}T\d{4}Z$`)
	archiveNameRE   = regexp.MustCompile(`^[a-z]([a-z0-9-]*[a-z0-9])?$`)
)

// ValidateSnapshotName enforces the snapshot naming rules: scheduler
// names are "planb-YYYYMMDDThhmmZ"; anything else is an archive-class
// name, which must match ^[a-z]([a-z0-9-]*[a-z0-9])?$, never be exactly
// "planb", and never carry the "planb-" retention prefix.
func ValidateSnapshotName(name string) error {
	if schedulerNameRE.MatchString(name) {
		return nil
	}
	if name == "planb" || strings.HasPrefix(name, "planb-") {
		return fmt.Errorf("snapshot name %q is reserved for scheduler snapshots", name)
	}
	if !archiveNameRE.MatchString(name) {
		return fmt.Errorf("invalid archive snapshot name %q", name)
	}
	return nil
}
