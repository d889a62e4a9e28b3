// SPDX-License-Identifier: BSD-2-Clause
//
// Copyright (c) 2025 The FreeBSD Foundation.
//
// This software was developed by Hayzam Sherif <hayzam@alchemilla.io>
// of Alchemilla Ventures Pvt. Ltd. <hello@alchemilla.io>,
// under sponsorship from the FreeBSD Foundation.

// Package scheduler implements the eligibility-evaluation tick loop
// of the backup control plane: every tick, scan the catalog for candidates,
// claim them, and dispatch eligible ones to the job runner.
package scheduler

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/planb-backup/planb/internal/catalog"
	"github.com/planb-backup/planb/internal/logger"
)

// Dispatcher hands a claimed, eligible fileset off to the job runner.
// Implemented by runner.Pool in production.
type Dispatcher interface {
	Dispatch(filesetID uint, snapshotName string)
}

// Scheduler runs the eligibility tick loop.
type Scheduler struct {
	Repo       catalog.Repository
	Dispatcher Dispatcher

	TickInterval   time.Duration
	ClaimBackoff   time.Duration
	GlobalBlacklist string
	DoNotRunDir    string // base dir; per-fileset subdir is <dir>/<fileset-id>
}

// Run blocks, ticking every s.TickInterval until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	interval := s.TickInterval
	if interval <= 0 {
		interval = 60 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(time.Now().UTC())
		}
	}
}

func (s *Scheduler) tick(now time.Time) {
	candidates, err := s.Repo.ListCandidates()
	if err != nil {
		logger.L.Error().Err(err).Msg("scheduler: list_candidates failed")
		return
	}

	for _, fs := range candidates {
		ok, err := s.Repo.Claim(fs.ID)
		if err != nil {
			logger.L.Error().Err(err).Uint("fileset_id", fs.ID).Msg("scheduler: claim failed")
			continue
		}
		if !ok {
			continue // owned elsewhere (manual trigger, another scheduler)
		}

		if !s.eligible(fs, now) {
			if err := s.Repo.ReleaseQueue(fs.ID); err != nil {
				logger.L.Error().Err(err).Uint("fileset_id", fs.ID).Msg("scheduler: release_queue failed")
			}
			continue
		}

		s.Dispatcher.Dispatch(fs.ID, SnapshotName(now))
	}
}

func (s *Scheduler) eligible(fs catalog.Fileset, now time.Time) bool {
	if !fs.Enabled {
		return false
	}
	if !ShouldBackup(fs, now) {
		return false
	}
	// Failure back-off: a failing fileset is retried at most once per
	// backoff window, measured from its last attempt.
	if fs.FirstFail != nil && fs.LastRun != nil && now.Sub(*fs.LastRun) < s.claimBackoff() {
		return false
	}
	if InBlacklistHours(now, fs.BlacklistHours, fs.Group.BlacklistHours, s.GlobalBlacklist) {
		return false
	}
	if fs.UseDoNotRunMarker && s.delayedByMarker(fs.ID) {
		return false
	}
	return true
}

func (s *Scheduler) claimBackoff() time.Duration {
	if s.ClaimBackoff <= 0 {
		return time.Hour
	}
	return s.ClaimBackoff
}

// delayedByMarker reports whether the do-not-run.d marker delays this
// fileset: true iff the per-fileset directory exists and
// contains at least one non-dot-file entry.
func (s *Scheduler) delayedByMarker(filesetID uint) bool {
	if s.DoNotRunDir == "" {
		return false
	}
	dir := s.DoNotRunDir + "/" + strconv.Itoa(int(filesetID))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), ".") {
			return true
		}
	}
	return false
}

// ShouldBackup reports whether a fileset is due: a fileset with a
// recent same-calendar-day success is skipped, everything else runs.
func ShouldBackup(fs catalog.Fileset, now time.Time) bool {
	if !fs.Enabled {
		return false
	}
	if fs.FirstFail == nil && fs.LastOK != nil {
		recent := sameCalendarDay(*fs.LastOK, now)
		within24h := now.Sub(*fs.LastOK)+time.Duration(fs.AverageDuration*float64(time.Second)) < 24*time.Hour
		if recent && within24h {
			return false
		}
	}
	return true
}

func sameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// SnapshotName returns the scheduler-generated snapshot name for now
// ("planb-YYYYMMDDThhmmZ", UTC, minute resolution).
func SnapshotName(now time.Time) string {
	return "planb-" + now.UTC().Format("20060102T1504Z")
}
