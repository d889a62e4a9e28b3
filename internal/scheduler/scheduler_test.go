// SPDX-License-Identifier: BSD-2-Clause
//
// Copyright (c) 2025 The FreeBSD Foundation.
//
// This software was developed by Hayzam Sherif <hayzam@alchemilla.io>
// of Alchemilla Ventures Pvt. Ltd. <hello@alchemilla.io>,
// under sponsorship from the FreeBSD Foundation.

package scheduler

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/planb-backup/planb/internal/catalog"
)

func TestInBlacklistHours_FilesetPrecedence(t *testing.T) {
	now := time.Date(2020, 5, 20, 10, 42, 0, 0, time.UTC)
	got := InBlacklistHours(now, "9-17", "11-14", "8-18")
	if !got {
		t.Fatalf("expected true (fileset blacklist wins, 10 in 9-17)")
	}
}

func TestInBlacklistHours_FallsThroughToGlobal(t *testing.T) {
	now := time.Date(2020, 5, 20, 19, 0, 0, 0, time.UTC)
	got := InBlacklistHours(now, "", "", "18-20")
	if !got {
		t.Fatalf("expected true from global blacklist")
	}
}

func TestShouldBackup_DifferentCalendarDay(t *testing.T) {
	lastOK := time.Date(2020, 5, 19, 19, 0, 0, 0, time.UTC)
	now := time.Date(2020, 5, 20, 0, 0, 0, 0, time.UTC)
	fs := catalog.Fileset{
		Enabled:         true,
		LastOK:          &lastOK,
		AverageDuration: 0,
	}
	if !ShouldBackup(fs, now) {
		t.Fatalf("expected should_backup=true when local day differs")
	}
}

func TestShouldBackup_RecentSuccessSkipped(t *testing.T) {
	lastOK := time.Date(2020, 5, 20, 10, 0, 0, 0, time.UTC)
	now := time.Date(2020, 5, 20, 11, 0, 0, 0, time.UTC)
	fs := catalog.Fileset{
		Enabled:         true,
		LastOK:          &lastOK,
		AverageDuration: 60,
	}
	if ShouldBackup(fs, now) {
		t.Fatalf("expected should_backup=false for a recent same-day success")
	}
}

func TestShouldBackup_FirstFailAlwaysRetries(t *testing.T) {
	lastOK := time.Now().UTC().Add(-1 * time.Hour)
	firstFail := time.Now().UTC().Add(-30 * time.Minute)
	fs := catalog.Fileset{
		Enabled:   true,
		LastOK:    &lastOK,
		FirstFail: &firstFail,
	}
	if !ShouldBackup(fs, time.Now().UTC()) {
		t.Fatalf("expected should_backup=true when first_fail is set")
	}
}

func TestDelayedByMarker(t *testing.T) {
	base := t.TempDir()
	s := &Scheduler{DoNotRunDir: base}

	if s.delayedByMarker(7) {
		t.Fatalf("missing marker dir should not delay")
	}

	dir := filepath.Join(base, "7")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if s.delayedByMarker(7) {
		t.Fatalf("empty marker dir should not delay")
	}

	if err := os.WriteFile(filepath.Join(dir, ".hidden"), nil, 0644); err != nil {
		t.Fatal(err)
	}
	if s.delayedByMarker(7) {
		t.Fatalf("dot files alone should not delay")
	}

	if err := os.WriteFile(filepath.Join(dir, "hold"), nil, 0644); err != nil {
		t.Fatal(err)
	}
	if !s.delayedByMarker(7) {
		t.Fatalf("non-dot file should delay")
	}
}
