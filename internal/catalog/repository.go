// SPDX-License-Identifier: BSD-2-Clause
//
// Copyright (c) 2025 The FreeBSD Foundation.
//
// This software was developed by Hayzam Sherif <hayzam@alchemilla.io>
// of Alchemilla Ventures Pvt. Ltd. <hello@alchemilla.io>,
// under sponsorship from the FreeBSD Foundation.

package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ErrClaimContention names the outcome where another caller already owns
// the fileset's queue slot. Expected and silent: Claim reports it as
// (false, nil) and does not return this error.
var ErrClaimContention = errors.New("catalog: claim contention")

// RunAttributes is the small flat bag captured at run start so
// post-processing stays independent of later fileset edits.
type RunAttributes struct {
	Snapshot              string `json:"snapshot"`
	DoSnapshotSizeListing bool   `json:"do_snapshot_size_listing"`
}

// Repository is the typed persistence contract the scheduler and job
// runner use; it is the only way either touches the catalog.
type Repository interface {
	ListCandidates() ([]Fileset, error)
	ListAll() ([]Fileset, error)
	GetFileset(filesetID uint) (Fileset, error)
	ListHostGroups() ([]HostGroup, error)
	GetHostGroup(name string) (HostGroup, error)
	Claim(filesetID uint) (bool, error)
	ReleaseQueue(filesetID uint) error
	MarkRunning(filesetID uint) error
	ClearRuntimeFlags(filesetID uint) error
	ClearAllRuntimeFlags() (int64, error)

	RecordRunStart(filesetID uint, attrs RunAttributes) (*BackupRun, error)
	RecordRunEnd(runID uint, outcome RunOutcome) error

	UpdateFilesetSuccessMetrics(filesetID uint, lastOK time.Time, duration time.Duration, totalSizeMB float64) error
	UpdateFilesetFailure(filesetID uint, now time.Time) error

	ListRecentDurations(filesetID uint, n int) ([]float64, error)
	ListRunsSince(filesetID uint, since time.Time) ([]BackupRun, error)
	FailureStreakStart(filesetID uint) (*time.Time, error)

	UpdateSnapshotSizeListing(runID uint, sizeMB float64, listing string) error
	AppendRunError(runID uint, text string) error

	CloneFileset(sourceID uint, newFriendlyName, newHost string) (*Fileset, error)
}

// RunOutcome is the terminal state recorded for a BackupRun.
type RunOutcome struct {
	Success         bool
	ErrorText       string
	DurationSeconds float64
	TotalSizeMB     float64
	SnapshotSizeMB  float64
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository wraps db in a Repository.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) ListCandidates() ([]Fileset, error) {
	var sets []Fileset
	err := r.db.Where("enabled = ?", true).Order("last_run ASC").Find(&sets).Error
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	return sets, nil
}

func (r *gormRepository) GetFileset(filesetID uint) (Fileset, error) {
	var fs Fileset
	err := r.db.Preload("Group").First(&fs, filesetID).Error
	if err != nil {
		return Fileset{}, fmt.Errorf("get fileset %d: %w", filesetID, err)
	}
	return fs, nil
}

// ListAll returns every fileset regardless of enabled/runtime state, for
// the CLI surface's reporting commands (blist, bstats, confexport).
func (r *gormRepository) ListAll() ([]Fileset, error) {
	var sets []Fileset
	err := r.db.Preload("Group").Order("id ASC").Find(&sets).Error
	if err != nil {
		return nil, fmt.Errorf("list all filesets: %w", err)
	}
	return sets, nil
}

// ListHostGroups returns every configured HostGroup, for breport/confexport.
func (r *gormRepository) ListHostGroups() ([]HostGroup, error) {
	var groups []HostGroup
	if err := r.db.Order("name ASC").Find(&groups).Error; err != nil {
		return nil, fmt.Errorf("list host groups: %w", err)
	}
	return groups, nil
}

// GetHostGroup looks up a HostGroup by its unique name.
func (r *gormRepository) GetHostGroup(name string) (HostGroup, error) {
	var group HostGroup
	if err := r.db.Where("name = ?", name).First(&group).Error; err != nil {
		return HostGroup{}, fmt.Errorf("host group %q: %w", name, err)
	}
	return group, nil
}

// Claim performs the atomic CAS is_queued: false -> true, the store's
// one serializable operation.
func (r *gormRepository) Claim(filesetID uint) (bool, error) {
	res := r.db.Model(&Fileset{}).
		Where("id = ? AND is_queued = ?", filesetID, false).
		Update("is_queued", true)
	if res.Error != nil {
		return false, fmt.Errorf("claim fileset %d: %w", filesetID, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *gormRepository) ReleaseQueue(filesetID uint) error {
	return r.db.Model(&Fileset{}).Where("id = ?", filesetID).Update("is_queued", false).Error
}

func (r *gormRepository) MarkRunning(filesetID uint) error {
	return r.db.Model(&Fileset{}).Where("id = ?", filesetID).Update("is_running", true).Error
}

func (r *gormRepository) ClearRuntimeFlags(filesetID uint) error {
	return r.db.Model(&Fileset{}).Where("id = ?", filesetID).
		Updates(map[string]interface{}{"is_queued": false, "is_running": false}).Error
}

// ClearAllRuntimeFlags drops is_queued/is_running on every fileset that
// has either set, for bqueueflush's "drop all enqueued tasks" semantics.
// It returns the number of affected filesets.
func (r *gormRepository) ClearAllRuntimeFlags() (int64, error) {
	res := r.db.Model(&Fileset{}).
		Where("is_queued = ? OR is_running = ?", true, true).
		Updates(map[string]interface{}{"is_queued": false, "is_running": false})
	if res.Error != nil {
		return 0, fmt.Errorf("clear all runtime flags: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *gormRepository) RecordRunStart(filesetID uint, attrs RunAttributes) (*BackupRun, error) {
	raw, err := json.Marshal(attrs)
	if err != nil {
		return nil, fmt.Errorf("marshal run attributes: %w", err)
	}
	run := &BackupRun{
		FilesetID:  filesetID,
		Started:    time.Now().UTC(),
		Success:    false,
		Attributes: string(raw),
	}
	if err := r.db.Create(run).Error; err != nil {
		return nil, fmt.Errorf("record run start: %w", err)
	}
	return run, nil
}

func (r *gormRepository) RecordRunEnd(runID uint, outcome RunOutcome) error {
	return r.db.Model(&BackupRun{}).Where("id = ?", runID).Updates(map[string]interface{}{
		"success":          outcome.Success,
		"error_text":       outcome.ErrorText,
		"duration_seconds": outcome.DurationSeconds,
		"total_size_mb":    outcome.TotalSizeMB,
		"snapshot_size_mb": outcome.SnapshotSizeMB,
	}).Error
}

func (r *gormRepository) UpdateFilesetSuccessMetrics(filesetID uint, lastOK time.Time, duration time.Duration, totalSizeMB float64) error {
	durations, err := r.ListRecentDurations(filesetID, 9)
	if err != nil {
		return err
	}
	durations = append(durations, duration.Seconds())
	var sum float64
	for _, d := range durations {
		sum += d
	}
	avg := sum / float64(len(durations))

	return r.db.Model(&Fileset{}).Where("id = ?", filesetID).Updates(map[string]interface{}{
		"last_ok":          lastOK,
		"last_run":         lastOK,
		"first_fail":       nil,
		"average_duration": avg,
		"total_size_mb":    totalSizeMB,
	}).Error
}

func (r *gormRepository) UpdateFilesetFailure(filesetID uint, now time.Time) error {
	var fs Fileset
	if err := r.db.First(&fs, filesetID).Error; err != nil {
		return fmt.Errorf("load fileset %d: %w", filesetID, err)
	}

	updates := map[string]interface{}{"last_run": now}
	if fs.FirstFail == nil {
		updates["first_fail"] = now
	}
	return r.db.Model(&Fileset{}).Where("id = ?", filesetID).Updates(updates).Error
}

// ListRecentDurations returns up to n of the most recent successful
// runs' durations, most recent first, informing average_duration and
// the scheduler's should-backup heuristic.
func (r *gormRepository) ListRecentDurations(filesetID uint, n int) ([]float64, error) {
	var runs []BackupRun
	err := r.db.Where("fileset_id = ? AND success = ?", filesetID, true).
		Order("started DESC").Limit(n).Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("list recent durations: %w", err)
	}
	out := make([]float64, len(runs))
	for i, run := range runs {
		out[i] = run.DurationSeconds
	}
	return out, nil
}

// ListRunsSince returns every run for filesetID started at or after
// since, oldest first, for bstats' past-year failure-span scan.
func (r *gormRepository) ListRunsSince(filesetID uint, since time.Time) ([]BackupRun, error) {
	var runs []BackupRun
	err := r.db.Where("fileset_id = ? AND started >= ?", filesetID, since).
		Order("started ASC").Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("list runs since %s: %w", since, err)
	}
	return runs, nil
}

// FailureStreakStart reports when fs's current failure streak actually
// began, by walking its runs from newest to oldest until it finds the
// last success (blist --zabbix --summary). It returns nil
// if the fileset is not currently failing. first_fail itself is not
// trusted here: a manually forced backup can leave it holding a stale
// timestamp.
func (r *gormRepository) FailureStreakStart(filesetID uint) (*time.Time, error) {
	var fs Fileset
	if err := r.db.First(&fs, filesetID).Error; err != nil {
		return nil, fmt.Errorf("load fileset %d: %w", filesetID, err)
	}
	if fs.FirstFail == nil {
		return nil, nil
	}

	var runs []BackupRun
	if err := r.db.Where("fileset_id = ?", filesetID).Order("started DESC").Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("list runs for fileset %d: %w", filesetID, err)
	}
	if len(runs) == 0 {
		return fs.FirstFail, nil
	}
	if runs[0].Success {
		return nil, nil
	}

	failedAt := runs[0].Started
	for _, run := range runs {
		if run.Success {
			break
		}
		failedAt = run.Started
	}
	return &failedAt, nil
}

// AppendRunError appends text to a run's error_text without touching its
// success flag, for post-processing failures that must be visible but
// must not fail the run.
func (r *gormRepository) AppendRunError(runID uint, text string) error {
	var run BackupRun
	if err := r.db.First(&run, runID).Error; err != nil {
		return fmt.Errorf("load run %d: %w", runID, err)
	}
	errText := run.ErrorText
	if errText != "" {
		errText += "\n"
	}
	errText += text
	return r.db.Model(&BackupRun{}).Where("id = ?", runID).Update("error_text", errText).Error
}

func (r *gormRepository) UpdateSnapshotSizeListing(runID uint, sizeMB float64, listing string) error {
	return r.db.Model(&BackupRun{}).Where("id = ?", runID).Updates(map[string]interface{}{
		"snapshot_size_mb":       sizeMB,
		"snapshot_size_listing": listing,
	}).Error
}

// CloneFileset implements bclone's deep-copy semantics:
// copy config into the same host group, point the new fileset at newHost
// (via HostOverride, since transport_ref remains shared config), reset
// every runtime flag, and leave is_queued=false so the caller can
// Claim+dispatch explicitly.
func (r *gormRepository) CloneFileset(sourceID uint, newFriendlyName, newHost string) (*Fileset, error) {
	var src Fileset
	if err := r.db.First(&src, sourceID).Error; err != nil {
		return nil, fmt.Errorf("load source fileset %d: %w", sourceID, err)
	}

	clone := Fileset{
		FriendlyName:          newFriendlyName,
		GroupID:               src.GroupID,
		StorageAlias:          src.StorageAlias,
		TransportRef:          src.TransportRef,
		HostOverride:          newHost,
		Description:           src.Description,
		Includes:              src.Includes,
		Excludes:              src.Excludes,
		Enabled:               src.Enabled,
		BlacklistHours:        src.BlacklistHours,
		Retention:             src.Retention,
		DoSnapshotSizeListing: src.DoSnapshotSizeListing,
		UseDoNotRunMarker:     src.UseDoNotRunMarker,
		DoubleBackup:          src.DoubleBackup,
		IsQueued:              false,
		IsRunning:             false,
	}
	if err := r.db.Create(&clone).Error; err != nil {
		return nil, fmt.Errorf("create cloned fileset: %w", err)
	}
	return &clone, nil
}
