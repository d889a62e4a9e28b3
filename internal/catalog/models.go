// SPDX-License-Identifier: BSD-2-Clause
//
// Copyright (c) 2025 The FreeBSD Foundation.
//
// This software was developed by Hayzam Sherif <hayzam@alchemilla.io>
// of Alchemilla Ventures Pvt. Ltd. <hello@alchemilla.io>,
// under sponsorship from the FreeBSD Foundation.

// Package catalog implements typed access to the persistent fileset
// configuration and run history, backed by gorm/sqlite.
package catalog

import "time"

// HostGroup is identity for a tenant/domain.
type HostGroup struct {
	ID               uint   `gorm:"primarykey"`
	Name             string `gorm:"uniqueIndex;not null"`
	NotifyRecipients string
	BlacklistHours   string
	Retention        string
}

// Fileset is the unit of backup: one remote source feeding one local
// dataset.
type Fileset struct {
	ID           uint      `gorm:"primarykey"`
	FriendlyName string    `gorm:"index:idx_group_name,unique"`
	GroupID      uint      `gorm:"index:idx_group_name,unique"`
	Group        HostGroup `gorm:"foreignKey:GroupID"`

	StorageAlias string
	TransportRef string // foreign key into whatever config store holds transport configs
	HostOverride string // overrides the configured transport's host, e.g. for bclone clones

	Description string
	Includes    string // space-separated relative paths, rooted at "/"
	Excludes    string // space-separated relative paths, rooted at "/"

	Enabled               bool
	BlacklistHours        string
	Retention             string
	DoSnapshotSizeListing bool
	UseDoNotRunMarker     bool
	DoubleBackup          bool // tagged for the double-backup remote mirror, see blist --double

	// Runtime state, mutated only by the scheduler and job runner.
	IsQueued        bool
	IsRunning       bool
	LastOK          *time.Time
	LastRun         *time.Time
	FirstFail       *time.Time
	AverageDuration float64 // seconds, rolling over last 10 successes
	TotalSizeMB     float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// BackupRun is an immutable record of one backup attempt.
type BackupRun struct {
	ID        uint `gorm:"primarykey"`
	FilesetID uint `gorm:"index"`

	Started             time.Time
	DurationSeconds     float64
	Success             bool
	ErrorText           string
	TotalSizeMB         float64
	SnapshotSizeMB      float64
	SnapshotSizeListing string // YAML-safe "path: digits" lines
	Attributes          string // small JSON-encoded bag: snapshot name, do_snapshot_size_listing

	CreatedAt time.Time
}
