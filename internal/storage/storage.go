// SPDX-License-Identifier: BSD-2-Clause
//
// Copyright (c) 2025 The FreeBSD Foundation.
//
// This software was developed by Hayzam Sherif <hayzam@alchemilla.io>
// of Alchemilla Ventures Pvt. Ltd. <hello@alchemilla.io>,
// under sponsorship from the FreeBSD Foundation.

// Package storage implements the storage-engine abstraction:
// dataset and snapshot primitives over a pluggable copy-on-write
// filesystem, selected per fileset by storage_alias.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies a storage failure so callers (retention, listing)
// can treat "dataset does not exist" specially.
type ErrorKind int

const (
	// KindExec is an uncategorized command failure.
	KindExec ErrorKind = iota
	// KindDatasetNotFound means the backing dataset does not exist.
	KindDatasetNotFound
	// KindBusy means the dataset is already held by a workon elsewhere
	// in this process (nested workon).
	KindBusy
)

// Error is the typed error returned by storage engines.
type Error struct {
	Kind   ErrorKind
	Err    error
	Debug  string
	Stderr string
}

func (e *Error) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("storage: %s: %v (%s)", e.Debug, e.Err, e.Stderr)
	}
	return fmt.Sprintf("storage: %s: %v", e.Debug, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a storage.Error of kind
// KindDatasetNotFound.
func IsNotFound(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == KindDatasetNotFound
}

// Workon is a scoped acquisition of a dataset: mounted (if applicable)
// for the lifetime of the handle, guaranteed to unmount on Close however
// the caller exits. Nested Workon of the same dataset must fail loudly
// rather than silently nest.
type Workon interface {
	// Path is the dataset's data directory for the duration of the scope.
	Path() string
	Close() error
}

// Dataset is a logical handle into a storage pool, identified by
// (pool_alias, canonical_name).
type Dataset interface {
	// Name is the canonical dataset name, derived deterministically from
	// (group, friendly name).
	Name() string

	// EnsureExists creates the dataset if missing. Idempotent.
	EnsureExists(ctx context.Context) error

	// Workon mounts (if needed) and returns a scoped handle whose Close
	// guarantees unmount. Calling Workon again before Close returns an
	// error of KindBusy.
	Workon(ctx context.Context) (Workon, error)

	// DataPath is the dataset's data directory, valid regardless of
	// mount state for CoW engines that keep it always-mounted.
	DataPath() string
	// SnapshotPath is the read-only path of a named snapshot, when the
	// engine exposes one (e.g. ZFS .zfs/snapshot).
	SnapshotPath(name string) string

	UsedSize(ctx context.Context) (uint64, error)
	ReferencedSize(ctx context.Context) (uint64, error)

	// Rename renames the dataset and adjusts its mountpoint. Forbidden
	// while a Workon is active.
	Rename(ctx context.Context, newName string) error

	SnapshotCreate(ctx context.Context, name string) (string, error)
	SnapshotDelete(ctx context.Context, name string) error
	// SnapshotList returns snapshot names ordered by creation time,
	// oldest first.
	SnapshotList(ctx context.Context) ([]string, error)
}

// Engine is a pluggable storage backend, selected by storage_alias.
type Engine interface {
	Name() string
	// GetDataset is a pure name lookup; it performs no I/O.
	GetDataset(group, friendlyName string) Dataset
	// ListDatasets enumerates every dataset name currently present in the
	// pool, for slist. Names follow "<group>-<friendly_name>".
	ListDatasets(ctx context.Context) ([]string, error)
}
