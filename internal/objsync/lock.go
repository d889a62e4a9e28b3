// SPDX-License-Identifier: BSD-2-Clause
//
// Copyright (c) 2025 The FreeBSD Foundation.
//
// This software was developed by Hayzam Sherif <hayzam@alchemilla.io>
// of Alchemilla Ventures Pvt. Ltd. <hello@alchemilla.io>,
// under sponsorship from the FreeBSD Foundation.

package objsync

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// StaleLockGrace is how old an existing lock file must be before a new
// run is permitted to steal it: crash recovery tolerates stale locks
// past the grace window rather than demanding manual intervention.
const StaleLockGrace = 6 * time.Hour

// Lock is the exclusive "<metadata>/planb-objsync.lock" file. It
// records the holding process's pid so stale
// locks can be diagnosed.
type Lock struct {
	path string
	f    *os.File
}

// Acquire opens path with O_EXCL, refusing to start if a live lock is
// present. A lock older than StaleLockGrace is treated as abandoned and
// replaced.
func Acquire(path string) (*Lock, error) {
	if err := tryStealStale(path); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			if pid, perr := readPid(path); perr == nil {
				return nil, fmt.Errorf("objsync: lock %s held by pid %d", path, pid)
			}
			return nil, fmt.Errorf("objsync: lock %s held by another run", path)
		}
		return nil, fmt.Errorf("objsync: create lock %s: %w", path, err)
	}
	fmt.Fprintf(f, "%d\n", os.Getpid())
	return &Lock{path: path, f: f}, nil
}

func tryStealStale(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return nil // no existing lock
	}
	if time.Since(info.ModTime()) < StaleLockGrace {
		return nil // not stale yet; let the O_EXCL create fail normally
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("objsync: remove stale lock %s: %w", path, err)
	}
	return nil
}

// Release removes the lock file. Safe to call from a defer.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	_ = l.f.Close()
	return os.Remove(l.path)
}

// readPid reads the pid recorded in an existing lock file, for
// diagnostics.
func readPid(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(b)))
}
