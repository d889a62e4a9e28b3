// SPDX-License-Identifier: BSD-2-Clause
//
// Copyright (c) 2025 The FreeBSD Foundation.
//
// This software was developed by Hayzam Sherif <hayzam@alchemilla.io>
// of Alchemilla Ventures Pvt. Ltd. <hello@alchemilla.io>,
// under sponsorship from the FreeBSD Foundation.

// Package objsync's sync.go implements the resumable diff-and-fetch
// pipeline itself: lock, remote listing, comm-style diff, a
// delete phase, a striped multi-worker add phase, an update phase, and
// final list reconciliation.
package objsync

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// NewListingGrace is how long a prior .new listing may be reused without
// rebuilding it from the remote store, making interrupted runs
// resumable.
const NewListingGrace = 18 * time.Hour

// TimeBudget is the wall-clock allowance past which only-transient
// failures no longer force a nonzero exit.
const TimeBudget = 30 * time.Minute

// Paths is the set of on-disk list files for one (section, container)
// pair, rooted at metaDir ("<metaDir>/planb-objsync[-<name>].{cur,new,...}").
type Paths struct {
	Cur   string
	New   string
	Add   string
	Del   string
	Utime string
	Lock  string
}

// NewPaths derives the standard file set for a metadata directory and a
// name disambiguating container/section combinations.
func NewPaths(metaDir, name string) Paths {
	base := filepath.Join(metaDir, "planb-objsync")
	if name != "" {
		base += "-" + name
	}
	return Paths{
		Cur:   base + ".cur",
		New:   base + ".new",
		Add:   base + ".add",
		Del:   base + ".del",
		Utime: base + ".utime",
		Lock:  base + ".lock",
	}
}

// Engine runs one sync cycle for a single (section, container).
type Engine struct {
	Lister    RemoteLister
	Rules     *Ruleset
	DestRoot  string // LocalRoot for this section
	Prefix    string // remote key prefix for this container
	Container string
	Workers   int
	Paths     Paths
	Abort     *AbortFlag
}

// Result summarizes one cycle, used both for logging and for the CLI
// tool's exit-code decision.
type Result struct {
	Deleted, Added, Updated int
	HardFailures            int
	TransientFailures       int
	Duration                time.Duration
}

// ExitCode maps a Result to the tool's process exit codes: 0 clean,
// 1 hard failure. Exit code 2 (warning-only) is reserved for the
// double-backup helper; the plain objsync CLI only ever returns 0 or 1.
func (r Result) ExitCode() int {
	if r.HardFailures > 0 {
		return 1
	}
	if r.TransientFailures > 0 && r.Duration <= TimeBudget {
		return 1
	}
	return 0
}

// Run executes one full sync cycle.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	t0 := time.Now()

	lock, err := Acquire(e.Paths.Lock)
	if err != nil {
		return Result{}, err
	}
	defer lock.Release()

	next, err := e.buildListing(ctx)
	if err != nil {
		return Result{}, err
	}

	cur, err := ReadListFile(e.Paths.Cur)
	if err != nil {
		return Result{}, err
	}

	diff := Diff(cur, next)
	SortRecords(diff.Del)
	SortRecords(diff.Add)
	SortRecords(diff.Utime)
	if err := WriteListFile(e.Paths.Del, diff.Del); err != nil {
		return Result{}, err
	}
	if err := WriteListFile(e.Paths.Add, diff.Add); err != nil {
		return Result{}, err
	}
	if err := WriteListFile(e.Paths.Utime, diff.Utime); err != nil {
		return Result{}, err
	}

	var res Result

	deletedOK := e.deletePhase(diff.Del, &res)
	cur = SubtractSorted(cur, deletedOK)

	addedOK := e.addPhase(ctx, diff.Add, &res)
	cur = MergeSorted(cur, addedOK)

	updatedOK, reAdded := e.updatePhase(ctx, diff.Utime, &res)
	cur = MergeSorted(cur, updatedOK)
	cur = MergeSorted(cur, reAdded)

	SortRecords(cur)
	if err := WriteListFile(e.Paths.Cur, cur); err != nil {
		return Result{}, err
	}

	RemoveListFiles(e.Paths.New, e.Paths.Add, e.Paths.Del, e.Paths.Utime)

	res.Duration = time.Since(t0)
	return res, nil
}

// buildListing implements step 2: reuse a recent .new, else rebuild it
// from the remote store.
func (e *Engine) buildListing(ctx context.Context) ([]Record, error) {
	if info, err := os.Stat(e.Paths.New); err == nil && time.Since(info.ModTime()) < NewListingGrace {
		recs, err := ReadListFile(e.Paths.New)
		if err == nil {
			return recs, nil
		}
	}

	recs, err := e.Lister.List(ctx, e.Container, e.Prefix)
	if err != nil {
		return nil, fmt.Errorf("objsync: build remote listing: %w", err)
	}
	if err := WriteListFile(e.Paths.New, recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// deletePhase unlinks local files for del, returning the subset
// successfully removed.
func (e *Engine) deletePhase(del []Record, res *Result) []Record {
	var ok []Record
	for _, r := range del {
		if e.Abort.Aborted() {
			break
		}
		local, keep := e.Rules.LocalPath(r)
		if !keep {
			ok = append(ok, r)
			continue
		}
		path := filepath.Join(e.DestRoot, filepath.FromSlash(local))
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			res.TransientFailures++
			continue
		}
		ok = append(ok, r)
		res.Deleted++
	}
	SortRecords(ok)
	return ok
}

// addPhase downloads add with Workers goroutines, each striped by
// index (stable striping of an already-sorted input keeps each worker's
// own success list ascending).
func (e *Engine) addPhase(ctx context.Context, add []Record, res *Result) []Record {
	n := e.Workers
	if n <= 0 {
		n = 7
	}
	if n > len(add) {
		n = len(add)
	}
	if n == 0 {
		return nil
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	successLists := make([][]Record, n)

	for w := 0; w < n; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			var local []Record
			var localFail, localTransient int
			for i := worker; i < len(add); i += n {
				if e.Abort.Aborted() {
					break
				}
				r := add[i]
				localPath, keep := e.Rules.LocalPath(r)
				if !keep {
					continue
				}
				remoteKey := e.Prefix + r.Path
				if err := downloadRecord(ctx, e.Lister, r, remoteKey, localPath, e.DestRoot, e.Abort); err != nil {
					if IsFatal(err) {
						localFail++
					} else {
						localTransient++
					}
					continue
				}
				local = append(local, r)
			}
			mu.Lock()
			successLists[worker] = local
			res.HardFailures += localFail
			res.TransientFailures += localTransient
			mu.Unlock()
		}(w)
	}
	wg.Wait()

	merged := successLists[0]
	for _, l := range successLists[1:] {
		merged = MergeSorted(merged, l)
	}
	res.Added += len(merged)
	return merged
}

// updatePhase processes utime records: HEAD the object and
// compare its ETag to the local file's MD5 when feasible; a match means
// only the local mtime needs updating, otherwise the add-phase logic is
// reused (re-download). Returns (touched, reDownloaded).
func (e *Engine) updatePhase(ctx context.Context, utime []Record, res *Result) (touched, reDownloaded []Record) {
	var toReDownload []Record

	for _, r := range utime {
		if e.Abort.Aborted() {
			break
		}
		localPath, keep := e.Rules.LocalPath(r)
		if !keep {
			continue
		}
		remoteKey := e.Prefix + r.Path
		path := filepath.Join(e.DestRoot, filepath.FromSlash(localPath))

		_, etag, _, err := e.Lister.Head(ctx, remoteKey)
		if err != nil {
			res.TransientFailures++
			continue
		}

		if IsPlainMD5ETag(etag) {
			if sum, err := fileMD5(path); err == nil && sum == etag {
				if err := touchMTime(path, r.ModTime); err != nil {
					res.TransientFailures++
					continue
				}
				touched = append(touched, r)
				res.Updated++
				continue
			}
		}
		toReDownload = append(toReDownload, r)
	}

	if len(toReDownload) > 0 {
		reDownloaded = e.addPhase(ctx, toReDownload, res)
	}

	SortRecords(touched)
	return touched, reDownloaded
}
