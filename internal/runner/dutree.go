// SPDX-License-Identifier: BSD-2-Clause
//
// Copyright (c) 2025 The FreeBSD Foundation.
//
// This software was developed by Hayzam Sherif <hayzam@alchemilla.io>
// of Alchemilla Ventures Pvt. Ltd. <hello@alchemilla.io>,
// under sponsorship from the FreeBSD Foundation.

package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/planb-backup/planb/internal/logger"
)

// DutreeJob is the post-processing payload enqueued on success when
// do_snapshot_size_listing is set.
type DutreeJob struct {
	FilesetID    uint
	RunID        uint
	SnapshotName string
}

// runDutree aggregates per-entry disk usage under the snapshot path and
// records it against the originating run. It reads the snapshot path
// directly and does not open a workon on the dataset. An aggregation
// failure is appended to the run's error_text and never flips success
// to false; failing to load the fileset, resolve its storage alias or
// store the listing is returned as the job's error.
func (p *Pool) runDutree(ctx context.Context, job DutreeJob) error {
	fs, err := p.Repo.GetFileset(job.FilesetID)
	if err != nil {
		return fmt.Errorf("dutree: load fileset: %w", err)
	}

	engine, ok := p.Engines[fs.StorageAlias]
	if !ok {
		return fmt.Errorf("dutree: unknown storage_alias %q", fs.StorageAlias)
	}
	dataset := engine.GetDataset(fs.Group.Name, fs.FriendlyName)
	snapPath := dataset.SnapshotPath(job.SnapshotName)

	listing, totalBytes, err := aggregateSizes(snapPath)
	if err != nil {
		logger.L.Warn().Err(err).Uint("run_id", job.RunID).Msg("dutree: aggregation failed")
		if aerr := p.Repo.AppendRunError(job.RunID, "dutree: "+err.Error()); aerr != nil {
			logger.L.Error().Err(aerr).Uint("run_id", job.RunID).Msg("dutree: recording failure failed")
		}
		return nil
	}

	sizeMB := float64(totalBytes) / (1024 * 1024)
	if err := p.Repo.UpdateSnapshotSizeListing(job.RunID, sizeMB, listing); err != nil {
		return fmt.Errorf("dutree: update_snapshot_size_listing: %w", err)
	}
	return nil
}

// aggregateSizes walks root and returns a YAML-safe "path: digits" line
// per top-level entry, plus the grand total, the shape stored in
// BackupRun.SnapshotSizeListing.
func aggregateSizes(root string) (listing string, total int64, err error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", 0, fmt.Errorf("read snapshot path %s: %w", root, err)
	}

	type entrySize struct {
		name string
		size int64
	}
	var sizes []entrySize

	for _, e := range entries {
		p := filepath.Join(root, e.Name())
		var sz int64
		walkErr := filepath.Walk(p, func(path string, info os.FileInfo, walkErr error) error {
			if walkErr != nil {
				if os.IsNotExist(walkErr) {
					return nil
				}
				return walkErr
			}
			if !info.IsDir() {
				sz += info.Size()
			}
			return nil
		})
		if walkErr != nil {
			return "", 0, walkErr
		}
		sizes = append(sizes, entrySize{name: e.Name(), size: sz})
		total += sz
	}

	sort.Slice(sizes, func(i, j int) bool { return sizes[i].name < sizes[j].name })

	var b strings.Builder
	for _, s := range sizes {
		fmt.Fprintf(&b, "%s: %d\n", yamlSafeStr(s.name), s.size)
	}
	return b.String(), total, nil
}

// yamlSafeStr quotes a path if it contains characters that would need
// escaping as a bare YAML scalar key.
func yamlSafeStr(s string) string {
	if s == "" || strings.ContainsAny(s, ":#{}[]&*!|>'\"%@`,\n") {
		return fmt.Sprintf("%q", s)
	}
	return s
}
