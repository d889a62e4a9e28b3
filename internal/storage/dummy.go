// SPDX-License-Identifier: BSD-2-Clause
//
// Copyright (c) 2025 The FreeBSD Foundation.
//
// This software was developed by Hayzam Sherif <hayzam@alchemilla.io>
// of Alchemilla Ventures Pvt. Ltd. <hello@alchemilla.io>,
// under sponsorship from the FreeBSD Foundation.

package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// DummyEngine is an in-memory/temp-directory engine used for tests and
// pools declared as scratch. Snapshots are tracked in memory rather than
// through any real copy-on-write primitive.
type DummyEngine struct {
	root string
	mu   sync.Mutex
	sets map[string]*dummyDataset
}

// NewDummyEngine roots every dataset it serves under root/data/<name>.
func NewDummyEngine(root string) *DummyEngine {
	return &DummyEngine{root: root, sets: map[string]*dummyDataset{}}
}

func (e *DummyEngine) Name() string { return "dummy" }

func (e *DummyEngine) GetDataset(group, friendlyName string) Dataset {
	e.mu.Lock()
	defer e.mu.Unlock()

	name := fmt.Sprintf("%s-%s", group, friendlyName)
	if d, ok := e.sets[name]; ok {
		return d
	}
	d := &dummyDataset{
		name: name,
		dir:  filepath.Join(e.root, "data", name),
	}
	e.sets[name] = d
	return d
}

type dummySnapshot struct {
	name    string
	created time.Time
}

type dummyDataset struct {
	name string
	dir  string

	mu        sync.Mutex
	busy      bool
	snapshots []dummySnapshot
}

func (d *dummyDataset) Name() string { return d.name }

func (d *dummyDataset) EnsureExists(ctx context.Context) error {
	return os.MkdirAll(d.dir, 0755)
}

type dummyWorkon struct{ d *dummyDataset }

func (w *dummyWorkon) Path() string { return w.d.dir }

func (w *dummyWorkon) Close() error {
	w.d.mu.Lock()
	w.d.busy = false
	w.d.mu.Unlock()
	return nil
}

func (d *dummyDataset) Workon(ctx context.Context) (Workon, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.busy {
		return nil, &Error{Kind: KindBusy, Err: fmt.Errorf("dataset %s already has an active workon", d.name), Debug: "workon"}
	}
	if err := os.MkdirAll(d.dir, 0755); err != nil {
		return nil, &Error{Kind: KindExec, Err: err, Debug: "mkdir"}
	}
	d.busy = true
	return &dummyWorkon{d: d}, nil
}

func (d *dummyDataset) DataPath() string { return d.dir }

func (d *dummyDataset) SnapshotPath(name string) string {
	return filepath.Join(d.dir, ".snapshots", name)
}

func (d *dummyDataset) UsedSize(ctx context.Context) (uint64, error) {
	return dirSize(d.dir)
}

func (d *dummyDataset) ReferencedSize(ctx context.Context) (uint64, error) {
	return dirSize(d.dir)
}

func (d *dummyDataset) Rename(ctx context.Context, newName string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.busy {
		return fmt.Errorf("cannot rename dataset %s while a workon is active", d.name)
	}
	d.name = newName
	return nil
}

func (d *dummyDataset) SnapshotCreate(ctx context.Context, name string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.snapshots = append(d.snapshots, dummySnapshot{name: name, created: time.Now().UTC()})
	return name, nil
}

func (d *dummyDataset) SnapshotDelete(ctx context.Context, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, s := range d.snapshots {
		if s.name == name {
			d.snapshots = append(d.snapshots[:i], d.snapshots[i+1:]...)
			return nil
		}
	}
	return &Error{Kind: KindDatasetNotFound, Err: fmt.Errorf("snapshot %s not found", name), Debug: "snapshot_delete"}
}

func (d *dummyDataset) SnapshotList(ctx context.Context) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.snapshots))
	snaps := append([]dummySnapshot(nil), d.snapshots...)
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].created.Before(snaps[j].created) })
	for i, s := range snaps {
		out[i] = s.name
	}
	return out, nil
}

// ListDatasets returns the datasets touched so far in this process; the
// dummy engine has no on-disk catalog of its own beyond that.
func (e *DummyEngine) ListDatasets(ctx context.Context) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, 0, len(e.sets))
	for name := range e.sets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func dirSize(root string) (uint64, error) {
	var total uint64
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !info.IsDir() {
			total += uint64(info.Size())
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}
