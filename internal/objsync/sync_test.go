// SPDX-License-Identifier: BSD-2-Clause
//
// Copyright (c) 2025 The FreeBSD Foundation.
//
// This software was developed by Hayzam Sherif <hayzam@alchemilla.io>
// of Alchemilla Ventures Pvt. Ltd. <hello@alchemilla.io>,
// under sponsorship from the FreeBSD Foundation.

package objsync

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/planb-backup/planb/internal/objsyncconf"
)

// fakeLister is an in-memory RemoteLister backed by a fixed object set,
// standing in for S3Lister in engine-level tests.
type fakeLister struct {
	objects map[string][]byte
	mtimes  map[string]time.Time
	gets    int
}

func newFakeLister(objects map[string]string, mtime time.Time) *fakeLister {
	fl := &fakeLister{objects: map[string][]byte{}, mtimes: map[string]time.Time{}}
	for k, v := range objects {
		fl.objects[k] = []byte(v)
		fl.mtimes[k] = mtime
	}
	return fl
}

func (f *fakeLister) etag(key string) string {
	sum := md5.Sum(f.objects[key])
	return hex.EncodeToString(sum[:])
}

func (f *fakeLister) List(ctx context.Context, container, prefix string) ([]Record, error) {
	var recs []Record
	for k, v := range f.objects {
		recs = append(recs, Record{
			Container: container,
			Path:      k[len(prefix):],
			ModTime:   f.mtimes[k],
			Size:      int64(len(v)),
		})
	}
	SortRecords(recs)
	return recs, nil
}

func (f *fakeLister) Head(ctx context.Context, key string) (int64, string, time.Time, error) {
	v, ok := f.objects[key]
	if !ok {
		return 0, "", time.Time{}, os.ErrNotExist
	}
	return int64(len(v)), f.etag(key), f.mtimes[key], nil
}

func (f *fakeLister) Get(ctx context.Context, key string, rangeStart int64) (io.ReadCloser, string, error) {
	f.gets++
	v, ok := f.objects[key]
	if !ok {
		return nil, "", os.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(v[rangeStart:])), f.etag(key), nil
}

func newTestEngine(t *testing.T, lister RemoteLister, destRoot, metaDir string) *Engine {
	t.Helper()
	rs, err := CompileRuleset(&objsyncconf.Section{})
	if err != nil {
		t.Fatalf("compile ruleset: %v", err)
	}
	return &Engine{
		Lister:    lister,
		Rules:     rs,
		DestRoot:  destRoot,
		Prefix:    "",
		Container: "",
		Workers:   2,
		Paths:     NewPaths(metaDir, "test"),
		Abort:     NewAbortFlag(),
	}
}

func TestEngine_FullSyncThenIdempotent(t *testing.T) {
	dest := t.TempDir()
	meta := t.TempDir()
	mtime := time.Date(2021, 5, 1, 12, 0, 0, 0, time.UTC)

	lister := newFakeLister(map[string]string{
		"a/one.txt": "hello",
		"b/two.txt": "world!!",
	}, mtime)

	eng := newTestEngine(t, lister, dest, meta)

	res, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if res.Added != 2 {
		t.Fatalf("first run added = %d, want 2", res.Added)
	}
	if res.ExitCode() != 0 {
		t.Fatalf("first run exit code = %d, want 0", res.ExitCode())
	}

	for path, want := range map[string]string{"a/one.txt": "hello", "b/two.txt": "world!!"} {
		got, err := os.ReadFile(filepath.Join(dest, path))
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		if string(got) != want {
			t.Errorf("%s content = %q, want %q", path, got, want)
		}
	}

	getsAfterFirst := lister.gets

	res2, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res2.Added != 0 || res2.Deleted != 0 || res2.Updated != 0 {
		t.Fatalf("second run not idempotent: %+v", res2)
	}
	if lister.gets != getsAfterFirst {
		t.Fatalf("second run issued GETs: idempotence violated")
	}
}

func TestEngine_DeletionPropagates(t *testing.T) {
	dest := t.TempDir()
	meta := t.TempDir()
	mtime := time.Date(2021, 5, 1, 12, 0, 0, 0, time.UTC)

	lister := newFakeLister(map[string]string{"keep.txt": "x", "gone.txt": "y"}, mtime)
	eng := newTestEngine(t, lister, dest, meta)
	if _, err := eng.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}

	delete(lister.objects, "gone.txt")
	delete(lister.mtimes, "gone.txt")
	// force a listing rebuild
	os.Remove(eng.Paths.New)

	res, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res.Deleted != 1 {
		t.Fatalf("deleted = %d, want 1", res.Deleted)
	}
	if _, err := os.Stat(filepath.Join(dest, "gone.txt")); !os.IsNotExist(err) {
		t.Fatalf("gone.txt should have been removed locally")
	}
}
