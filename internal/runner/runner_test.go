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
	"errors"
	"testing"

	"github.com/planb-backup/planb/internal/catalog"
	"github.com/planb-backup/planb/internal/storage"
	"github.com/planb-backup/planb/internal/transport"
)

type fakeTransport struct {
	err error
}

func (f *fakeTransport) RunTransport(ctx context.Context, dataDir string) error {
	return f.err
}

type recordingNotifier struct {
	recovered    int
	firstFailure int
}

func (n *recordingNotifier) Recovered(fs catalog.Fileset)              { n.recovered++ }
func (n *recordingNotifier) FirstFailure(fs catalog.Fileset, e string) { n.firstFailure++ }

func newTestPool(t *testing.T, transportErr error) (*Pool, catalog.Repository, uint) {
	t.Helper()
	gdb, err := catalog.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	repo := catalog.NewRepository(gdb)

	group := catalog.HostGroup{Name: "acme"}
	if err := gdb.Create(&group).Error; err != nil {
		t.Fatal(err)
	}
	fs := catalog.Fileset{FriendlyName: "web1", GroupID: group.ID, Enabled: true, StorageAlias: "dummy"}
	if err := gdb.Create(&fs).Error; err != nil {
		t.Fatal(err)
	}

	engine := storage.NewDummyEngine(t.TempDir())
	pool := &Pool{
		Repo:    repo,
		Engines: map[string]storage.Engine{"dummy": engine},
		Transport: func(catalog.Fileset, string, string) (transport.Transport, error) {
			return &fakeTransport{err: transportErr}, nil
		},
		Notifier: &recordingNotifier{},
	}
	return pool, repo, fs.ID
}

func TestExecute_SuccessPath(t *testing.T) {
	pool, repo, id := newTestPool(t, nil)
	fs, err := repo.GetFileset(id)
	if err != nil {
		t.Fatal(err)
	}

	success, errText := pool.execute(context.Background(), fs, "planb-20200101T0000Z")
	if !success {
		t.Fatalf("expected success, got error: %s", errText)
	}

	names, err := pool.Engines["dummy"].GetDataset(fs.Group.Name, fs.FriendlyName).SnapshotList(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, n := range names {
		if n == "planb-20200101T0000Z" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected snapshot to be created, got %v", names)
	}
}

func TestExecute_TransportFailurePropagates(t *testing.T) {
	pool, repo, id := newTestPool(t, errors.New("boom"))
	fs, err := repo.GetFileset(id)
	if err != nil {
		t.Fatal(err)
	}

	success, errText := pool.execute(context.Background(), fs, "planb-20200101T0000Z")
	if success {
		t.Fatalf("expected failure")
	}
	if errText == "" {
		t.Fatalf("expected non-empty error text")
	}
}

func TestRun_FullPipelineRecordsMetrics(t *testing.T) {
	pool, repo, id := newTestPool(t, nil)
	pool.Queue = nil // run() is invoked directly, not through the queue, in this test
	pool.DutreeQueue = nil

	pool.run(context.Background(), Job{FilesetID: id, SnapshotName: "planb-20200101T0000Z"})

	fs, err := repo.GetFileset(id)
	if err != nil {
		t.Fatal(err)
	}
	if fs.LastOK == nil {
		t.Fatalf("expected last_ok to be set after a successful run")
	}
	if fs.IsRunning {
		t.Fatalf("expected is_running to be cleared after run")
	}

	durations, err := repo.ListRecentDurations(id, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(durations) != 1 {
		t.Fatalf("expected 1 recorded duration, got %d", len(durations))
	}
}

func TestValidateSnapshotName(t *testing.T) {
	cases := []struct {
		name string
		ok   bool
	}{
		{"planb-20200504T1700Z", true},
		{"nightly-archive", true},
		{"a", true},
		{"planb", false},
		{"planb-custom", false},
		{"Uppercase", false},
		{"ends-with-dash-", false},
		{"", false},
	}
	for _, c := range cases {
		err := ValidateSnapshotName(c.name)
		if (err == nil) != c.ok {
			t.Errorf("ValidateSnapshotName(%q) = %v, want ok=%v", c.name, err, c.ok)
		}
	}
}

func TestParseRetention(t *testing.T) {
	got := ParseRetention("16d,4w,12m,2y")
	want := map[string]int{"d": 16, "w": 4, "m": 12, "y": 2}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for unit, n := range want {
		if got[unit] != n {
			t.Errorf("unit %s: got %d, want %d", unit, got[unit], n)
		}
	}
}
