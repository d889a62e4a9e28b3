// SPDX-License-Identifier: BSD-2-Clause
//
// Copyright (c) 2025 The FreeBSD Foundation.
//
// This software was developed by Hayzam Sherif <hayzam@alchemilla.io>
// of Alchemilla Ventures Pvt. Ltd. <hello@alchemilla.io>,
// under sponsorship from the FreeBSD Foundation.

package catalog

import (
	"sync"
	"testing"
	"time"
)

func newTestRepo(t *testing.T) (Repository, uint) {
	t.Helper()
	gdb, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}

	group := HostGroup{Name: "acme"}
	if err := gdb.Create(&group).Error; err != nil {
		t.Fatalf("create group: %v", err)
	}
	fs := Fileset{FriendlyName: "web1", GroupID: group.ID, Enabled: true}
	if err := gdb.Create(&fs).Error; err != nil {
		t.Fatalf("create fileset: %v", err)
	}

	return NewRepository(gdb), fs.ID
}

func TestClaim_SingleFlight(t *testing.T) {
	repo, id := newTestRepo(t)

	const attempts = 20
	var wg sync.WaitGroup
	results := make([]bool, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := repo.Claim(id)
			if err != nil {
				t.Errorf("claim: %v", err)
			}
			results[i] = ok
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, r := range results {
		if r {
			wins++
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winning claim, got %d", wins)
	}

	if err := repo.ReleaseQueue(id); err != nil {
		t.Fatalf("release: %v", err)
	}
	ok, err := repo.Claim(id)
	if err != nil {
		t.Fatalf("claim after release: %v", err)
	}
	if !ok {
		t.Fatalf("expected claim to succeed after release")
	}
}

func TestUpdateFilesetSuccessMetrics_RollingAverage(t *testing.T) {
	repo, id := newTestRepo(t)

	for i := 0; i < 12; i++ {
		run, err := repo.RecordRunStart(id, RunAttributes{Snapshot: "planb-x"})
		if err != nil {
			t.Fatalf("record run start: %v", err)
		}
		if err := repo.RecordRunEnd(run.ID, RunOutcome{Success: true, DurationSeconds: 10}); err != nil {
			t.Fatalf("record run end: %v", err)
		}
	}

	if err := repo.UpdateFilesetSuccessMetrics(id, time.Now(), 100*time.Second, 50); err != nil {
		t.Fatalf("update metrics: %v", err)
	}

	durations, err := repo.ListRecentDurations(id, 10)
	if err != nil {
		t.Fatalf("list recent durations: %v", err)
	}
	if len(durations) != 10 {
		t.Fatalf("expected 10 recent durations, got %d", len(durations))
	}
}

func TestCloneFileset_CopiesConfigResetsRuntime(t *testing.T) {
	repo, id := newTestRepo(t)

	src, err := repo.GetFileset(id)
	if err != nil {
		t.Fatalf("get fileset: %v", err)
	}
	if err := repo.MarkRunning(id); err != nil {
		t.Fatalf("mark running: %v", err)
	}
	if _, err := repo.Claim(id); err != nil {
		t.Fatalf("claim: %v", err)
	}

	clone, err := repo.CloneFileset(id, "web2", "web2.example.com")
	if err != nil {
		t.Fatalf("clone fileset: %v", err)
	}
	if clone.FriendlyName != "web2" {
		t.Fatalf("expected cloned friendly_name web2, got %q", clone.FriendlyName)
	}
	if clone.GroupID != src.GroupID {
		t.Fatalf("expected clone to stay in the source host group")
	}
	if clone.HostOverride != "web2.example.com" {
		t.Fatalf("expected host override to be set, got %q", clone.HostOverride)
	}
	if clone.IsQueued || clone.IsRunning {
		t.Fatalf("expected clone to start with runtime flags cleared")
	}
}

func TestListAllAndHostGroups(t *testing.T) {
	repo, id := newTestRepo(t)

	all, err := repo.ListAll()
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 1 || all[0].ID != id {
		t.Fatalf("expected the single seeded fileset, got %v", all)
	}

	groups, err := repo.ListHostGroups()
	if err != nil {
		t.Fatalf("list host groups: %v", err)
	}
	if len(groups) != 1 || groups[0].Name != "acme" {
		t.Fatalf("expected the single seeded host group, got %v", groups)
	}

	group, err := repo.GetHostGroup("acme")
	if err != nil {
		t.Fatalf("get host group: %v", err)
	}
	if group.Name != "acme" {
		t.Fatalf("expected group acme, got %q", group.Name)
	}

	if _, err := repo.GetHostGroup("does-not-exist"); err == nil {
		t.Fatalf("expected an error for an unknown host group")
	}
}
