// SPDX-License-Identifier: BSD-2-Clause
//
// Copyright (c) 2025 The FreeBSD Foundation.
//
// This software was developed by Hayzam Sherif <hayzam@alchemilla.io>
// of Alchemilla Ventures Pvt. Ltd. <hello@alchemilla.io>,
// under sponsorship from the FreeBSD Foundation.

package retention

import (
	"reflect"
	"sort"
	"testing"
)

func sortedStrings(s []string) []string {
	out := append([]string(nil), s...)
	sort.Strings(out)
	return out
}

func TestPlan_Pruning(t *testing.T) {
	names := []string{
		"planb-20200502T1743Z",
		"planb-20200503T1801Z",
		"planb-20200504T1602Z",
		"hello",
		"planb-20200102T0912Z",
		"planb-20200504T1458Z",
		"planb-20200504T1655Z",
		"archive-20200504T1458Z",
		"planb-20200504T1700Z",
	}
	got := Plan(names, Map{"h": 2, "y": 1})
	want := []string{
		"planb-20200504T1655Z",
		"planb-20200503T1801Z",
		"planb-20200502T1743Z",
	}
	if !reflect.DeepEqual(sortedStrings(got), sortedStrings(want)) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestPlan_RetainsLastPlanbOnly(t *testing.T) {
	names := []string{
		"archive-1", "archive-2", "archive-3", "archive-4", "archive-5",
		"archive-6", "archive-7", "archive-8", "archive-9", "archive-10",
		"archive-11", "archive-12",
		"planb-20200601T0000Z",
		"planb-20210101T0000Z",
		"archive-20210201T0000Z",
	}
	got := Plan(names, Map{})
	want := []string{"planb-20200601T0000Z"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestPlan_WeeklyBucket(t *testing.T) {
	names := []string{
		"planb-20200612T0012Z",
		"planb-20200613T0003Z",
		"planb-20200614T0005Z",
		"planb-20200615T0001Z",
		"planb-20200616T0009Z",
		"planb-20200617T0013Z",
		"planb-20200618T0010Z",
		"planb-20200619T0002Z",
		"planb-20200620T0021Z",
		"planb-20200621T0004Z",
		"planb-20200622T0014Z",
	}
	deleted := Plan(names, Map{"w": 4})

	deletedSet := map[string]bool{}
	for _, d := range deleted {
		deletedSet[d] = true
	}

	// These 11 snapshots span 3 distinct ISO weeks (24, 25, 26). Plan
	// keeps the first snapshot of each week it visits, so the week-24
	// representative is 20200612T0012Z, not its latest member.
	survivors := map[string]bool{
		"planb-20200612T0012Z": true,
		"planb-20200615T0001Z": true,
		"planb-20200622T0014Z": true,
	}
	for _, n := range names {
		wantDeleted := !survivors[n]
		if deletedSet[n] != wantDeleted {
			t.Errorf("snapshot %s: deleted=%v, want deleted=%v", n, deletedSet[n], wantDeleted)
		}
	}
}

func TestPlan_Idempotent(t *testing.T) {
	names := []string{
		"planb-20200502T1743Z", "planb-20200503T1801Z", "planb-20200504T1602Z",
		"planb-20200102T0912Z", "planb-20200504T1458Z", "planb-20200504T1655Z",
		"planb-20200504T1700Z",
	}
	retain := Map{"h": 2, "y": 1}

	deleted := Plan(names, retain)
	deletedSet := map[string]bool{}
	for _, d := range deleted {
		deletedSet[d] = true
	}

	var remaining []string
	for _, n := range names {
		if !deletedSet[n] {
			remaining = append(remaining, n)
		}
	}

	second := Plan(remaining, retain)
	if len(second) != 0 {
		t.Fatalf("second pass deleted %v, want none (idempotent)", second)
	}
}

func TestPlan_NonPlanbNamesUntouched(t *testing.T) {
	names := []string{"archive-foo", "hello", "random-name"}
	got := Plan(names, Map{"h": 1})
	if got != nil {
		t.Fatalf("got %v, want nil", got)
	}
}
