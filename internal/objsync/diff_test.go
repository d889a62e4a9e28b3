// SPDX-License-Identifier: BSD-2-Clause
//
// Copyright (c) 2025 The FreeBSD Foundation.
//
// This software was developed by Hayzam Sherif <hayzam@alchemilla.io>
// of Alchemilla Ventures Pvt. Ltd. <hello@alchemilla.io>,
// under sponsorship from the FreeBSD Foundation.

package objsync

import (
	"reflect"
	"testing"
	"time"
)

func rec(path string, size int64, t time.Time) Record {
	return Record{Path: path, Size: size, ModTime: t}
}

func TestDiff_Classification(t *testing.T) {
	t0 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	cur := []Record{
		rec("deleted-only", 10, t0),
		rec("same", 5, t0),
		rec("size-changed", 5, t0),
		rec("mtime-changed", 5, t0),
	}
	next := []Record{
		rec("added-only", 20, t0),
		rec("mtime-changed", 5, t1),
		rec("same", 5, t0),
		rec("size-changed", 9, t0),
	}
	SortRecords(cur)
	SortRecords(next)

	d := Diff(cur, next)

	if len(d.Del) != 2 {
		t.Fatalf("del = %v, want 2 entries", d.Del)
	}
	if len(d.Add) != 2 {
		t.Fatalf("add = %v, want 2 entries", d.Add)
	}
	if len(d.Utime) != 1 || d.Utime[0].Path != "mtime-changed" {
		t.Fatalf("utime = %v, want [mtime-changed]", d.Utime)
	}
}

func TestMergeSorted_NewerWins(t *testing.T) {
	t0 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	a := []Record{rec("x", 1, t0), rec("z", 1, t0)}
	b := []Record{rec("x", 2, t0), rec("y", 1, t0)}
	got := MergeSorted(a, b)
	want := []Record{rec("x", 2, t0), rec("y", 1, t0), rec("z", 1, t0)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestSubtractSorted(t *testing.T) {
	t0 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	a := []Record{rec("x", 1, t0), rec("y", 1, t0), rec("z", 1, t0)}
	b := []Record{rec("y", 1, t0)}
	got := SubtractSorted(a, b)
	want := []Record{rec("x", 1, t0), rec("z", 1, t0)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestDiffThenMerge_RoundTrip(t *testing.T) {
	t0 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	remote := []Record{rec("a", 1, t0), rec("b", 2, t0), rec("c", 3, t0)}
	SortRecords(remote)

	var cur []Record
	d := Diff(cur, remote)
	if len(d.Add) != len(remote) {
		t.Fatalf("expected every remote record as add, got %d", len(d.Add))
	}

	cur = MergeSorted(cur, d.Add)
	SortRecords(cur)
	if !reflect.DeepEqual(cur, remote) {
		t.Fatalf("after full add, cur = %v, want %v", cur, remote)
	}

	// Idempotence: second diff against the same remote state yields nothing.
	d2 := Diff(cur, remote)
	if len(d2.Add)+len(d2.Del)+len(d2.Utime) != 0 {
		t.Fatalf("second diff not empty: %+v", d2)
	}
}
