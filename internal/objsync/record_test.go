// SPDX-License-Identifier: BSD-2-Clause
//
// Copyright (c) 2025 The FreeBSD Foundation.
//
// This software was developed by Hayzam Sherif <hayzam@alchemilla.io>
// of Alchemilla Ventures Pvt. Ltd. <hello@alchemilla.io>,
// under sponsorship from the FreeBSD Foundation.

package objsync

import (
	"testing"
	"time"
)

func TestParseRecord_EscapedPipe(t *testing.T) {
	got, err := ParseRecord("containerx|path/to||esc|2021-02-03T12:34:56.654321|1234")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Container != "containerx" {
		t.Errorf("container = %q, want containerx", got.Container)
	}
	if got.Path != "path/to|esc" {
		t.Errorf("path = %q, want path/to|esc", got.Path)
	}
	if got.Size != 1234 {
		t.Errorf("size = %d, want 1234", got.Size)
	}
	want := time.Date(2021, 2, 3, 12, 34, 56, 654321000, time.UTC)
	if !got.ModTime.Equal(want) {
		t.Errorf("mtime = %v, want %v", got.ModTime, want)
	}
}

func TestEmitParseRoundTrip(t *testing.T) {
	cases := []Record{
		{Container: "c1", Path: "a/b/c", ModTime: time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC), Size: 42},
		{Path: "no-container", ModTime: time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC), Size: 0},
		{Container: "c|pipe", Path: "weird||path", ModTime: time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC), Size: 7},
	}
	for _, c := range cases {
		line := c.Emit()
		got, err := ParseRecord(line)
		if err != nil {
			t.Fatalf("parse(%q) failed: %v", line, err)
		}
		if got != c {
			t.Errorf("round-trip mismatch: got %+v, want %+v (line %q)", got, c, line)
		}
	}
}

func TestSortRecords(t *testing.T) {
	recs := []Record{
		{Container: "b", Path: "x"},
		{Container: "a", Path: "z"},
		{Container: "a", Path: "a"},
	}
	SortRecords(recs)
	want := []string{"a\x00a", "a\x00z", "b\x00x"}
	for i, r := range recs {
		if r.Key() != want[i] {
			t.Errorf("position %d: key = %q, want %q", i, r.Key(), want[i])
		}
	}
}
