// SPDX-License-Identifier: BSD-2-Clause
//
// Copyright (c) 2025 The FreeBSD Foundation.
//
// This software was developed by Hayzam Sherif <hayzam@alchemilla.io>
// of Alchemilla Ventures Pvt. Ltd. <hello@alchemilla.io>,
// under sponsorship from the FreeBSD Foundation.

package objsync

// DiffResult is the classification of a comm-style merge of two sorted
// Record streams.
type DiffResult struct {
	Del   []Record // local-only, or size differs (old copy)
	Add   []Record // remote-only, or size differs (new copy)
	Utime []Record // size equal, mtime differs (touch-or-redownload candidate)
}

// Diff performs a linear merge of cur (local truth, sorted) against
// next (remote listing, sorted), producing the del/add/utime
// classification above. Both inputs must already be sorted by
// Record.Key.
func Diff(cur, next []Record) DiffResult {
	var out DiffResult
	i, j := 0, 0
	for i < len(cur) && j < len(next) {
		c, n := cur[i], next[j]
		switch {
		case c.Key() < n.Key():
			out.Del = append(out.Del, c)
			i++
		case c.Key() > n.Key():
			out.Add = append(out.Add, n)
			j++
		default:
			switch {
			case c.Size != n.Size:
				out.Del = append(out.Del, c)
				out.Add = append(out.Add, n)
			case !c.ModTime.Equal(n.ModTime):
				out.Utime = append(out.Utime, n)
			}
			i++
			j++
		}
	}
	for ; i < len(cur); i++ {
		out.Del = append(out.Del, cur[i])
	}
	for ; j < len(next); j++ {
		out.Add = append(out.Add, next[j])
	}
	return out
}

// MergeSorted comm-merges two strictly-ascending, duplicate-free Record
// streams into one, used to merge success lists into .cur. When both
// sides have the same key, the value from b wins (b is the newer write).
func MergeSorted(a, b []Record) []Record {
	out := make([]Record, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].Key() < b[j].Key():
			out = append(out, a[i])
			i++
		case a[i].Key() > b[j].Key():
			out = append(out, b[j])
			j++
		default:
			out = append(out, b[j])
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}

// SubtractSorted removes every record in b (by key) from a, used to
// merge-subtract a delete-phase success list out of .cur.
func SubtractSorted(a, b []Record) []Record {
	bKeys := make(map[string]bool, len(b))
	for _, r := range b {
		bKeys[r.Key()] = true
	}
	out := make([]Record, 0, len(a))
	for _, r := range a {
		if !bKeys[r.Key()] {
			out = append(out, r)
		}
	}
	return out
}
