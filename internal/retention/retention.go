// SPDX-License-Identifier: BSD-2-Clause
//
// Copyright (c) 2025 The FreeBSD Foundation.
//
// This software was developed by Hayzam Sherif <hayzam@alchemilla.io>
// of Alchemilla Ventures Pvt. Ltd. <hello@alchemilla.io>,
// under sponsorship from the FreeBSD Foundation.

// Package retention implements the time-bucketed snapshot pruning
// algorithm: for each configured unit (hour/day/week/month/year), scan
// snapshots oldest to newest and record the first snapshot seen in
// each distinct period. The most recent count+1 period-representatives
// survive; the extra (+1) representative is kept as a boundary marker
// so a unit never looks like it is missing data older than its
// configured retention just because the period happened to roll over
// early. Only names following the "planb-" scheduler convention are
// ever touched.
package retention

import (
	"regexp"
	"sort"
	"time"
)

const snapshotLayout = "20060102T1504Z"

var planbNameRE = regexp.MustCompile(`^planb-(\d{8}T\d{4}Z)$`)

// Map is a retention policy: unit letter ("h","d","w","m","y") to count.
type Map map[string]int

// Plan returns the ordered list of snapshot names to delete from names,
// applying the retention map. names need not be sorted and may include
// non-planb names, which are left untouched. The result preserves the
// "never prune the last remaining planb-* snapshot" rule.
func Plan(names []string, retain Map) []string {
	type snap struct {
		name string
		ts   time.Time
	}

	var planb []snap
	for _, n := range names {
		m := planbNameRE.FindStringSubmatch(n)
		if m == nil {
			continue
		}
		ts, err := time.Parse(snapshotLayout, m[1])
		if err != nil {
			continue
		}
		planb = append(planb, snap{n, ts})
	}

	if len(planb) == 0 {
		return nil
	}

	// Ascending: oldest first. Period representatives are picked while
	// walking forward in time, so the representative of each period is
	// the first snapshot that falls into it.
	sort.Slice(planb, func(i, j int) bool { return planb[i].ts.Before(planb[j].ts) })

	keep := map[string]bool{}
	for unit, count := range retain {
		if count <= 0 {
			continue
		}
		advanced := periodAdvanced(unit)
		if advanced == nil {
			continue
		}

		var reps []snap
		var anchor *time.Time
		for _, s := range planb {
			if anchor == nil || advanced(*anchor, s.ts) {
				reps = append(reps, s)
				t := s.ts
				anchor = &t
			}
		}

		// Keep the most recent count+1 period representatives: the
		// extra representative is a boundary marker so this unit
		// doesn't look empty just because its newest period hasn't
		// rolled over yet.
		window := count + 1
		if window > len(reps) {
			window = len(reps)
		}
		for _, s := range reps[len(reps)-window:] {
			keep[s.name] = true
		}
	}

	if len(keep) == 0 {
		// Never prune the last remaining auto snapshot.
		keep[planb[len(planb)-1].name] = true
	}

	var deleted []string
	for _, s := range planb {
		if !keep[s.name] {
			deleted = append(deleted, s.name)
		}
	}
	return deleted
}

// periodAdvanced returns a predicate reporting whether new's period-unit
// window differs from prev's. prev is always the current
// anchor (older-or-equal) in the oldest-to-newest scan, so prev <= new.
func periodAdvanced(unit string) func(prev, new time.Time) bool {
	switch unit {
	case "h":
		return func(prev, new time.Time) bool {
			return !sameHour(prev, new) || prev.Sub(new) > time.Hour
		}
	case "d":
		return func(prev, new time.Time) bool {
			return !sameDay(prev, new) || prev.Sub(new) > 24*time.Hour
		}
	case "w":
		return func(prev, new time.Time) bool {
			py, pw := prev.ISOWeek()
			ny, nw := new.ISOWeek()
			return py != ny || pw != nw || prev.Sub(new) > 7*24*time.Hour
		}
	case "m":
		return func(prev, new time.Time) bool {
			return prev.Year() != new.Year() || prev.Month() != new.Month() ||
				prev.Sub(new) > 31*24*time.Hour
		}
	case "y":
		return func(prev, new time.Time) bool {
			return prev.Year() != new.Year() || prev.Sub(new) > 366*24*time.Hour
		}
	default:
		return nil
	}
}

func sameHour(a, b time.Time) bool {
	return sameDay(a, b) && a.Hour() == b.Hour()
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
