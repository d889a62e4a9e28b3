// SPDX-License-Identifier: BSD-2-Clause
//
// Copyright (c) 2025 The FreeBSD Foundation.
//
// This software was developed by Hayzam Sherif <hayzam@alchemilla.io>
// of Alchemilla Ventures Pvt. Ltd. <hello@alchemilla.io>,
// under sponsorship from the FreeBSD Foundation.

package cli

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/planb-backup/planb/internal/catalog"
)

type failureSpan struct {
	first time.Time
	last  time.Time
	count int
}

func (f failureSpan) durationHours() float64 {
	return f.last.Sub(f.first).Hours()
}

func bstatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bstats [group_glob] [fileset_glob]",
		Short: "Show past-year failure spans longer than 48h, grouped by host group",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			groupGlob, filesetGlob := "*", "*"
			if len(args) > 0 {
				groupGlob = args[0]
			}
			if len(args) > 1 {
				filesetGlob = args[1]
			}

			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			sets, err := rt.Repo.ListAll()
			if err != nil {
				return fmt.Errorf("bstats: %w", err)
			}

			sort.Slice(sets, func(i, j int) bool {
				if sets[i].Group.Name != sets[j].Group.Name {
					return sets[i].Group.Name < sets[j].Group.Name
				}
				return sets[i].FriendlyName < sets[j].FriendlyName
			})

			oneYearAgo := time.Now().UTC().AddDate(-1, 0, -1)

			var lastGroup string
			printedHeader := false
			for _, fs := range sets {
				if ok, _ := filepath.Match(groupGlob, fs.Group.Name); !ok {
					continue
				}
				if ok, _ := filepath.Match(filesetGlob, fs.FriendlyName); !ok {
					continue
				}

				if fs.Group.Name != lastGroup {
					lastGroup = fs.Group.Name
					printedHeader = false
				}

				spans, err := failureSpans(rt.Repo, fs.ID, oneYearAgo)
				if err != nil {
					return fmt.Errorf("bstats: %w", err)
				}

				var long []failureSpan
				for _, s := range spans {
					if s.durationHours() >= 48 {
						long = append(long, s)
					}
				}
				if len(long) == 0 {
					continue
				}

				if !printedHeader {
					fmt.Printf("%s :: Backups failed longer than 48h in the past year:\n", fs.Group.Name)
					printedHeader = true
				}
				fmt.Printf("  %s\n", fs.FriendlyName)
				for _, s := range long {
					fmt.Printf("  - %s - failed for %.1f hours (%d failed attempts)\n",
						s.first.Format("2006-01-02 15:04"), s.durationHours(), s.count)
				}
			}
			return nil
		},
	}
}

// failureSpans reproduces bstats' process_fileset: walk runs oldest
// first and group consecutive failures bounded by the successes either
// side of them. A failure streak still open at the end of the window is
// silently dropped, matching the original's "not storing 'still
// failing' runs" comment.
func failureSpans(repo catalog.Repository, filesetID uint, since time.Time) ([]failureSpan, error) {
	runs, err := repo.ListRunsSince(filesetID, since)
	if err != nil {
		return nil, err
	}

	var spans []failureSpan
	var failedFirst *time.Time
	failedAttempts := 0

	for _, run := range runs {
		if failedFirst == nil {
			if !run.Success {
				t := run.Started
				failedFirst = &t
				failedAttempts = 1
			}
			continue
		}
		if run.Success {
			spans = append(spans, failureSpan{first: *failedFirst, last: run.Started, count: failedAttempts})
			failedFirst = nil
		} else {
			failedAttempts++
		}
	}

	return spans, nil
}
