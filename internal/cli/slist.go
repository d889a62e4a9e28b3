// SPDX-License-Identifier: BSD-2-Clause
//
// Copyright (c) 2025 The FreeBSD Foundation.
//
// This software was developed by Hayzam Sherif <hayzam@alchemilla.io>
// of Alchemilla Ventures Pvt. Ltd. <hello@alchemilla.io>,
// under sponsorship from the FreeBSD Foundation.

package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/planb-backup/planb/internal/catalog"
)

type storageEntry struct {
	pool      string
	name      string
	usedBytes uint64
	fileset   *catalog.Fileset
}

func slistCmd() *cobra.Command {
	var stale bool

	cmd := &cobra.Command{
		Use:   "slist",
		Short: "List storage entries/datasets, matched to their filesets",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			sets, err := rt.Repo.ListAll()
			if err != nil {
				return fmt.Errorf("slist: %w", err)
			}
			byDatasetName := make(map[string]*catalog.Fileset, len(sets))
			for i := range sets {
				byDatasetName[sets[i].Group.Name+"-"+sets[i].FriendlyName] = &sets[i]
			}

			var entries []storageEntry
			for alias, engine := range rt.Engines {
				names, err := engine.ListDatasets(ctx)
				if err != nil {
					return fmt.Errorf("slist: pool %q: %w", alias, err)
				}
				for _, name := range names {
					fs := byDatasetName[name]
					if stale && fs != nil {
						continue
					}

					var used uint64
					if fs != nil {
						if u, err := engine.GetDataset(fs.Group.Name, fs.FriendlyName).UsedSize(ctx); err == nil {
							used = u
						}
					}
					entries = append(entries, storageEntry{pool: alias, name: name, usedBytes: used, fileset: fs})
				}
			}

			sort.Slice(entries, func(i, j int) bool {
				gi, gj := groupLabel(entries[i]), groupLabel(entries[j])
				if gi != gj {
					return gi < gj
				}
				return entries[i].name < entries[j].name
			})

			var lastGroup string
			first := true
			for _, e := range entries {
				group := groupLabel(e)
				if group != lastGroup {
					lastGroup = group
					if !first {
						fmt.Println()
					}
					first = false
					fmt.Printf("; %s\n", group)
				}

				id := "NONE"
				if e.fileset != nil {
					id = fmt.Sprintf("%d", e.fileset.ID)
				}
				fmt.Printf("%-54s  %8s  id=%s\n", e.pool+"/"+e.name, humanize.Bytes(e.usedBytes), id)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&stale, "stale", false, "list stale (unmatched) storage entries only")
	return cmd
}

func groupLabel(e storageEntry) string {
	if e.fileset != nil {
		return e.fileset.Group.Name
	}
	return "(nogroup)"
}
