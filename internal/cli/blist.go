// SPDX-License-Identifier: BSD-2-Clause
//
// Copyright (c) 2025 The FreeBSD Foundation.
//
// This software was developed by Hayzam Sherif <hayzam@alchemilla.io>
// of Alchemilla Ventures Pvt. Ltd. <hello@alchemilla.io>,
// under sponsorship from the FreeBSD Foundation.

package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/planb-backup/planb/internal/catalog"
)

func blistCmd() *cobra.Command {
	var summary, zabbix, double bool

	cmd := &cobra.Command{
		Use:   "blist",
		Short: "List filesets, or dump monitoring/discovery data",
		RunE: func(cmd *cobra.Command, args []string) error {
			if summary && !zabbix {
				return fmt.Errorf("blist: --summary requires --zabbix")
			}

			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			sets, err := rt.Repo.ListAll()
			if err != nil {
				return fmt.Errorf("blist: %w", err)
			}
			sort.Slice(sets, func(i, j int) bool {
				if sets[i].Group.Name != sets[j].Group.Name {
					return sets[i].Group.Name < sets[j].Group.Name
				}
				return sets[i].FriendlyName < sets[j].FriendlyName
			})

			switch {
			case summary:
				return dumpZabbixSummary(rt.Repo, sets)
			case zabbix:
				return dumpZabbixDiscovery(sets)
			case double:
				return dumpDoubleBackupList(sets)
			default:
				return dumpFilesetList(sets)
			}
		},
	}

	cmd.Flags().BoolVar(&summary, "summary", false, "show a monitoring summary (requires --zabbix)")
	cmd.Flags().BoolVar(&zabbix, "zabbix", false, "emit Zabbix low-level discovery JSON")
	cmd.Flags().BoolVar(&double, "double", false, "list dataset names tagged for double-backup")
	return cmd
}

// dumpFilesetList reproduces blist's default grouped plain-text listing:
// one "[group]" header per host group, enabled filesets only.
func dumpFilesetList(sets []catalog.Fileset) error {
	var out []string
	var lastGroup string
	first := true

	for _, fs := range sets {
		if !fs.Enabled {
			continue
		}
		if fs.Group.Name != lastGroup {
			lastGroup = fs.Group.Name
			if !first {
				out = append(out, "")
			}
			first = false
			out = append(out, fmt.Sprintf("[%s]", lastGroup))
		}

		transport := fs.TransportRef
		if transport == "" {
			transport = "MISSING_TRANSPORT"
		}
		out = append(out, fmt.Sprintf("%-30s  %s", fs.FriendlyName, transport))
	}
	if len(out) > 0 {
		out = append(out, "")
	}
	for _, line := range out {
		fmt.Println(line)
	}
	return nil
}

// dumpDoubleBackupList implements --double: just the dataset name, one
// per line, for filesets tagged for double-backup regardless of enabled
// state (the remote double-backup server wants to clean up disabled
// hosts too).
func dumpDoubleBackupList(sets []catalog.Fileset) error {
	for _, fs := range sets {
		if !fs.DoubleBackup {
			continue
		}
		fmt.Println(datasetName(fs))
	}
	return nil
}

func datasetName(fs catalog.Fileset) string {
	return fs.Group.Name + "-" + fs.FriendlyName
}

type zabbixDiscoveryEntry struct {
	ID    uint   `json:"{#ID}"`
	Name  string `json:"{#NAME}"`
	PlanB string `json:"{#PLANB}"`
}

func dumpZabbixDiscovery(sets []catalog.Fileset) error {
	hostname, _ := os.Hostname()

	entries := make([]zabbixDiscoveryEntry, 0, len(sets))
	for _, fs := range sets {
		if !fs.Enabled {
			continue
		}
		entries = append(entries, zabbixDiscoveryEntry{
			ID:    fs.ID,
			Name:  datasetName(fs),
			PlanB: hostname,
		})
	}

	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("blist: marshal discovery: %w", err)
	}
	fmt.Println(string(raw))
	return nil
}

type zabbixSummary struct {
	Enabled       int    `json:"enabled"`
	Failed        int    `json:"failed"`
	LatestSuccess int64  `json:"latest_success"`
	OldestSuccess int64  `json:"oldest_success"`
	LatestFailure int64  `json:"latest_failure"`
	OldestFailure int64  `json:"oldest_failure"`
	Disabled      int    `json:"disabled"`
	Hostname      string `json:"hostname"`
}

// dumpZabbixSummary reproduces blist --zabbix --summary: ages, in
// seconds, of the oldest/latest successful and failing fileset within
// the enabled set. A fileset's failure start is resolved by walking its
// run history rather than trusting first_fail directly, since a manual
// forced backup can leave first_fail holding a stale value.
func dumpZabbixSummary(repo catalog.Repository, sets []catalog.Fileset) error {
	hostname, _ := os.Hostname()
	now := time.Now().UTC()

	var enabled, disabled, failed int
	oldestSuccess, latestFailure := now, time.Time{}
	latestSuccess, oldestFailure := time.Time{}, now

	for _, fs := range sets {
		if !fs.Enabled {
			disabled++
			continue
		}
		enabled++

		failedAt, err := repo.FailureStreakStart(fs.ID)
		if err != nil {
			return fmt.Errorf("blist: %w", err)
		}
		if failedAt != nil {
			failed++
			if oldestFailure.After(*failedAt) {
				oldestFailure = *failedAt
			}
			if latestFailure.Before(*failedAt) {
				latestFailure = *failedAt
			}
		} else if fs.LastOK != nil {
			if oldestSuccess.After(*fs.LastOK) {
				oldestSuccess = *fs.LastOK
			}
			if latestSuccess.Before(*fs.LastOK) {
				latestSuccess = *fs.LastOK
			}
		}
	}

	if latestSuccess.IsZero() {
		latestSuccess = now
	}
	if latestFailure.IsZero() {
		latestFailure = now
	}

	asAge := func(t time.Time) int64 { return int64(now.Sub(t).Seconds()) }

	summary := zabbixSummary{
		Enabled:       enabled,
		Failed:        failed,
		LatestSuccess: asAge(latestSuccess),
		OldestSuccess: asAge(oldestSuccess),
		LatestFailure: asAge(latestFailure),
		OldestFailure: asAge(oldestFailure),
		Disabled:      disabled,
		Hostname:      hostname,
	}

	raw, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("blist: marshal summary: %w", err)
	}
	fmt.Println(string(raw))
	return nil
}
