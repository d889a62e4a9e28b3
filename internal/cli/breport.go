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
	"strings"

	"github.com/spf13/cobra"

	"github.com/planb-backup/planb/internal/catalog"
)

// breport formats the per-hostgroup backup report. Actual mail delivery
// belongs to an outer pipeline; --output=email only changes the framing
// of the same text so that pipeline can pick it up.
func breportCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "breport",
		Short: "Print a per-hostgroup backup report",
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "email" && output != "stdout" {
				return fmt.Errorf("breport: --output must be email or stdout, got %q", output)
			}

			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			sets, err := rt.Repo.ListAll()
			if err != nil {
				return fmt.Errorf("breport: %w", err)
			}

			groups, err := rt.Repo.ListHostGroups()
			if err != nil {
				return fmt.Errorf("breport: %w", err)
			}
			byGroup := map[uint][]catalog.Fileset{}
			for _, fs := range sets {
				if !fs.Enabled {
					continue
				}
				byGroup[fs.GroupID] = append(byGroup[fs.GroupID], fs)
			}

			for _, group := range groups {
				hosts := byGroup[group.ID]
				if len(hosts) == 0 || group.NotifyRecipients == "" {
					continue
				}
				body := reportBody(group, hosts)

				if output == "stdout" {
					fmt.Println(body)
					continue
				}
				for _, recipient := range strings.Split(group.NotifyRecipients, "\n") {
					recipient = strings.TrimSpace(recipient)
					if recipient == "" {
						continue
					}
					fmt.Printf("Sending report for %s to %s\n", group.Name, recipient)
					fmt.Println(body)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&output, "output", "stdout", "email or stdout")
	return cmd
}

func reportBody(group catalog.HostGroup, hosts []catalog.Fileset) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Plan B backup report for %s\n\n", group.Name)
	for _, fs := range hosts {
		status := "ok"
		if fs.FirstFail != nil {
			status = "FAILING since " + fs.FirstFail.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(&b, "  %-30s  %s\n", fs.FriendlyName, status)
	}
	return b.String()
}
