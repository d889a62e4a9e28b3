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
	"time"

	"github.com/spf13/cobra"

	"github.com/planb-backup/planb/internal/scheduler"
)

func bqueueallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bqueueall",
		Short: "Enqueue every enabled fileset for an immediate backup",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			sets, err := rt.Repo.ListAll()
			if err != nil {
				return fmt.Errorf("bqueueall: %w", err)
			}

			snapshot := scheduler.SnapshotName(time.Now().UTC())
			for _, fs := range sets {
				if !fs.Enabled || fs.IsQueued {
					continue
				}
				ok, err := rt.Repo.Claim(fs.ID)
				if err != nil {
					fmt.Printf("bqueueall: claim %s: %v\n", fs.FriendlyName, err)
					continue
				}
				if !ok {
					continue
				}
				rt.Pool.Dispatch(fs.ID, snapshot)
				fmt.Printf("Enqueued %s\n", fs.FriendlyName)
			}
			return nil
		},
	}
}
