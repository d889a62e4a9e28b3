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
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/planb-backup/planb/internal/scheduler"
)

func bcloneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bclone <fileset_id> <new_friendly_name> <new_host>",
		Short: "Clone a fileset's configuration under a new name/host and enqueue it",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			sourceID, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("bclone: invalid fileset_id %q: %w", args[0], err)
			}

			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			src, err := rt.Repo.GetFileset(uint(sourceID))
			if err != nil {
				return fmt.Errorf("bclone: %w", err)
			}

			clone, err := rt.Repo.CloneFileset(uint(sourceID), args[1], args[2])
			if err != nil {
				return fmt.Errorf("bclone: %w", err)
			}
			fmt.Printf("Cloned %s to %s\n", src.FriendlyName, clone.FriendlyName)

			ok, err := rt.Repo.Claim(clone.ID)
			if err != nil {
				return fmt.Errorf("bclone: %w", err)
			}
			if ok {
				snapshot := scheduler.SnapshotName(time.Now().UTC())
				rt.Pool.Dispatch(clone.ID, snapshot)
				fmt.Printf("Enqueued %s\n", clone.FriendlyName)
			}
			return nil
		},
	}
}
