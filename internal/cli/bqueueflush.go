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

	"github.com/spf13/cobra"
)

func bqueueflushCmd() *cobra.Command {
	var queue string

	cmd := &cobra.Command{
		Use:   "bqueueflush",
		Short: "Drop every enqueued backup job and clear queued/running flags",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			var q = rt.Queue
			if queue == "dutree" {
				q = rt.DutreeQueue
			}

			brokerSize, err := q.Size()
			if err != nil {
				return fmt.Errorf("bqueueflush: %w", err)
			}
			if err := q.Purge(); err != nil {
				return fmt.Errorf("bqueueflush: %w", err)
			}

			dbDropped, err := rt.Repo.ClearAllRuntimeFlags()
			if err != nil {
				return fmt.Errorf("bqueueflush: %w", err)
			}

			if brokerSize > 0 {
				fmt.Printf("Dropped %d jobs from Task queue\n", brokerSize)
			}
			if dbDropped > 0 {
				fmt.Printf("Dropped %d jobs from DB queue\n", dbDropped)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&queue, "queue", "runs", `which queue to flush, "runs" or "dutree"`)
	return cmd
}
