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
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/planb-backup/planb/internal/logger"
)

func bqclusterCmd() *cobra.Command {
	var queue string
	var runOnce bool

	cmd := &cobra.Command{
		Use:   "bqcluster",
		Short: "Run the worker cluster (scheduler + job queues) for the named queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			if queue != "all" && queue != "runs" && queue != "dutree" {
				return fmt.Errorf("bqcluster: --queue must be all, runs, or dutree, got %q", queue)
			}

			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			if queue == "all" || queue == "runs" {
				go rt.Queue.Start(ctx)
				go rt.Scheduler.Run(ctx)
			}
			if queue == "all" || queue == "dutree" {
				go rt.DutreeQueue.Start(ctx)
			}
			logger.L.Info().Str("queue", queue).Msg("bqcluster: started")

			if runOnce {
				waitForQueuesIdle(rt.Queue, rt.DutreeQueue)
				logger.L.Info().Msg("bqcluster: run-once complete")
				return nil
			}

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			<-sig
			logger.L.Info().Msg("bqcluster: shutting down")
			return nil
		},
	}

	cmd.Flags().StringVar(&queue, "queue", "all", "which queue to run: all, runs, or dutree")
	cmd.Flags().BoolVar(&runOnce, "run-once", false, "drain whatever is currently queued, then stop")
	return cmd
}

// waitForQueuesIdle polls until both queues report zero pending
// messages, or a generous timeout elapses, for --run-once.
func waitForQueuesIdle(queues ...interface{ Size() (int, error) }) {
	deadline := time.Now().Add(5 * time.Minute)
	for time.Now().Before(deadline) {
		idle := true
		for _, q := range queues {
			if q == nil {
				continue
			}
			if n, err := q.Size(); err == nil && n > 0 {
				idle = false
			}
		}
		if idle {
			return
		}
		time.Sleep(time.Second)
	}
}
