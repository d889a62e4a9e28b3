// SPDX-License-Identifier: BSD-2-Clause
//
// Copyright (c) 2025 The FreeBSD Foundation.
//
// This software was developed by Hayzam Sherif <hayzam@alchemilla.io>
// of Alchemilla Ventures Pvt. Ltd. <hello@alchemilla.io>,
// under sponsorship from the FreeBSD Foundation.

// Package cli implements the planb CLI surface: the
// operator-facing subcommands layered over the same catalog, storage,
// and queue collaborators the daemon itself uses. Command-tree shape
// follows the pack's cobra convention (ubuntu-zsys's zsysctl root +
// one file per subcommand), since sylve's own binaries dispatch with a
// manual flag.NewFlagSet switch that does not scale to nine
// heterogeneous subcommands.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/planb-backup/planb/internal/daemon"
)

const defaultConfigPath = "/etc/planb/planb.config.json"

var configPath string

// Execute builds and runs the planb root command.
func Execute() error {
	return rootCmd().Execute()
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "planb",
		Short:         "planb manages the backup filesets catalog, scheduler, and job runner",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "path to planb.config.json")

	root.AddCommand(
		blistCmd(),
		bqueueallCmd(),
		bqueueflushCmd(),
		bcloneCmd(),
		breportCmd(),
		confexportCmd(),
		slistCmd(),
		bstatsCmd(),
		bqclusterCmd(),
	)
	return root
}

// openRuntime builds the full daemon.Runtime (catalog, engines,
// transports, queues, pool, scheduler) without starting any background
// loop, for commands that need to read or mutate catalog state and
// possibly enqueue a job for a separately running bqcluster process.
func openRuntime() (*daemon.Runtime, error) {
	rt, err := daemon.New(configPath)
	if err != nil {
		return nil, fmt.Errorf("planb: %w", err)
	}
	return rt, nil
}
