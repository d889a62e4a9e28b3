// SPDX-License-Identifier: BSD-2-Clause
//
// Copyright (c) 2025 The FreeBSD Foundation.
//
// This software was developed by Hayzam Sherif <hayzam@alchemilla.io>
// of Alchemilla Ventures Pvt. Ltd. <hello@alchemilla.io>,
// under sponsorship from the FreeBSD Foundation.

// Command planb is the backup orchestration daemon's operator CLI: the
// catalog/queue/scheduler subcommands, plus bqcluster, which runs the
// daemon itself.
package main

import (
	"fmt"
	"os"

	"github.com/planb-backup/planb/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
