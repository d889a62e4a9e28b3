// SPDX-License-Identifier: BSD-2-Clause
//
// Copyright (c) 2025 The FreeBSD Foundation.
//
// This software was developed by Hayzam Sherif <hayzam@alchemilla.io>
// of Alchemilla Ventures Pvt. Ltd. <hello@alchemilla.io>,
// under sponsorship from the FreeBSD Foundation.

package objsync

import (
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
)

// AbortFlag is a process-wide signal-driven abort switch, polled inside
// tight loops (per-record, per-chunk) rather than exposed globally;
// callers receive a handle.
type AbortFlag struct {
	flag atomic.Bool
}

// NewAbortFlag returns an unset flag.
func NewAbortFlag() *AbortFlag { return &AbortFlag{} }

// Set marks the flag aborted.
func (a *AbortFlag) Set() { a.flag.Store(true) }

// Aborted reports whether the flag has been set. A nil receiver is
// treated as never-aborted, so callers may pass a nil *AbortFlag when
// termination handling isn't wired (e.g. tests).
func (a *AbortFlag) Aborted() bool {
	if a == nil {
		return false
	}
	return a.flag.Load()
}

// InstallSignalHandler arms a on SIGHUP/SIGINT/SIGTERM/SIGQUIT. The
// returned stop func disarms the handler and should
// run via defer in the caller.
func (a *AbortFlag) InstallSignalHandler() (stop func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	done := make(chan struct{})
	go func() {
		select {
		case <-sigCh:
			a.Set()
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}
