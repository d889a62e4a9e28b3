// SPDX-License-Identifier: BSD-2-Clause
//
// Copyright (c) 2025 The FreeBSD Foundation.
//
// This software was developed by Hayzam Sherif <hayzam@alchemilla.io>
// of Alchemilla Ventures Pvt. Ltd. <hello@alchemilla.io>,
// under sponsorship from the FreeBSD Foundation.

package objsync

import (
	"errors"
	"fmt"
)

// Class distinguishes a failure that should not fail the overall run
// (it will self-heal on the next cycle) from one that must.
type Class int

const (
	// ClassTransient is counted but does not force a nonzero exit when
	// the run's wall-time budget was exceeded.
	ClassTransient Class = iota
	// ClassFatal always forces a nonzero exit.
	ClassFatal
)

// Error is objsync's structured error type.
type Error struct {
	Class Class
	Key   string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("objsync[%s]: %v", e.Key, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func transientErr(key string, err error) error { return &Error{Class: ClassTransient, Key: key, Err: err} }
func fatalErr(key string, err error) error     { return &Error{Class: ClassFatal, Key: key, Err: err} }

// IsFatal reports whether err is (or wraps) a ClassFatal objsync.Error.
func IsFatal(err error) bool {
	var oe *Error
	return errors.As(err, &oe) && oe.Class == ClassFatal
}
