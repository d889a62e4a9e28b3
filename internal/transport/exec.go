// SPDX-License-Identifier: BSD-2-Clause
//
// Copyright (c) 2025 The FreeBSD Foundation.
//
// This software was developed by Hayzam Sherif <hayzam@alchemilla.io>
// of Alchemilla Ventures Pvt. Ltd. <hello@alchemilla.io>,
// under sponsorship from the FreeBSD Foundation.

package transport

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// ExecTransport runs a user-specified command to import data. The
// command string is shlex-split, with trailing
// backslash-newline continuations stripped for readability.
type ExecTransport struct {
	Command string

	GUID                string
	FilesetID           string
	FilesetFriendlyName string
	SnapshotTarget      string
	StorageName         string
	StorageDestination  string
}

var allowedEnv = []string{"PATH", "HOME", "PWD", "SHELL", "USER"}

func (t *ExecTransport) env() []string {
	var out []string
	for _, k := range allowedEnv {
		if v, ok := os.LookupEnv(k); ok {
			out = append(out, k+"="+v)
		}
	}
	out = append(out,
		"planb_guid="+t.GUID,
		"planb_fileset_id="+t.FilesetID,
		"planb_fileset_friendly_name="+t.FilesetFriendlyName,
		"planb_snapshot_target="+t.SnapshotTarget,
		"planb_storage_name="+t.StorageName,
		"planb_storage_destination="+t.StorageDestination,
	)
	return out
}

// shlexSplit is a minimal shell-word splitter supporting single/double
// quotes and backslash escapes, sufficient for transport_command values.
func shlexSplit(s string) ([]string, error) {
	s = strings.ReplaceAll(s, "\\\n", " ")

	var fields []string
	var cur strings.Builder
	inWord := false
	var quote rune

	flush := func() {
		if inWord {
			fields = append(fields, cur.String())
			cur.Reset()
			inWord = false
		}
	}

	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else if r == '\\' && quote == '"' && i+1 < len(runes) {
				i++
				cur.WriteRune(runes[i])
			} else {
				cur.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inWord = true
		case r == '\\' && i+1 < len(runes):
			i++
			cur.WriteRune(runes[i])
			inWord = true
		case r == ' ' || r == '\t':
			flush()
		default:
			cur.WriteRune(r)
			inWord = true
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated quote in command")
	}
	flush()
	return fields, nil
}

// RunTransport executes the configured command with the allow-listed
// environment plus the planb_* variables. Non-zero
// exit is a fatal transport error; stdout/stderr are captured verbatim.
func (t *ExecTransport) RunTransport(ctx context.Context, dataDir string) error {
	argv, err := shlexSplit(t.Command)
	if err != nil {
		return &Error{Class: ClassFatal, Err: fmt.Errorf("parse transport_command: %w", err)}
	}
	if len(argv) == 0 {
		return &Error{Class: ClassFatal, Err: fmt.Errorf("transport_command is empty")}
	}

	stdout, stderr, runErr := runCaptured(ctx, t.env(), argv[0], argv[1:]...)
	code := exitCode(runErr)
	if code != 0 {
		return &Error{
			Code:   code,
			Stderr: stderr,
			Class:  ClassFatal,
			Err:    fmt.Errorf("exec transport failed: %w (stdout: %s)", runErr, stdout),
		}
	}
	return nil
}
