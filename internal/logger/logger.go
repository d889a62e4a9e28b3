// SPDX-License-Identifier: BSD-2-Clause
//
// Copyright (c) 2025 The FreeBSD Foundation.
//
// This software was developed by Hayzam Sherif <hayzam@alchemilla.io>
// of Alchemilla Ventures Pvt. Ltd. <hello@alchemilla.io>,
// under sponsorship from the FreeBSD Foundation.

// Package logger wires a single global zerolog logger used by both the
// planb daemon and the planb-objsync tool. Console output goes to stderr;
// file output rotates through lumberjack.
package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/lumberjack"
	"github.com/rs/zerolog"
)

// L is the process-wide logger. Zero value logs to stderr only, so
// packages that run before Init (flag parsing, config load) still work.
var L = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

// Init replaces L with a logger that writes to both stderr and a rotating
// file under dataPath/logs/planb.log. level follows zerolog's Level scale
// (e.g. 0 = debug, 1 = info).
func Init(dataPath string, level int8) error {
	logDir := filepath.Join(dataPath, "logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}

	fileWriter := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, "planb.log"),
		MaxSize:    50,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	}

	console := zerolog.ConsoleWriter{Out: os.Stderr}
	multi := zerolog.MultiLevelWriter(console, fileWriter)

	L = zerolog.New(multi).Level(zerolog.Level(level)).With().Timestamp().Logger()
	return nil
}

// Fatal logs msg and exits the process. It is used before Init has run,
// where L is still stderr-only (argument parsing, missing config path).
func Fatal(msg string, args ...interface{}) {
	L.Fatal().Msg(fmt.Sprintf(msg, args...))
}
