// SPDX-License-Identifier: BSD-2-Clause
//
// Copyright (c) 2025 The FreeBSD Foundation.
//
// This software was developed by Hayzam Sherif <hayzam@alchemilla.io>
// of Alchemilla Ventures Pvt. Ltd. <hello@alchemilla.io>,
// under sponsorship from the FreeBSD Foundation.

package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/planb-backup/planb/internal/db"
)

// CoWEngine delegates dataset/snapshot operations to an external
// copy-on-write filesystem CLI (e.g. zfs) through a privileged exec
// wrapper. All invocations are serialized through a per-process command
// executor, mirroring pkg/zfs's own run/runJSON wrapper.
type CoWEngine struct {
	binary  string // e.g. "zfs"
	sudoCmd string // e.g. "sudo", "" to disable
	root    string // root dataset, e.g. "tank/planb"

	mu sync.Mutex
}

// NewCoWEngine constructs a CoW engine rooted at root (a pool/dataset
// path), invoking binary (optionally prefixed by sudoCmd) for every
// operation.
func NewCoWEngine(binary, sudoCmd, root string) *CoWEngine {
	return &CoWEngine{binary: binary, sudoCmd: sudoCmd, root: root}
}

func (e *CoWEngine) Name() string { return "cow" }

func (e *CoWEngine) GetDataset(group, friendlyName string) Dataset {
	name := fmt.Sprintf("%s/%s-%s", e.root, group, friendlyName)
	return &cowDataset{engine: e, name: name}
}

// run serializes one invocation of the CoW binary, capturing
// stdout/stderr and classifying failure.
func (e *CoWEngine) run(ctx context.Context, debug string, args ...string) (string, error) {
	return e.runArgv(ctx, debug, append([]string{e.binary}, args...))
}

// runCommand serializes one invocation of an arbitrary binary through
// the same privileged wrapper, for the few operations (chown) that are
// not subcommands of the CoW CLI itself.
func (e *CoWEngine) runCommand(ctx context.Context, debug string, args ...string) (string, error) {
	return e.runArgv(ctx, debug, args)
}

func (e *CoWEngine) runArgv(ctx context.Context, debug string, argv []string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sudoCmd != "" {
		argv = append([]string{e.sudoCmd}, argv...)
	}

	var stdout, stderr bytes.Buffer
	c := exec.CommandContext(ctx, argv[0], argv[1:]...)
	c.Stdout = &stdout
	c.Stderr = &stderr

	if err := c.Run(); err != nil {
		kind := KindExec
		if strings.Contains(stderr.String(), "dataset does not exist") ||
			strings.Contains(stderr.String(), "does not exist") {
			kind = KindDatasetNotFound
		}
		return "", &Error{
			Kind:   kind,
			Err:    err,
			Debug:  debug + " " + strings.Join(argv[1:], " "),
			Stderr: stderr.String(),
		}
	}
	return stdout.String(), nil
}

// ListDatasets enumerates every child dataset of the engine's root,
// stripping the "<root>/" prefix back to the bare "<group>-<name>" form
// GetDataset produces.
func (e *CoWEngine) ListDatasets(ctx context.Context) ([]string, error) {
	out, err := e.run(ctx, "list", "list", "-r", "-H", "-o", "name", e.root)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	prefix := e.root + "/"
	for _, line := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		if line == "" || line == e.root {
			continue
		}
		names = append(names, strings.TrimPrefix(line, prefix))
	}
	return names, nil
}

type cowDataset struct {
	engine *CoWEngine
	name   string

	mu   sync.Mutex
	busy bool
}

func (d *cowDataset) Name() string { return d.name }

func (d *cowDataset) EnsureExists(ctx context.Context) error {
	_, err := d.engine.run(ctx, "get", "get", "-Ho", "value", "mountpoint", d.name)
	if err == nil {
		return nil
	}
	if !IsNotFound(err) {
		return err
	}
	if _, err := d.engine.run(ctx, "create", "create", "-p", d.name); err != nil {
		return err
	}
	uid := os.Getuid()
	_, err = d.engine.runCommand(ctx, "chown", "chown", strconv.Itoa(uid), d.DataPath())
	return err
}

type cowWorkon struct {
	d   *cowDataset
	dir string
}

func (w *cowWorkon) Path() string { return w.dir }

// Close unmounts the dataset so the mount cannot be referenced outside
// the workon scope. An already-unmounted dataset is not an error.
func (w *cowWorkon) Close() error {
	w.d.mu.Lock()
	defer w.d.mu.Unlock()
	w.d.busy = false

	if _, err := w.d.engine.run(context.Background(), "unmount", "unmount", w.d.name); err != nil {
		if !strings.Contains(err.Error(), "not currently mounted") {
			return err
		}
	}
	return nil
}

func (d *cowDataset) Workon(ctx context.Context) (Workon, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.busy {
		return nil, &Error{Kind: KindBusy, Err: fmt.Errorf("dataset %s already has an active workon", d.name), Debug: "workon"}
	}
	if err := d.EnsureExists(ctx); err != nil {
		return nil, err
	}
	if _, err := d.engine.run(ctx, "mount", "mount", d.name); err != nil {
		// Already-mounted is not an error for our purposes.
		if !strings.Contains(err.Error(), "already mounted") {
			return nil, err
		}
	}
	d.busy = true
	return &cowWorkon{d: d, dir: d.DataPath()}, nil
}

func (d *cowDataset) DataPath() string {
	mountpoint, err := d.engine.run(context.Background(), "get", "get", "-Ho", "value", "mountpoint", d.name)
	if err != nil {
		return ""
	}
	return filepath.Join(strings.TrimSpace(mountpoint), "data")
}

func (d *cowDataset) SnapshotPath(name string) string {
	return filepath.Join(d.DataPath(), ".zfs", "snapshot", name)
}

func (d *cowDataset) UsedSize(ctx context.Context) (uint64, error) {
	return d.cachedSize(ctx, "used")
}

func (d *cowDataset) ReferencedSize(ctx context.Context) (uint64, error) {
	return d.cachedSize(ctx, "referenced")
}

func (d *cowDataset) cachedSize(ctx context.Context, prop string) (uint64, error) {
	key := fmt.Sprintf("size:%s:%s", prop, d.name)
	if raw, ok := db.GetValue(key); ok {
		if n, err := strconv.ParseUint(string(raw), 10, 64); err == nil {
			return n, nil
		}
	}

	out, err := d.engine.run(ctx, "get", "get", "-Hpo", "value", prop, d.name)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(strings.TrimSpace(out), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s size: %w", prop, err)
	}

	_ = db.SetValue(key, []byte(strconv.FormatUint(n, 10)), 60)
	return n, nil
}

func (d *cowDataset) Rename(ctx context.Context, newName string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.busy {
		return fmt.Errorf("cannot rename dataset %s while a workon is active", d.name)
	}
	full := fmt.Sprintf("%s/%s", d.engine.root, newName)
	if _, err := d.engine.run(ctx, "rename", "rename", d.name, full); err != nil {
		return err
	}
	d.name = full
	return nil
}

func (d *cowDataset) SnapshotCreate(ctx context.Context, name string) (string, error) {
	full := d.name + "@" + name
	if _, err := d.engine.run(ctx, "snapshot", "snapshot", full); err != nil {
		return "", err
	}
	return name, nil
}

func (d *cowDataset) SnapshotDelete(ctx context.Context, name string) error {
	full := d.name + "@" + name
	_, err := d.engine.run(ctx, "destroy", "destroy", full)
	return err
}

func (d *cowDataset) SnapshotList(ctx context.Context) ([]string, error) {
	out, err := d.engine.run(ctx, "list",
		"list", "-r", "-H", "-t", "snapshot", "-o", "name,creation", "-s", "creation", d.name)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, line := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		full := fields[0]
		idx := strings.Index(full, "@")
		if idx < 0 {
			continue
		}
		names = append(names, full[idx+1:])
	}
	return names, nil
}
