// SPDX-License-Identifier: BSD-2-Clause
//
// Copyright (c) 2025 The FreeBSD Foundation.
//
// This software was developed by Hayzam Sherif <hayzam@alchemilla.io>
// of Alchemilla Ventures Pvt. Ltd. <hello@alchemilla.io>,
// under sponsorship from the FreeBSD Foundation.

// Package config parses the planb daemon's JSON configuration file and
// bootstraps its data directory layout.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// StoragePool is one configured storage_alias entry.
type StoragePool struct {
	Alias   string `json:"alias"`
	Engine  string `json:"engine"` // "dummy" or "cow"
	Root    string `json:"root"`   // root dataset / directory, "<root>/data" suffix mandatory
	SudoCmd string `json:"sudoCmd"`
	Binary  string `json:"binary"` // CoW filesystem CLI, e.g. "zfs"
}

// Defaults holds global fallbacks used when a HostGroup/Fileset does not
// override them (blacklist hours, retention).
type Defaults struct {
	BlacklistHours string `json:"blacklistHours"`
	Retention      string `json:"retention"`
}

// TransportConfig is one configured transport_ref entry. Kind
// selects which of the rsync/exec fields apply; unused fields for a
// given kind are simply left zero.
type TransportConfig struct {
	Ref  string `json:"ref"`
	Kind string `json:"kind"` // "rsync-ssh", "rsync-daemon", or "exec"

	// rsync-ssh / rsync-daemon fields.
	Host       string `json:"host"`
	User       string `json:"user"`
	SrcDir     string `json:"srcDir"`
	Includes   string `json:"includes"`
	Excludes   string `json:"excludes"`
	Flags      string `json:"flags"`
	UseSudo    bool   `json:"useSudo"`
	UseIonice  bool   `json:"useIonice"`
	RsyncPath  string `json:"rsyncPath"`
	IonicePath string `json:"ionicePath"`

	// exec fields.
	Command string `json:"command"`
}

// Config is the planb daemon's top-level configuration.
type Config struct {
	DataPath        string            `json:"dataPath"`
	LogLevel        int8              `json:"logLevel"`
	TickInterval    int               `json:"tickIntervalSeconds"`
	RunnerWorkers   int               `json:"runnerWorkers"`
	DutreeWorkers   int               `json:"dutreeWorkers"`
	ClaimBackoffSec int               `json:"claimBackoffSeconds"`
	DoNotRunDir     string            `json:"doNotRunDir"` // base dir for the do-not-run.d marker
	Defaults        Defaults          `json:"defaults"`
	StoragePools    []StoragePool     `json:"storagePools"`
	Transports      []TransportConfig `json:"transports"`
}

var Parsed *Config
var path string

// Parse reads and validates the config at p, bootstraps the data
// directory tree, and fills in documented defaults.
func Parse(p string) (*Config, error) {
	path = p

	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg := &Config{}
	if err := json.NewDecoder(f).Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.DataPath == "" {
		return nil, fmt.Errorf("dataPath is required")
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 60
	}
	if cfg.RunnerWorkers <= 0 {
		cfg.RunnerWorkers = 10
	}
	if cfg.DutreeWorkers <= 0 {
		cfg.DutreeWorkers = 1
	}
	if cfg.ClaimBackoffSec <= 0 {
		cfg.ClaimBackoffSec = 3600
	}

	if err := SetupDataPath(cfg.DataPath); err != nil {
		return nil, err
	}

	Parsed = cfg
	return cfg, nil
}

// SetupDataPath creates the daemon's on-disk layout under dataPath.
func SetupDataPath(dataPath string) error {
	dirs := []string{
		dataPath,
		filepath.Join(dataPath, "logs"),
		filepath.Join(dataPath, "queue"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", d, err)
		}
	}
	return nil
}

// Path returns the path the active config was parsed from.
func Path() string {
	return path
}

// Pool looks up a configured storage pool by alias.
func (c *Config) Pool(alias string) (StoragePool, bool) {
	for _, p := range c.StoragePools {
		if p.Alias == alias {
			return p, true
		}
	}
	return StoragePool{}, false
}

// Transport looks up a configured transport by its transport_ref.
func (c *Config) Transport(ref string) (TransportConfig, bool) {
	for _, t := range c.Transports {
		if t.Ref == ref {
			return t, true
		}
	}
	return TransportConfig{}, false
}
