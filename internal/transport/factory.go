// SPDX-License-Identifier: BSD-2-Clause
//
// Copyright (c) 2025 The FreeBSD Foundation.
//
// This software was developed by Hayzam Sherif <hayzam@alchemilla.io>
// of Alchemilla Ventures Pvt. Ltd. <hello@alchemilla.io>,
// under sponsorship from the FreeBSD Foundation.

package transport

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/planb-backup/planb/internal/catalog"
	"github.com/planb-backup/planb/internal/config"
)

// Build constructs the configured Transport for fs's transport_ref.
// snapshotName and storageDestination fill the exec transport's per-run
// environment; they are ignored by the rsync variants.
func Build(tc config.TransportConfig, fs catalog.Fileset, snapshotName, storageDestination string) (Transport, error) {
	if fs.HostOverride != "" {
		tc.Host = fs.HostOverride
	}

	switch tc.Kind {
	case "rsync-ssh":
		return &RsyncTransport{
			Host: tc.Host, User: tc.User, SrcDir: tc.SrcDir,
			Includes: tc.Includes, Excludes: tc.Excludes, Flags: tc.Flags,
			UseSudo: tc.UseSudo, UseIonice: tc.UseIonice,
			RsyncPath: tc.RsyncPath, IonicePath: tc.IonicePath,
			Mode: ModeSSH,
		}, nil
	case "rsync-daemon":
		return &RsyncTransport{
			Host: tc.Host, SrcDir: tc.SrcDir,
			Includes: tc.Includes, Excludes: tc.Excludes, Flags: tc.Flags,
			Mode: ModeRsyncDaemon,
		}, nil
	case "exec":
		return &ExecTransport{
			Command:             tc.Command,
			GUID:                uuid.NewString(),
			FilesetID:           strconv.FormatUint(uint64(fs.ID), 10),
			FilesetFriendlyName: fs.FriendlyName,
			SnapshotTarget:      snapshotName,
			StorageName:         fs.StorageAlias,
			StorageDestination:  storageDestination,
		}, nil
	default:
		return nil, fmt.Errorf("transport %q: unknown kind %q", tc.Ref, tc.Kind)
	}
}
