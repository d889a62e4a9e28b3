// SPDX-License-Identifier: BSD-2-Clause
//
// Copyright (c) 2025 The FreeBSD Foundation.
//
// This software was developed by Hayzam Sherif <hayzam@alchemilla.io>
// of Alchemilla Ventures Pvt. Ltd. <hello@alchemilla.io>,
// under sponsorship from the FreeBSD Foundation.

package runner

import (
	"strconv"
	"strings"

	"github.com/planb-backup/planb/internal/catalog"
	"github.com/planb-backup/planb/internal/retention"
)

// retentionMapFor parses a fileset's retention string (e.g.
// "16d,4w,12m,2y") into a retention.Map, falling back to def when the
// fileset does not override it.
func retentionMapFor(fs catalog.Fileset, def retention.Map) retention.Map {
	if strings.TrimSpace(fs.Retention) == "" {
		return def
	}
	return ParseRetention(fs.Retention)
}

// ParseRetention parses comma-separated Nh|Nd|Nw|Nm|Ny tokens into
// a retention.Map. Malformed tokens are skipped.
func ParseRetention(spec string) retention.Map {
	out := retention.Map{}
	for _, tok := range strings.Split(spec, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		unit := tok[len(tok)-1:]
		switch unit {
		case "h", "d", "w", "m", "y":
		default:
			continue
		}
		n, err := strconv.Atoi(tok[:len(tok)-1])
		if err != nil {
			continue
		}
		out[unit] = n
	}
	return out
}
