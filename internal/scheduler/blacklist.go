// SPDX-License-Identifier: BSD-2-Clause
//
// Copyright (c) 2025 The FreeBSD Foundation.
//
// This software was developed by Hayzam Sherif <hayzam@alchemilla.io>
// of Alchemilla Ventures Pvt. Ltd. <hello@alchemilla.io>,
// under sponsorship from the FreeBSD Foundation.

package scheduler

import (
	"strconv"
	"strings"
	"time"
)

// InBlacklistHours evaluates the fileset/group/global blacklist_hours
// precedence: the first non-empty of fileset, group, global
// wins outright (no merging across levels).
func InBlacklistHours(now time.Time, fileset, group, global string) bool {
	for _, spec := range []string{fileset, group, global} {
		if strings.TrimSpace(spec) != "" {
			return hourInRanges(now.Hour(), spec)
		}
	}
	return false
}

// hourInRanges parses a comma-separated spec like "9-17,22" and reports
// whether hour falls in any listed range or single hour.
func hourInRanges(hour int, spec string) bool {
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if i := strings.IndexByte(part, '-'); i >= 0 {
			lo, errLo := strconv.Atoi(strings.TrimSpace(part[:i]))
			hi, errHi := strconv.Atoi(strings.TrimSpace(part[i+1:]))
			if errLo != nil || errHi != nil {
				continue
			}
			if lo <= hi {
				if hour >= lo && hour <= hi {
					return true
				}
			} else {
				// wraps midnight, e.g. "22-4"
				if hour >= lo || hour <= hi {
					return true
				}
			}
			continue
		}
		h, err := strconv.Atoi(part)
		if err == nil && hour == h {
			return true
		}
	}
	return false
}
