// SPDX-License-Identifier: BSD-2-Clause
//
// Copyright (c) 2025 The FreeBSD Foundation.
//
// This software was developed by Hayzam Sherif <hayzam@alchemilla.io>
// of Alchemilla Ventures Pvt. Ltd. <hello@alchemilla.io>,
// under sponsorship from the FreeBSD Foundation.

package objsync

import (
	"fmt"
	"regexp"

	"github.com/planb-backup/planb/internal/objsyncconf"
)

// Ruleset compiles a section's translate/exclude rules once so they can
// be applied per-record without recompiling regexes on every path.
type Ruleset struct {
	translate []compiledTranslate
	exclude   []compiledExclude
}

type compiledTranslate struct {
	container string
	pattern   *regexp.Regexp
	repl      string
}

type compiledExclude struct {
	container string
	pattern   *regexp.Regexp
}

// CompileRuleset compiles sec's translate/exclude rules, in configured
// order (first match wins).
func CompileRuleset(sec *objsyncconf.Section) (*Ruleset, error) {
	rs := &Ruleset{}
	for _, t := range sec.Translate {
		re, err := regexp.Compile(t.Pattern)
		if err != nil {
			return nil, fmt.Errorf("objsync: compile translate pattern %q: %w", t.Pattern, err)
		}
		rs.translate = append(rs.translate, compiledTranslate{container: t.Container, pattern: re, repl: t.Replacement})
	}
	for _, e := range sec.Exclude {
		re, err := regexp.Compile(e.Pattern)
		if err != nil {
			return nil, fmt.Errorf("objsync: compile exclude pattern %q: %w", e.Pattern, err)
		}
		rs.exclude = append(rs.exclude, compiledExclude{container: e.Container, pattern: re})
	}
	return rs, nil
}

// Excluded reports whether path (within container) matches any
// configured exclusion rule. Exclusion is evaluated before translation.
func (rs *Ruleset) Excluded(container, path string) bool {
	for _, e := range rs.exclude {
		if e.container != "*" && e.container != container {
			continue
		}
		if e.pattern.MatchString(path) {
			return true
		}
	}
	return false
}

// Translate rewrites path using the first matching rule for container,
// container "*" matching any. A path with no matching rule is returned
// unchanged.
func (rs *Ruleset) Translate(container, path string) string {
	for _, t := range rs.translate {
		if t.container != "*" && t.container != container {
			continue
		}
		if t.pattern.MatchString(path) {
			return t.pattern.ReplaceAllString(path, t.repl)
		}
	}
	return path
}

// LocalPath resolves a remote record to its destination path on disk,
// applying exclusion (nil, false if excluded) then translation.
func (rs *Ruleset) LocalPath(r Record) (string, bool) {
	if rs.Excluded(r.Container, r.Path) {
		return "", false
	}
	return rs.Translate(r.Container, r.Path), true
}
