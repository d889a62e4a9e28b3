// SPDX-License-Identifier: BSD-2-Clause
//
// Copyright (c) 2025 The FreeBSD Foundation.
//
// This software was developed by Hayzam Sherif <hayzam@alchemilla.io>
// of Alchemilla Ventures Pvt. Ltd. <hello@alchemilla.io>,
// under sponsorship from the FreeBSD Foundation.

package objsync

import (
	"testing"

	"github.com/planb-backup/planb/internal/objsyncconf"
)

func TestRuleset_ExcludeBeforeTranslate(t *testing.T) {
	sec := &objsyncconf.Section{
		Exclude: []objsyncconf.ExcludeRule{
			{Container: "*", Pattern: `\.tmp$`},
		},
		Translate: []objsyncconf.TranslateRule{
			{Container: "*", Pattern: `^old/`, Replacement: "new/"},
		},
	}
	rs, err := CompileRuleset(sec)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	if _, keep := rs.LocalPath(Record{Path: "old/file.tmp"}); keep {
		t.Fatalf("expected old/file.tmp to be excluded")
	}

	got, keep := rs.LocalPath(Record{Path: "old/file.txt"})
	if !keep {
		t.Fatalf("expected old/file.txt to survive exclusion")
	}
	if got != "new/file.txt" {
		t.Errorf("translated path = %q, want new/file.txt", got)
	}
}

func TestRuleset_ContainerScopedRules(t *testing.T) {
	sec := &objsyncconf.Section{
		Translate: []objsyncconf.TranslateRule{
			{Container: "logs", Pattern: `^raw/`, Replacement: "archived/"},
		},
	}
	rs, err := CompileRuleset(sec)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	if got := rs.Translate("logs", "raw/a.log"); got != "archived/a.log" {
		t.Errorf("logs container: got %q, want archived/a.log", got)
	}
	if got := rs.Translate("other", "raw/a.log"); got != "raw/a.log" {
		t.Errorf("other container should be untouched, got %q", got)
	}
}

func TestRuleset_FirstMatchWins(t *testing.T) {
	sec := &objsyncconf.Section{
		Translate: []objsyncconf.TranslateRule{
			{Container: "*", Pattern: `^a`, Replacement: "first"},
			{Container: "*", Pattern: `^a`, Replacement: "second"},
		},
	}
	rs, err := CompileRuleset(sec)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if got := rs.Translate("x", "abc"); got != "firstbc" {
		t.Errorf("got %q, want firstbc (first matching rule should win)", got)
	}
}
