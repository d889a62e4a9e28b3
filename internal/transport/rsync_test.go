// SPDX-License-Identifier: BSD-2-Clause
//
// Copyright (c) 2025 The FreeBSD Foundation.
//
// This software was developed by Hayzam Sherif <hayzam@alchemilla.io>
// of Alchemilla Ventures Pvt. Ltd. <hello@alchemilla.io>,
// under sponsorship from the FreeBSD Foundation.

package transport

import (
	"strings"
	"testing"
)

func TestBuildArgs_Baseline(t *testing.T) {
	tr := &RsyncTransport{
		Host: "example.com", User: "root", SrcDir: "/srv/data",
		Mode: ModeSSH, RsyncBin: "rsync", HomeDir: "/nonexistent",
	}
	args := tr.buildArgs("/data/group-fs")
	joined := strings.Join(args, " ")

	for _, want := range []string{"--delete", "--stats", "--recursive", "--bwlimit=10M", "--exclude=*"} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q: %v", want, args)
		}
	}
	if args[0] != "rsync" {
		t.Errorf("args[0] = %q, want rsync", args[0])
	}
	if args[len(args)-1] != "/data/group-fs" {
		t.Errorf("last arg = %q, want data dir", args[len(args)-1])
	}
}

func TestBuildArgs_UnlimitedBwlimitRemovesBaseline(t *testing.T) {
	tr := &RsyncTransport{
		Host: "h", User: "u", SrcDir: "/s", Mode: ModeSSH,
		Flags: "--bwlimit=", HomeDir: "/nonexistent",
	}
	args := tr.buildArgs("/data")
	for _, a := range args {
		if strings.HasPrefix(a, "--bwlimit") {
			t.Fatalf("expected no --bwlimit flag, got %v", args)
		}
	}
}

func TestBuildArgs_UserFlagOverridesBaseline(t *testing.T) {
	tr := &RsyncTransport{
		Host: "h", User: "u", SrcDir: "/s", Mode: ModeSSH,
		Flags: "--block-size=65536", HomeDir: "/nonexistent",
	}
	args := tr.buildArgs("/data")
	count := 0
	for _, a := range args {
		if strings.HasPrefix(a, "--block-size") {
			count++
			if a != "--block-size=65536" {
				t.Errorf("got %q, want user override", a)
			}
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one --block-size flag, got %d", count)
	}
}

func TestBuildIncludeArgs(t *testing.T) {
	got := buildIncludeArgs("etc/foo var/www/*.html")
	want := []string{
		"--include=etc/",
		"--include=etc/foo/***",
		"--include=var/",
		"--include=var/www/",
		"--include=var/www/*.html",
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRsyncDaemonMode(t *testing.T) {
	tr := &RsyncTransport{Host: "h", SrcDir: "mods", Mode: ModeRsyncDaemon}
	args := tr.buildArgs("/data")
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "h::mods") {
		t.Errorf("expected daemon URI h::mods, got %v", args)
	}
}

func TestShlexSplit(t *testing.T) {
	got, err := shlexSplit(`mycmd --flag "quoted value" \` + "\n" + `--more`)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"mycmd", "--flag", "quoted value", "--more"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %q, want %q", i, got[i], want[i])
		}
	}
}
