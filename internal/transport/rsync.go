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
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// RsyncMode selects how the remote side is addressed.
type RsyncMode int

const (
	ModeSSH RsyncMode = iota
	ModeRsyncDaemon
)

// RsyncTransport is the rsync-over-SSH / native-rsync transport.
type RsyncTransport struct {
	Host       string
	User       string
	SrcDir     string
	Includes   string // whitespace-separated
	Excludes   string // whitespace-separated
	Flags      string // free-form, user-supplied rsync flags
	UseSudo    bool
	UseIonice  bool
	RsyncPath  string
	IonicePath string
	Mode       RsyncMode

	// RsyncBin, HomeDir are overridable for tests; default to "rsync"
	// and os.UserHomeDir().
	RsyncBin string
	HomeDir  string
}

var baselineFlags = []string{
	"--delete", "--stats", "--recursive", "--links", "--perms", "--times",
	"--devices", "--specials", "--block-size=131072", "--whole-file",
	"--chmod=Du+rx", "--bwlimit=10M",
}

// buildArgs constructs the full rsync argv: binary, baseline flags,
// user flags, excludes, includes, the catch-all exclude, the transport
// URI, and the target directory, in that order.
func (t *RsyncTransport) buildArgs(dataDir string) []string {
	rsyncBin := t.RsyncBin
	if rsyncBin == "" {
		rsyncBin = "rsync"
	}

	userFlags := splitFlags(t.Flags)
	userFlagNames := map[string]bool{}
	bwlimitUnlimited := false
	for _, f := range userFlags {
		name := flagName(f)
		if name == "--bwlimit" && flagValue(f) == "" {
			bwlimitUnlimited = true
			continue
		}
		userFlagNames[name] = true
	}

	var args []string
	args = append(args, rsyncBin)

	for _, bf := range baselineFlags {
		name := flagName(bf)
		if name == "--bwlimit" && bwlimitUnlimited {
			continue
		}
		if userFlagNames[name] {
			continue
		}
		args = append(args, bf)
	}

	for _, f := range userFlags {
		if flagName(f) == "--bwlimit" && bwlimitUnlimited {
			continue
		}
		args = append(args, f)
	}

	for _, ex := range splitFlags(t.Excludes) {
		args = append(args, "--exclude="+ex)
	}

	args = append(args, buildIncludeArgs(t.Includes)...)

	args = append(args, "--exclude=*")

	switch t.Mode {
	case ModeSSH:
		args = append(args, t.sshArgs()...)
		args = append(args, fmt.Sprintf("%s@%s:%s/", t.User, t.Host, t.SrcDir))
	case ModeRsyncDaemon:
		args = append(args, fmt.Sprintf("%s::%s", t.Host, t.SrcDir))
	}

	args = append(args, dataDir)
	return args
}

func (t *RsyncTransport) sshArgs() []string {
	home := t.HomeDir
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	knownHosts := filepath.Join(home, ".ssh", "known_hosts.d", t.Host)
	strict := "no"
	if _, err := os.Stat(knownHosts); err == nil {
		strict = "yes"
	}

	rsh := fmt.Sprintf(
		"ssh -o HashKnownHosts=no -o UserKnownHostsFile=%s -o StrictHostKeyChecking=%s",
		knownHosts, strict,
	)

	rsyncPath := t.RsyncPath
	if rsyncPath == "" {
		rsyncPath = "rsync"
	}
	var prefix strings.Builder
	if t.UseSudo {
		prefix.WriteString("sudo ")
	}
	if t.UseIonice {
		ionicePath := t.IonicePath
		if ionicePath == "" {
			ionicePath = "ionice"
		}
		prefix.WriteString(ionicePath + " -c2 -n7 ")
	}

	return []string{
		"--rsh=" + rsh,
		"--rsync-path=" + prefix.String() + rsyncPath,
	}
}

// buildIncludeArgs expands each include: parent-path prefixes as
// --include=<dir>/, then the leaf as --include=<leaf>/*** (unchanged if
// the leaf already contains a glob), sorted and deduplicated.
func buildIncludeArgs(includes string) []string {
	set := map[string]bool{}
	for _, inc := range splitFlags(includes) {
		inc = strings.Trim(inc, "/")
		if inc == "" {
			continue
		}
		parts := strings.Split(inc, "/")
		var prefix []string
		for i := 0; i < len(parts)-1; i++ {
			prefix = append(prefix, parts[i])
			set["--include="+strings.Join(prefix, "/")+"/"] = true
		}
		leaf := parts[len(parts)-1]
		if strings.Contains(leaf, "*") {
			set["--include="+strings.Join(append(prefix, leaf), "/")] = true
		} else {
			full := strings.Join(append(prefix, leaf), "/")
			set["--include="+full+"/***"] = true
		}
	}

	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

var whitespaceRE = regexp.MustCompile(`\s+`)

func splitFlags(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return whitespaceRE.Split(s, -1)
}

func flagName(f string) string {
	if i := strings.Index(f, "="); i >= 0 {
		return f[:i]
	}
	return f
}

func flagValue(f string) string {
	if i := strings.Index(f, "="); i >= 0 {
		return f[i+1:]
	}
	return ""
}

// RunTransport executes the rsync invocation and classifies its result
// (exit codes {0,24} are success, 24 logged as a harmless warning).
func (t *RsyncTransport) RunTransport(ctx context.Context, dataDir string) error {
	args := t.buildArgs(dataDir)
	_, stderr, err := runCaptured(ctx, nil, args[0], args[1:]...)
	code := exitCode(err)

	switch code {
	case 0:
		return nil
	case 24:
		return &Error{Code: code, Stderr: stderr, Class: ClassHarmless, Err: fmt.Errorf("rsync: vanished source files during transfer")}
	default:
		return &Error{Code: code, Stderr: stderr, Class: ClassFatal, Err: err}
	}
}
