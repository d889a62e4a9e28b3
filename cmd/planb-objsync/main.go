// SPDX-License-Identifier: BSD-2-Clause
//
// Copyright (c) 2025 The FreeBSD Foundation.
//
// This software was developed by Hayzam Sherif <hayzam@alchemilla.io>
// of Alchemilla Ventures Pvt. Ltd. <hello@alchemilla.io>,
// under sponsorship from the FreeBSD Foundation.

// Command planb-objsync mirrors one configured section of an S3-compatible
// object store onto local disk: `planb-objsync [-c configfile] <section>
// [<container> | --all-containers] [--test-path-translate <container>]`.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/planb-backup/planb/internal/objsync"
	"github.com/planb-backup/planb/internal/objsyncconf"
)

const defaultConfigPath = "/etc/planb/objsync.ini"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("planb-objsync", flag.ContinueOnError)
	configPath := fs.String("c", defaultConfigPath, "inifile location")
	allContainers := fs.Bool("all-containers", false, "sync every configured container")
	testPathTranslate := fs.Bool("test-path-translate", false, "test path translation with paths from stdin")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	var rest []string
	for fs.NArg() > 0 {
		rest = append(rest, fs.Arg(0))
		if err := fs.Parse(fs.Args()[1:]); err != nil {
			return 1
		}
	}
	if len(rest) == 0 {
		fmt.Fprintln(os.Stderr, "planb-objsync: missing inisection argument")
		return 1
	}
	sectionName := rest[0]
	var container string
	if len(rest) > 1 {
		container = rest[1]
	}

	if *testPathTranslate && container == "" {
		fmt.Fprintln(os.Stderr, "planb-objsync: --test-path-translate requires a container")
		return 1
	}
	if (container != "") == *allContainers {
		fmt.Fprintln(os.Stderr, "planb-objsync: either specify a container or --all-containers")
		return 1
	}

	cfg, err := objsyncconf.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "planb-objsync: %v\n", err)
		return 1
	}
	sec, ok := cfg.Sections[sectionName]
	if !ok {
		fmt.Fprintf(os.Stderr, "planb-objsync: unknown section %q\n", sectionName)
		return 1
	}

	rules, err := objsync.CompileRuleset(sec)
	if err != nil {
		fmt.Fprintf(os.Stderr, "planb-objsync: %v\n", err)
		return 1
	}

	if *testPathTranslate {
		return testPathTranslateLoop(rules, container)
	}

	containers := []string{container}
	if *allContainers {
		containers = sec.ContainerNames()
	}

	ctx := context.Background()
	client, err := objsync.NewS3Client(ctx, sec)
	if err != nil {
		fmt.Fprintf(os.Stderr, "planb-objsync: %v\n", err)
		return 1
	}
	lister := &objsync.S3Lister{Client: client, Bucket: sec.Bucket}

	abort := objsync.NewAbortFlag()
	stop := abort.InstallSignalHandler()
	defer stop()

	exitCode := 0
	for _, c := range containers {
		engine := &objsync.Engine{
			Lister:    lister,
			Rules:     rules,
			DestRoot:  sec.LocalRoot,
			Prefix:    sec.Prefix(c),
			Container: c,
			Workers:   sec.Workers,
			Paths:     objsync.NewPaths(sec.LocalRoot, containerPathName(sectionName, c)),
			Abort:     abort,
		}

		res, err := engine.Run(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "planb-objsync: section %s container %q: %v\n", sectionName, c, err)
			exitCode = 1
			continue
		}
		fmt.Printf("%s/%s: added=%d updated=%d deleted=%d hard_failures=%d transient_failures=%d (%s)\n",
			sectionName, c, res.Added, res.Updated, res.Deleted, res.HardFailures, res.TransientFailures, res.Duration)
		if code := res.ExitCode(); code > exitCode {
			exitCode = code
		}
	}
	return exitCode
}

func containerPathName(section, container string) string {
	if container == "" {
		return section
	}
	return section + "-" + container
}

// testPathTranslateLoop reads raw remote paths from stdin, one per line,
// and prints the local path each translates to, until EOF.
func testPathTranslateLoop(rules *objsync.Ruleset, container string) int {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		rpath := scanner.Text()
		lpath, keep := rules.LocalPath(objsyncPathRecord(container, rpath))
		if !keep {
			fmt.Printf("%q => EXCLUDED\n", rpath)
			continue
		}
		fmt.Printf("%q => %q\n", rpath, lpath)
	}
	return 0
}

func objsyncPathRecord(container, path string) objsync.Record {
	return objsync.Record{Container: container, Path: path}
}
