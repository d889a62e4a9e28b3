// SPDX-License-Identifier: BSD-2-Clause
//
// Copyright (c) 2025 The FreeBSD Foundation.
//
// This software was developed by Hayzam Sherif <hayzam@alchemilla.io>
// of Alchemilla Ventures Pvt. Ltd. <hello@alchemilla.io>,
// under sponsorship from the FreeBSD Foundation.

// Package objsync implements the resumable object-store mirror engine
// for object stores: diff-and-fetch against a remote listing using a sorted-list
// comm-merge, multi-worker download, and list reconciliation.
package objsync

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

const mtimeLayout = "2006-01-02T15:04:05.000000"

// Record is one line of a sorted listing.
type Record struct {
	Container string
	Path      string
	ModTime   time.Time
	Size      int64
}

// Key is the (container, path) sort key.
func (r Record) Key() string { return r.Container + "\x00" + r.Path }

// Emit renders r per the list grammar: "[container|]path|mtimeISO|size",
// with "|" in Path/Container doubled. The line has no trailing newline;
// WriteListFile adds it.
func (r Record) Emit() string {
	var b strings.Builder
	if r.Container != "" {
		b.WriteString(escapePipe(r.Container))
		b.WriteByte('|')
	}
	b.WriteString(escapePipe(r.Path))
	b.WriteByte('|')
	b.WriteString(r.ModTime.UTC().Format(mtimeLayout))
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(r.Size, 10))
	return b.String()
}

func escapePipe(s string) string {
	return strings.ReplaceAll(s, "|", "||")
}

// ParseRecord parses one line (without trailing "\n"). A line with no
// container field (single escaped-path form)
// has Container == "".
func ParseRecord(line string) (Record, error) {
	fields, err := splitEscapedPipe(line)
	if err != nil {
		return Record{}, err
	}

	var container, path, mtimeStr, sizeStr string
	switch len(fields) {
	case 3:
		path, mtimeStr, sizeStr = fields[0], fields[1], fields[2]
	case 4:
		container, path, mtimeStr, sizeStr = fields[0], fields[1], fields[2], fields[3]
	default:
		return Record{}, fmt.Errorf("objsync: malformed list line %q", line)
	}

	mtime, err := time.ParseInLocation(mtimeLayout, mtimeStr, time.UTC)
	if err != nil {
		return Record{}, fmt.Errorf("objsync: parse mtime %q: %w", mtimeStr, err)
	}
	size, err := strconv.ParseInt(sizeStr, 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("objsync: parse size %q: %w", sizeStr, err)
	}

	return Record{Container: container, Path: path, ModTime: mtime, Size: size}, nil
}

// splitEscapedPipe splits s on unescaped "|" ("||" is a literal "|").
func splitEscapedPipe(s string) ([]string, error) {
	var fields []string
	var cur strings.Builder
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		if runes[i] == '|' {
			if i+1 < len(runes) && runes[i+1] == '|' {
				cur.WriteByte('|')
				i++
				continue
			}
			fields = append(fields, cur.String())
			cur.Reset()
			continue
		}
		cur.WriteRune(runes[i])
	}
	fields = append(fields, cur.String())
	return fields, nil
}

// SortRecords sorts in place, ascending by (container, path), matching
// the strictly-ascending, duplicate-free list invariant.
func SortRecords(recs []Record) {
	sort.Slice(recs, func(i, j int) bool { return recs[i].Key() < recs[j].Key() })
}
