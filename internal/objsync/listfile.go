// SPDX-License-Identifier: BSD-2-Clause
//
// Copyright (c) 2025 The FreeBSD Foundation.
//
// This software was developed by Hayzam Sherif <hayzam@alchemilla.io>
// of Alchemilla Ventures Pvt. Ltd. <hello@alchemilla.io>,
// under sponsorship from the FreeBSD Foundation.

package objsync

import (
	"bufio"
	"fmt"
	"os"
)

// ReadListFile parses a sorted list file (.cur/.new/.add/.del/.utime)
// into Records. A missing file yields an empty slice.
func ReadListFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("objsync: open %s: %w", path, err)
	}
	defer f.Close()

	var recs []Record
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		r, err := ParseRecord(line)
		if err != nil {
			return nil, err
		}
		recs = append(recs, r)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("objsync: read %s: %w", path, err)
	}
	return recs, nil
}

// WriteListFile writes recs (assumed already sorted) to path atomically
// via a temp-file-then-rename, one record per line.
func WriteListFile(path string, recs []Record) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("objsync: create %s: %w", tmp, err)
	}

	w := bufio.NewWriter(f)
	for _, r := range recs {
		if _, err := w.WriteString(r.Emit()); err != nil {
			f.Close()
			return fmt.Errorf("objsync: write %s: %w", tmp, err)
		}
		if err := w.WriteByte('\n'); err != nil {
			f.Close()
			return fmt.Errorf("objsync: write %s: %w", tmp, err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("objsync: flush %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("objsync: close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("objsync: rename %s to %s: %w", tmp, path, err)
	}
	return nil
}

// RemoveListFiles removes the transient phase files (.new/.add/.del/
// .utime) at the end of a cycle. Missing files are not an
// error.
func RemoveListFiles(paths ...string) {
	for _, p := range paths {
		_ = os.Remove(p)
	}
}
