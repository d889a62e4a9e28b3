// SPDX-License-Identifier: BSD-2-Clause
//
// Copyright (c) 2025 The FreeBSD Foundation.
//
// This software was developed by Hayzam Sherif <hayzam@alchemilla.io>
// of Alchemilla Ventures Pvt. Ltd. <hello@alchemilla.io>,
// under sponsorship from the FreeBSD Foundation.

package objsync

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

const downloadChunkSize = 16 * 1024 * 1024

// abortingReader makes Read fail with errAborted once abort is set,
// checked once per chunk so in-flight downloads abort promptly.
type abortingReader struct {
	r     io.Reader
	abort *AbortFlag
}

var errAborted = fmt.Errorf("objsync: aborted")

func (a *abortingReader) Read(p []byte) (int, error) {
	if a.abort != nil && a.abort.Aborted() {
		return 0, errAborted
	}
	return a.r.Read(p)
}

// downloadRecord fetches the object named by remoteKey into
// destRoot/localPath, verifying size and MD5 integrity. A successful
// return means the record is safe to write to a success list.
func downloadRecord(ctx context.Context, lister RemoteLister, r Record, remoteKey, localPath, destRoot string, abort *AbortFlag) error {
	dest := filepath.Join(destRoot, filepath.FromSlash(localPath))

	if err := os.MkdirAll(filepath.Dir(dest), 0700); err != nil {
		return fatalErr(r.Key(), fmt.Errorf("mkdir parent: %w", err))
	}

	body, etag, err := lister.Get(ctx, remoteKey, 0)
	if err != nil {
		return transientErr(r.Key(), err)
	}
	defer body.Close()

	f, err := os.Create(dest)
	if err != nil {
		return fatalErr(r.Key(), fmt.Errorf("create %s: %w", dest, err))
	}

	hasher := md5.New()
	reader := &abortingReader{r: body, abort: abort}
	written, copyErr := io.CopyBuffer(io.MultiWriter(f, hasher), reader, make([]byte, downloadChunkSize))
	closeErr := f.Close()

	if copyErr != nil {
		os.Remove(dest)
		if copyErr == errAborted {
			return transientErr(r.Key(), errAborted)
		}
		return transientErr(r.Key(), fmt.Errorf("download: %w", copyErr))
	}
	if closeErr != nil {
		return fatalErr(r.Key(), fmt.Errorf("close %s: %w", dest, closeErr))
	}

	if written != r.Size {
		return resolveSizeMismatch(ctx, lister, r, remoteKey, dest)
	}

	if IsPlainMD5ETag(etag) {
		if hex.EncodeToString(hasher.Sum(nil)) != etag {
			os.Remove(dest)
			return fatalErr(r.Key(), fmt.Errorf("md5 mismatch for %s", r.Path))
		}
	}

	if err := os.Chtimes(dest, r.ModTime, r.ModTime); err != nil {
		return fatalErr(r.Key(), fmt.Errorf("chtimes %s: %w", dest, err))
	}
	return nil
}

// resolveSizeMismatch disambiguates a short or long download: if the
// server object's current mtime still matches the record, the remote
// size genuinely differs from what we recorded (permanent, hard error);
// if the server mtime has moved on, the object mutated mid-run
// (transient, heals on the next cycle).
func resolveSizeMismatch(ctx context.Context, lister RemoteLister, r Record, remoteKey, dest string) error {
	os.Remove(dest)
	_, _, serverModTime, err := lister.Head(ctx, remoteKey)
	if err != nil {
		return transientErr(r.Key(), fmt.Errorf("head after size mismatch: %w", err))
	}
	if serverModTime.Equal(r.ModTime) {
		return fatalErr(r.Key(), fmt.Errorf("permanent size mismatch for %s", r.Path))
	}
	return transientErr(r.Key(), fmt.Errorf("object %s mutated during sync", r.Path))
}

// touchMTime updates only the local mtime/atime of an already-correct
// file, used by the update phase when only metadata changed.
func touchMTime(path string, modTime time.Time) error {
	return os.Chtimes(path, modTime, modTime)
}

// fileMD5 hashes a local file for comparison against a remote ETag.
func fileMD5(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
