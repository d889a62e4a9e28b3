// SPDX-License-Identifier: BSD-2-Clause
//
// Copyright (c) 2025 The FreeBSD Foundation.
//
// This software was developed by Hayzam Sherif <hayzam@alchemilla.io>
// of Alchemilla Ventures Pvt. Ltd. <hello@alchemilla.io>,
// under sponsorship from the FreeBSD Foundation.

package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func openTestQueue(t *testing.T) *Queue {
	t.Helper()
	path := filepath.Join(t.TempDir(), "queue.db")
	q, err := OpenQueue(path, "runs", 1, time.Second, zerolog.Nop())
	if err != nil {
		t.Fatalf("OpenQueue: %v", err)
	}
	return q
}

func TestQueue_SizeAndPurge(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()

	if n, err := q.Size(); err != nil || n != 0 {
		t.Fatalf("expected empty queue, got %d, err %v", n, err)
	}

	for i := 0; i < 3; i++ {
		if err := q.Enqueue(ctx, "noop", []byte("{}")); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	n, err := q.Size()
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if n != 3 {
		t.Fatalf("got size %d, want 3", n)
	}

	if err := q.Purge(); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if n, err := q.Size(); err != nil || n != 0 {
		t.Fatalf("expected queue empty after purge, got %d, err %v", n, err)
	}
}

func TestQueue_SizeScopedByQueueName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.db")
	runs, err := OpenQueue(path, "runs", 1, time.Second, zerolog.Nop())
	if err != nil {
		t.Fatalf("OpenQueue runs: %v", err)
	}
	dutree, err := OpenQueue(path, "dutree", 1, time.Second, zerolog.Nop())
	if err != nil {
		t.Fatalf("OpenQueue dutree: %v", err)
	}

	ctx := context.Background()
	if err := runs.Enqueue(ctx, "noop", []byte("{}")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if n, err := runs.Size(); err != nil || n != 1 {
		t.Fatalf("runs queue size got %d, err %v, want 1", n, err)
	}
	if n, err := dutree.Size(); err != nil || n != 0 {
		t.Fatalf("dutree queue size got %d, err %v, want 0", n, err)
	}
}
