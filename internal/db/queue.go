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
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"maragu.dev/goqite"
	"maragu.dev/goqite/jobs"
)

const queueSchema = `
create table if not exists goqite (
  id text primary key default ('m_' || lower(hex(randomblob(16)))),
  created text not null default (strftime('%Y-%m-%dT%H:%M:%fZ')),
  updated text not null default (strftime('%Y-%m-%dT%H:%M:%fZ')),
  queue text not null,
  body blob not null,
  timeout text not null default (strftime('%Y-%m-%dT%H:%M:%fZ')),
  received integer not null default 0,
  priority integer not null default 0
) strict;

create trigger if not exists goqite_updated_timestamp after update on goqite begin
  update goqite set updated = strftime('%Y-%m-%dT%H:%M:%fZ') where id = old.id;
end;

create index if not exists goqite_queue_priority_created_idx
  on goqite (queue, priority desc, created);
`

// Queue wraps one named goqite queue plus its worker-pool runner. PlanB
// runs two: "runs" (the job-runner worker pool) and "dutree" (the
// single-worker post-processing queue).
type Queue struct {
	conn *sql.DB
	name string
	q    *goqite.Queue
	r    *jobs.Runner
}

// QueueHandler unmarshals a job body of type T before invoking the
// caller's handler.
type QueueHandler[T any] func(ctx context.Context, payload T) error

// OpenQueue opens (or reuses) the sqlite file at dbPath and registers
// name as a goqite queue with a worker pool of size limit.
func OpenQueue(dbPath, name string, limit int, pollInterval time.Duration, log zerolog.Logger) (*Queue, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_timeout=5000&_fk=true")
	if err != nil {
		return nil, fmt.Errorf("open queue db %s: %w", dbPath, err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if _, err := conn.Exec(queueSchema); err != nil {
		return nil, fmt.Errorf("init queue schema: %w", err)
	}

	q := goqite.New(goqite.NewOpts{DB: conn, Name: name})
	r := jobs.NewRunner(jobs.NewRunnerOpts{
		Limit:        limit,
		Log:          zerologJobLogger{Logger: log},
		PollInterval: pollInterval,
		Queue:        q,
	})

	return &Queue{conn: conn, name: name, q: q, r: r}, nil
}

// Start blocks, polling for and running jobs until ctx is canceled.
// Callers run it in its own goroutine.
func (qu *Queue) Start(ctx context.Context) { qu.r.Start(ctx) }

// Size reports the number of messages currently enqueued (bqueueflush).
func (qu *Queue) Size() (int, error) {
	var n int
	err := qu.conn.QueryRow("select count(*) from goqite where queue = ?", qu.name).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count queue %s: %w", qu.name, err)
	}
	return n, nil
}

// Purge drops every enqueued message without running it (bqueueflush).
func (qu *Queue) Purge() error {
	if _, err := qu.conn.Exec("delete from goqite where queue = ?", qu.name); err != nil {
		return fmt.Errorf("purge queue %s: %w", qu.name, err)
	}
	return nil
}

func (qu *Queue) Register(name string, fn func(ctx context.Context, body []byte) error) {
	qu.r.Register(name, fn)
}

func RegisterJSON[T any](qu *Queue, name string, h QueueHandler[T]) {
	qu.Register(name, func(ctx context.Context, body []byte) error {
		var v T
		if err := json.Unmarshal(body, &v); err != nil {
			return fmt.Errorf("unmarshal job %s: %w", name, err)
		}
		return h(ctx, v)
	})
}

func (qu *Queue) Enqueue(ctx context.Context, name string, body []byte) error {
	return jobs.Create(ctx, qu.q, name, body)
}

func EnqueueJSON[T any](ctx context.Context, qu *Queue, name string, payload T) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", name, err)
	}
	return qu.Enqueue(ctx, name, b)
}
