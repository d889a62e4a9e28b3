// SPDX-License-Identifier: BSD-2-Clause
//
// Copyright (c) 2025 The FreeBSD Foundation.
//
// This software was developed by Hayzam Sherif <hayzam@alchemilla.io>
// of Alchemilla Ventures Pvt. Ltd. <hello@alchemilla.io>,
// under sponsorship from the FreeBSD Foundation.

package storage

import (
	"context"
	"reflect"
	"sort"
	"testing"
)

func TestDummyEngine_ListDatasets(t *testing.T) {
	e := NewDummyEngine(t.TempDir())
	ctx := context.Background()

	if names, err := e.ListDatasets(ctx); err != nil || len(names) != 0 {
		t.Fatalf("expected empty engine to list nothing, got %v, err %v", names, err)
	}

	e.GetDataset("acme", "web1")
	e.GetDataset("acme", "web2")
	e.GetDataset("beta", "db1")

	got, err := e.ListDatasets(ctx)
	if err != nil {
		t.Fatalf("ListDatasets: %v", err)
	}
	want := []string{"acme-web1", "acme-web2", "beta-db1"}
	sort.Strings(got)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestDummyEngine_ListDatasetsReflectsOnlyTouchedSets(t *testing.T) {
	e := NewDummyEngine(t.TempDir())
	ctx := context.Background()

	e.GetDataset("acme", "web1")
	names, err := e.ListDatasets(ctx)
	if err != nil {
		t.Fatalf("ListDatasets: %v", err)
	}
	if len(names) != 1 || names[0] != "acme-web1" {
		t.Fatalf("got %v, want [acme-web1]", names)
	}
}
