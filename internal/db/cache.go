// SPDX-License-Identifier: BSD-2-Clause
//
// Copyright (c) 2025 The FreeBSD Foundation.
//
// This software was developed by Hayzam Sherif <hayzam@alchemilla.io>
// of Alchemilla Ventures Pvt. Ltd. <hello@alchemilla.io>,
// under sponsorship from the FreeBSD Foundation.

package db

import (
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/planb-backup/planb/internal/logger"
)

// CacheDB backs the storage engine's dataset size-stat cache,
// keyed by (dataset, property) with a short TTL so repeated slist runs
// and the runner's size recording don't re-shell out on every call.
var CacheDB *badger.DB

func SetupCache(dataPath string) (*badger.DB, error) {
	opts := badger.DefaultOptions(fmt.Sprintf("%s/cache.db", dataPath)).
		WithLoggingLevel(badger.ERROR).
		WithDetectConflicts(false)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger open: %w", err)
	}

	CacheDB = db
	return db, nil
}

func SetValue(key string, value []byte, ttlSeconds int64) error {
	e := badger.NewEntry([]byte(key), value).
		WithTTL(time.Duration(ttlSeconds) * time.Second)

	return CacheDB.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(e)
	})
}

func GetValue(key string) ([]byte, bool) {
	if CacheDB == nil {
		return nil, false
	}

	var valCopy []byte
	err := CacheDB.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		valCopy, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, false
	}
	return valCopy, true
}

func RunCacheGC() {
	for CacheDB.RunValueLogGC(0.5) == nil {
		logger.L.Info().Msg("ran value log GC on size-stat cache")
	}
}
