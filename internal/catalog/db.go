// SPDX-License-Identifier: BSD-2-Clause
//
// Copyright (c) 2025 The FreeBSD Foundation.
//
// This software was developed by Hayzam Sherif <hayzam@alchemilla.io>
// of Alchemilla Ventures Pvt. Ltd. <hello@alchemilla.io>,
// under sponsorship from the FreeBSD Foundation.

package catalog

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// Open opens (creating if needed) the catalog database under dataPath
// and runs migrations, mirroring sylve's SetupBackupDatabase pragma
// tuning.
func Open(dataPath string) (*gorm.DB, error) {
	if dataPath == "" {
		return nil, fmt.Errorf("catalog data path required")
	}
	if err := os.MkdirAll(dataPath, 0755); err != nil {
		return nil, fmt.Errorf("create catalog data path: %w", err)
	}

	dbPath := filepath.Join(dataPath, "planb-catalog.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger:         gormLogger.Default.LogMode(gormLogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open catalog db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("catalog sql handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	db.Exec("PRAGMA foreign_keys = OFF")
	db.Exec("PRAGMA busy_timeout = 5000")
	db.Exec("PRAGMA journal_mode = WAL")
	db.Exec("PRAGMA synchronous = NORMAL")

	if err := db.AutoMigrate(&HostGroup{}, &Fileset{}, &BackupRun{}); err != nil {
		return nil, fmt.Errorf("migrate catalog db: %w", err)
	}

	db.Exec("PRAGMA foreign_keys = ON")
	return db, nil
}
