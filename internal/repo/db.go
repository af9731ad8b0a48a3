// Package repo implements the data persistence layer for title requests. It
// ships two interchangeable backends: a relational one backed by GORM over
// SQLite (pure Go driver) and a document-oriented one backed by Redis. This
// file contains database bootstrapping helpers for SQLite and migrations.
package repo

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/fallenrobot/fallenbot/internal/domain"
)

// sqlitePragmas are applied by the driver to every pooled connection.
// busy_timeout comes first so the journal switch itself waits for locks.
// Write transactions start IMMEDIATE so they queue on busy_timeout instead
// of failing with SQLITE_BUSY_SNAPSHOT when another writer commits first.
var sqlitePragmas = []string{
	"_pragma=busy_timeout(5000)",
	"_pragma=journal_mode(WAL)",
	"_pragma=synchronous(NORMAL)",
	"_txlock=immediate",
}

// sqliteDSN appends the connection pragmas to path, keeping any query the
// caller already supplied.
func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + strings.Join(sqlitePragmas, "&")
}

// OpenSQLite opens (or creates) a SQLite database with per-connection
// PRAGMAs and installs the OpenTelemetry tracing plugin.
func OpenSQLite(path string) (*gorm.DB, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(sqliteDSN(path)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, err
	}

	// Pool
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// AutoMigrate creates or updates the anime_requests table and its indexes,
// including the partial unique index on pending (chat_id, anilist_id), and
// the fsub_channels table.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&domain.Request{}, &domain.FSubChannel{})
}
