package database

import (
	"fmt"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// ConnectSQLite opens a sqlite database for local runs. Writers take the lock up front so
// concurrent approvals queue instead of failing with SQLITE_BUSY.
func ConnectSQLite(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("sqlite dsn must not be empty")
	}

	if !strings.Contains(dsn, "_busy_timeout") {
		dsn = appendParam(dsn, "_busy_timeout=5000")
	}
	if !strings.Contains(dsn, "_txlock") {
		dsn = appendParam(dsn, "_txlock=immediate")
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	return db, nil
}

func appendParam(dsn, param string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&" + param
	}
	return dsn + "?" + param
}
