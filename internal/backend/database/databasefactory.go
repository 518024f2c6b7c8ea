package database

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// NewDatabase opens the configured store and ensures the roster and entry tables exist
func NewDatabase(databaseType, connectionString string) (DatabaseService, error) {
	var (
		database DatabaseService
		err      error
	)
	switch databaseType {
	case "sqlite":
		if err := ensureSQLiteDir(connectionString); err != nil {
			return nil, err
		}
		database, err = NewSQLiteDatabase(connectionString)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", databaseType)
	}

	slog.Info("initializing database schema", "type", databaseType, "employees_table", "employees", "entries_table", "entry_logs")
	if _, err = database.CreateDatabase(); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to create database: %w", err)
	}

	return database, nil
}

// ensureSQLiteDir creates the parent directory of a file backed database
func ensureSQLiteDir(connectionString string) error {
	path := strings.TrimPrefix(connectionString, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || strings.HasPrefix(path, ":memory:") {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create database directory %s: %w", dir, err)
	}
	return nil
}
