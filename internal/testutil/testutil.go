// Package testutil provides shared database helpers for tests.
package testutil

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/vantagedata/metakeep/db"
)

// SetupTestDB creates an in-memory SQLite database for testing.
// Uses real migrations to ensure test schema matches production schema.
// The pool is capped at one connection: each in-memory connection is its own
// database, so a second pooled connection would see an empty schema.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	testDB, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=on")
	require.NoError(t, err)
	testDB.SetMaxOpenConns(1)
	t.Cleanup(func() { testDB.Close() })

	err = db.Migrate(testDB, nil)
	require.NoError(t, err, "Failed to run migrations")

	return testDB
}

// SetupFileDB creates a file-backed SQLite database in a temp directory.
// Used for concurrency tests where multiple connections must share state.
func SetupFileDB(t *testing.T) *sql.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "metakeep-test.db")
	testDB, err := db.Open(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { testDB.Close() })

	err = db.Migrate(testDB, nil)
	require.NoError(t, err, "Failed to run migrations")

	return testDB
}
