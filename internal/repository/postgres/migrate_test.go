package postgres

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeMigrations(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func TestMigrationFilesSorted(t *testing.T) {
	dir := writeMigrations(t, map[string]string{
		"002_b.sql":  "SELECT 2;",
		"001_a.sql":  "SELECT 1;",
		"README.md":  "ignored",
		"003_c.sql~": "ignored",
	})

	files, err := MigrationFiles(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "001_a.sql", filepath.Base(files[0]))
	assert.Equal(t, "002_b.sql", filepath.Base(files[1]))
}

func TestMigrateStopsAtFirstFailure(t *testing.T) {
	db, mock := setupTestDB(t)
	dir := writeMigrations(t, map[string]string{
		"001_a.sql": "CREATE TABLE a (id int);",
		"002_b.sql": "   ",
		"003_c.sql": "CREATE TABLE broken",
		"004_d.sql": "CREATE TABLE d (id int);",
	})

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TABLE a`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TABLE broken`).WillReturnError(&pq.Error{Code: "42601", Position: "20", Message: "syntax error at end of input"})
	mock.ExpectRollback()

	applied, err := Migrate(context.Background(), db, dir)
	assert.Equal(t, 1, applied)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "003_c.sql")
	assert.Contains(t, err.Error(), "sqlstate 42601 at position 20")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrationSchemaFile(t *testing.T) {
	files, err := MigrationFiles(filepath.Join("..", "..", "..", "migrations"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	for _, table := range []string{"contacts", "tags", "tagged", "emails", "broadcasts", "messages", "activity"} {
		assert.Contains(t, string(data), "CREATE TABLE IF NOT EXISTS "+table+" ")
	}
}
