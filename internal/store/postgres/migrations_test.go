package postgres

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations_OrderedAndUnique(t *testing.T) {
	seen := map[int]bool{}
	prev := 0
	for _, m := range Migrations {
		assert.Greater(t, m.Version, prev, "versions must increase")
		assert.False(t, seen[m.Version])
		assert.NotEmpty(t, m.Name)
		seen[m.Version] = true
		prev = m.Version
	}
}

func TestMigrations_CallRecordsKeepHistory(t *testing.T) {
	var ddl string
	for _, m := range Migrations {
		if m.Name == "call_records" {
			ddl = m.SQL
		}
	}
	require.NotEmpty(t, ddl)
	assert.NotContains(t, ddl, "ON DELETE CASCADE")
	assert.Equal(t, 5, strings.Count(ddl, "ON DELETE SET NULL"))
	assert.Contains(t, ddl, constraintExternalCallID+" UNIQUE (external_call_id)")
}

func TestMigrate_AppliesPendingOnly(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))

	// 1 already applied.
	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").WithArgs(1).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectCommit()

	for _, m := range Migrations[1:] {
		mock.ExpectBegin()
		mock.ExpectExec("pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT EXISTS").WithArgs(m.Version).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectExec(firstStatement(m.SQL)).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("INSERT INTO schema_migrations").WithArgs(m.Version, m.Name).WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()
	}

	applied, err := Migrate(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, []string{"2_call_records", "3_lookup_indexes"}, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_StopsOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").WithArgs(1).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("CREATE TABLE users").WillReturnError(errors.New("permission denied"))
	mock.ExpectRollback()

	applied, err := Migrate(context.Background(), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1_catalog")
	assert.Empty(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// firstStatement returns a regexp matching the first DDL line of a migration.
func firstStatement(sql string) string {
	for _, line := range strings.Split(sql, "\n") {
		if line = strings.TrimSpace(line); line != "" && !strings.HasPrefix(line, "--") {
			return regexp.QuoteMeta(strings.TrimSuffix(line, ";"))
		}
	}
	return ""
}
