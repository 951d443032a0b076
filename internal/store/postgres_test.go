package store

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/CrewImport/internal/schema"
)

func TestBuildInsert(t *testing.T) {
	stmt := buildInsert("certificates", schema.CertificateFieldSpecs)

	assert.Equal(t,
		`INSERT INTO "certificates" ("crew_id", "certificate_type", "certificate_number", "issue_date", "expiry_date", "issuing_authority", "status") VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		stmt.sql)
}

func TestInsertArgs(t *testing.T) {
	stmt := buildInsert("crew_info", schema.CrewFieldSpecs)

	row, err := schema.ExampleRow(schema.Crew)
	require.NoError(t, err)

	args := stmt.args(row)
	require.Len(t, args, len(schema.CrewFieldSpecs))
	assert.Equal(t, pgtype.Text{String: "张三", Valid: true}, args[0])
	assert.IsType(t, pgtype.Date{}, args[2])
	assert.True(t, args[2].(pgtype.Date).Valid)
	assert.Equal(t, pgtype.Int8{Int64: 1, Valid: true}, args[14])
}

func TestInsertArgs_MissingColumnsAreNull(t *testing.T) {
	stmt := buildInsert("crew_info", schema.CrewFieldSpecs)
	row := schema.NewRow(1, []string{"name"}, []string{"李四"})

	args := stmt.args(row)
	assert.Equal(t, pgtype.Text{String: "李四", Valid: true}, args[0])
	assert.Equal(t, pgtype.Text{}, args[5], "email")
	assert.Equal(t, pgtype.Int8{}, args[14], "ship_id")
}

func TestNew_PreparesEveryEntity(t *testing.T) {
	p := New(nil)
	for _, def := range schema.All() {
		stmt, ok := p.inserts[def.Type]
		require.True(t, ok, "no insert for %s", def.Type)
		assert.True(t, strings.HasPrefix(stmt.sql, "INSERT INTO \""+Tables[def.Type]+"\""))
	}
}

func TestMigrations_Embedded(t *testing.T) {
	names, err := fs.Glob(Migrations(), "*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, names)

	body, err := fs.ReadFile(Migrations(), names[0])
	require.NoError(t, err)
	assert.Contains(t, string(body), "-- +goose Up")
	assert.Contains(t, string(body), "-- +goose Down")
	for _, table := range Tables {
		assert.Contains(t, string(body), "CREATE TABLE IF NOT EXISTS "+table)
	}
}

func TestDatabaseName(t *testing.T) {
	assert.Equal(t, "crew", databaseName("postgres://u:p@localhost:5432/crew?sslmode=disable"))
	assert.Equal(t, "unknown", databaseName("host=localhost dbname=crew"))
}
