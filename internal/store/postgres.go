// Package store persists imported rows in PostgreSQL.
//
// Postgres implements core.Store over a pgx connection pool. Lookups take a
// whole batch of keys per round trip, nested transactions map onto pgx
// savepoints, and INSERT statements are generated from the schema registry
// so a new entity needs only a field table and a migration.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/CrewImport/internal/config"
	"github.com/JonMunkholm/CrewImport/internal/core"
	"github.com/JonMunkholm/CrewImport/internal/schema"
)

// Tables maps each entity to its table.
var Tables = map[schema.EntityType]string{
	schema.Crew:        "crew_info",
	schema.Certificate: "certificates",
}

// Open builds a connection pool from cfg and verifies it with a ping.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.Info("database connected",
		"database", databaseName(cfg.URL),
		"max_conns", cfg.MaxConns,
		"min_conns", cfg.MinConns,
	)
	return pool, nil
}

func databaseName(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" || u.Path == "" {
		return "unknown"
	}
	return strings.TrimPrefix(u.Path, "/")
}

// Postgres is a core.Store backed by a pgx pool.
type Postgres struct {
	pool    *pgxpool.Pool
	inserts map[schema.EntityType]insertStmt
}

var _ core.Store = (*Postgres)(nil)

// New wraps pool. Insert statements are prepared for every registered entity
// that has a table.
func New(pool *pgxpool.Pool) *Postgres {
	inserts := make(map[schema.EntityType]insertStmt)
	for _, def := range schema.All() {
		if table, ok := Tables[def.Type]; ok {
			inserts[def.Type] = buildInsert(table, def.Fields)
		}
	}
	return &Postgres{pool: pool, inserts: inserts}
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Postgres) Acquire(ctx context.Context) (core.Conn, error) {
	c, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	return &pgConn{conn: c, inserts: p.inserts}, nil
}

type pgConn struct {
	conn    *pgxpool.Conn
	inserts map[schema.EntityType]insertStmt
}

func (c *pgConn) Release() {
	c.conn.Release()
}

func (c *pgConn) Begin(ctx context.Context) (core.Tx, error) {
	tx, err := c.conn.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	return &pgTx{tx: tx, inserts: c.inserts}, nil
}

func (c *pgConn) ExistingIDNumbers(ctx context.Context, idNumbers []string) (map[string]bool, error) {
	return existing[string](ctx, c.conn,
		`SELECT id_number FROM crew_info WHERE id_number = ANY($1)`, idNumbers)
}

func (c *pgConn) ExistingPhones(ctx context.Context, phones []string) (map[string]bool, error) {
	return existing[string](ctx, c.conn,
		`SELECT phone FROM crew_info WHERE phone = ANY($1)`, phones)
}

func (c *pgConn) ExistingCrewIDs(ctx context.Context, ids []int64) (map[int64]bool, error) {
	return existing[int64](ctx, c.conn,
		`SELECT id FROM crew_info WHERE id = ANY($1)`, ids)
}

func (c *pgConn) ExistingCertificates(ctx context.Context, keys []core.CertificateKey) (map[core.CertificateKey]bool, error) {
	out := make(map[core.CertificateKey]bool)
	if len(keys) == 0 {
		return out, nil
	}

	numbers := make([]string, len(keys))
	crewIDs := make([]int64, len(keys))
	for i, k := range keys {
		numbers[i] = k.Number
		crewIDs[i] = k.CrewID
	}

	rows, err := c.conn.Query(ctx, `
		SELECT c.certificate_number, c.crew_id
		FROM certificates c
		JOIN unnest($1::text[], $2::bigint[]) AS k(number, crew_id)
		  ON c.certificate_number = k.number AND c.crew_id = k.crew_id`,
		numbers, crewIDs)
	if err != nil {
		return nil, fmt.Errorf("look up certificates: %w", err)
	}
	found, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.CertificateKey, error) {
		var k core.CertificateKey
		err := row.Scan(&k.Number, &k.CrewID)
		return k, err
	})
	if err != nil {
		return nil, fmt.Errorf("look up certificates: %w", err)
	}
	for _, k := range found {
		out[k] = true
	}
	return out, nil
}

// existing runs a single-column membership query and returns the hits.
// An empty key list skips the round trip.
func existing[T comparable](ctx context.Context, q *pgxpool.Conn, sql string, keys []T) (map[T]bool, error) {
	out := make(map[T]bool)
	if len(keys) == 0 {
		return out, nil
	}

	rows, err := q.Query(ctx, sql, keys)
	if err != nil {
		return nil, err
	}
	found, err := pgx.CollectRows(rows, pgx.RowTo[T])
	if err != nil {
		return nil, err
	}
	for _, k := range found {
		out[k] = true
	}
	return out, nil
}

// pgTx is a transaction or, when opened from another pgTx, a savepoint.
type pgTx struct {
	tx      pgx.Tx
	inserts map[schema.EntityType]insertStmt
}

func (t *pgTx) Begin(ctx context.Context) (core.Tx, error) {
	sp, err := t.tx.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("savepoint: %w", err)
	}
	return &pgTx{tx: sp, inserts: t.inserts}, nil
}

func (t *pgTx) Insert(ctx context.Context, entity schema.EntityType, row schema.Row) error {
	stmt, ok := t.inserts[entity]
	if !ok {
		return fmt.Errorf("%w: %q has no table", schema.ErrUnknownEntity, entity)
	}
	_, err := t.tx.Exec(ctx, stmt.sql, stmt.args(row)...)
	return err
}

func (t *pgTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *pgTx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}

// insertStmt is a parameterised INSERT covering every column of an entity.
type insertStmt struct {
	sql    string
	fields []schema.FieldSpec
}

func buildInsert(table string, fields []schema.FieldSpec) insertStmt {
	cols := make([]string, len(fields))
	params := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = pgx.Identifier{f.Name}.Sanitize()
		params[i] = fmt.Sprintf("$%d", i+1)
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		pgx.Identifier{table}.Sanitize(),
		strings.Join(cols, ", "),
		strings.Join(params, ", "),
	)
	return insertStmt{sql: sql, fields: fields}
}

// args converts a row's cells in field order; absent columns become NULL.
func (s insertStmt) args(row schema.Row) []any {
	args := make([]any, len(s.fields))
	for i, f := range s.fields {
		v, _ := row.Value(f.Name)
		args[i] = toPg(f.Kind, v)
	}
	return args
}
