package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"claimpoint/internal"
)

// mappings is stored as json rather than jsonb so key order survives the round trip.
const pgSchema = `
CREATE TABLE IF NOT EXISTS policies (
  id BIGSERIAL PRIMARY KEY,
  name TEXT NOT NULL,
  claim_admin_1 TEXT,
  claim_admin_2 TEXT
);

CREATE TABLE IF NOT EXISTS claim_templates (
  row_seq BIGSERIAL,
  id TEXT PRIMARY KEY,
  template_name TEXT NOT NULL,
  mappings JSON NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_claim_templates_name ON claim_templates(template_name);

CREATE TABLE IF NOT EXISTS claim_batches (
  row_seq BIGSERIAL,
  id TEXT PRIMARY KEY,
  policyholder TEXT NOT NULL,
  claim_administrator TEXT NOT NULL,
  template_name TEXT NOT NULL,
  paid_from DATE NOT NULL,
  paid_to DATE NOT NULL,
  received_date DATE,
  description TEXT,
  file_name TEXT NOT NULL,
  file_size BIGINT,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// PostgresStore is the record store backed by a PostgreSQL pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var (
	_ internal.RecordStore    = (*PostgresStore)(nil)
	_ internal.RecordUpserter = (*PostgresStore)(nil)
)

func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolConfig.MaxConns = 10

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	store := &PostgresStore{pool: pool}
	if err := store.initializeSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) initializeSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, pgSchema)
	return err
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

// selectList reads json columns back as text so the driver hands over the stored bytes.
func selectList(t table) string {
	names := make([]string, 0, len(t.columns))
	for _, c := range t.columns {
		if c.kind == kindJSON {
			names = append(names, fmt.Sprintf("%s::text AS %s", c.name, c.name))
			continue
		}
		names = append(names, c.name)
	}
	return strings.Join(names, ", ")
}

func orderColumn(t table) string {
	if t.uuidKey != "" {
		return "row_seq"
	}
	return "id"
}

func (s *PostgresStore) Fetch(ctx context.Context, tableName string) ([]internal.Record, error) {
	t, err := lookupTable(tableName)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM %s ORDER BY %s`, selectList(t), t.name, orderColumn(t)))
	if err != nil {
		return nil, err
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, err
	}

	out := make([]internal.Record, 0, len(maps))
	for _, m := range maps {
		out = append(out, recordFromMap(t, m))
	}
	return out, nil
}

func (s *PostgresStore) Insert(ctx context.Context, tableName string, records []internal.Record) ([]internal.Record, error) {
	t, err := lookupTable(tableName)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	out := make([]internal.Record, 0, len(records))
	for _, record := range records {
		stored, err := pgInsert(ctx, tx, t, record)
		if err != nil {
			return nil, err
		}
		out = append(out, stored)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, tableName, keyColumn string, record internal.Record) (internal.Record, error) {
	t, err := lookupTable(tableName)
	if err != nil {
		return nil, err
	}
	if _, ok := t.column(keyColumn); !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownColumn, t.name, keyColumn)
	}
	key, ok := record[keyColumn]
	if !ok {
		return nil, internal.NewValidationError(keyColumn, "upsert key missing from record")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, t.name, keyColumn), key); err != nil {
		return nil, err
	}
	stored, err := pgInsert(ctx, tx, t, record)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return stored, nil
}

func pgInsert(ctx context.Context, tx pgx.Tx, t table, record internal.Record) (internal.Record, error) {
	cols, prepared, err := t.prepare(record)
	if err != nil {
		return nil, err
	}
	args, err := encode(t, cols, prepared, true)
	if err != nil {
		return nil, internal.NewValidationError("record", err.Error())
	}

	query := insertSQL(t, cols, func(i int) string { return fmt.Sprintf("$%d", i) }, []string{selectList(t)})
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	m, err := pgx.CollectExactlyOneRow(rows, pgx.RowToMap)
	if err != nil {
		return nil, err
	}
	return recordFromMap(t, m), nil
}

func recordFromMap(t table, m map[string]any) internal.Record {
	record := internal.Record{}
	for _, c := range t.columns {
		record[c.name] = normalize(c, m[c.name])
	}
	return record
}
