package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"claimpoint/internal"
)

// DB is the local SQLite record store. It also carries the metadata key/value table the
// client keeps its durable pointers in.
type DB struct {
	conn *sql.DB
}

var (
	_ internal.RecordStore    = (*DB)(nil)
	_ internal.RecordUpserter = (*DB)(nil)
)

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS policies (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL,
  claim_admin_1 TEXT,
  claim_admin_2 TEXT
);

CREATE TABLE IF NOT EXISTS claim_templates (
  id TEXT PRIMARY KEY,
  template_name TEXT NOT NULL,
  mappings TEXT NOT NULL,
  created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_claim_templates_name ON claim_templates(template_name);

CREATE TABLE IF NOT EXISTS claim_batches (
  id TEXT PRIMARY KEY,
  policyholder TEXT NOT NULL,
  claim_administrator TEXT NOT NULL,
  template_name TEXT NOT NULL,
  paid_from TEXT NOT NULL,
  paid_to TEXT NOT NULL,
  received_date TEXT,
  description TEXT,
  file_name TEXT NOT NULL,
  file_size INTEGER,
  created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

// Fetch returns every row of table in insertion order.
func (d *DB) Fetch(ctx context.Context, tableName string) ([]internal.Record, error) {
	t, err := lookupTable(tableName)
	if err != nil {
		return nil, err
	}

	rows, err := d.conn.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s FROM %s ORDER BY rowid`, strings.Join(t.columnNames(), ", "), t.name))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []internal.Record{}
	for rows.Next() {
		record, err := scanRecord(t, rows)
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

// Insert writes records in one transaction and returns them as stored, defaults included.
func (d *DB) Insert(ctx context.Context, tableName string, records []internal.Record) ([]internal.Record, error) {
	t, err := lookupTable(tableName)
	if err != nil {
		return nil, err
	}

	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	out := make([]internal.Record, 0, len(records))
	for _, record := range records {
		stored, err := insertTx(ctx, tx, t, record)
		if err != nil {
			return nil, err
		}
		out = append(out, stored)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

// Upsert replaces every row whose keyColumn equals the record's value with the record.
func (d *DB) Upsert(ctx context.Context, tableName, keyColumn string, record internal.Record) (internal.Record, error) {
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

	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE %s = ?`, t.name, keyColumn), key); err != nil {
		return nil, err
	}
	stored, err := insertTx(ctx, tx, t, record)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return stored, nil
}

func insertTx(ctx context.Context, tx *sql.Tx, t table, record internal.Record) (internal.Record, error) {
	cols, prepared, err := t.prepare(record)
	if err != nil {
		return nil, err
	}
	args, err := encode(t, cols, prepared, false)
	if err != nil {
		return nil, internal.NewValidationError("record", err.Error())
	}

	query := insertSQL(t, cols, func(int) string { return "?" }, t.columnNames())
	return scanRecord(t, tx.QueryRowContext(ctx, query, args...))
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(t table, row scanner) (internal.Record, error) {
	values := make([]any, len(t.columns))
	dest := make([]any, len(t.columns))
	for i := range values {
		dest[i] = &values[i]
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	record := internal.Record{}
	for i, c := range t.columns {
		record[c.name] = normalize(c, values[i])
	}
	return record, nil
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}
