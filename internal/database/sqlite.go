package database

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"feid-go/internal/database/migrations"
	"feid-go/internal/feid"
	"feid-go/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteDatabase implements feid.Cache using SQLite.
type SQLiteDatabase struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// NewSQLiteDatabase opens the database at path (or ":memory:") and brings the
// schema up to date.
func NewSQLiteDatabase(path string, now func() time.Time) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	return NewSQLiteDatabaseFromDB(db, path, now), nil
}

// NewSQLiteDatabaseFromDB wraps an existing, already migrated connection.
func NewSQLiteDatabaseFromDB(db *sql.DB, path string, now func() time.Time) *SQLiteDatabase {
	if now == nil {
		now = time.Now
	}
	return &SQLiteDatabase{db: db, path: path, now: now}
}

// OpenConnection opens and configures a SQLite connection.
// An in-memory database lives as long as its connection, so the pool is
// limited to one connection for ":memory:".
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	return db, nil
}

// Table snapshots

func (s *SQLiteDatabase) GetSnapshot(table string) (*feid.TableData, error) {
	var colsJSON, rowsJSON string
	var changelogJSON sql.NullString
	var fetchedAt time.Time
	err := s.db.QueryRow(
		`SELECT columns_json, rows_json, changelog_json, fetched_at FROM table_snapshots WHERE name = ?`, table,
	).Scan(&colsJSON, &rowsJSON, &changelogJSON, &fetchedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not cached
		}
		return nil, fmt.Errorf("reading snapshot of %s: %w", table, err)
	}

	data := &feid.TableData{FetchedAt: fetchedAt.UTC()}
	if err := json.Unmarshal([]byte(colsJSON), &data.Columns); err != nil {
		return nil, fmt.Errorf("decoding columns of %s: %w", table, err)
	}
	data.Rows, err = decodeRows(data.Columns, rowsJSON)
	if err != nil {
		return nil, fmt.Errorf("decoding rows of %s: %w", table, err)
	}
	if changelogJSON.Valid {
		if err := json.Unmarshal([]byte(changelogJSON.String), &data.Changelog); err != nil {
			return nil, fmt.Errorf("decoding changelog of %s: %w", table, err)
		}
	}
	return data, nil
}

func (s *SQLiteDatabase) PutSnapshot(table string, data *feid.TableData) error {
	colsJSON, err := json.Marshal(data.Columns)
	if err != nil {
		return fmt.Errorf("encoding columns of %s: %w", table, err)
	}
	rowsJSON, err := encodeRows(data.Rows)
	if err != nil {
		return fmt.Errorf("encoding rows of %s: %w", table, err)
	}
	var changelog sql.NullString
	if data.Changelog != nil {
		b, err := json.Marshal(data.Changelog)
		if err != nil {
			return fmt.Errorf("encoding changelog of %s: %w", table, err)
		}
		changelog = sql.NullString{String: string(b), Valid: true}
	}
	fetchedAt := data.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = s.now()
	}

	_, err = s.db.Exec(`
		INSERT INTO table_snapshots (name, columns_json, rows_json, changelog_json, fetched_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			columns_json = excluded.columns_json,
			rows_json = excluded.rows_json,
			changelog_json = excluded.changelog_json,
			fetched_at = excluded.fetched_at`,
		table, string(colsJSON), rowsJSON, changelog, fetchedAt.UTC())
	if err != nil {
		return fmt.Errorf("storing snapshot of %s: %w", table, err)
	}
	return nil
}

func (s *SQLiteDatabase) InvalidateSnapshots(tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(tables)), ",")
	args := make([]any, len(tables))
	for i, t := range tables {
		args[i] = t
	}
	if _, err := s.db.Exec(`DELETE FROM table_snapshots WHERE name IN (`+placeholders+`)`, args...); err != nil {
		return fmt.Errorf("invalidating snapshots: %w", err)
	}
	return nil
}

// encodeRows stores rows in their wire form: time values as epoch seconds.
func encodeRows(rows []model.Row) (string, error) {
	wire := make([][]any, len(rows))
	for i, r := range rows {
		w := make([]any, len(r))
		for j, v := range r {
			w[j] = model.EncodeValue(v)
		}
		wire[i] = w
	}
	b, err := json.Marshal(wire)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeRows(columns []model.Column, raw string) ([]model.Row, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var wire [][]any
	if err := dec.Decode(&wire); err != nil {
		return nil, err
	}
	rows := make([]model.Row, len(wire))
	for i, w := range wire {
		if len(w) != len(columns) {
			return nil, fmt.Errorf("row %d has %d values for %d columns", i, len(w), len(columns))
		}
		r := make(model.Row, len(w))
		for j, v := range w {
			typed, err := model.DecodeValue(columns[j], v)
			if err != nil {
				return nil, err
			}
			r[j] = typed
		}
		rows[i] = r
	}
	return rows, nil
}

// Samples

func (s *SQLiteDatabase) GetSamples() ([]model.Sample, bool, error) {
	var raw string
	err := s.db.QueryRow(`SELECT samples FROM sample_lists WHERE id = 1`).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading cached samples: %w", err)
	}
	var samples []model.Sample
	if err := json.Unmarshal([]byte(raw), &samples); err != nil {
		return nil, false, fmt.Errorf("decoding cached samples: %w", err)
	}
	if samples == nil {
		samples = []model.Sample{}
	}
	return samples, true, nil
}

func (s *SQLiteDatabase) PutSamples(samples []model.Sample, fetchedAt time.Time) error {
	if samples == nil {
		samples = []model.Sample{}
	}
	b, err := json.Marshal(samples)
	if err != nil {
		return fmt.Errorf("encoding samples: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO sample_lists (id, samples, fetched_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET samples = excluded.samples, fetched_at = excluded.fetched_at`,
		string(b), fetchedAt.UTC())
	if err != nil {
		return fmt.Errorf("storing samples: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) InvalidateSamples() error {
	if _, err := s.db.Exec(`DELETE FROM sample_lists`); err != nil {
		return fmt.Errorf("invalidating samples: %w", err)
	}
	return nil
}

// Operation tracking

func (s *SQLiteDatabase) CreateOperation(operation, parameters string, startedAt time.Time) (*feid.Operation, error) {
	res, err := s.db.Exec(
		`INSERT INTO operations (operation, parameters, status, started_at) VALUES (?, ?, 'running', ?)`,
		operation, parameters, startedAt.UTC())
	if err != nil {
		return nil, fmt.Errorf("creating operation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading operation id: %w", err)
	}
	return &feid.Operation{
		ID:         id,
		Operation:  operation,
		Parameters: parameters,
		Status:     "running",
		StartedAt:  startedAt.UTC(),
	}, nil
}

func (s *SQLiteDatabase) FinishOperation(id int64, status string, finishedAt time.Time) error {
	res, err := s.db.Exec(
		`UPDATE operations SET status = ?, finished_at = ? WHERE id = ?`,
		status, finishedAt.UTC(), id)
	if err != nil {
		return fmt.Errorf("finishing operation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finishing operation: no operation with id %d", id)
	}
	return nil
}

func (s *SQLiteDatabase) ListOperations(limit int) ([]*feid.Operation, error) {
	rows, err := s.db.Query(`
		SELECT id, operation, parameters, status, started_at, finished_at
		FROM operations ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	defer rows.Close()

	var ops []*feid.Operation
	for rows.Next() {
		var op feid.Operation
		var finished sql.NullTime
		if err := rows.Scan(&op.ID, &op.Operation, &op.Parameters, &op.Status, &op.StartedAt, &finished); err != nil {
			return nil, fmt.Errorf("scanning operation: %w", err)
		}
		op.StartedAt = op.StartedAt.UTC()
		if finished.Valid {
			op.FinishedAt = finished.Time.UTC()
		}
		ops = append(ops, &op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	return ops, nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Compile-time check that SQLiteDatabase implements feid.Cache
var _ feid.Cache = (*SQLiteDatabase)(nil)
