package session

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/dgallion1/docmap/internal/outline"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteMaps persists map history in a SQLite database.
type SQLiteMaps struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies
// the schema. Use ":memory:" for a throwaway database.
func OpenSQLite(path string) (*SQLiteMaps, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteMaps{db: db}, nil
}

func (s *SQLiteMaps) Put(ctx context.Context, rec MapRecord) error {
	nodes, err := json.Marshal(rec.Nodes)
	if err != nil {
		return fmt.Errorf("encode nodes: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO maps (id, user_id, title, depth, model, nodes, markdown, url, blob_key, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID.String(), rec.UserID, rec.Title, rec.Depth, rec.Model, string(nodes),
		rec.Markdown, rec.URL, rec.Key, rec.CreatedAt.UTC().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert map: %w", err)
	}
	return nil
}

const selectMap = `SELECT id, user_id, title, depth, model, nodes, markdown, url, blob_key, created_at FROM maps`

func (s *SQLiteMaps) List(ctx context.Context, userID string) ([]MapRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectMap+` WHERE user_id = ? ORDER BY seq`, userID)
	if err != nil {
		return nil, fmt.Errorf("query maps: %w", err)
	}
	defer rows.Close()

	out := []MapRecord{}
	for rows.Next() {
		rec, err := scanMap(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteMaps) Last(ctx context.Context, userID string) (MapRecord, error) {
	row := s.db.QueryRowContext(ctx, selectMap+` WHERE user_id = ? ORDER BY seq DESC LIMIT 1`, userID)
	return scanOne(row)
}

func (s *SQLiteMaps) Get(ctx context.Context, userID string, id uuid.UUID) (MapRecord, error) {
	row := s.db.QueryRowContext(ctx, selectMap+` WHERE user_id = ? AND id = ?`, userID, id.String())
	return scanOne(row)
}

func (s *SQLiteMaps) Close() error { return s.db.Close() }

type scanner interface {
	Scan(dest ...any) error
}

func scanOne(row *sql.Row) (MapRecord, error) {
	rec, err := scanMap(row)
	if errors.Is(err, sql.ErrNoRows) {
		return MapRecord{}, ErrNotFound
	}
	return rec, err
}

func scanMap(sc scanner) (MapRecord, error) {
	var (
		rec     MapRecord
		id      string
		nodes   string
		created int64
	)
	if err := sc.Scan(&id, &rec.UserID, &rec.Title, &rec.Depth, &rec.Model, &nodes, &rec.Markdown, &rec.URL, &rec.Key, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return MapRecord{}, err
		}
		return MapRecord{}, fmt.Errorf("scan map: %w", err)
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return MapRecord{}, fmt.Errorf("parse map id: %w", err)
	}
	rec.ID = parsed
	rec.Nodes = []outline.Node{}
	if err := json.Unmarshal([]byte(nodes), &rec.Nodes); err != nil {
		return MapRecord{}, fmt.Errorf("decode nodes: %w", err)
	}
	rec.CreatedAt = time.Unix(0, created).UTC()
	return rec, nil
}

// Split pairs a history store with a separate dialog state store.
type Split struct {
	MapStore
	StateStore
	closers []func() error
}

// NewSplit builds a Store from independent halves. Close closes both
// halves when they implement Close.
func NewSplit(maps MapStore, states StateStore) *Split {
	s := &Split{MapStore: maps, StateStore: states}
	for _, part := range []any{maps, states} {
		if c, ok := part.(interface{ Close() error }); ok {
			s.closers = append(s.closers, c.Close)
		}
	}
	return s
}

func (s *Split) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
