package library

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/dgallion1/pdfnarrate/internal/doctree"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id         TEXT PRIMARY KEY,
	filename   TEXT NOT NULL,
	dedup_key  TEXT NOT NULL UNIQUE,
	units      TEXT NOT NULL,
	unit_count INTEGER NOT NULL,
	date_added INTEGER NOT NULL,
	bookmark   INTEGER
);
CREATE INDEX IF NOT EXISTS idx_documents_date_added ON documents (date_added DESC);
`

// SQLiteStore keeps the library in a single SQLite database file.
type SQLiteStore struct {
	db  *sql.DB
	log *slog.Logger
}

// OpenSQLite opens (creating if needed) the database at path. Use ":memory:"
// for a throwaway store.
func OpenSQLite(ctx context.Context, path string, log *slog.Logger) (*SQLiteStore, error) {
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	if path != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One connection serialises writers and keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite %s: %w", path, err)
	}
	log.Info("library opened", "backend", "sqlite", "path", path)
	return &SQLiteStore{db: db, log: log}, nil
}

func (s *SQLiteStore) FindByKey(ctx context.Context, key string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, filename, dedup_key, units, date_added, bookmark
		FROM   documents
		WHERE  dedup_key = ?`, key)
	return scanRecord(row)
}

func (s *SQLiteStore) Add(ctx context.Context, rec *Record) (*Record, bool, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.DateAdded.IsZero() {
		rec.DateAdded = time.Now().UTC()
	}
	units, err := json.Marshal(unitsOrEmpty(rec.Units))
	if err != nil {
		return nil, false, fmt.Errorf("marshal units: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, filename, dedup_key, units, unit_count, date_added, bookmark)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (dedup_key) DO NOTHING`,
		rec.ID, rec.Filename, rec.DedupKey, string(units), rec.UnitCount(), rec.DateAdded.UnixNano(), bookmarkArg(rec.Bookmark))
	if err != nil {
		return nil, false, fmt.Errorf("insert document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("insert document: %w", err)
	}
	if n == 0 {
		existing, err := s.FindByKey(ctx, rec.DedupKey)
		if err != nil {
			return nil, false, fmt.Errorf("load existing document: %w", err)
		}
		return existing, false, nil
	}
	return rec, true, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, filename, dedup_key, units, date_added, bookmark
		FROM   documents
		WHERE  id = ?`, id)
	return scanRecord(row)
}

func (s *SQLiteStore) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT   id, filename, date_added, unit_count, bookmark
		FROM     documents
		ORDER BY date_added DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	docs := []Summary{}
	for rows.Next() {
		var (
			sum      Summary
			added    int64
			bookmark sql.NullInt64
		)
		if err := rows.Scan(&sum.ID, &sum.Filename, &added, &sum.UnitCount, &bookmark); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		sum.DateAdded = time.Unix(0, added).UTC()
		sum.Bookmark = bookmarkPtr(bookmark)
		docs = append(docs, sum)
	}
	return docs, rows.Err()
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) SetBookmark(ctx context.Context, id string, index int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var count int
	err = tx.QueryRowContext(ctx, `SELECT unit_count FROM documents WHERE id = ?`, id).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}
	if err := CheckBookmark(index, count); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE documents SET bookmark = ? WHERE id = ?`, index, id); err != nil {
		return fmt.Errorf("update bookmark: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanRecord(row *sql.Row) (*Record, error) {
	var (
		rec      Record
		units    string
		added    int64
		bookmark sql.NullInt64
	)
	err := row.Scan(&rec.ID, &rec.Filename, &rec.DedupKey, &units, &added, &bookmark)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan document: %w", err)
	}
	if err := json.NewDecoder(strings.NewReader(units)).Decode(&rec.Units); err != nil {
		return nil, fmt.Errorf("decode units of %s: %w", rec.ID, err)
	}
	rec.DateAdded = time.Unix(0, added).UTC()
	rec.Bookmark = bookmarkPtr(bookmark)
	return &rec, nil
}

func unitsOrEmpty(d doctree.Document) doctree.Document {
	if d == nil {
		return doctree.Document{}
	}
	return d
}

func bookmarkArg(b *int) any {
	if b == nil {
		return nil
	}
	return *b
}

func bookmarkPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
