package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/Cdogma/maehrdocs/internal/llm"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id          TEXT PRIMARY KEY,
	source_path TEXT NOT NULL,
	filed_path  TEXT NOT NULL UNIQUE,
	sender      TEXT NOT NULL DEFAULT '',
	doc_date    TEXT NOT NULL DEFAULT '',
	doc_type    TEXT NOT NULL DEFAULT '',
	subject     TEXT NOT NULL DEFAULT '',
	key_figures TEXT NOT NULL DEFAULT '{}',
	text        TEXT NOT NULL DEFAULT '',
	filed_at    TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS corpus_cache (
	path     TEXT PRIMARY KEY,
	mtime    INTEGER NOT NULL,
	text     TEXT NOT NULL,
	cached_at TEXT NOT NULL
);
`

// Catalog is the SQLite index of filed documents. It serves the ledger export
// and caches extracted text so the duplicate corpus does not re-parse the
// whole archive on every batch.
type Catalog struct {
	db  *sql.DB
	log *slog.Logger
}

// Entry is one filed document.
type Entry struct {
	ID         string
	SourcePath string
	FiledPath  string
	Fields     llm.DocumentFields
	Text       string
	FiledAt    time.Time
}

// Open opens or creates the catalog database at path.
func Open(path string, log *slog.Logger) (*Catalog, error) {
	return open(path, log)
}

// OpenMemory opens an in-memory catalog for testing.
func OpenMemory(log *slog.Logger) (*Catalog, error) {
	return open(":memory:", log)
}

func open(dsn string, log *slog.Logger) (*Catalog, error) {
	if log == nil {
		log = slog.Default()
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Catalog{db: db, log: log}, nil
}

func (c *Catalog) Close() error {
	return c.db.Close()
}

// Add records a filed document. The filed path is unique; re-filing the same
// destination replaces the row.
func (c *Catalog) Add(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.FiledAt.IsZero() {
		e.FiledAt = time.Now().UTC()
	}
	figures, err := json.Marshal(e.Fields.KeyFigures)
	if err != nil {
		return fmt.Errorf("marshal key figures: %w", err)
	}
	_, err = c.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO documents
			(id, source_path, filed_path, sender, doc_date, doc_type, subject, key_figures, text, filed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.SourcePath, e.FiledPath,
		e.Fields.Sender, e.Fields.Date, e.Fields.DocType, e.Fields.Subject,
		string(figures), e.Text, e.FiledAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// List returns all filed documents, oldest first.
func (c *Catalog) List(ctx context.Context) ([]Entry, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, source_path, filed_path, sender, doc_date, doc_type, subject, key_figures, text, filed_at
		FROM documents ORDER BY filed_at, filed_path`)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var figures, filedAt string
		if err := rows.Scan(&e.ID, &e.SourcePath, &e.FiledPath,
			&e.Fields.Sender, &e.Fields.Date, &e.Fields.DocType, &e.Fields.Subject,
			&figures, &e.Text, &filedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		if figures != "" {
			if err := json.Unmarshal([]byte(figures), &e.Fields.KeyFigures); err != nil {
				c.log.Warn("catalog.key_figures_unreadable", "id", e.ID, "error", err)
			}
		}
		if t, err := time.Parse(time.RFC3339, filedAt); err == nil {
			e.FiledAt = t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// CachedText returns the cached extraction for path if the file has not
// changed since it was cached.
func (c *Catalog) CachedText(ctx context.Context, path string, mtime int64) (string, bool, error) {
	var text string
	var cachedMtime int64
	err := c.db.QueryRowContext(ctx,
		`SELECT text, mtime FROM corpus_cache WHERE path = ?`, path,
	).Scan(&text, &cachedMtime)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query corpus cache: %w", err)
	}
	if cachedMtime != mtime {
		return "", false, nil
	}
	return text, true, nil
}

// StoreText caches the extracted text for path at the given mtime.
func (c *Catalog) StoreText(ctx context.Context, path string, mtime int64, text string) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO corpus_cache (path, mtime, text, cached_at)
		VALUES (?, ?, ?, ?)`,
		path, mtime, text, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("store corpus cache: %w", err)
	}
	return nil
}
