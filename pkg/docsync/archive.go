package docsync

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"github.com/automerge/automerge-go"
	_ "github.com/mattn/go-sqlite3"
)

var ErrNotFound = errors.New("document not found")

// Archive persists saved automerge documents in sqlite, keyed by document id.
type Archive struct {
	database *sql.DB
}

func OpenArchive(ctx context.Context, path string) (*Archive, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	a := &Archive{database: db}
	if err := a.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

func (a *Archive) init(ctx context.Context) error {
	if _, err := a.database.ExecContext(
		ctx, `CREATE TABLE IF NOT EXISTS documents (
    	id text not null primary key,
        content text not null
		)`,
	); err != nil {
		return fmt.Errorf("failed to create documents table: %w", err)
	}
	return nil
}

func (a *Archive) Close() error {
	return a.database.Close()
}

// Put stores the current save of doc, reporting whether the stored content changed.
func (a *Archive) Put(ctx context.Context, id string, doc *automerge.Doc) (bool, error) {
	content := base64.StdEncoding.EncodeToString(doc.Save())
	res, err := a.database.ExecContext(
		ctx, `INSERT INTO documents (id, content) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET content = excluded.content WHERE content != excluded.content`,
		id, content,
	)
	if err != nil {
		return false, fmt.Errorf("failed to store %s: %w", id, err)
	}
	r, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to count rows affected: %w", err)
	}
	return r > 0, nil
}

func (a *Archive) Get(ctx context.Context, id string) (*automerge.Doc, error) {
	var raw string
	if err := a.database.QueryRowContext(ctx, `SELECT content FROM documents WHERE id = ?`, id).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query %s: %w", id, err)
	}
	return decodeSaved(raw)
}

// All loads every archived document.
func (a *Archive) All(ctx context.Context) (map[string]*automerge.Doc, error) {
	rows, err := a.database.QueryContext(ctx, `SELECT id, content FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "err", err)
		}
	}(rows)
	out := make(map[string]*automerge.Doc)
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan: %w", err)
		}
		doc, err := decodeSaved(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", id, err)
		}
		out[id] = doc
	}
	return out, rows.Err()
}

func (a *Archive) Delete(ctx context.Context, id string) error {
	if _, err := a.database.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete %s: %w", id, err)
	}
	return nil
}

func decodeSaved(raw string) (*automerge.Doc, error) {
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode: %w", err)
	}
	doc, err := automerge.Load(decoded)
	if err != nil {
		return nil, fmt.Errorf("failed to load doc: %w", err)
	}
	return doc, nil
}
