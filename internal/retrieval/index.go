// Package retrieval stores document chunks in a keyword index and returns the
// best matches for an owner scope.
package retrieval

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode"

	_ "modernc.org/sqlite"
)

// DefaultTopK is the number of chunks returned to ground an answer.
const DefaultTopK = 3

const schema = `CREATE VIRTUAL TABLE IF NOT EXISTS chunks USING fts5(
	chunk_id UNINDEXED,
	owner_scope UNINDEXED,
	content,
	tokenize = 'porter unicode61'
)`

// Index is a SQLite FTS5 keyword index. Ranking is delegated to bm25. The
// file is local to one process; instances do not see each other's chunks.
type Index struct {
	db *sql.DB
}

// Open opens (and if needed creates) the index at path. Use ":memory:" for an
// ephemeral index.
func Open(ctx context.Context, path string) (*Index, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("retrieval: path must not be empty")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("retrieval: open %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases shared and serialises writers.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("retrieval: create schema: %w", err)
	}
	return &Index{db: db}, nil
}

// Close releases the underlying database.
func (ix *Index) Close() error {
	return ix.db.Close()
}

// Upsert writes one chunk, replacing any previous record with the same id.
// It returns the number of records written.
func (ix *Index) Upsert(ctx context.Context, ownerScope, id, text string) (int, error) {
	if ownerScope == "" || id == "" {
		return 0, errors.New("retrieval: Upsert: owner scope and id are required")
	}
	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("retrieval: Upsert begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE chunk_id = ?`, id); err != nil {
		return 0, fmt.Errorf("retrieval: Upsert delete: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO chunks (chunk_id, owner_scope, content) VALUES (?, ?, ?)`,
		id, ownerScope, text,
	); err != nil {
		return 0, fmt.Errorf("retrieval: Upsert insert: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("retrieval: Upsert commit: %w", err)
	}
	return 1, nil
}

// Search returns up to topK chunk texts of ownerScope matching any term of
// query, best first.
func (ix *Index) Search(ctx context.Context, ownerScope, query string, topK int) ([]string, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	match := matchExpression(query)
	if match == "" {
		return nil, nil
	}

	rows, err := ix.db.QueryContext(ctx,
		`SELECT content FROM chunks
		 WHERE chunks MATCH ? AND owner_scope = ?
		 ORDER BY bm25(chunks)
		 LIMIT ?`,
		match, ownerScope, topK,
	)
	if err != nil {
		return nil, fmt.Errorf("retrieval: Search query: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, fmt.Errorf("retrieval: Search scan: %w", err)
		}
		out = append(out, content)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("retrieval: Search rows: %w", err)
	}
	return out, nil
}

// PurgeOwner deletes every chunk of ownerScope and returns how many were removed.
func (ix *Index) PurgeOwner(ctx context.Context, ownerScope string) (int, error) {
	if ownerScope == "" {
		return 0, errors.New("retrieval: PurgeOwner: owner scope is required")
	}
	res, err := ix.db.ExecContext(ctx, `DELETE FROM chunks WHERE owner_scope = ?`, ownerScope)
	if err != nil {
		return 0, fmt.Errorf("retrieval: PurgeOwner: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("retrieval: PurgeOwner rows affected: %w", err)
	}
	return int(n), nil
}

// matchExpression turns free text into an FTS5 query that ORs the quoted
// terms, so user punctuation can never be read as query syntax.
func matchExpression(query string) string {
	terms := strings.FieldsFunc(query, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	seen := make(map[string]bool, len(terms))
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(t)
		if seen[t] {
			continue
		}
		seen[t] = true
		quoted = append(quoted, `"`+t+`"`)
	}
	return strings.Join(quoted, " OR ")
}
