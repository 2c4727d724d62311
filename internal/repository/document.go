// Package repository provides persistence implementations for the shared
// document served by the reference server, backed by PostgreSQL, SQLite or
// process memory.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/atinyakov/mecsync/internal/models"
)

// ErrRevisionMismatch is returned by Replace when the caller's expected
// revision is not the stored one.
var ErrRevisionMismatch = errors.New("revision mismatch")

// emptyDocument is served while nothing has been stored yet.
var emptyDocument = []byte("{}")

// queries holds the statements of one SQL dialect.
type queries struct {
	load    string
	lock    string
	insert  string
	archive string
	update  string
	prune   string
}

var postgresQueries = queries{
	load:    `SELECT revision, body, updated_at FROM documents WHERE id = 1`,
	lock:    `SELECT revision, body FROM documents WHERE id = 1 FOR UPDATE`,
	insert:  `INSERT INTO documents (id, revision, body, updated_at) VALUES (1, $1, $2, $3)`,
	archive: `INSERT INTO document_history (revision, body, replaced_at) VALUES ($1, $2, $3)`,
	update:  `UPDATE documents SET revision = $1, body = $2, updated_at = $3 WHERE id = 1`,
	prune:   `DELETE FROM document_history WHERE replaced_at < $1`,
}

var sqliteQueries = queries{
	load:    `SELECT revision, body, updated_at FROM documents WHERE id = 1`,
	lock:    `SELECT revision, body FROM documents WHERE id = 1`,
	insert:  `INSERT INTO documents (id, revision, body, updated_at) VALUES (1, ?, ?, ?)`,
	archive: `INSERT INTO document_history (revision, body, replaced_at) VALUES (?, ?, ?)`,
	update:  `UPDATE documents SET revision = ?, body = ?, updated_at = ? WHERE id = 1`,
	prune:   `DELETE FROM document_history WHERE replaced_at < ?`,
}

// SQLDocumentRepository stores the document in a single row of the documents
// table and archives every replaced body in document_history. Timestamps are
// stored as Unix milliseconds so both dialects share one schema.
type SQLDocumentRepository struct {
	// DB is the database handle for executing queries and transactions.
	DB *sql.DB
	// Now is the clock used for updated_at and replaced_at.
	Now func() time.Time

	q queries
}

// NewPostgresDocumentRepository creates a repository for a PostgreSQL
// database opened with the lib/pq driver.
func NewPostgresDocumentRepository(db *sql.DB) *SQLDocumentRepository {
	return &SQLDocumentRepository{DB: db, Now: time.Now, q: postgresQueries}
}

// NewSQLiteDocumentRepository creates a repository for a SQLite database
// opened with the modernc.org/sqlite driver.
func NewSQLiteDocumentRepository(db *sql.DB) *SQLDocumentRepository {
	return &SQLDocumentRepository{DB: db, Now: time.Now, q: sqliteQueries}
}

// Load returns the stored document. Before the first Replace it returns an
// empty object at revision zero.
//
//	ctx: context for cancellation and deadlines
//
// Returns the document or an error if the query fails.
func (r *SQLDocumentRepository) Load(ctx context.Context) (models.StoredDocument, error) {
	var (
		doc     models.StoredDocument
		body    []byte
		updated int64
	)
	err := r.DB.QueryRowContext(ctx, r.q.load).Scan(&doc.Revision, &body, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return models.StoredDocument{Body: emptyDocument}, nil
	}
	if err != nil {
		return doc, fmt.Errorf("Load failed: %w", err)
	}
	doc.Body = body
	doc.UpdatedAt = time.UnixMilli(updated).UTC()
	return doc, nil
}

// Replace stores body as the new document inside a transaction, archiving the
// previous body. A positive expected revision must equal the stored one.
//
//	ctx:      context for cancellation and deadlines
//	body:     the complete JSON document
//	expected: revision the caller last saw, zero to replace unconditionally
//
// Returns the new revision, ErrRevisionMismatch, or an error if any statement
// or the transaction fails.
func (r *SQLDocumentRepository) Replace(ctx context.Context, body []byte, expected models.Revision) (models.Revision, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := r.Now().UnixMilli()

	var (
		current models.Revision
		prev    []byte
	)
	err = tx.QueryRowContext(ctx, r.q.lock).Scan(&current, &prev)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if expected > 0 {
			return 0, ErrRevisionMismatch
		}
		if _, err := tx.ExecContext(ctx, r.q.insert, int64(1), string(body), now); err != nil {
			if isUniqueViolation(err) {
				return 0, ErrRevisionMismatch
			}
			return 0, fmt.Errorf("insert: %w", err)
		}
	case err != nil:
		return 0, fmt.Errorf("Replace failed: %w", err)
	default:
		if expected > 0 && expected != current {
			return 0, ErrRevisionMismatch
		}
		if _, err := tx.ExecContext(ctx, r.q.archive, int64(current), string(prev), now); err != nil {
			return 0, fmt.Errorf("archive: %w", err)
		}
		if _, err := tx.ExecContext(ctx, r.q.update, int64(current+1), string(body), now); err != nil {
			return 0, fmt.Errorf("update: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return current + 1, nil
}

// PruneHistory deletes archived bodies replaced before the given time.
//
//	ctx:    context for cancellation and deadlines
//	before: archived revisions older than this are removed
//
// Returns the number of removed rows or an error if the delete fails.
func (r *SQLDocumentRepository) PruneHistory(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, r.q.prune, before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("PruneHistory failed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// isUniqueViolation reports a concurrent first insert on PostgreSQL.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
