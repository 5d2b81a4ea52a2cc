package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/fundledger/internal/database"
	"github.com/aristath/fundledger/internal/domain"
)

// SQLiteStore keeps documents in a sqlite table and versions them by content hash.
// The conditional UPDATE makes the version check and the write a single statement,
// so independent processes sharing the file contend safely.
type SQLiteStore struct {
	conn *sql.DB
	log  zerolog.Logger
}

// NewSQLiteStore creates a store on conn and applies the documents schema
func NewSQLiteStore(conn *sql.DB, log zerolog.Logger) (*SQLiteStore, error) {
	if err := database.ApplyDocumentsSchema(conn); err != nil {
		return nil, err
	}
	return &SQLiteStore{
		conn: conn,
		log:  log.With().Str("repository", "sqlite_docstore").Logger(),
	}, nil
}

// Read returns the document at path
func (s *SQLiteStore) Read(ctx context.Context, path string) (*Document, error) {
	var doc Document
	err := s.conn.QueryRowContext(ctx,
		"SELECT path, content, version FROM documents WHERE path = ?", path,
	).Scan(&doc.Path, &doc.Content, &doc.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("read %s: %w", path, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return &doc, nil
}

// Write stores content if version is still current and records a revision
func (s *SQLiteStore) Write(ctx context.Context, path string, content []byte, message, version string) (string, error) {
	next := ContentVersion(content)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	err := database.WithTransaction(s.conn, func(tx *sql.Tx) error {
		var res sql.Result
		var err error
		if version == "" {
			res, err = tx.ExecContext(ctx,
				`INSERT INTO documents (path, content, version, updated_at) VALUES (?, ?, ?, ?)
				 ON CONFLICT(path) DO NOTHING`,
				path, content, next, now)
		} else {
			res, err = tx.ExecContext(ctx,
				"UPDATE documents SET content = ?, version = ?, updated_at = ? WHERE path = ? AND version = ?",
				content, next, now, path, version)
		}
		if err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		if affected == 0 {
			return fmt.Errorf("write %s: version %q is stale: %w", path, version, domain.ErrConflict)
		}

		_, err = tx.ExecContext(ctx,
			"INSERT INTO document_revisions (path, version, message, created_at) VALUES (?, ?, ?, ?)",
			path, next, message, now)
		if err != nil {
			return fmt.Errorf("record revision for %s: %w", path, err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	s.log.Debug().Str("path", path).Str("version", next).Str("message", message).Msg("Document written")
	return next, nil
}

// Revisions returns the most recent accepted writes for path, newest first
func (s *SQLiteStore) Revisions(ctx context.Context, path string, limit int) ([]Revision, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.conn.QueryContext(ctx,
		"SELECT path, version, message, created_at FROM document_revisions WHERE path = ? ORDER BY id DESC LIMIT ?",
		path, limit)
	if err != nil {
		return nil, fmt.Errorf("query revisions for %s: %w", path, err)
	}
	defer rows.Close()

	var out []Revision
	for rows.Next() {
		var r Revision
		var createdAt string
		if err := rows.Scan(&r.Path, &r.Version, &r.Message, &createdAt); err != nil {
			return nil, fmt.Errorf("scan revision: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			r.CreatedAt = t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
