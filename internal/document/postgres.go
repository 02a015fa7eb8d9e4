package document

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"campusid/pkg/platform/sentinel"
	"campusid/pkg/requestcontext"
)

// PostgresStore persists documents in the documents table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const Schema = `
CREATE TABLE IF NOT EXISTS documents (
    id           TEXT PRIMARY KEY,
    did          TEXT NOT NULL,
    name         TEXT NOT NULL,
    content_type TEXT NOT NULL,
    content_hash TEXT NOT NULL,
    issued_at    TIMESTAMPTZ NOT NULL,
    revoked      BOOLEAN NOT NULL DEFAULT FALSE,
    revoked_at   TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS documents_did_idx ON documents (did, issued_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, Schema)
	return err
}

func (s *PostgresStore) Save(ctx context.Context, doc *Document) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO documents (id, did, name, content_type, content_hash, issued_at, revoked)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		doc.ID, doc.DID, doc.Name, doc.ContentType, doc.ContentHash, doc.IssuedAt, doc.Revoked,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Document, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, did, name, content_type, content_hash, issued_at, revoked, revoked_at
		 FROM documents WHERE id = $1`, id)
	return scanDocument(row)
}

func (s *PostgresStore) ListByDID(ctx context.Context, did string) ([]*Document, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, did, name, content_type, content_hash, issued_at, revoked, revoked_at
		 FROM documents WHERE did = $1 ORDER BY issued_at DESC`, did)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *PostgresStore) MarkRevoked(ctx context.Context, id string) (*Document, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE documents SET revoked = TRUE, revoked_at = $2 WHERE id = $1
		 RETURNING id, did, name, content_type, content_hash, issued_at, revoked, revoked_at`,
		id, requestcontext.Now(ctx))
	return scanDocument(row)
}

func scanDocument(row pgx.Row) (*Document, error) {
	var doc Document
	var revokedAt *time.Time
	err := row.Scan(&doc.ID, &doc.DID, &doc.Name, &doc.ContentType, &doc.ContentHash,
		&doc.IssuedAt, &doc.Revoked, &revokedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	if revokedAt != nil {
		doc.RevokedAt = *revokedAt
	}
	return &doc, nil
}
