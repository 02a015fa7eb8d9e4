package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"campusid/internal/identity"
	"campusid/pkg/platform/sentinel"
	"campusid/pkg/requestcontext"
)

// Postgres persists identity records in the identities table.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Schema is applied by migrations; kept here so integration tests can
// bootstrap a fresh database.
const Schema = `
CREATE TABLE IF NOT EXISTS identities (
    did              TEXT PRIMARY KEY,
    owner_wallet     TEXT NOT NULL UNIQUE,
    status           TEXT NOT NULL,
    metadata_hash    TEXT NOT NULL,
    chain_tx_hash    TEXT NOT NULL DEFAULT '',
    chain_sync_state TEXT NOT NULL,
    version          BIGINT NOT NULL DEFAULT 1,
    created_at       TIMESTAMPTZ NOT NULL,
    updated_at       TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS identities_status_created_idx ON identities (status, created_at DESC);
CREATE INDEX IF NOT EXISTS identities_sync_state_idx ON identities (chain_sync_state);
`

// Migrate creates the schema if absent.
func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, Schema)
	return err
}

const recordColumns = `did, owner_wallet, status, metadata_hash, chain_tx_hash, chain_sync_state, version, created_at, updated_at`

func (p *Postgres) Get(ctx context.Context, did string) (*identity.Record, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM identities WHERE did = $1`, did)
	return scanRecord(row)
}

func (p *Postgres) GetByWallet(ctx context.Context, wallet string) (*identity.Record, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM identities WHERE lower(owner_wallet) = lower($1)`, wallet)
	return scanRecord(row)
}

func (p *Postgres) Create(ctx context.Context, record *identity.Record) error {
	now := requestcontext.Now(ctx)
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = record.CreatedAt
	record.Version = 1

	_, err := p.pool.Exec(ctx,
		`INSERT INTO identities (`+recordColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		record.DID, record.OwnerWallet, record.Status, record.MetadataHash,
		record.ChainTxHash, record.ChainSyncState, record.Version,
		record.CreatedAt, record.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert identity: %w", err)
	}
	return nil
}

func (p *Postgres) Update(ctx context.Context, did string, version int64, patch identity.Patch) (*identity.Record, error) {
	row := p.pool.QueryRow(ctx, `
		UPDATE identities SET
			status           = COALESCE($3, status),
			chain_sync_state = COALESCE($4, chain_sync_state),
			chain_tx_hash    = COALESCE($5, chain_tx_hash),
			metadata_hash    = COALESCE($6, metadata_hash),
			version          = version + 1,
			updated_at       = $7
		WHERE did = $1 AND version = $2
		RETURNING `+recordColumns,
		did, version,
		patch.Status, patch.ChainSyncState, patch.ChainTxHash, patch.MetadataHash,
		requestcontext.Now(ctx),
	)
	record, err := scanRecord(row)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, err
	}

	// Distinguish a missing record from a version race.
	var exists bool
	if qerr := p.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM identities WHERE did = $1)`, did).Scan(&exists); qerr != nil {
		return nil, fmt.Errorf("check identity exists: %w", qerr)
	}
	if exists {
		return nil, sentinel.ErrConflict
	}
	return nil, sentinel.ErrNotFound
}

func (p *Postgres) List(ctx context.Context, filter Filter, page, pageSize int) ([]*identity.Record, int, error) {
	page, pageSize = ClampPageSize(page, pageSize)
	offset := (page - 1) * pageSize

	var total int
	countQuery := `SELECT count(*) FROM identities`
	listQuery := `SELECT ` + recordColumns + ` FROM identities`
	args := []any{}
	if filter.Status != "" {
		countQuery += ` WHERE status = $1`
		listQuery += ` WHERE status = $1`
		args = append(args, filter.Status)
	}
	if err := p.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count identities: %w", err)
	}

	listQuery += fmt.Sprintf(` ORDER BY created_at DESC, did ASC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, pageSize, offset)

	rows, err := p.pool.Query(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list identities: %w", err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func (p *Postgres) ListBySyncState(ctx context.Context, state identity.SyncState, limit int) ([]*identity.Record, error) {
	if limit <= 0 {
		limit = MaxPageSize
	}
	rows, err := p.pool.Query(ctx,
		`SELECT `+recordColumns+` FROM identities WHERE chain_sync_state = $1 ORDER BY updated_at ASC LIMIT $2`,
		state, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list identities by sync state: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func scanRecord(row pgx.Row) (*identity.Record, error) {
	var record identity.Record
	err := row.Scan(
		&record.DID, &record.OwnerWallet, &record.Status, &record.MetadataHash,
		&record.ChainTxHash, &record.ChainSyncState, &record.Version,
		&record.CreatedAt, &record.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan identity: %w", err)
	}
	return &record, nil
}

func scanRecords(rows pgx.Rows) ([]*identity.Record, error) {
	var records []*identity.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}
	return records, nil
}
