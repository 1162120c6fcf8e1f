package repository

import (
	"context"
	"errors"
	"fmt"

	"nflstats/ingestion/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// LedgerRepository records which release assets have been ingested
type LedgerRepository struct {
	db *Database
}

const ledgerColumns = `asset_id, asset_name, file_type, year, sha256, rows_ingested, status, asset_updated_at, downloaded_at`

func scanLedgerEntry(row pgx.Row) (*models.LedgerEntry, error) {
	e := &models.LedgerEntry{}
	err := row.Scan(
		&e.AssetID, &e.AssetName, &e.FileType, &e.Year, &e.SHA256,
		&e.RowsIngested, &e.Status, &e.AssetUpdatedAt, &e.DownloadedAt,
	)
	return e, err
}

// Get returns the ledger entry for an asset, or ErrNotFound
func (r *LedgerRepository) Get(ctx context.Context, assetID int64, fileType models.FileType) (*models.LedgerEntry, error) {
	query := `SELECT ` + ledgerColumns + ` FROM download_log WHERE asset_id = $1 AND file_type = $2`

	e, err := scanLedgerEntry(r.db.Pool.QueryRow(ctx, query, assetID, string(fileType)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get ledger entry: %w", ErrStorage, err)
	}
	return e, nil
}

// Record writes the ledger entry for an asset, replacing any previous one.
// It runs on q so it commits together with the asset's rows.
func (r *LedgerRepository) Record(ctx context.Context, q DBTX, e *models.LedgerEntry) error {
	query := `
		INSERT INTO download_log (` + ledgerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (asset_id, file_type) DO UPDATE SET
			asset_name = EXCLUDED.asset_name,
			year = EXCLUDED.year,
			sha256 = EXCLUDED.sha256,
			rows_ingested = EXCLUDED.rows_ingested,
			status = EXCLUDED.status,
			asset_updated_at = EXCLUDED.asset_updated_at,
			downloaded_at = EXCLUDED.downloaded_at
		RETURNING downloaded_at
	`

	err := q.QueryRow(
		ctx, query,
		e.AssetID, e.AssetName, string(e.FileType), e.Year, e.SHA256,
		e.RowsIngested, e.Status, e.AssetUpdatedAt,
	).Scan(&e.DownloadedAt)
	if err != nil {
		return fmt.Errorf("%w: failed to record ledger entry: %w", ErrStorage, err)
	}

	log.Debug().
		Int64("asset_id", e.AssetID).
		Str("asset", e.AssetName).
		Str("file_type", string(e.FileType)).
		Int("rows", e.RowsIngested).
		Msg("Ledger entry recorded")

	return nil
}

// List returns all ledger entries, newest year first
func (r *LedgerRepository) List(ctx context.Context) ([]*models.LedgerEntry, error) {
	query := `SELECT ` + ledgerColumns + ` FROM download_log ORDER BY year DESC, file_type, asset_name`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list ledger: %w", ErrStorage, err)
	}
	defer rows.Close()

	var entries []*models.LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the number of ingested assets
func (r *LedgerRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM download_log`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: failed to count ledger: %w", ErrStorage, err)
	}
	return n, nil
}

// Overview summarizes every table in the store
func (db *Database) Overview(ctx context.Context) (*models.Overview, error) {
	var (
		o   models.Overview
		err error
	)
	if o.Plays, err = db.Plays.Summary(ctx); err != nil {
		return nil, err
	}
	if o.Games, err = db.Games.Summary(ctx); err != nil {
		return nil, err
	}
	if o.TeamStats, err = db.TeamStats.Summary(ctx); err != nil {
		return nil, err
	}
	if o.Assets, err = db.Ledger.Count(ctx); err != nil {
		return nil, err
	}
	return &o, nil
}
