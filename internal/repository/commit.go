package repository

import (
	"context"
	"errors"

	"nflstats/ingestion/internal/models"

	"github.com/jackc/pgx/v5"
)

// GetLedgerEntry returns the ledger entry for an asset, or ErrNotFound
func (db *Database) GetLedgerEntry(ctx context.Context, assetID int64, fileType models.FileType) (*models.LedgerEntry, error) {
	return db.Ledger.Get(ctx, assetID, fileType)
}

// CommitAsset upserts an asset's team stats and writes its ledger entry in a
// single locked transaction. entry.RowsIngested is set to the rows stored.
func (db *Database) CommitAsset(ctx context.Context, stats []*models.TeamSeasonStat, entry *models.LedgerEntry) (IngestResult, error) {
	var res IngestResult
	err := db.WithCommitLock(ctx, func(tx pgx.Tx) error {
		var err error
		if res, err = db.TeamStats.Upsert(ctx, tx, stats); err != nil {
			return err
		}
		entry.RowsIngested = res.Stored()
		return db.Ledger.Record(ctx, tx, entry)
	})
	return res, err
}

// RecordLedger writes a ledger entry on its own, for assets whose content
// turned out to be unchanged
func (db *Database) RecordLedger(ctx context.Context, entry *models.LedgerEntry) error {
	return db.WithCommitLock(ctx, func(tx pgx.Tx) error {
		return db.Ledger.Record(ctx, tx, entry)
	})
}

// CommitPlays ingests plays in a single locked transaction
func (db *Database) CommitPlays(ctx context.Context, plays []*models.Play) (IngestResult, error) {
	var res IngestResult
	err := db.WithCommitLock(ctx, func(tx pgx.Tx) error {
		var err error
		res, err = db.Plays.Ingest(ctx, tx, plays)
		return err
	})
	return res, err
}

// CommitGames ingests games in a single locked transaction
func (db *Database) CommitGames(ctx context.Context, games []*models.Game) (IngestResult, error) {
	var res IngestResult
	err := db.WithCommitLock(ctx, func(tx pgx.Tx) error {
		var err error
		res, err = db.Games.Ingest(ctx, tx, games)
		return err
	})
	return res, err
}

// IsStorage reports whether err is a store failure
func IsStorage(err error) bool {
	return errors.Is(err, ErrStorage)
}
