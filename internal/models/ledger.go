package models

import (
	"time"
)

// FileType classifies a release asset
type FileType string

const (
	FileTypeRegular    FileType = "regular"
	FileTypePostseason FileType = "postseason"
)

// SeasonType returns the team_stats season_type for the file type
func (f FileType) SeasonType() string {
	if f == FileTypePostseason {
		return SeasonTypePost
	}
	return SeasonTypeRegular
}

// Ledger statuses
const (
	LedgerStatusSuccess = "success"
)

// LedgerEntry records that a release asset has been ingested
type LedgerEntry struct {
	AssetID        int64     `db:"asset_id"`
	AssetName      string    `db:"asset_name"`
	FileType       FileType  `db:"file_type"`
	Year           int       `db:"year"`
	SHA256         string    `db:"sha256"`
	RowsIngested   int       `db:"rows_ingested"`
	Status         string    `db:"status"`
	AssetUpdatedAt time.Time `db:"asset_updated_at"`
	DownloadedAt   time.Time `db:"downloaded_at"`
}
