// Package syncer brings the store up to date with a release tag: it lists the
// tag's assets, fetches the ones the ledger has not seen and commits each one
// together with its ledger entry.
package syncer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"time"

	"nflstats/ingestion/internal/metrics"
	"nflstats/ingestion/internal/models"
	"nflstats/ingestion/internal/normalize"
	"nflstats/ingestion/internal/release"
	"nflstats/ingestion/internal/repository"

	"github.com/alitto/pond/v2"
	"github.com/rs/zerolog/log"
)

// AssetSource lists and downloads release assets
type AssetSource interface {
	ListAssets(ctx context.Context, tag string) ([]release.Asset, error)
	Download(ctx context.Context, asset release.Asset) ([]byte, error)
}

// Store persists team stats together with the ledger
type Store interface {
	GetLedgerEntry(ctx context.Context, assetID int64, fileType models.FileType) (*models.LedgerEntry, error)
	CommitAsset(ctx context.Context, stats []*models.TeamSeasonStat, entry *models.LedgerEntry) (repository.IngestResult, error)
	RecordLedger(ctx context.Context, entry *models.LedgerEntry) error
}

// Invalidator drops cached query results after new data is committed
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Config configures a Syncer
type Config struct {
	// FetchConcurrency bounds simultaneous downloads
	FetchConcurrency int
}

// Syncer runs sync passes. Downloads overlap; commits never do.
type Syncer struct {
	source      AssetSource
	store       Store
	invalidator Invalidator
	concurrency int
}

// New creates a Syncer. invalidator may be nil.
func New(source AssetSource, store Store, invalidator Invalidator, cfg Config) *Syncer {
	if cfg.FetchConcurrency <= 0 {
		cfg.FetchConcurrency = 4
	}
	return &Syncer{
		source:      source,
		store:       store,
		invalidator: invalidator,
		concurrency: cfg.FetchConcurrency,
	}
}

// pending is an asset that needs fetching
type pending struct {
	asset    release.Asset
	fileType models.FileType
	year     int
	previous *models.LedgerEntry
}

type fetched struct {
	body     []byte
	duration time.Duration
}

// Sync processes every asset of tag, limited to years when given. A fetch or
// parse failure fails only that asset. The returned error is non-nil when the
// tag cannot be listed or the store fails; the report then covers the assets
// handled so far.
func (s *Syncer) Sync(ctx context.Context, tag string, years []int) (*Report, error) {
	start := time.Now()
	report := &Report{Tag: tag}

	err := s.sync(ctx, tag, years, report)
	report.Duration = time.Since(start)

	status := "success"
	if err != nil {
		status = "error"
	} else if report.Count(OutcomeFailed) > 0 {
		status = "partial"
	}
	metrics.RecordSync(tag, status, report.Duration.Seconds())

	log.Info().
		Str("tag", tag).
		Int("ingested", report.Count(OutcomeIngested)).
		Int("skipped", report.Count(OutcomeSkipped)).
		Int("failed", report.Count(OutcomeFailed)).
		Int("rows", report.RowsIngested()).
		Dur("duration", report.Duration).
		Msg("Sync complete")

	return report, err
}

func (s *Syncer) sync(ctx context.Context, tag string, years []int, report *Report) error {
	assets, err := s.source.ListAssets(ctx, tag)
	if err != nil {
		metrics.RecordError("syncer", "list")
		return fmt.Errorf("list assets for %s: %w", tag, err)
	}

	var work []pending
	for _, a := range assets {
		fileType, year, ok := release.Classify(a.Name)
		if !ok {
			report.add(tag, AssetResult{Asset: a, Outcome: OutcomeIgnored, Reason: "unrecognized asset name"})
			continue
		}
		if len(years) > 0 && !slices.Contains(years, year) {
			report.add(tag, AssetResult{Asset: a, FileType: fileType, Year: year, Outcome: OutcomeIgnored, Reason: "outside year filter"})
			continue
		}

		prev, err := s.store.GetLedgerEntry(ctx, a.ID, fileType)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			prev = nil
		case err != nil:
			return err
		case !a.UpdatedAt.After(prev.AssetUpdatedAt):
			report.add(tag, AssetResult{
				Asset: a, FileType: fileType, Year: year,
				Outcome: OutcomeSkipped, Reason: "already ingested", SHA256: prev.SHA256,
			})
			continue
		}
		work = append(work, pending{asset: a, fileType: fileType, year: year, previous: prev})
	}

	if len(work) == 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	pool := pond.NewResultPool[fetched](s.concurrency, pond.WithContext(ctx))
	defer pool.StopAndWait()
	defer cancel()

	tasks := make([]pond.Result[fetched], len(work))
	for i, p := range work {
		tasks[i] = pool.SubmitErr(func() (fetched, error) {
			started := time.Now()
			body, err := s.source.Download(ctx, p.asset)
			return fetched{body: body, duration: time.Since(started)}, err
		})
	}

	// Commit in listing order as downloads complete
	committed := false
	for i, p := range work {
		f, err := tasks[i].Wait()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn().Err(err).Str("asset", p.asset.Name).Msg("Asset fetch failed")
			metrics.RecordError("syncer", "fetch")
			report.add(tag, AssetResult{Asset: p.asset, FileType: p.fileType, Year: p.year, Outcome: OutcomeFailed, Err: err})
			continue
		}
		metrics.RecordAssetFetch(tag, f.duration.Seconds())

		res, err := s.commit(ctx, p, f.body)
		if err != nil {
			if repository.IsStorage(err) {
				return err
			}
			log.Warn().Err(err).Str("asset", p.asset.Name).Msg("Asset rejected")
			metrics.RecordError("syncer", "parse")
			res.Err = err
		}
		if res.Outcome == OutcomeIngested {
			committed = true
		}
		report.add(tag, res)
	}

	if committed && s.invalidator != nil {
		if err := s.invalidator.Invalidate(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to invalidate query cache")
		}
	}
	return nil
}

// commit normalizes one downloaded asset and stores it with its ledger entry
func (s *Syncer) commit(ctx context.Context, p pending, body []byte) (AssetResult, error) {
	sum := sha256.Sum256(body)
	checksum := hex.EncodeToString(sum[:])
	res := AssetResult{Asset: p.asset, FileType: p.fileType, Year: p.year, SHA256: checksum}

	entry := &models.LedgerEntry{
		AssetID:        p.asset.ID,
		AssetName:      p.asset.Name,
		FileType:       p.fileType,
		Year:           p.year,
		SHA256:         checksum,
		Status:         models.LedgerStatusSuccess,
		AssetUpdatedAt: p.asset.UpdatedAt,
	}

	// Re-published with identical bytes: remember the new timestamp only
	if p.previous != nil && p.previous.SHA256 == checksum {
		entry.RowsIngested = p.previous.RowsIngested
		if err := s.store.RecordLedger(ctx, entry); err != nil {
			return res, err
		}
		res.Outcome = OutcomeSkipped
		res.Reason = "content unchanged"
		return res, nil
	}

	table, err := normalize.Parse(bytes.NewReader(body))
	if err != nil {
		res.Outcome = OutcomeFailed
		return res, err
	}
	if missing := normalize.MissingColumns(table, normalize.TeamStatSchema); len(missing) > 0 {
		log.Debug().
			Str("asset", p.asset.Name).
			Strs("missing", missing).
			Msg("Columns absent from asset are stored as null")
	}

	stats, rejected := normalize.ToTeamStats(normalize.Normalize(table, normalize.TeamStatSchema), p.fileType.SeasonType())
	for _, re := range rejected {
		log.Warn().Str("asset", p.asset.Name).Int("line", re.Line).Err(re.Err).Msg("Malformed row excluded")
	}

	rows, err := s.store.CommitAsset(ctx, stats, entry)
	if err != nil {
		res.Outcome = OutcomeFailed
		return res, err
	}
	rows.Failed = len(rejected)
	metrics.RecordRows(repository.TeamStatsTable.Table, rows.Accepted, rows.Skipped, rows.Replaced, rows.Failed)

	res.Outcome = OutcomeIngested
	res.Rows = rows

	log.Info().
		Str("asset", p.asset.Name).
		Str("file_type", string(p.fileType)).
		Int("year", p.year).
		Int("accepted", rows.Accepted).
		Int("replaced", rows.Replaced).
		Int("failed", rows.Failed).
		Msg("Asset ingested")

	return res, nil
}
