// Package importer loads play-by-play and scoreboard CSV exports from a local
// directory.
package importer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"nflstats/ingestion/internal/metrics"
	"nflstats/ingestion/internal/models"
	"nflstats/ingestion/internal/normalize"
	"nflstats/ingestion/internal/repository"

	"github.com/rs/zerolog/log"
)

// Kind is the entity a file holds, derived from its name
type Kind string

const (
	KindPlays  Kind = "plays"
	KindScores Kind = "scores"
)

// Store persists plays and games. Each call is one atomic commit.
type Store interface {
	CommitPlays(ctx context.Context, plays []*models.Play) (repository.IngestResult, error)
	CommitGames(ctx context.Context, games []*models.Game) (repository.IngestResult, error)
}

// FileResult is the outcome of importing one file
type FileResult struct {
	Path           string
	Kind           Kind
	Rows           repository.IngestResult
	MissingColumns []string
	// Err is set when the file could not be parsed at all
	Err error
}

// Summary collects the results of an import run
type Summary struct {
	Files    []FileResult
	Duration time.Duration
}

// Rows sums row counts for one kind
func (s *Summary) Rows(kind Kind) repository.IngestResult {
	var total repository.IngestResult
	for _, f := range s.Files {
		if f.Kind == kind {
			total.Add(f.Rows)
		}
	}
	return total
}

// Failed returns the files that could not be parsed
func (s *Summary) Failed() []FileResult {
	var failed []FileResult
	for _, f := range s.Files {
		if f.Err != nil {
			failed = append(failed, f)
		}
	}
	return failed
}

// Importer imports local CSV files
type Importer struct {
	store Store
}

// New creates an Importer
func New(store Store) *Importer {
	return &Importer{store: store}
}

// Discover lists the CSV files in dir by kind, sorted by name. Files whose
// name mentions neither plays nor scores are ignored.
func Discover(dir string) (map[Kind][]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	files := map[Kind][]string{}
	for _, path := range matches {
		name := strings.ToLower(filepath.Base(path))
		switch {
		case strings.Contains(name, "plays"):
			files[KindPlays] = append(files[KindPlays], path)
		case strings.Contains(name, "scores"):
			files[KindScores] = append(files[KindScores], path)
		}
	}
	for _, paths := range files {
		sort.Strings(paths)
	}
	return files, nil
}

// ImportDir imports every plays file, then every scores file, in dir. Files
// that cannot be parsed are recorded and skipped; a storage failure stops the
// run and is returned with the partial summary.
func (im *Importer) ImportDir(ctx context.Context, dir string) (*Summary, error) {
	start := time.Now()
	summary := &Summary{}

	if _, err := os.Stat(dir); err != nil {
		return summary, fmt.Errorf("stats directory: %w", err)
	}
	files, err := Discover(dir)
	if err != nil {
		return summary, err
	}

	log.Info().
		Str("dir", dir).
		Int("plays_files", len(files[KindPlays])).
		Int("scores_files", len(files[KindScores])).
		Msg("Found CSV files")

	for _, kind := range []Kind{KindPlays, KindScores} {
		for _, path := range files[kind] {
			res, err := im.ImportFile(ctx, path, kind)
			summary.Files = append(summary.Files, res)
			if err != nil {
				summary.Duration = time.Since(start)
				return summary, err
			}
		}
	}

	summary.Duration = time.Since(start)
	status := "success"
	if len(summary.Failed()) > 0 {
		status = "partial"
	}
	metrics.RecordSync("import", status, summary.Duration.Seconds())
	return summary, nil
}

// ImportFile imports one file. The returned error is a storage failure; parse
// failures are reported in FileResult.Err.
func (im *Importer) ImportFile(ctx context.Context, path string, kind Kind) (FileResult, error) {
	res := FileResult{Path: path, Kind: kind}

	f, err := os.Open(path)
	if err != nil {
		res.Err = err
		return res, nil
	}
	defer f.Close()

	table, err := normalize.Parse(f)
	if err != nil {
		log.Error().Err(err).Str("file", filepath.Base(path)).Msg("File is not valid CSV")
		metrics.RecordError("importer", "parse")
		res.Err = err
		return res, nil
	}

	var (
		rejected  []normalize.RowError
		tableName string
	)
	switch kind {
	case KindPlays:
		res.MissingColumns = normalize.MissingColumns(table, normalize.PlaySchema)
		var plays []*models.Play
		plays, rejected = normalize.ToPlays(normalize.Normalize(table, normalize.PlaySchema))
		res.Rows, err = im.store.CommitPlays(ctx, plays)
		tableName = repository.PlaysTable.Table
	case KindScores:
		res.MissingColumns = normalize.MissingColumns(table, normalize.GameSchema)
		var games []*models.Game
		games, rejected = normalize.ToGames(normalize.Normalize(table, normalize.GameSchema))
		res.Rows, err = im.store.CommitGames(ctx, games)
		tableName = repository.GamesTable.Table
	default:
		res.Err = fmt.Errorf("unknown file kind %q", kind)
		return res, nil
	}
	if err != nil {
		return res, err
	}
	res.Rows.Failed = len(rejected)

	for _, re := range rejected {
		log.Warn().Str("file", filepath.Base(path)).Int("line", re.Line).Err(re.Err).Msg("Malformed row excluded")
	}
	metrics.RecordRows(tableName, res.Rows.Accepted, res.Rows.Skipped, res.Rows.Replaced, res.Rows.Failed)

	log.Info().
		Str("file", filepath.Base(path)).
		Str("kind", string(kind)).
		Int("accepted", res.Rows.Accepted).
		Int("skipped", res.Rows.Skipped).
		Int("failed", res.Rows.Failed).
		Strs("missing_columns", res.MissingColumns).
		Msg("File imported")

	return res, nil
}
