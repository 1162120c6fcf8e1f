package syncer

import (
	"time"

	"nflstats/ingestion/internal/metrics"
	"nflstats/ingestion/internal/models"
	"nflstats/ingestion/internal/release"
	"nflstats/ingestion/internal/repository"
)

// Outcome is what a sync run did with one asset
type Outcome string

const (
	OutcomeIngested Outcome = "ingested"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeFailed   Outcome = "failed"
	// OutcomeIgnored covers assets that are never fetched: unrecognized names
	// and years outside the filter
	OutcomeIgnored Outcome = "ignored"
)

// AssetResult is the outcome for one asset
type AssetResult struct {
	Asset    release.Asset
	FileType models.FileType
	Year     int
	Outcome  Outcome
	Reason   string
	SHA256   string
	Rows     repository.IngestResult
	Err      error
}

// Report summarizes a sync run
type Report struct {
	Tag      string
	Assets   []AssetResult
	Duration time.Duration
}

func (r *Report) add(tag string, res AssetResult) {
	r.Assets = append(r.Assets, res)
	metrics.RecordAsset(tag, string(res.Outcome))
}

// Count returns the number of assets with the given outcome
func (r *Report) Count(o Outcome) int {
	n := 0
	for _, a := range r.Assets {
		if a.Outcome == o {
			n++
		}
	}
	return n
}

// RowsIngested returns the rows stored by this run, new or replaced
func (r *Report) RowsIngested() int {
	n := 0
	for _, a := range r.Assets {
		n += a.Rows.Stored()
	}
	return n
}

// Rows returns the row counts summed over all assets
func (r *Report) Rows() repository.IngestResult {
	var total repository.IngestResult
	for _, a := range r.Assets {
		total.Add(a.Rows)
	}
	return total
}

// Find returns the result for the named asset
func (r *Report) Find(name string) (AssetResult, bool) {
	for _, a := range r.Assets {
		if a.Asset.Name == name {
			return a, true
		}
	}
	return AssetResult{}, false
}
