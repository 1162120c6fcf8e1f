package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"nflstats/ingestion/internal/models"

	"github.com/jackc/pgx/v5"
)

// ErrUnknownStatColumn is returned when a leaderboard is requested for a
// column outside the metric schema
var ErrUnknownStatColumn = errors.New("unknown stat column")

// TeamStatsTable is the ingestion spec for team_stats. A newer release of the
// same (season, team, season_type) replaces the stored row.
var TeamStatsTable = TableSpec{
	Table:      "team_stats",
	Columns:    models.TeamStatColumns,
	KeyColumns: models.TeamStatKeyColumns,
	Policy:     ConflictReplace,
}

// StatsRepository handles team statistics database operations
type StatsRepository struct {
	db *Database
}

// Upsert inserts or replaces team season stats
func (r *StatsRepository) Upsert(ctx context.Context, q DBTX, stats []*models.TeamSeasonStat) (IngestResult, error) {
	rows := make([][]any, len(stats))
	for i, s := range stats {
		rows[i] = s.Values()
	}
	return r.db.Ingest(ctx, q, TeamStatsTable, rows)
}

var statSelect = "SELECT " + quoteIdents(models.TeamStatColumns) + " FROM team_stats"

func scanStats(rows pgx.Rows) ([]*models.TeamSeasonStat, error) {
	defer rows.Close()

	var out []*models.TeamSeasonStat
	for rows.Next() {
		s := models.NewTeamSeasonStat(0, "", "")
		dest := make([]any, 0, len(models.TeamStatColumns))
		dest = append(dest, &s.Season, &s.Team, &s.SeasonType)
		for i := range s.Metrics {
			dest = append(dest, &s.Metrics[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan team stats: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// TeamStats returns a team's stats for one season, or its three most recent
// seasons when seasonYear is nil
func (r *StatsRepository) TeamStats(ctx context.Context, team string, seasonYear *int, seasonType string) ([]*models.TeamSeasonStat, error) {
	query := statSelect + `
		WHERE team = $1 AND season_type = $2
		  AND ($3::INTEGER IS NULL OR season = $3)
		ORDER BY season DESC
		LIMIT 3
	`

	rows, err := r.db.Pool.Query(ctx, query, strings.ToUpper(team), seasonType, seasonYear)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query team stats: %w", ErrStorage, err)
	}
	return scanStats(rows)
}

// StatLeaders ranks teams by a metric column, highest first. Only numeric
// values are ranked; list-valued cells sort last.
func (r *StatsRepository) StatLeaders(ctx context.Context, column string, seasonYear *int, seasonType string, limit int) ([]models.StatLeader, error) {
	if !models.IsStatMetric(column) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStatColumn, column)
	}
	if limit <= 0 {
		limit = 10
	}
	col := pgx.Identifier{column}.Sanitize()

	query := fmt.Sprintf(`
		SELECT season, team, season_type, %[1]s
		FROM team_stats
		WHERE season_type = $1
		  AND ($2::INTEGER IS NULL OR season = $2)
		  AND %[1]s IS NOT NULL
		ORDER BY CASE WHEN %[1]s ~ '^-?[0-9]+(\.[0-9]+)?$' THEN %[1]s::DOUBLE PRECISION END DESC NULLS LAST,
			season DESC, team
		LIMIT $3
	`, col)

	rows, err := r.db.Pool.Query(ctx, query, seasonType, seasonYear, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query stat leaders: %w", ErrStorage, err)
	}
	defer rows.Close()

	var leaders []models.StatLeader
	for rows.Next() {
		var l models.StatLeader
		if err := rows.Scan(&l.Season, &l.Team, &l.SeasonType, &l.Value); err != nil {
			return nil, fmt.Errorf("failed to scan stat leader: %w", err)
		}
		leaders = append(leaders, l)
	}
	return leaders, rows.Err()
}

// CompareTeams returns the stats of two teams for the same season side by side
func (r *StatsRepository) CompareTeams(ctx context.Context, team1, team2 string, seasonYear int, seasonType string) ([]*models.TeamSeasonStat, error) {
	query := statSelect + `
		WHERE team IN ($1, $2) AND season = $3 AND season_type = $4
		ORDER BY team
	`

	rows, err := r.db.Pool.Query(ctx, query, strings.ToUpper(team1), strings.ToUpper(team2), seasonYear, seasonType)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to compare teams: %w", ErrStorage, err)
	}
	return scanStats(rows)
}

// PlayoffTeams lists teams with postseason stats, latest season first.
// seasonYear may be nil for all seasons.
func (r *StatsRepository) PlayoffTeams(ctx context.Context, seasonYear *int) ([]models.PlayoffTeam, error) {
	query := `
		SELECT DISTINCT season, team
		FROM team_stats
		WHERE season_type = 'POST'
		  AND ($1::INTEGER IS NULL OR season = $1)
		ORDER BY season DESC, team
	`

	rows, err := r.db.Pool.Query(ctx, query, seasonYear)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query playoff teams: %w", ErrStorage, err)
	}
	defer rows.Close()

	var teams []models.PlayoffTeam
	for rows.Next() {
		var t models.PlayoffTeam
		if err := rows.Scan(&t.Season, &t.Team); err != nil {
			return nil, fmt.Errorf("failed to scan playoff team: %w", err)
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

// TeamsBySeason lists the teams with stats for a season and season type
func (r *StatsRepository) TeamsBySeason(ctx context.Context, seasonYear int, seasonType string) ([]string, error) {
	query := `
		SELECT team FROM team_stats
		WHERE season = $1 AND season_type = $2
		ORDER BY team
	`

	rows, err := r.db.Pool.Query(ctx, query, seasonYear, seasonType)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query teams: %w", ErrStorage, err)
	}
	teams, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan teams: %w", err)
	}
	return teams, nil
}

// Summary counts team_stats rows per season type
func (r *StatsRepository) Summary(ctx context.Context) ([]models.TeamStatSummary, error) {
	query := `
		SELECT season_type, COUNT(*), COUNT(DISTINCT season), COUNT(DISTINCT team)
		FROM team_stats
		GROUP BY season_type
		ORDER BY season_type DESC
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to summarize team stats: %w", ErrStorage, err)
	}
	defer rows.Close()

	var out []models.TeamStatSummary
	for rows.Next() {
		var s models.TeamStatSummary
		if err := rows.Scan(&s.SeasonType, &s.Rows, &s.Seasons, &s.Teams); err != nil {
			return nil, fmt.Errorf("failed to scan team stats summary: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
