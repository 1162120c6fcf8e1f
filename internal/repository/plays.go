package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"nflstats/ingestion/internal/models"

	"github.com/jackc/pgx/v5"
)

// PlaysTable is the ingestion spec for plays. Duplicate plays are rejected.
var PlaysTable = TableSpec{
	Table:      "plays",
	Columns:    models.PlayColumns,
	KeyColumns: models.PlayKeyColumns,
	Policy:     ConflictReject,
}

// PlayRepository handles play database operations
type PlayRepository struct {
	db *Database
}

// Ingest inserts plays, skipping any whose key is already stored
func (r *PlayRepository) Ingest(ctx context.Context, q DBTX, plays []*models.Play) (IngestResult, error) {
	rows := make([][]any, len(plays))
	for i, p := range plays {
		rows[i] = p.Values()
	}
	return r.db.Ingest(ctx, q, PlaysTable, rows)
}

var playSelect = "SELECT " + strings.Join(models.PlayColumns, ", ") + " FROM plays"

func scanPlays(rows pgx.Rows) ([]*models.Play, error) {
	defer rows.Close()

	var plays []*models.Play
	for rows.Next() {
		p := &models.Play{}
		err := rows.Scan(
			&p.Season, &p.Week, &p.WeekOrder, &p.Day, &p.Date, &p.AwayTeam, &p.HomeTeam,
			&p.Quarter, &p.DriveNumber, &p.TeamWithPossession, &p.IsScoringDrive,
			&p.PlayNumberInDrive, &p.IsScoringPlay, &p.PlayOutcome, &p.PlayDescription, &p.PlayStart,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan play: %w", err)
		}
		plays = append(plays, p)
	}
	return plays, rows.Err()
}

// GamePlays returns the plays between two teams in a season in chronological
// order. week may be empty to cover every meeting of the two teams.
func (r *PlayRepository) GamePlays(ctx context.Context, awayTeam, homeTeam string, season int, week string) ([]*models.Play, error) {
	query := playSelect + `
		WHERE away_team = $1 AND home_team = $2 AND season = $3
		  AND ($4::TEXT = '' OR week = $4)
		ORDER BY week_order, drive_number, play_number_in_drive
	`

	rows, err := r.db.Pool.Query(ctx, query, strings.ToUpper(awayTeam), strings.ToUpper(homeTeam), season, week)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query game plays: %w", ErrStorage, err)
	}
	plays, err := scanPlays(rows)
	if err != nil {
		return nil, err
	}

	// Quarter labels do not sort lexically once overtime periods appear
	sort.SliceStable(plays, func(i, j int) bool {
		if plays[i].WeekOrder != plays[j].WeekOrder {
			return plays[i].WeekOrder < plays[j].WeekOrder
		}
		qi, qj := models.QuarterOrder(plays[i].Quarter), models.QuarterOrder(plays[j].Quarter)
		if qi != qj {
			return qi < qj
		}
		if plays[i].DriveNumber != plays[j].DriveNumber {
			return plays[i].DriveNumber < plays[j].DriveNumber
		}
		return plays[i].PlayNumberInDrive < plays[j].PlayNumberInDrive
	})

	return plays, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchByOutcome returns plays whose outcome contains the given text, case
// insensitively, most recent first. season may be nil and team empty to
// search everything.
func (r *PlayRepository) SearchByOutcome(ctx context.Context, outcome string, season *int, team string, limit int) ([]*models.Play, error) {
	if limit <= 0 {
		limit = 50
	}
	pattern := "%" + likeEscaper.Replace(outcome) + "%"

	query := playSelect + `
		WHERE play_outcome ILIKE $1 ESCAPE '\'
		  AND ($2::INTEGER IS NULL OR season = $2)
		  AND ($3::TEXT = '' OR away_team = $3 OR home_team = $3)
		ORDER BY season DESC, week_order DESC, away_team, home_team, drive_number, play_number_in_drive
		LIMIT $4
	`

	rows, err := r.db.Pool.Query(ctx, query, pattern, season, strings.ToUpper(team), limit)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to search plays: %w", ErrStorage, err)
	}
	return scanPlays(rows)
}

// Summary counts plays and distinct games. A game is identified by the
// (season, week, away, home) tuple so team names never collide.
func (r *PlayRepository) Summary(ctx context.Context) (models.PlaySummary, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(DISTINCT (season, week, away_team, home_team)),
			COUNT(*) FILTER (WHERE is_scoring_play),
			MIN(season),
			MAX(season)
		FROM plays
	`

	var s models.PlaySummary
	err := r.db.Pool.QueryRow(ctx, query).Scan(&s.Total, &s.UniqueGames, &s.ScoringPlays, &s.FirstSeason, &s.LastSeason)
	if err != nil {
		return s, fmt.Errorf("%w: failed to summarize plays: %w", ErrStorage, err)
	}
	return s, nil
}
