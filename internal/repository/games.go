package repository

import (
	"context"
	"fmt"
	"strings"

	"nflstats/ingestion/internal/models"
	"nflstats/ingestion/internal/season"

	"github.com/jackc/pgx/v5"
)

// GamesTable is the ingestion spec for games. Duplicate games are rejected.
var GamesTable = TableSpec{
	Table:      "games",
	Columns:    models.GameColumns,
	KeyColumns: models.GameKeyColumns,
	Policy:     ConflictReject,
}

// GameRepository handles game database operations
type GameRepository struct {
	db *Database
}

// Ingest inserts games, skipping any whose key is already stored
func (r *GameRepository) Ingest(ctx context.Context, q DBTX, games []*models.Game) (IngestResult, error) {
	rows := make([][]any, len(games))
	for i, g := range games {
		rows[i] = g.Values()
	}
	return r.db.Ingest(ctx, q, GamesTable, rows)
}

var gameSelect = "SELECT " + strings.Join(models.GameColumns, ", ") + " FROM games"

func scanGame(row pgx.Row) (*models.Game, error) {
	g := &models.Game{}
	err := row.Scan(
		&g.Season, &g.Week, &g.WeekOrder, &g.GameStatus, &g.Day, &g.Date,
		&g.AwayTeam, &g.AwayRecord, &g.AwayScore, &g.AwayWin,
		&g.HomeTeam, &g.HomeRecord, &g.HomeScore, &g.HomeWin,
		&g.AwaySeeding, &g.HomeSeeding, &g.PostSeason,
	)
	return g, err
}

func scanGames(rows pgx.Rows) ([]*models.Game, error) {
	defer rows.Close()

	var games []*models.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan game: %w", err)
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

// GameScore returns the games between two teams in a season, in season
// order. The team order does not matter and week may be empty.
func (r *GameRepository) GameScore(ctx context.Context, team1, team2 string, seasonYear int, week string) ([]*models.Game, error) {
	query := gameSelect + `
		WHERE season = $1 AND ($2::TEXT = '' OR week = $2)
		  AND ((away_team = $3 AND home_team = $4) OR (away_team = $4 AND home_team = $3))
		ORDER BY post_season, week_order, date
	`

	rows, err := r.db.Pool.Query(ctx, query, seasonYear, week, strings.ToUpper(team1), strings.ToUpper(team2))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get game score: %w", ErrStorage, err)
	}
	games, err := scanGames(rows)
	if err != nil {
		return nil, err
	}
	if len(games) == 0 {
		return nil, fmt.Errorf("game %s vs %s in %d: %w", team1, team2, seasonYear, ErrNotFound)
	}
	return games, nil
}

// TeamSeason returns a team's games for a season, regular season first, each
// part in week order
func (r *GameRepository) TeamSeason(ctx context.Context, team string, seasonYear int) ([]*models.Game, error) {
	query := gameSelect + `
		WHERE season = $1 AND (away_team = $2 OR home_team = $2)
		ORDER BY post_season, week_order, date
	`

	rows, err := r.db.Pool.Query(ctx, query, seasonYear, strings.ToUpper(team))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query team season: %w", ErrStorage, err)
	}
	return scanGames(rows)
}

// TeamSeasonRecord tallies a team's wins, losses and ties for a season
func (r *GameRepository) TeamSeasonRecord(ctx context.Context, team string, seasonYear int) (*models.SeasonRecord, error) {
	games, err := r.TeamSeason(ctx, team, seasonYear)
	if err != nil {
		return nil, err
	}
	if len(games) == 0 {
		return nil, fmt.Errorf("no games for %s in %d: %w", team, seasonYear, ErrNotFound)
	}
	return models.NewSeasonRecord(strings.ToUpper(team), seasonYear, games), nil
}

// PlayoffResults returns a season's postseason games in round order. round
// may be empty for all rounds.
func (r *GameRepository) PlayoffResults(ctx context.Context, seasonYear int, round string) ([]*models.Game, error) {
	var roundKey *int
	if round != "" {
		k, err := season.OrderKey(round)
		if err != nil {
			return nil, err
		}
		roundKey = &k
	}

	query := gameSelect + `
		WHERE season = $1 AND post_season
		  AND ($2::INTEGER IS NULL OR week_order = $2)
		ORDER BY week_order, date, away_team
	`

	rows, err := r.db.Pool.Query(ctx, query, seasonYear, roundKey)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query playoff results: %w", ErrStorage, err)
	}
	return scanGames(rows)
}

// Summary counts games
func (r *GameRepository) Summary(ctx context.Context) (models.GameSummary, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE game_status ILIKE 'final%'),
			COUNT(*) FILTER (WHERE post_season),
			MIN(season),
			MAX(season)
		FROM games
	`

	var s models.GameSummary
	err := r.db.Pool.QueryRow(ctx, query).Scan(&s.Total, &s.Final, &s.PostSeason, &s.FirstSeason, &s.LastSeason)
	if err != nil {
		return s, fmt.Errorf("%w: failed to summarize games: %w", ErrStorage, err)
	}
	return s, nil
}
