package models

import (
	"database/sql"
	"strings"
)

// Game represents one scheduled or played NFL game
type Game struct {
	Season      int             `db:"season"`
	Week        string          `db:"week"`
	WeekOrder   int             `db:"week_order"`
	GameStatus  sql.NullString  `db:"game_status"`
	Day         sql.NullString  `db:"day"`
	Date        string          `db:"date"`
	AwayTeam    string          `db:"away_team"`
	AwayRecord  sql.NullString  `db:"away_record"`
	AwayScore   sql.NullFloat64 `db:"away_score"`
	AwayWin     sql.NullFloat64 `db:"away_win"`
	HomeTeam    string          `db:"home_team"`
	HomeRecord  sql.NullString  `db:"home_record"`
	HomeScore   sql.NullFloat64 `db:"home_score"`
	HomeWin     sql.NullFloat64 `db:"home_win"`
	AwaySeeding sql.NullInt32   `db:"away_seeding"`
	HomeSeeding sql.NullInt32   `db:"home_seeding"`
	PostSeason  bool            `db:"post_season"`
}

// GameColumns is the insert column order for games
var GameColumns = []string{
	"season", "week", "week_order", "game_status", "day", "date",
	"away_team", "away_record", "away_score", "away_win",
	"home_team", "home_record", "home_score", "home_win",
	"away_seeding", "home_seeding", "post_season",
}

// GameKeyColumns is the natural key of a game
var GameKeyColumns = []string{"season", "week", "away_team", "home_team", "date"}

// Values returns the game's fields in GameColumns order
func (g *Game) Values() []any {
	return []any{
		g.Season, g.Week, g.WeekOrder, g.GameStatus, g.Day, g.Date,
		g.AwayTeam, g.AwayRecord, g.AwayScore, g.AwayWin,
		g.HomeTeam, g.HomeRecord, g.HomeScore, g.HomeWin,
		g.AwaySeeding, g.HomeSeeding, g.PostSeason,
	}
}

// IsFinal returns true if the game has a final status ("Final", "Final/OT", ...)
func (g *Game) IsFinal() bool {
	return g.GameStatus.Valid && strings.HasPrefix(strings.ToLower(strings.TrimSpace(g.GameStatus.String)), "final")
}

// AwayWon reports whether the away team won
func (g *Game) AwayWon() bool {
	return g.AwayWin.Valid && g.AwayWin.Float64 != 0
}

// HomeWon reports whether the home team won
func (g *Game) HomeWon() bool {
	return g.HomeWin.Valid && g.HomeWin.Float64 != 0
}
