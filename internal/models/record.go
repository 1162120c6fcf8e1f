package models

import (
	"database/sql"
)

// Game results from one team's point of view
const (
	ResultWin  = "W"
	ResultLoss = "L"
	ResultTie  = "T"
)

// TeamGame is a game seen from one side
type TeamGame struct {
	Game     *Game  `json:"game"`
	Opponent string `json:"opponent"`
	Home     bool   `json:"home"`
	// Result is empty for games without a final result
	Result string `json:"result,omitempty"`
}

// SeasonRecord is a team's win/loss record for one season
type SeasonRecord struct {
	Team          string     `json:"team"`
	Season        int        `json:"season"`
	Wins          int        `json:"wins"`
	Losses        int        `json:"losses"`
	Ties          int        `json:"ties"`
	PlayoffWins   int        `json:"playoff_wins"`
	PlayoffLosses int        `json:"playoff_losses"`
	Games         []TeamGame `json:"games"`
}

// ResultFor returns the game's result for team, or "" if the game has none
func (g *Game) ResultFor(team string) string {
	if !g.IsFinal() {
		return ""
	}
	home := g.HomeTeam == team
	switch {
	case g.HomeWon():
		if home {
			return ResultWin
		}
		return ResultLoss
	case g.AwayWon():
		if home {
			return ResultLoss
		}
		return ResultWin
	case g.AwayScore.Valid && g.AwayScore.Float64 == g.HomeScore.Float64:
		return ResultTie
	}
	return ""
}

// NewSeasonRecord tallies team's record over games, which are expected in
// season order
func NewSeasonRecord(team string, season int, games []*Game) *SeasonRecord {
	rec := &SeasonRecord{Team: team, Season: season, Games: make([]TeamGame, 0, len(games))}
	for _, g := range games {
		tg := TeamGame{Game: g, Home: g.HomeTeam == team, Result: g.ResultFor(team)}
		if tg.Home {
			tg.Opponent = g.AwayTeam
		} else {
			tg.Opponent = g.HomeTeam
		}
		rec.Games = append(rec.Games, tg)

		switch {
		case g.PostSeason && tg.Result == ResultWin:
			rec.PlayoffWins++
		case g.PostSeason && tg.Result == ResultLoss:
			rec.PlayoffLosses++
		case tg.Result == ResultWin:
			rec.Wins++
		case tg.Result == ResultLoss:
			rec.Losses++
		case tg.Result == ResultTie:
			rec.Ties++
		}
	}
	return rec
}

// StatLeader is one row of a stat leaderboard
type StatLeader struct {
	Season     int            `json:"season"`
	Team       string         `json:"team"`
	SeasonType string         `json:"season_type"`
	Value      sql.NullString `json:"value"`
}

// PlayoffTeam is a team that appears in a season's postseason stats
type PlayoffTeam struct {
	Season int    `json:"season"`
	Team   string `json:"team"`
}

// PlaySummary summarizes the plays table
type PlaySummary struct {
	Total        int64         `json:"total"`
	UniqueGames  int64         `json:"unique_games"`
	ScoringPlays int64         `json:"scoring_plays"`
	FirstSeason  sql.NullInt32 `json:"first_season"`
	LastSeason   sql.NullInt32 `json:"last_season"`
}

// GameSummary summarizes the games table
type GameSummary struct {
	Total       int64         `json:"total"`
	Final       int64         `json:"final"`
	PostSeason  int64         `json:"post_season"`
	FirstSeason sql.NullInt32 `json:"first_season"`
	LastSeason  sql.NullInt32 `json:"last_season"`
}

// TeamStatSummary summarizes team_stats for one season type
type TeamStatSummary struct {
	SeasonType string `json:"season_type"`
	Rows       int64  `json:"rows"`
	Seasons    int64  `json:"seasons"`
	Teams      int64  `json:"teams"`
}

// Overview is the store-wide summary
type Overview struct {
	Plays     PlaySummary       `json:"plays"`
	Games     GameSummary       `json:"games"`
	TeamStats []TeamStatSummary `json:"team_stats"`
	Assets    int64             `json:"assets"`
}
