package models

import (
	"database/sql"
)

// Play represents one play within one drive of an NFL game
type Play struct {
	Season             int            `db:"season"`
	Week               string         `db:"week"`
	WeekOrder          int            `db:"week_order"`
	Day                sql.NullString `db:"day"`
	Date               sql.NullString `db:"date"`
	AwayTeam           string         `db:"away_team"`
	HomeTeam           string         `db:"home_team"`
	Quarter            string         `db:"quarter"`
	DriveNumber        int            `db:"drive_number"`
	TeamWithPossession sql.NullString `db:"team_with_possession"`
	IsScoringDrive     sql.NullBool   `db:"is_scoring_drive"`
	PlayNumberInDrive  int            `db:"play_number_in_drive"`
	IsScoringPlay      sql.NullBool   `db:"is_scoring_play"`
	PlayOutcome        sql.NullString `db:"play_outcome"`
	PlayDescription    sql.NullString `db:"play_description"`
	PlayStart          sql.NullString `db:"play_start"`
}

// PlayColumns is the insert column order for plays
var PlayColumns = []string{
	"season", "week", "week_order", "day", "date", "away_team", "home_team",
	"quarter", "drive_number", "team_with_possession", "is_scoring_drive",
	"play_number_in_drive", "is_scoring_play", "play_outcome", "play_description", "play_start",
}

// PlayKeyColumns is the natural key of a play
var PlayKeyColumns = []string{
	"season", "week", "away_team", "home_team", "quarter", "drive_number", "play_number_in_drive",
}

// Values returns the play's fields in PlayColumns order
func (p *Play) Values() []any {
	return []any{
		p.Season, p.Week, p.WeekOrder, p.Day, p.Date, p.AwayTeam, p.HomeTeam,
		p.Quarter, p.DriveNumber, p.TeamWithPossession, p.IsScoringDrive,
		p.PlayNumberInDrive, p.IsScoringPlay, p.PlayOutcome, p.PlayDescription, p.PlayStart,
	}
}

// quarterOrder gives quarters a chronological position; anything unknown sorts last
var quarterOrder = map[string]int{
	"1st": 1, "2nd": 2, "3rd": 3, "4th": 4, "OT": 5, "2OT": 6, "3OT": 7,
}

// QuarterOrder returns the chronological position of a quarter label
func QuarterOrder(quarter string) int {
	if n, ok := quarterOrder[quarter]; ok {
		return n
	}
	return 99
}
