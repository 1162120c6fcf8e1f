package models

import (
	"database/sql"
)

// Season types
const (
	SeasonTypeRegular = "REG"
	SeasonTypePost    = "POST"
)

// TeamStatKeyColumns is the upsert key of team_stats
var TeamStatKeyColumns = []string{"season", "team", "season_type"}

// TeamStatMetricColumns is the fixed, ordered metric schema of team_stats.
// It mirrors the nflverse stats_team release; columns a release does not carry
// are stored as NULL.
var TeamStatMetricColumns = []string{
	"games", "completions", "attempts", "passing_yards",
	"passing_tds", "passing_interceptions", "sacks_suffered", "sack_yards_lost", "sack_fumbles",
	"sack_fumbles_lost", "passing_air_yards", "passing_yards_after_catch", "passing_first_downs",
	"passing_epa", "passing_cpoe", "passing_2pt_conversions", "carries", "rushing_yards",
	"rushing_tds", "rushing_fumbles", "rushing_fumbles_lost", "rushing_first_downs", "rushing_epa",
	"rushing_2pt_conversions", "receptions", "targets", "receiving_yards", "receiving_tds",
	"receiving_fumbles", "receiving_fumbles_lost", "receiving_air_yards", "receiving_yards_after_catch",
	"receiving_first_downs", "receiving_epa", "receiving_2pt_conversions", "special_teams_tds",
	"def_tackles_solo", "def_tackles_with_assist", "def_tackle_assists", "def_tackles_for_loss",
	"def_tackles_for_loss_yards", "def_fumbles_forced", "def_sacks", "def_sack_yards", "def_qb_hits",
	"def_interceptions", "def_interception_yards", "def_pass_defended", "def_tds", "def_fumbles",
	"def_safeties", "misc_yards", "fumble_recovery_own", "fumble_recovery_yards_own",
	"fumble_recovery_opp", "fumble_recovery_yards_opp", "fumble_recovery_tds", "penalties",
	"penalty_yards", "timeouts", "punt_returns", "punt_return_yards", "kickoff_returns",
	"kickoff_return_yards", "fg_made", "fg_att", "fg_missed", "fg_blocked", "fg_long", "fg_pct",
	"fg_made_0_19", "fg_made_20_29", "fg_made_30_39", "fg_made_40_49", "fg_made_50_59", "fg_made_60_",
	"fg_missed_0_19", "fg_missed_20_29", "fg_missed_30_39", "fg_missed_40_49", "fg_missed_50_59",
	"fg_missed_60_", "fg_made_list", "fg_missed_list", "fg_blocked_list", "fg_made_distance",
	"fg_missed_distance", "fg_blocked_distance", "pat_made", "pat_att", "pat_missed", "pat_blocked",
	"pat_pct", "gwfg_made", "gwfg_att", "gwfg_missed", "gwfg_blocked", "gwfg_distance_list",
}

// TeamStatColumns is the full insert column order: key columns then metrics
var TeamStatColumns = append(append([]string{}, TeamStatKeyColumns...), TeamStatMetricColumns...)

var metricIndex = func() map[string]int {
	m := make(map[string]int, len(TeamStatMetricColumns))
	for i, c := range TeamStatMetricColumns {
		m[c] = i
	}
	return m
}()

// IsStatMetric reports whether name is one of the permitted metric columns.
// Callers must check this before placing a column identifier in SQL.
func IsStatMetric(name string) bool {
	_, ok := metricIndex[name]
	return ok
}

// TeamSeasonStat is one team's cumulative statistics for a season segment
type TeamSeasonStat struct {
	Season     int    `db:"season"`
	Team       string `db:"team"`
	SeasonType string `db:"season_type"`

	// Metrics holds one value per TeamStatMetricColumns entry, in that order
	Metrics []sql.NullString
}

// NewTeamSeasonStat returns a stat row with every metric NULL
func NewTeamSeasonStat(season int, team, seasonType string) *TeamSeasonStat {
	return &TeamSeasonStat{
		Season:     season,
		Team:       team,
		SeasonType: seasonType,
		Metrics:    make([]sql.NullString, len(TeamStatMetricColumns)),
	}
}

// Metric returns the value of a named metric
func (s *TeamSeasonStat) Metric(name string) (sql.NullString, bool) {
	i, ok := metricIndex[name]
	if !ok || i >= len(s.Metrics) {
		return sql.NullString{}, false
	}
	return s.Metrics[i], true
}

// SetMetric sets a named metric; unknown names are ignored
func (s *TeamSeasonStat) SetMetric(name, value string) {
	i, ok := metricIndex[name]
	if !ok {
		return
	}
	if len(s.Metrics) < len(TeamStatMetricColumns) {
		grown := make([]sql.NullString, len(TeamStatMetricColumns))
		copy(grown, s.Metrics)
		s.Metrics = grown
	}
	s.Metrics[i] = sql.NullString{String: value, Valid: true}
}

// Values returns the row in TeamStatColumns order
func (s *TeamSeasonStat) Values() []any {
	vals := make([]any, 0, len(TeamStatColumns))
	vals = append(vals, s.Season, s.Team, s.SeasonType)
	for i := range TeamStatMetricColumns {
		if i < len(s.Metrics) {
			vals = append(vals, s.Metrics[i])
		} else {
			vals = append(vals, sql.NullString{})
		}
	}
	return vals
}
