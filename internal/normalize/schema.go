package normalize

import (
	"database/sql"
	"strings"

	"nflstats/ingestion/internal/models"
)

// Schema is a fixed, ordered canonical column list
type Schema struct {
	Name    string
	Columns []string
}

// Canonical schemas
var (
	PlaySchema = Schema{
		Name: "plays",
		Columns: []string{
			"season", "week", "day", "date", "away_team", "home_team",
			"quarter", "drive_number", "team_with_possession", "is_scoring_drive",
			"play_number_in_drive", "is_scoring_play", "play_outcome",
			"play_description", "play_start",
		},
	}

	GameSchema = Schema{
		Name: "games",
		Columns: []string{
			"season", "week", "game_status", "day", "date", "away_team",
			"away_record", "away_score", "away_win", "home_team", "home_record",
			"home_score", "home_win", "away_seeding", "home_seeding", "post_season",
		},
	}

	TeamStatSchema = Schema{
		Name:    "team_stats",
		Columns: models.TeamStatColumns,
	}
)

// renames maps the canonical key of a known source alias to the target column.
// Exact (format-insensitive) matches take precedence over aliases.
var renames = map[string]string{
	// stats_team releases before the 2025 column rename
	"interceptions": "passing_interceptions",
	"sacks":         "sacks_suffered",
	"sackyards":     "sack_yards_lost",
	"recentteam":    "team",
	"teamabbr":      "team",
	"seasontype":    "season_type",

	// scoreboard exports
	"visitorteam":  "away_team",
	"visitorscore": "away_score",
	"status":       "game_status",
	"gamedate":     "date",
	"playoffs":     "post_season",
	"possession":   "team_with_possession",
	"qtr":          "quarter",
}

// canonicalKey folds case and separators so "AwayTeam", "away_team" and
// "Away Team" compare equal
func canonicalKey(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch r {
		case '_', '-', ' ', '.':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Normalize projects t onto the target schema: exactly the target columns, in
// target order. Target columns missing from t are filled with null; extra
// columns are dropped.
func Normalize(t *Table, target Schema) *Table {
	exact := make(map[string]int, len(t.Columns))
	alias := make(map[string]int)
	for i, c := range t.Columns {
		key := canonicalKey(c)
		if _, seen := exact[key]; !seen {
			exact[key] = i
		}
		if to, ok := renames[key]; ok {
			if _, seen := alias[to]; !seen {
				alias[to] = i
			}
		}
	}

	source := make([]int, len(target.Columns))
	for j, col := range target.Columns {
		source[j] = -1
		if i, ok := exact[canonicalKey(col)]; ok {
			source[j] = i
		} else if i, ok := alias[col]; ok {
			source[j] = i
		}
	}

	out := NewTable(target.Columns)
	out.Rows = make([][]sql.NullString, len(t.Rows))
	for r, row := range t.Rows {
		dst := make([]sql.NullString, len(target.Columns))
		for j, i := range source {
			if i >= 0 && i < len(row) {
				dst[j] = row[i]
			}
		}
		out.Rows[r] = dst
	}
	return out
}

// MissingColumns lists target columns the source table cannot supply
func MissingColumns(t *Table, target Schema) []string {
	have := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		key := canonicalKey(c)
		have[key] = true
		if to, ok := renames[key]; ok {
			have[canonicalKey(to)] = true
		}
	}
	var missing []string
	for _, col := range target.Columns {
		if !have[canonicalKey(col)] {
			missing = append(missing, col)
		}
	}
	return missing
}
