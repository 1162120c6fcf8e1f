package repository

import (
	"context"
	"fmt"
	"strings"

	"nflstats/ingestion/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS plays (
	id                   BIGSERIAL PRIMARY KEY,
	season               INTEGER NOT NULL,
	week                 TEXT NOT NULL,
	week_order           INTEGER NOT NULL,
	day                  TEXT,
	date                 TEXT,
	away_team            TEXT NOT NULL,
	home_team            TEXT NOT NULL,
	quarter              TEXT NOT NULL,
	drive_number         INTEGER NOT NULL,
	team_with_possession TEXT,
	is_scoring_drive     BOOLEAN,
	play_number_in_drive INTEGER NOT NULL CHECK (play_number_in_drive >= 1),
	is_scoring_play      BOOLEAN,
	play_outcome         TEXT,
	play_description     TEXT,
	play_start           TEXT,
	UNIQUE (season, week, away_team, home_team, quarter, drive_number, play_number_in_drive)
);

CREATE INDEX IF NOT EXISTS idx_plays_game ON plays (season, week_order, away_team, home_team);
CREATE INDEX IF NOT EXISTS idx_plays_outcome ON plays (play_outcome);

CREATE TABLE IF NOT EXISTS games (
	id           BIGSERIAL PRIMARY KEY,
	season       INTEGER NOT NULL,
	week         TEXT NOT NULL,
	week_order   INTEGER NOT NULL,
	game_status  TEXT,
	day          TEXT,
	date         TEXT NOT NULL,
	away_team    TEXT NOT NULL,
	away_record  TEXT,
	away_score   DOUBLE PRECISION,
	away_win     DOUBLE PRECISION,
	home_team    TEXT NOT NULL,
	home_record  TEXT,
	home_score   DOUBLE PRECISION,
	home_win     DOUBLE PRECISION,
	away_seeding INTEGER,
	home_seeding INTEGER,
	post_season  BOOLEAN NOT NULL DEFAULT FALSE,
	UNIQUE (season, week, away_team, home_team, date),
	CHECK ((away_score IS NULL) = (home_score IS NULL))
);

CREATE INDEX IF NOT EXISTS idx_games_season_order ON games (season, post_season, week_order);
CREATE INDEX IF NOT EXISTS idx_games_away ON games (away_team, season);
CREATE INDEX IF NOT EXISTS idx_games_home ON games (home_team, season);

CREATE TABLE IF NOT EXISTS download_log (
	asset_id         BIGINT NOT NULL,
	asset_name       TEXT NOT NULL,
	file_type        TEXT NOT NULL,
	year             INTEGER NOT NULL,
	sha256           TEXT NOT NULL,
	rows_ingested    INTEGER NOT NULL,
	status           TEXT NOT NULL,
	asset_updated_at TIMESTAMPTZ NOT NULL,
	downloaded_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (asset_id, file_type)
);
`

// teamStatsSQL builds the team_stats DDL from the metric column list. Metrics
// are stored as text because the releases mix counts, rates and lists.
func teamStatsSQL() string {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS team_stats (\n")
	b.WriteString("\tseason INTEGER NOT NULL,\n")
	b.WriteString("\tteam TEXT NOT NULL,\n")
	b.WriteString("\tseason_type TEXT NOT NULL CHECK (season_type IN ('REG', 'POST')),\n")
	for _, col := range models.TeamStatMetricColumns {
		fmt.Fprintf(&b, "\t%s TEXT,\n", pgx.Identifier{col}.Sanitize())
	}
	b.WriteString("\tPRIMARY KEY (season, team, season_type)\n);\n")
	b.WriteString("CREATE INDEX IF NOT EXISTS idx_team_stats_season ON team_stats (season, season_type);\n")
	return b.String()
}

// Migrate creates the tables and indexes if they do not exist
func (db *Database) Migrate(ctx context.Context) error {
	for _, stmt := range []string{schemaSQL, teamStatsSQL()} {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("%w: migrate: %w", ErrStorage, err)
		}
	}
	log.Info().Msg("Database schema is up to date")
	return nil
}
