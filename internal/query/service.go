// Package query serves the read-only lookups over ingested data, with an
// optional Redis read-through cache in front of Postgres.
package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"nflstats/ingestion/internal/cache"
	"nflstats/ingestion/internal/metrics"
	"nflstats/ingestion/internal/models"
	"nflstats/ingestion/internal/repository"

	"github.com/rs/zerolog/log"
)

const (
	keyPrefix  = "nflstats:q"
	versionKey = keyPrefix + ":version"
)

// Cache is the subset of cache.RedisCache the service needs
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Incr(ctx context.Context, key string) (int64, error)
}

// Reader runs the lookups against the store
type Reader interface {
	TeamStats(ctx context.Context, team string, seasonYear *int, seasonType string) ([]*models.TeamSeasonStat, error)
	StatLeaders(ctx context.Context, column string, seasonYear *int, seasonType string, limit int) ([]models.StatLeader, error)
	CompareTeams(ctx context.Context, team1, team2 string, seasonYear int, seasonType string) ([]*models.TeamSeasonStat, error)
	PlayoffTeams(ctx context.Context, seasonYear *int) ([]models.PlayoffTeam, error)
	TeamsBySeason(ctx context.Context, seasonYear int, seasonType string) ([]string, error)
	GamePlays(ctx context.Context, awayTeam, homeTeam string, seasonYear int, week string) ([]*models.Play, error)
	GameScore(ctx context.Context, team1, team2 string, seasonYear int, week string) ([]*models.Game, error)
	SearchPlaysByOutcome(ctx context.Context, outcome string, seasonYear *int, team string, limit int) ([]*models.Play, error)
	TeamSeasonRecord(ctx context.Context, team string, seasonYear int) (*models.SeasonRecord, error)
	PlayoffResults(ctx context.Context, seasonYear int, round string) ([]*models.Game, error)
	Overview(ctx context.Context) (*models.Overview, error)
}

// dbReader routes each lookup to its repository
type dbReader struct {
	db *repository.Database
}

// NewReader adapts a Database to Reader
func NewReader(db *repository.Database) Reader {
	return dbReader{db: db}
}

func (r dbReader) TeamStats(ctx context.Context, team string, seasonYear *int, seasonType string) ([]*models.TeamSeasonStat, error) {
	return r.db.TeamStats.TeamStats(ctx, team, seasonYear, seasonType)
}

func (r dbReader) StatLeaders(ctx context.Context, column string, seasonYear *int, seasonType string, limit int) ([]models.StatLeader, error) {
	return r.db.TeamStats.StatLeaders(ctx, column, seasonYear, seasonType, limit)
}

func (r dbReader) CompareTeams(ctx context.Context, team1, team2 string, seasonYear int, seasonType string) ([]*models.TeamSeasonStat, error) {
	return r.db.TeamStats.CompareTeams(ctx, team1, team2, seasonYear, seasonType)
}

func (r dbReader) PlayoffTeams(ctx context.Context, seasonYear *int) ([]models.PlayoffTeam, error) {
	return r.db.TeamStats.PlayoffTeams(ctx, seasonYear)
}

func (r dbReader) TeamsBySeason(ctx context.Context, seasonYear int, seasonType string) ([]string, error) {
	return r.db.TeamStats.TeamsBySeason(ctx, seasonYear, seasonType)
}

func (r dbReader) GamePlays(ctx context.Context, awayTeam, homeTeam string, seasonYear int, week string) ([]*models.Play, error) {
	return r.db.Plays.GamePlays(ctx, awayTeam, homeTeam, seasonYear, week)
}

func (r dbReader) GameScore(ctx context.Context, team1, team2 string, seasonYear int, week string) ([]*models.Game, error) {
	return r.db.Games.GameScore(ctx, team1, team2, seasonYear, week)
}

func (r dbReader) SearchPlaysByOutcome(ctx context.Context, outcome string, seasonYear *int, team string, limit int) ([]*models.Play, error) {
	return r.db.Plays.SearchByOutcome(ctx, outcome, seasonYear, team, limit)
}

func (r dbReader) TeamSeasonRecord(ctx context.Context, team string, seasonYear int) (*models.SeasonRecord, error) {
	return r.db.Games.TeamSeasonRecord(ctx, team, seasonYear)
}

func (r dbReader) PlayoffResults(ctx context.Context, seasonYear int, round string) ([]*models.Game, error) {
	return r.db.Games.PlayoffResults(ctx, seasonYear, round)
}

func (r dbReader) Overview(ctx context.Context) (*models.Overview, error) {
	return r.db.Overview(ctx)
}

// Service answers lookups, consulting the cache first when one is configured.
// Cached entries are keyed under a namespace version; Invalidate bumps the
// version so every earlier entry becomes unreachable and expires by TTL.
type Service struct {
	reader Reader
	cache  Cache
	ttl    time.Duration
}

// NewService creates a Service. cache may be nil, in which case every lookup
// goes to the reader.
func NewService(reader Reader, c Cache, ttl time.Duration) *Service {
	return &Service{reader: reader, cache: c, ttl: ttl}
}

// Invalidate drops every cached result
func (s *Service) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	v, err := s.cache.Incr(ctx, versionKey)
	if err != nil {
		return fmt.Errorf("failed to bump cache version: %w", err)
	}
	log.Debug().Int64("version", v).Msg("Query cache invalidated")
	return nil
}

func (s *Service) version(ctx context.Context) (string, error) {
	b, err := s.cache.Get(ctx, versionKey)
	if errors.Is(err, cache.ErrMiss) {
		return "0", nil
	}
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// cached runs load through the cache under name and args. Cache failures are
// logged and fall back to load; they never fail the lookup.
func cached[T any](ctx context.Context, s *Service, name string, load func() (T, error), args ...any) (T, error) {
	if s.cache == nil {
		return load()
	}

	version, err := s.version(ctx)
	if err != nil {
		log.Warn().Err(err).Str("query", name).Msg("Cache unavailable, reading from database")
		return load()
	}
	key := cacheKey(version, name, args...)

	if b, err := s.cache.Get(ctx, key); err == nil {
		var v T
		if err := json.Unmarshal(b, &v); err == nil {
			metrics.RecordCacheHit(name)
			return v, nil
		}
		log.Warn().Str("key", key).Msg("Discarding undecodable cache entry")
	} else if !errors.Is(err, cache.ErrMiss) {
		log.Warn().Err(err).Str("query", name).Msg("Cache read failed")
	}
	metrics.RecordCacheMiss(name)

	v, err := load()
	if err != nil {
		return v, err
	}
	if b, err := json.Marshal(v); err == nil {
		if err := s.cache.Set(ctx, key, b, s.ttl); err != nil {
			log.Warn().Err(err).Str("query", name).Msg("Cache write failed")
		}
	}
	return v, nil
}

func cacheKey(version, name string, args ...any) string {
	parts := make([]string, 0, len(args)+3)
	parts = append(parts, keyPrefix, version, name)
	for _, a := range args {
		switch v := a.(type) {
		case *int:
			if v == nil {
				parts = append(parts, "-")
			} else {
				parts = append(parts, strconv.Itoa(*v))
			}
		case string:
			parts = append(parts, strconv.Quote(v))
		default:
			parts = append(parts, fmt.Sprint(v))
		}
	}
	return strings.Join(parts, ":")
}

// TeamStats returns a team's stats for one season, or its latest three
func (s *Service) TeamStats(ctx context.Context, team string, seasonYear *int, seasonType string) ([]*models.TeamSeasonStat, error) {
	return cached(ctx, s, "team_stats", func() ([]*models.TeamSeasonStat, error) {
		return s.reader.TeamStats(ctx, team, seasonYear, seasonType)
	}, team, seasonYear, seasonType)
}

// StatLeaders ranks teams by one metric column
func (s *Service) StatLeaders(ctx context.Context, column string, seasonYear *int, seasonType string, limit int) ([]models.StatLeader, error) {
	if !models.IsStatMetric(column) {
		return nil, fmt.Errorf("%w: %q", repository.ErrUnknownStatColumn, column)
	}
	return cached(ctx, s, "stat_leaders", func() ([]models.StatLeader, error) {
		return s.reader.StatLeaders(ctx, column, seasonYear, seasonType, limit)
	}, column, seasonYear, seasonType, limit)
}

// CompareTeams returns both teams' stats for a season
func (s *Service) CompareTeams(ctx context.Context, team1, team2 string, seasonYear int, seasonType string) ([]*models.TeamSeasonStat, error) {
	return cached(ctx, s, "compare_teams", func() ([]*models.TeamSeasonStat, error) {
		return s.reader.CompareTeams(ctx, team1, team2, seasonYear, seasonType)
	}, team1, team2, seasonYear, seasonType)
}

// PlayoffTeams lists teams with postseason stats
func (s *Service) PlayoffTeams(ctx context.Context, seasonYear *int) ([]models.PlayoffTeam, error) {
	return cached(ctx, s, "playoff_teams", func() ([]models.PlayoffTeam, error) {
		return s.reader.PlayoffTeams(ctx, seasonYear)
	}, seasonYear)
}

// TeamsBySeason lists the teams with stats for a season
func (s *Service) TeamsBySeason(ctx context.Context, seasonYear int, seasonType string) ([]string, error) {
	return cached(ctx, s, "teams_by_season", func() ([]string, error) {
		return s.reader.TeamsBySeason(ctx, seasonYear, seasonType)
	}, seasonYear, seasonType)
}

// GamePlays returns a game's plays in play order
func (s *Service) GamePlays(ctx context.Context, awayTeam, homeTeam string, seasonYear int, week string) ([]*models.Play, error) {
	return cached(ctx, s, "game_plays", func() ([]*models.Play, error) {
		return s.reader.GamePlays(ctx, awayTeam, homeTeam, seasonYear, week)
	}, awayTeam, homeTeam, seasonYear, week)
}

// GameScore returns the meetings of two teams in a season
func (s *Service) GameScore(ctx context.Context, team1, team2 string, seasonYear int, week string) ([]*models.Game, error) {
	return cached(ctx, s, "game_score", func() ([]*models.Game, error) {
		return s.reader.GameScore(ctx, team1, team2, seasonYear, week)
	}, team1, team2, seasonYear, week)
}

// SearchPlaysByOutcome finds plays whose outcome contains the given text
func (s *Service) SearchPlaysByOutcome(ctx context.Context, outcome string, seasonYear *int, team string, limit int) ([]*models.Play, error) {
	return cached(ctx, s, "search_plays", func() ([]*models.Play, error) {
		return s.reader.SearchPlaysByOutcome(ctx, outcome, seasonYear, team, limit)
	}, outcome, seasonYear, team, limit)
}

// TeamSeasonRecord returns a team's schedule and record for a season
func (s *Service) TeamSeasonRecord(ctx context.Context, team string, seasonYear int) (*models.SeasonRecord, error) {
	return cached(ctx, s, "team_record", func() (*models.SeasonRecord, error) {
		return s.reader.TeamSeasonRecord(ctx, team, seasonYear)
	}, team, seasonYear)
}

// PlayoffResults returns a season's playoff games, optionally one round
func (s *Service) PlayoffResults(ctx context.Context, seasonYear int, round string) ([]*models.Game, error) {
	return cached(ctx, s, "playoff_results", func() ([]*models.Game, error) {
		return s.reader.PlayoffResults(ctx, seasonYear, round)
	}, seasonYear, round)
}

// Overview summarizes what the store holds. It is never cached.
func (s *Service) Overview(ctx context.Context) (*models.Overview, error) {
	return s.reader.Overview(ctx)
}
