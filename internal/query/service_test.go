package query

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"nflstats/ingestion/internal/cache"
	"nflstats/ingestion/internal/models"
	"nflstats/ingestion/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	ttls    map[string]time.Duration
	failGet bool
}

func newMemCache() *memCache {
	return &memCache{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (c *memCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failGet {
		return nil, errors.New("connection refused")
	}
	b, ok := c.data[key]
	if !ok {
		return nil, cache.ErrMiss
	}
	return b, nil
}

func (c *memCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.ttls[key] = ttl
	return nil
}

func (c *memCache) Incr(ctx context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, _ := strconv.ParseInt(string(c.data[key]), 10, 64)
	n++
	c.data[key] = []byte(strconv.FormatInt(n, 10))
	return n, nil
}

// stubReader counts calls and answers from fixed data
type stubReader struct {
	Reader
	calls   map[string]int
	stats   []*models.TeamSeasonStat
	games   []*models.Game
	gameErr error
}

func newStubReader() *stubReader {
	kc := models.NewTeamSeasonStat(2024, "KC", models.SeasonTypeRegular)
	kc.SetMetric("passing_yards", "3900")
	return &stubReader{
		calls: map[string]int{},
		stats: []*models.TeamSeasonStat{kc},
		games: []*models.Game{{
			Season: 2024, Week: "Super Bowl", WeekOrder: 22, Date: "2025-02-09",
			AwayTeam: "KC", HomeTeam: "PHI", GameStatus: sql.NullString{String: "Final", Valid: true},
			AwayScore: sql.NullFloat64{Float64: 22, Valid: true}, HomeScore: sql.NullFloat64{Float64: 40, Valid: true},
			HomeWin: sql.NullFloat64{Float64: 1, Valid: true}, PostSeason: true,
		}},
	}
}

func (r *stubReader) TeamStats(ctx context.Context, team string, seasonYear *int, seasonType string) ([]*models.TeamSeasonStat, error) {
	r.calls["team_stats"]++
	return r.stats, nil
}

func (r *stubReader) StatLeaders(ctx context.Context, column string, seasonYear *int, seasonType string, limit int) ([]models.StatLeader, error) {
	r.calls["stat_leaders"]++
	return nil, nil
}

func (r *stubReader) PlayoffResults(ctx context.Context, seasonYear int, round string) ([]*models.Game, error) {
	r.calls["playoff_results"]++
	return r.games, r.gameErr
}

func (r *stubReader) Overview(ctx context.Context) (*models.Overview, error) {
	r.calls["overview"]++
	return &models.Overview{}, nil
}

func TestService_NoCacheReadsThrough(t *testing.T) {
	r := newStubReader()
	s := NewService(r, nil, time.Minute)

	for range 2 {
		_, err := s.TeamStats(context.Background(), "KC", nil, models.SeasonTypeRegular)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, r.calls["team_stats"])
	assert.NoError(t, s.Invalidate(context.Background()))
}

func TestService_CachesResults(t *testing.T) {
	r, c := newStubReader(), newMemCache()
	s := NewService(r, c, 10*time.Minute)
	ctx := context.Background()

	first, err := s.TeamStats(ctx, "KC", nil, models.SeasonTypeRegular)
	require.NoError(t, err)
	second, err := s.TeamStats(ctx, "KC", nil, models.SeasonTypeRegular)
	require.NoError(t, err)

	assert.Equal(t, 1, r.calls["team_stats"])
	require.Len(t, second, 1)
	v, ok := second[0].Metric("passing_yards")
	require.True(t, ok)
	assert.Equal(t, first[0].Metrics, second[0].Metrics)
	assert.Equal(t, "3900", v.String)

	// Different arguments are cached separately
	yr := 2024
	_, err = s.TeamStats(ctx, "KC", &yr, models.SeasonTypeRegular)
	require.NoError(t, err)
	assert.Equal(t, 2, r.calls["team_stats"])

	for key, ttl := range c.ttls {
		assert.Equal(t, 10*time.Minute, ttl, key)
	}
}

func TestService_InvalidateBumpsVersion(t *testing.T) {
	r, c := newStubReader(), newMemCache()
	s := NewService(r, c, time.Minute)
	ctx := context.Background()

	games, err := s.PlayoffResults(ctx, 2024, "")
	require.NoError(t, err)
	require.Len(t, games, 1)
	_, err = s.PlayoffResults(ctx, 2024, "")
	require.NoError(t, err)
	assert.Equal(t, 1, r.calls["playoff_results"])

	require.NoError(t, s.Invalidate(ctx))
	games, err = s.PlayoffResults(ctx, 2024, "")
	require.NoError(t, err)
	assert.Equal(t, 2, r.calls["playoff_results"])
	assert.True(t, games[0].HomeWon())
}

func TestService_ErrorsAreNotCached(t *testing.T) {
	r, c := newStubReader(), newMemCache()
	r.gameErr = repository.ErrNotFound
	s := NewService(r, c, time.Minute)

	for range 2 {
		_, err := s.PlayoffResults(context.Background(), 1900, "")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	}
	assert.Equal(t, 2, r.calls["playoff_results"])
	assert.Empty(t, c.data)
}

func TestService_CacheFailureFallsBack(t *testing.T) {
	r, c := newStubReader(), newMemCache()
	c.failGet = true
	s := NewService(r, c, time.Minute)

	stats, err := s.TeamStats(context.Background(), "KC", nil, models.SeasonTypeRegular)
	require.NoError(t, err)
	assert.Len(t, stats, 1)
}

func TestService_StatLeadersRejectsUnknownColumn(t *testing.T) {
	r := newStubReader()
	s := NewService(r, newMemCache(), time.Minute)

	_, err := s.StatLeaders(context.Background(), "passing_yards; DROP TABLE team_stats", nil, models.SeasonTypeRegular, 10)
	assert.ErrorIs(t, err, repository.ErrUnknownStatColumn)
	assert.Zero(t, r.calls["stat_leaders"])
}

func TestService_OverviewNotCached(t *testing.T) {
	r := newStubReader()
	s := NewService(r, newMemCache(), time.Minute)

	for range 2 {
		_, err := s.Overview(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 2, r.calls["overview"])
}

func TestCacheKey(t *testing.T) {
	yr := 2024
	assert.Equal(t, `nflstats:q:3:team_stats:"KC":2024:"REG"`, cacheKey("3", "team_stats", "KC", &yr, "REG"))
	assert.Equal(t, `nflstats:q:0:playoff_teams:-`, cacheKey("0", "playoff_teams", (*int)(nil)))
	assert.NotEqual(t,
		cacheKey("0", "game_score", "A:B", "C", 2024),
		cacheKey("0", "game_score", "A", "B:C", 2024))
}
