package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"nflstats/ingestion/internal/syncer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSyncer struct {
	mu      sync.Mutex
	tags    []string
	years   [][]int
	failing map[string]bool
	block   chan struct{}
}

func (r *recordingSyncer) Sync(ctx context.Context, tag string, years []int) (*syncer.Report, error) {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tags = append(r.tags, tag)
	r.years = append(r.years, years)
	if r.failing[tag] {
		return &syncer.Report{Tag: tag}, errors.New("release not found")
	}
	return &syncer.Report{Tag: tag}, nil
}

func (r *recordingSyncer) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.tags...)
}

func TestRunOnce_AllTags(t *testing.T) {
	rs := &recordingSyncer{failing: map[string]bool{"stats_player": true}}
	s := NewScheduler(Config{Cron: "0 2 * * *", Tags: []string{"stats_player", "stats_team"}, Years: []int{2024}}, rs)

	err := s.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stats_player")
	assert.Equal(t, []string{"stats_player", "stats_team"}, rs.calls())
	assert.Equal(t, []int{2024}, rs.years[1])
}

func TestRunOnce_SkipsWhileRunning(t *testing.T) {
	rs := &recordingSyncer{block: make(chan struct{})}
	s := NewScheduler(Config{Cron: "0 2 * * *", Tags: []string{"stats_team"}}, rs)

	done := make(chan error)
	go func() { done <- s.RunOnce(context.Background()) }()

	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.running
	}, time.Second, 5*time.Millisecond)

	assert.NoError(t, s.RunOnce(context.Background()))
	close(rs.block)
	require.NoError(t, <-done)
	assert.Len(t, rs.calls(), 1)
}

func TestStart_InitialSync(t *testing.T) {
	rs := &recordingSyncer{}
	s := NewScheduler(Config{Cron: "0 2 * * *", Tags: []string{"stats_team"}, InitialSync: true}, rs)

	require.NoError(t, s.Start(context.Background()))
	s.Stop()
	assert.Equal(t, []string{"stats_team"}, rs.calls())
}

func TestStart_BadCron(t *testing.T) {
	s := NewScheduler(Config{Cron: "whenever"}, &recordingSyncer{})
	assert.Error(t, s.Start(context.Background()))
}
