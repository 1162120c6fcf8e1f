package release

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"nflstats/ingestion/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(srv *httptest.Server) *Client {
	return NewClient(Config{
		BaseURL:              srv.URL,
		Owner:                "nflverse",
		Repo:                 "nflverse-data",
		Token:                "secret",
		Timeout:              5 * time.Second,
		RetryInitialInterval: 5 * time.Millisecond,
		RetryMaxElapsed:      500 * time.Millisecond,
	})
}

func TestListAssets(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/nflverse/nflverse-data/releases/tags/stats_team", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		fmt.Fprintf(w, `{"tag_name":"stats_team","assets":[
			{"id":1,"name":"stats_team_reg_2024.csv","browser_download_url":"%[1]s/dl/1","size":10,"updated_at":"2025-02-10T08:00:00Z"},
			{"id":2,"name":"stats_team_post_2024.csv","browser_download_url":"%[1]s/dl/2","size":5,"updated_at":"2025-02-11T08:00:00Z"}
		]}`, srv.URL)
	}))
	defer srv.Close()

	assets, err := newTestClient(srv).ListAssets(context.Background(), "stats_team")
	require.NoError(t, err)
	require.Len(t, assets, 2)
	assert.Equal(t, int64(1), assets[0].ID)
	assert.Equal(t, srv.URL+"/dl/2", assets[1].DownloadURL)
	assert.Equal(t, time.Date(2025, 2, 11, 8, 0, 0, 0, time.UTC), assets[1].UpdatedAt.UTC())
}

func TestDownload_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		assert.Equal(t, "application/octet-stream", r.Header.Get("Accept"))
		_, _ = w.Write([]byte("season,team\n2024,KC\n"))
	}))
	defer srv.Close()

	body, err := newTestClient(srv).Download(context.Background(), Asset{Name: "a.csv", DownloadURL: srv.URL + "/a.csv"})
	require.NoError(t, err)
	assert.Equal(t, "season,team\n2024,KC\n", string(body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestDownload_PermanentFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Download(context.Background(), Asset{Name: "a.csv", DownloadURL: srv.URL + "/a.csv"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetch)
	assert.Equal(t, int32(1), calls.Load(), "4xx responses are not retried")
}

func TestDownload_GivesUpAfterMaxElapsed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Download(context.Background(), Asset{Name: "a.csv", DownloadURL: srv.URL})
	assert.ErrorIs(t, err, ErrFetch)
}

func TestDownload_MissingURL(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://127.0.0.1:1"})
	_, err := c.Download(context.Background(), Asset{Name: "a.csv"})
	assert.ErrorIs(t, err, ErrFetch)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		fileType models.FileType
		year     int
		ok       bool
	}{
		{"stats_team_reg_2024.csv", models.FileTypeRegular, 2024, true},
		{"stats_team_post_1999.csv", models.FileTypePostseason, 1999, true},
		{"STATS_TEAM_REG_2023.CSV", models.FileTypeRegular, 2023, true},
		{"stats_team_week_2024.csv", "", 0, false},
		{"stats_team_reg_2024.parquet", "", 0, false},
		{"stats_team_reg.csv", "", 0, false},
		{"stats_player_reg_2024.csv", "", 0, false},
		{"player_stats_post_2023.csv", "", 0, false},
		{"pbp_reg_2022.csv", "", 0, false},
		{"stats_team_week_reg_2024.csv", "", 0, false},
		{"old_stats_team_reg_2021.csv", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ft, year, ok := Classify(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.fileType, ft)
			assert.Equal(t, tt.year, year)
		})
	}
}
