package repository

import (
	"context"
	"flag"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Integration tests run against a throwaway PostgreSQL container, or against
// TEST_DB_HOST when set. They are skipped with -short.

var (
	testDSN     string
	pgContainer *postgres.PostgresContainer
)

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()

	if host := os.Getenv("TEST_DB_HOST"); host != "" {
		testDSN = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
			envOr("TEST_DB_USER", "postgres"),
			envOr("TEST_DB_PASSWORD", "postgres"),
			host,
			envOr("TEST_DB_PORT", "5432"),
			envOr("TEST_DB_NAME", "nflstats_test"),
		)
		fmt.Printf("Using external database: %s\n", host)
	} else {
		var err error
		pgContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("nflstats_test"),
			postgres.WithUsername("postgres"),
			postgres.WithPassword("postgres"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second)),
		)
		if err != nil {
			fmt.Printf("Failed to start PostgreSQL container: %v\n", err)
			os.Exit(1)
		}

		testDSN, err = pgContainer.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			fmt.Printf("Failed to get connection string: %v\n", err)
			terminateContainer(ctx)
			os.Exit(1)
		}
	}

	db, err := NewDatabase(ctx, Config{DSN: testDSN})
	if err == nil {
		err = db.Migrate(ctx)
		db.Close()
	}
	if err != nil {
		fmt.Printf("Failed to initialize database: %v\n", err)
		terminateContainer(ctx)
		os.Exit(1)
	}

	code := m.Run()
	terminateContainer(ctx)
	os.Exit(code)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func terminateContainer(ctx context.Context) {
	if pgContainer == nil {
		return
	}
	if err := pgContainer.Terminate(ctx); err != nil {
		fmt.Printf("Failed to terminate PostgreSQL container: %v\n", err)
	}
}

// setupTestDB connects with the given chunk size and empties every table
func setupTestDB(t *testing.T, chunkSize int) (*Database, context.Context) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping database integration test in short mode")
	}
	ctx := context.Background()

	db, err := NewDatabase(ctx, Config{DSN: testDSN, ChunkSize: chunkSize})
	require.NoError(t, err, "Failed to connect to test database")

	_, err = db.Pool.Exec(ctx, `TRUNCATE plays, games, team_stats, download_log`)
	require.NoError(t, err)

	t.Cleanup(db.Close)
	return db, ctx
}

func TestDatabaseConnection(t *testing.T) {
	db, ctx := setupTestDB(t, 0)

	err := db.Health(ctx)
	assert.NoError(t, err, "Database health check should pass")

	stats := db.PoolStats()
	assert.GreaterOrEqual(t, stats["max_conns"].(int32), int32(1), "Should have at least 1 max connection")
}

func TestMigrate_Idempotent(t *testing.T) {
	db, ctx := setupTestDB(t, 0)

	require.NoError(t, db.Migrate(ctx))
	require.NoError(t, db.Migrate(ctx))
}

func TestNewDatabase_Unreachable(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping in short mode")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, err := NewDatabase(ctx, Config{DSN: "postgres://nobody:x@127.0.0.1:1/none?sslmode=disable&connect_timeout=1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStorage)
}
