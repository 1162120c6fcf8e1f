package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// ErrStorage marks failures of the store itself (connectivity, SQL errors).
// They are fatal to the run.
var ErrStorage = errors.New("storage failure")

// ErrNotFound is returned by lookups that match no row
var ErrNotFound = errors.New("not found")

// syncLockKey is the advisory lock id held by every ingestion commit
const syncLockKey int64 = 0x6e666c7374617473 // "nflstats"

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Database holds the database connection pool and provides access to repositories
type Database struct {
	Pool *pgxpool.Pool

	// Repositories
	Plays     *PlayRepository
	Games     *GameRepository
	TeamStats *StatsRepository
	Ledger    *LedgerRepository

	chunkSize int
}

// Config holds database configuration
type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string

	// DSN overrides the individual fields when set
	DSN string

	// ChunkSize bounds the rows sent per bulk insert
	ChunkSize int
}

func (c Config) dsn() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
		c.SSLMode,
	)
}

// NewDatabase creates a new database connection pool and initializes repositories
func NewDatabase(ctx context.Context, cfg Config) (*Database, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create connection pool: %w", ErrStorage, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: failed to ping database: %w", ErrStorage, err)
	}

	log.Info().
		Str("host", poolConfig.ConnConfig.Host).
		Uint16("port", poolConfig.ConnConfig.Port).
		Str("database", poolConfig.ConnConfig.Database).
		Msg("Successfully connected to database")

	return newDatabase(pool, cfg.ChunkSize), nil
}

func newDatabase(pool *pgxpool.Pool, chunkSize int) *Database {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	db := &Database{
		Pool:      pool,
		chunkSize: chunkSize,
	}

	db.Plays = &PlayRepository{db: db}
	db.Games = &GameRepository{db: db}
	db.TeamStats = &StatsRepository{db: db}
	db.Ledger = &LedgerRepository{db: db}

	return db
}

// Close closes the database connection pool
func (db *Database) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		log.Info().Msg("Database connection pool closed")
	}
}

// Health checks if the database is healthy
func (db *Database) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.Pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: database health check failed: %w", ErrStorage, err)
	}

	return nil
}

// PoolStats returns database pool statistics
func (db *Database) PoolStats() map[string]interface{} {
	stat := db.Pool.Stat()
	return map[string]interface{}{
		"total_conns":    stat.TotalConns(),
		"acquired_conns": stat.AcquiredConns(),
		"idle_conns":     stat.IdleConns(),
		"max_conns":      stat.MaxConns(),
	}
}

// WithCommitLock runs fn in one transaction holding the ingestion advisory
// lock, so commits from concurrent runs against the same store never
// interleave. The transaction commits only if fn returns nil.
func (db *Database) WithCommitLock(ctx context.Context, fn func(tx pgx.Tx) error) error {
	err := pgx.BeginFunc(ctx, db.Pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, syncLockKey); err != nil {
			return fmt.Errorf("%w: acquire ingestion lock: %w", ErrStorage, err)
		}
		return fn(tx)
	})
	if err != nil && !errors.Is(err, ErrStorage) && isConnError(err) {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return err
}

// isConnError reports errors raised by the connection rather than by fn's logic
func isConnError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return true
	}
	return pgconn.SafeToRetry(err) || pgconn.Timeout(err)
}
