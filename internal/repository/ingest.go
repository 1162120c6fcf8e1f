package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
)

// DefaultChunkSize is the number of rows copied per statement
const DefaultChunkSize = 10000

// uniqueViolation is the SQLSTATE for a unique constraint violation
const uniqueViolation = "23505"

// ErrRecordRejected marks a row whose key is already stored. It is counted as
// skipped and never surfaces from Ingest.
var ErrRecordRejected = errors.New("record rejected: key already present")

// ConflictPolicy decides what happens to a row whose key is already stored
type ConflictPolicy int

const (
	// ConflictReject keeps the stored row and skips the new one
	ConflictReject ConflictPolicy = iota
	// ConflictReplace overwrites the stored row
	ConflictReplace
)

func (p ConflictPolicy) String() string {
	if p == ConflictReplace {
		return "replace"
	}
	return "reject"
}

// TableSpec describes an ingestible table. Identifiers come from fixed model
// column lists, never from input.
type TableSpec struct {
	Table      string
	Columns    []string
	KeyColumns []string
	Policy     ConflictPolicy
}

// IngestResult counts what happened to each row offered to Ingest
type IngestResult struct {
	Accepted int
	Skipped  int
	Replaced int
	Failed   int
}

// Add accumulates o into r
func (r *IngestResult) Add(o IngestResult) {
	r.Accepted += o.Accepted
	r.Skipped += o.Skipped
	r.Replaced += o.Replaced
	r.Failed += o.Failed
}

// Stored returns the rows that were written, new or replaced
func (r IngestResult) Stored() int {
	return r.Accepted + r.Replaced
}

func quoteIdents(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}

func placeholders(n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = fmt.Sprintf("$%d", i+1)
	}
	return strings.Join(ph, ", ")
}

func (s TableSpec) insertIgnoreSQL() string {
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO NOTHING",
		pgx.Identifier{s.Table}.Sanitize(),
		quoteIdents(s.Columns),
		placeholders(len(s.Columns)),
		quoteIdents(s.KeyColumns),
	)
}

// upsertSQL returns whether the row replaced an existing one. xmax is non-zero
// only for the updated branch of ON CONFLICT.
func (s TableSpec) upsertSQL() string {
	key := make(map[string]bool, len(s.KeyColumns))
	for _, c := range s.KeyColumns {
		key[c] = true
	}
	var set []string
	for _, c := range s.Columns {
		if key[c] {
			continue
		}
		id := pgx.Identifier{c}.Sanitize()
		set = append(set, fmt.Sprintf("%s = EXCLUDED.%s", id, id))
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s RETURNING (xmax <> 0)",
		pgx.Identifier{s.Table}.Sanitize(),
		quoteIdents(s.Columns),
		placeholders(len(s.Columns)),
		quoteIdents(s.KeyColumns),
		strings.Join(set, ", "),
	)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func storageErr(op, table string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", ErrStorage, op, table, err)
}

// Ingest writes rows into the table described by spec. Every row ends up
// counted exactly once. Any error returned wraps ErrStorage and leaves the
// caller's transaction unusable.
func (db *Database) Ingest(ctx context.Context, q DBTX, spec TableSpec, rows [][]any) (IngestResult, error) {
	var res IngestResult

	for start := 0; start < len(rows); start += db.chunkSize {
		end := min(start+db.chunkSize, len(rows))
		chunk := rows[start:end]

		var (
			part IngestResult
			err  error
		)
		switch spec.Policy {
		case ConflictReplace:
			part, err = upsertChunk(ctx, q, spec, chunk)
		default:
			part, err = insertChunk(ctx, q, spec, chunk)
		}
		if err != nil {
			return res, err
		}
		res.Add(part)
	}

	log.Debug().
		Str("table", spec.Table).
		Str("policy", spec.Policy.String()).
		Int("offered", len(rows)).
		Int("accepted", res.Accepted).
		Int("skipped", res.Skipped).
		Int("replaced", res.Replaced).
		Msg("Ingested rows")

	return res, nil
}

// insertChunk copies the whole chunk in one statement inside a savepoint. When
// any key already exists the savepoint is rolled back and the chunk is retried
// row by row so the duplicates can be told apart from the new rows.
func insertChunk(ctx context.Context, q DBTX, spec TableSpec, chunk [][]any) (IngestResult, error) {
	sp, err := q.Begin(ctx)
	if err != nil {
		return IngestResult{}, storageErr("begin savepoint for", spec.Table, err)
	}

	n, err := sp.CopyFrom(ctx, pgx.Identifier{spec.Table}, spec.Columns, pgx.CopyFromRows(chunk))
	if err == nil {
		if err := sp.Commit(ctx); err != nil {
			return IngestResult{}, storageErr("release savepoint for", spec.Table, err)
		}
		return IngestResult{Accepted: int(n)}, nil
	}

	if rbErr := sp.Rollback(ctx); rbErr != nil {
		return IngestResult{}, storageErr("rollback savepoint for", spec.Table, rbErr)
	}
	if !isUniqueViolation(err) {
		return IngestResult{}, storageErr("copy into", spec.Table, err)
	}

	var res IngestResult
	insert := spec.insertIgnoreSQL()
	for _, row := range chunk {
		err := insertOne(ctx, q, insert, row)
		switch {
		case err == nil:
			res.Accepted++
		case errors.Is(err, ErrRecordRejected):
			res.Skipped++
		default:
			return res, storageErr("insert into", spec.Table, err)
		}
	}
	return res, nil
}

func insertOne(ctx context.Context, q DBTX, insert string, row []any) error {
	tag, err := q.Exec(ctx, insert, row...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordRejected
	}
	return nil
}

// upsertChunk sends one pipelined batch of upserts
func upsertChunk(ctx context.Context, q DBTX, spec TableSpec, chunk [][]any) (IngestResult, error) {
	upsert := spec.upsertSQL()
	batch := &pgx.Batch{}
	for _, row := range chunk {
		batch.Queue(upsert, row...)
	}

	br := q.SendBatch(ctx, batch)
	var res IngestResult
	for range chunk {
		var replaced bool
		if err := br.QueryRow().Scan(&replaced); err != nil {
			br.Close()
			return res, storageErr("upsert into", spec.Table, err)
		}
		if replaced {
			res.Replaced++
		} else {
			res.Accepted++
		}
	}
	if err := br.Close(); err != nil {
		return res, storageErr("upsert into", spec.Table, err)
	}
	return res, nil
}
