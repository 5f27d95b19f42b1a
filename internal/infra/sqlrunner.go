package infra

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// SQLExecutor is the query surface the Postgres backed stores depend on.
type SQLExecutor interface {
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, query string, args ...any) pgx.Row
	Query(ctx context.Context, query string, args ...any) (pgx.Rows, error)
}

var markerRegexp = regexp.MustCompile(`^--sql [0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// ErrMissingMarker is returned for queries without a leading `--sql <uuid>` line.
var ErrMissingMarker = errors.New("sql marker missing or invalid")

// DefaultSlowQuery is the duration above which a statement is logged at warn.
const DefaultSlowQuery = 500 * time.Millisecond

// SQLRunner executes marker tagged queries against a pgx pool and logs each
// statement by its marker instead of its text.
type SQLRunner struct {
	Pool      *pgxpool.Pool
	Logger    zerolog.Logger
	SlowQuery time.Duration
}

func NewSQLRunner(pool *pgxpool.Pool, logger zerolog.Logger) *SQLRunner {
	return &SQLRunner{Pool: pool, Logger: logger, SlowQuery: DefaultSlowQuery}
}

func (r *SQLRunner) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	marker, stmt, err := extractMarker(query)
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	start := time.Now()
	tag, err := r.Pool.Exec(ctx, stmt, args...)
	r.observe("exec", marker, start, err).Int64("rows", tag.RowsAffected()).Send()
	return tag, err
}

func (r *SQLRunner) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	marker, stmt, err := extractMarker(query)
	if err != nil {
		return errorRow{err: err}
	}
	return &timedRow{row: r.Pool.QueryRow(ctx, stmt, args...), runner: r, marker: marker, start: time.Now()}
}

func (r *SQLRunner) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	marker, stmt, err := extractMarker(query)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	rows, err := r.Pool.Query(ctx, stmt, args...)
	r.observe("query", marker, start, err).Send()
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// observe picks the log level for a finished statement: error on failure,
// warn when slow, debug otherwise.
func (r *SQLRunner) observe(op, marker string, start time.Time, err error) *zerolog.Event {
	elapsed := time.Since(start)
	level := zerolog.DebugLevel
	switch {
	case err != nil && !IsNoRows(err):
		level = zerolog.ErrorLevel
	case r.SlowQuery > 0 && elapsed > r.SlowQuery:
		level = zerolog.WarnLevel
	}
	return r.Logger.WithLevel(level).
		Str("op", op).
		Str("sql", marker).
		Dur("elapsed", elapsed).
		Err(err)
}

// IsNoRows reports whether err is pgx's empty result error.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

type timedRow struct {
	row    pgx.Row
	runner *SQLRunner
	marker string
	start  time.Time
}

func (t *timedRow) Scan(dest ...any) error {
	err := t.row.Scan(dest...)
	t.runner.observe("query_row", t.marker, t.start, err).Send()
	return err
}

type errorRow struct {
	err error
}

func (e errorRow) Scan(dest ...any) error {
	return e.err
}

func extractMarker(query string) (string, string, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return "", "", errors.New("empty query")
	}
	first, rest, _ := strings.Cut(trimmed, "\n")
	first = strings.TrimSpace(first)
	if !markerRegexp.MatchString(first) {
		return "", "", ErrMissingMarker
	}
	return strings.TrimPrefix(first, "--sql "), rest, nil
}

var _ SQLExecutor = (*SQLRunner)(nil)
