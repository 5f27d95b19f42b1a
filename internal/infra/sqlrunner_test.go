package infra

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

func TestExtractMarker(t *testing.T) {
	marker, body, err := extractMarker("--sql 0d7c4a52-3f0e-4d35-9a51-4b1f0a5f2a10\nselect 1;\n")
	if err != nil {
		t.Fatalf("extractMarker error: %v", err)
	}
	if marker != "0d7c4a52-3f0e-4d35-9a51-4b1f0a5f2a10" {
		t.Fatalf("marker = %q", marker)
	}
	if body != "select 1;" {
		t.Fatalf("body = %q", body)
	}
}

func TestExtractMarkerRejectsUntagged(t *testing.T) {
	if _, _, err := extractMarker("select 1;"); !errors.Is(err, ErrMissingMarker) {
		t.Fatalf("err = %v, want ErrMissingMarker", err)
	}
	if _, _, err := extractMarker("  "); err == nil {
		t.Fatal("expected error for empty query")
	}
}

func TestIsNoRows(t *testing.T) {
	if !IsNoRows(pgx.ErrNoRows) {
		t.Fatal("IsNoRows(pgx.ErrNoRows) = false")
	}
	if IsNoRows(errors.New("boom")) {
		t.Fatal("IsNoRows(other) = true")
	}
}

type scanRow struct{ err error }

func (s scanRow) Scan(dest ...any) error { return s.err }

func TestObserveLevels(t *testing.T) {
	var buf bytes.Buffer
	r := &SQLRunner{Logger: zerolog.New(&buf), SlowQuery: time.Millisecond}

	row := &timedRow{row: scanRow{err: errors.New("conn reset")}, runner: r, marker: "m-1", start: time.Now()}
	if err := row.Scan(); err == nil {
		t.Fatal("expected scan error")
	}
	row = &timedRow{row: scanRow{err: pgx.ErrNoRows}, runner: r, marker: "m-2", start: time.Now()}
	_ = row.Scan()
	row = &timedRow{row: scanRow{}, runner: r, marker: "m-3", start: time.Now().Add(-time.Second)}
	_ = row.Scan()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d log lines: %s", len(lines), buf.String())
	}
	for i, want := range []string{`"level":"error"`, `"level":"debug"`, `"level":"warn"`} {
		if !strings.Contains(lines[i], want) {
			t.Fatalf("line %d = %s, want %s", i, lines[i], want)
		}
	}
}
