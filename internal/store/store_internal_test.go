package store

import (
	"strings"
	"testing"
	"time"
)

func TestRebindPostgresPlaceholders(t *testing.T) {
	pg := &Store{dialect: dialectPostgres}
	got := pg.rebind("UPDATE t SET a = ?, b = ? WHERE id IN (?,?)")
	want := "UPDATE t SET a = $1, b = $2 WHERE id IN ($3,$4)"
	if got != want {
		t.Fatalf("rebind = %q, want %q", got, want)
	}
	lite := &Store{dialect: dialectSQLite}
	if q := "SELECT ?"; lite.rebind(q) != q {
		t.Fatal("sqlite queries must be untouched")
	}
}

func TestPostgresDSNAppliesServiceKey(t *testing.T) {
	dsn, err := postgresDSN("postgres://app@db.example.com:5432/postgres?sslmode=require", "s3cret")
	if err != nil {
		t.Fatalf("postgresDSN: %v", err)
	}
	if !strings.Contains(dsn, "app:s3cret@db.example.com") {
		t.Fatalf("expected service key as password, got %q", dsn)
	}

	dsn, err = postgresDSN("postgres://db.example.com/postgres", "key")
	if err != nil {
		t.Fatalf("postgresDSN: %v", err)
	}
	if !strings.Contains(dsn, "postgres:key@") {
		t.Fatalf("expected default user with key, got %q", dsn)
	}

	dsn, err = postgresDSN("postgres://app:explicit@db/postgres", "key")
	if err != nil {
		t.Fatalf("postgresDSN: %v", err)
	}
	if !strings.Contains(dsn, "app:explicit@") {
		t.Fatalf("expected explicit password to win, got %q", dsn)
	}

	dsn, err = postgresDSN("host=db dbname=postgres", "it's")
	if err != nil {
		t.Fatalf("postgresDSN: %v", err)
	}
	if dsn != `host=db dbname=postgres password='it\'s'` {
		t.Fatalf("unexpected key/value dsn %q", dsn)
	}

	if _, err := postgresDSN("  ", "key"); err == nil {
		t.Fatal("expected error for empty url")
	}
}

func TestTimeLayoutSortsLexically(t *testing.T) {
	if makePlaceholders(3) != "?,?,?" || makePlaceholders(0) != "" {
		t.Fatal("unexpected placeholders")
	}
	a := formatTime(mustParse(t, "2026-01-01T00:00:00Z"))
	b := formatTime(mustParse(t, "2026-01-01T00:00:00.5Z"))
	if !(a < b) {
		t.Fatalf("expected %q < %q", a, b)
	}
}

func mustParse(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := parseTimeString(value)
	if err != nil {
		t.Fatalf("parse %q: %v", value, err)
	}
	return parsed
}
