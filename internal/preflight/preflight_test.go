package preflight

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"slidereel/internal/deps"
	"slidereel/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckDirectoryAccess_Empty(t *testing.T) {
	if result := CheckDirectoryAccess("test", ""); result.Passed {
		t.Fatal("expected failure for empty path")
	}
}

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestCheckDatabase(t *testing.T) {
	ok := CheckDatabase(context.Background(), "sqlite", pingFunc(func(context.Context) error { return nil }))
	if !ok.Passed || ok.Name != "Database (sqlite)" {
		t.Fatalf("unexpected result: %#v", ok)
	}

	bad := CheckDatabase(context.Background(), "postgres", pingFunc(func(context.Context) error {
		return errors.New("connection refused")
	}))
	if bad.Passed || bad.Detail != "connection refused" {
		t.Fatalf("unexpected result: %#v", bad)
	}
}

func TestFromStatusOptionalNeverFails(t *testing.T) {
	result := FromStatus(deps.Status{Name: "extra", Optional: true, Detail: "missing"})
	if !result.Passed {
		t.Fatal("optional binary should not fail preflight")
	}
	result = FromStatus(deps.Status{Name: "ffmpeg", Command: "ffmpeg", Available: true})
	if !result.Passed || result.Detail != "ffmpeg" {
		t.Fatalf("unexpected result: %#v", result)
	}
}

func TestRunAllWithStubbedBinaries(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	st := testsupport.MustOpenStore(t, cfg)

	results := RunAll(context.Background(), cfg, st)
	if len(results) != 7 {
		t.Fatalf("expected 7 results, got %d: %#v", len(results), results)
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("expected all checks to pass, got %#v", failed)
	}
}

func TestRunAllReportsMissingBinary(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	cfg.Renderer.Binary = "definitely-missing-renderer"

	failed := Failed(RunAll(context.Background(), cfg, nil))
	if len(failed) != 1 || failed[0].Name != "Renderer" {
		t.Fatalf("unexpected failures: %#v", failed)
	}
}
