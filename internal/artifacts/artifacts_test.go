package artifacts_test

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"slidereel/internal/artifacts"
)

func TestNewJobIDMatchesWorkDirPatterns(t *testing.T) {
	token := regexp.MustCompile(`^[A-Za-z0-9]{6}$`)
	seen := map[string]struct{}{}
	for i := 0; i < 200; i++ {
		for _, kind := range []string{artifacts.KindVideo, artifacts.KindRegen} {
			id, err := artifacts.NewJobID(kind)
			if err != nil {
				t.Fatalf("NewJobID(%s): %v", kind, err)
			}
			if !artifacts.IsWorkDirName(id) {
				t.Fatalf("id %q should match a work dir pattern", id)
			}
			if !token.MatchString(artifacts.Token(id)) {
				t.Fatalf("unexpected token in %q", id)
			}
			if got := artifacts.KindOf(id); got != kind {
				t.Fatalf("KindOf(%q) = %q, want %q", id, got, kind)
			}
			seen[id] = struct{}{}
		}
	}
	if len(seen) <= 390 {
		t.Fatalf("expected ids to be effectively unique, got %d distinct", len(seen))
	}
	if _, err := artifacts.NewJobID("other"); err == nil {
		t.Fatal("expected unknown kind to be rejected")
	}
}

func TestNewJobIDUsesWholeAlphabet(t *testing.T) {
	var all strings.Builder
	for i := 0; i < 2000; i++ {
		id, err := artifacts.NewJobID(artifacts.KindVideo)
		if err != nil {
			t.Fatalf("NewJobID: %v", err)
		}
		all.WriteString(artifacts.Token(id))
	}
	counts := map[rune]int{}
	for _, r := range all.String() {
		counts[r]++
	}
	// 12000 draws over 62 symbols: every symbol appears, none dominates.
	if len(counts) != 62 {
		t.Fatalf("expected all 62 symbols, saw %d", len(counts))
	}
	for r, n := range counts {
		if n > 400 {
			t.Fatalf("symbol %q drawn %d times", r, n)
		}
	}
}

func TestIsWorkDirName(t *testing.T) {
	cases := map[string]bool{
		"video_abc123":   true,
		"video_a-b_c":    true,
		"regen_XyZ789":   true,
		"regen_a-b":      false,
		"video_":         false,
		"videos":         false,
		"video_abc.mp4":  false,
		"something_else": false,
	}
	for name, want := range cases {
		if got := artifacts.IsWorkDirName(name); got != want {
			t.Fatalf("IsWorkDirName(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestNamesUseTokenWithoutKind(t *testing.T) {
	cases := []struct{ got, want string }{
		{artifacts.FinalName("video_abc123"), "video_abc123.mp4"},
		{artifacts.FinalName("regen_XyZ789"), "video_XyZ789.mp4"},
		{artifacts.ThumbnailName("video_abc123"), "video_abc123.jpg"},
		{artifacts.Token("plain"), "plain"},
		{artifacts.KindOf("plain"), ""},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Fatalf("got %q, want %q", tc.got, tc.want)
		}
	}
}

func TestStoreWorkDirAndPromote(t *testing.T) {
	root := filepath.Join(t.TempDir(), "videos")
	st, err := artifacts.New(root)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	dir, err := st.CreateWorkDir("video_abc123")
	if err != nil {
		t.Fatalf("CreateWorkDir: %v", err)
	}
	if dir != filepath.Join(st.Root(), "video_abc123") {
		t.Fatalf("unexpected work dir %q", dir)
	}
	if _, err := st.CreateWorkDir("video_abc123"); err == nil {
		t.Fatal("second create must fail")
	}
	if _, err := st.CreateWorkDir("../escape"); err == nil {
		t.Fatal("escaping work dir must fail")
	}

	partial := filepath.Join(dir, "final.partial.mp4")
	if err := os.WriteFile(partial, []byte("video"), 0o644); err != nil {
		t.Fatalf("write partial: %v", err)
	}
	if err := st.Promote(partial, st.FinalPath("video_abc123")); err != nil {
		t.Fatalf("Promote: %v", err)
	}
	if !st.Exists("video_abc123.mp4") {
		t.Fatal("expected promoted file")
	}
	if _, err := os.Stat(partial); !os.IsNotExist(err) {
		t.Fatalf("expected partial to be gone, got %v", err)
	}
	if err := st.Promote(partial, st.FinalPath("video_abc123")); err == nil {
		t.Fatal("promote onto existing file must fail")
	}
	if err := st.Promote(partial, filepath.Join(dir, "x.mp4")); err == nil {
		t.Fatal("promote outside root must fail")
	}
}

func TestStoreRemoveAndExists(t *testing.T) {
	st, err := artifacts.New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(st.Root(), "regen_abc123", "media"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(st.Root(), "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if st.Exists("regen_abc123") {
		t.Fatal("directories are not files")
	}
	if st.Exists("../notes.txt") {
		t.Fatal("paths outside the root must not resolve")
	}
	if !st.Exists("notes.txt") {
		t.Fatal("expected notes.txt to exist")
	}

	if err := st.RemoveDir("regen_abc123"); err != nil {
		t.Fatalf("RemoveDir: %v", err)
	}
	if err := st.RemoveFile("notes.txt"); err != nil {
		t.Fatalf("RemoveFile: %v", err)
	}
	if err := st.RemoveFile("notes.txt"); err != nil {
		t.Fatalf("removing a missing file is not an error: %v", err)
	}
	if err := st.RemoveDir(".."); err == nil {
		t.Fatal("expected RemoveDir(..) to fail")
	}

	entries, err := st.Entries()
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty root, got %d entries", len(entries))
	}

	retained := map[string]bool{"a.MP4": true, "a.jpg": true, "a.wav": false, "a": false}
	for name, want := range retained {
		if got := artifacts.IsRetainedFile(name); got != want {
			t.Fatalf("IsRetainedFile(%q) = %v, want %v", name, got, want)
		}
	}
}
