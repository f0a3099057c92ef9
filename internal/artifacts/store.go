package artifacts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"slidereel/internal/fileutil"
)

// RetainedExtensions are the file types the janitor keeps at the store root.
var RetainedExtensions = map[string]struct{}{
	".mp4": {},
	".jpg": {},
}

// Store is the artifact root.
type Store struct {
	root string
}

// New returns a Store rooted at root, creating the directory if needed.
func New(root string) (*Store, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("artifact root is empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve artifact root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact root: %w", err)
	}
	return &Store{root: abs}, nil
}

// Root returns the absolute artifact root.
func (s *Store) Root() string { return s.root }

// WorkDir returns the working directory path for jobID.
func (s *Store) WorkDir(jobID string) string {
	return filepath.Join(s.root, jobID)
}

// FinalPath returns the promoted video path for jobID.
func (s *Store) FinalPath(jobID string) string {
	return filepath.Join(s.root, FinalName(jobID))
}

// ThumbnailPath returns the thumbnail path for jobID.
func (s *Store) ThumbnailPath(jobID string) string {
	return filepath.Join(s.root, ThumbnailName(jobID))
}

// CreateWorkDir creates the working directory for a new job. It fails if the
// directory already exists.
func (s *Store) CreateWorkDir(jobID string) (string, error) {
	if !IsWorkDirName(jobID) {
		return "", fmt.Errorf("invalid job id %q", jobID)
	}
	dir := s.WorkDir(jobID)
	if err := os.Mkdir(dir, 0o755); err != nil {
		return "", fmt.Errorf("create work dir: %w", err)
	}
	return dir, nil
}

// Promote moves a finished file from a working directory to dst under the
// root. dst must not exist yet.
func (s *Store) Promote(src, dst string) error {
	if filepath.Dir(dst) != s.root {
		return fmt.Errorf("promote target %q is outside the artifact root", dst)
	}
	if _, err := os.Stat(dst); err == nil {
		return fmt.Errorf("promote target %q already exists", dst)
	}
	if err := fileutil.MoveFile(src, dst); err != nil {
		return fmt.Errorf("promote %s: %w", filepath.Base(dst), err)
	}
	return nil
}

// Exists reports whether a file with the given basename exists at the root.
func (s *Store) Exists(basename string) bool {
	if basename == "" || basename != filepath.Base(basename) || basename == "." || basename == ".." {
		return false
	}
	info, err := os.Stat(filepath.Join(s.root, basename))
	return err == nil && !info.IsDir()
}

// Entries lists the direct children of the root.
func (s *Store) Entries() ([]os.DirEntry, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("list artifact root: %w", err)
	}
	return entries, nil
}

// RemoveDir recursively removes a direct child directory of the root.
func (s *Store) RemoveDir(name string) error {
	path, err := s.child(name)
	if err != nil {
		return err
	}
	return os.RemoveAll(path)
}

// RemoveFile removes a direct child file of the root.
func (s *Store) RemoveFile(name string) error {
	path, err := s.child(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// IsRetainedFile reports whether the janitor keeps a root file with this name.
func IsRetainedFile(name string) bool {
	_, ok := RetainedExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

func (s *Store) child(name string) (string, error) {
	if name == "" || name == "." || name == ".." || name != filepath.Base(name) {
		return "", fmt.Errorf("invalid artifact name %q", name)
	}
	return filepath.Join(s.root, name), nil
}
