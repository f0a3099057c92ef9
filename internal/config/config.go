package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	VideosDir string `toml:"videos_dir"`
	LogDir    string `toml:"log_dir"`
	APIBind   string `toml:"api_bind"`
	APIToken  string `toml:"api_token"`
}

// Database selects the backing store for scripts, jobs and published videos.
type Database struct {
	Driver     string `toml:"driver"`
	Path       string `toml:"path"`
	URL        string `toml:"url"`
	ServiceKey string `toml:"service_key"`
}

// Renderer contains settings for the external animation tool.
type Renderer struct {
	Binary       string `toml:"binary"`
	Quality      string `toml:"quality"`
	SceneTimeout int    `toml:"scene_timeout"`
	Concurrency  int    `toml:"concurrency"`
	SourceName   string `toml:"source_name"`
}

// Narrator contains settings for the text-to-speech command.
type Narrator struct {
	Binary      string            `toml:"binary"`
	Args        []string          `toml:"args"`
	Voice       string            `toml:"voice"`
	Voices      map[string]string `toml:"voices"`
	AudioExt    string            `toml:"audio_ext"`
	Timeout     int               `toml:"timeout"`
	Concurrency int               `toml:"concurrency"`
}

// Synchronizer contains settings for the ffmpeg-based stitcher.
type Synchronizer struct {
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	FFprobeBinary string `toml:"ffprobe_binary"`
	Timeout       int    `toml:"timeout"`
	Thumbnail     bool   `toml:"thumbnail"`
}

// Jobs contains worker timing and working directory policy.
type Jobs struct {
	PollInterval int  `toml:"poll_interval"`
	Workers      int  `toml:"workers"`
	StaleAfter   int  `toml:"stale_after"`
	KeepWorkDir  bool `toml:"keep_work_dir"`
}

// Janitor controls the periodic artifact and record sweeper.
type Janitor struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"`
}

// Publish controls the published videos row written on completion.
type Publish struct {
	Enabled bool   `toml:"enabled"`
	BaseURL string `toml:"base_url"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for slidereel.
//
// Configuration sections by subsystem:
//   - Paths: artifact store root, logs, API bind address
//   - Database: sqlite or hosted postgres credentials
//   - Renderer: animation tool invocation
//   - Narrator: text-to-speech invocation and voices
//   - Synchronizer: ffmpeg/ffprobe stitching
//   - Jobs: worker polling and stale job ceiling
//   - Janitor: sweep schedule
//   - Publish: published video records
//   - Logging: log format and level
type Config struct {
	Paths        Paths        `toml:"paths"`
	Database     Database     `toml:"database"`
	Renderer     Renderer     `toml:"renderer"`
	Narrator     Narrator     `toml:"narrator"`
	Synchronizer Synchronizer `toml:"synchronizer"`
	Jobs         Jobs         `toml:"jobs"`
	Janitor      Janitor      `toml:"janitor"`
	Publish      Publish      `toml:"publish"`
	Logging      Logging      `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	loadDotEnv(resolvedPath)

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// loadDotEnv pulls secrets from .env files next to the config file and in the
// working directory. Variables already present in the environment win.
func loadDotEnv(configPath string) {
	candidates := []string{".env"}
	if configPath != "" {
		candidates = append(candidates, filepath.Join(filepath.Dir(configPath), ".env"))
	}
	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err != nil || info.IsDir() {
			continue
		}
		_ = godotenv.Load(candidate)
	}
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("slidereel.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon and CLI operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.VideosDir, c.Paths.LogDir}
	if c.Database.Driver == DriverSQLite && c.Database.Path != "" {
		dirs = append(dirs, filepath.Dir(c.Database.Path))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SceneTimeout returns the per-scene render bound.
func (c *Config) SceneTimeout() time.Duration {
	return time.Duration(c.Renderer.SceneTimeout) * time.Second
}

// NarrationTimeout returns the per-slide TTS bound.
func (c *Config) NarrationTimeout() time.Duration {
	return time.Duration(c.Narrator.Timeout) * time.Second
}

// SynchronizerTimeout returns the bound for a single ffmpeg invocation.
func (c *Config) SynchronizerTimeout() time.Duration {
	return time.Duration(c.Synchronizer.Timeout) * time.Second
}

// StaleAfter is the ceiling a job may spend in processing before the janitor fails it.
func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.Jobs.StaleAfter) * time.Minute
}

// PollInterval is the worker queue poll period.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Jobs.PollInterval) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
