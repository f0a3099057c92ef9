package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateRenderer(); err != nil {
		return err
	}
	if err := c.validateNarrator(); err != nil {
		return err
	}
	if err := c.validateTimeouts(); err != nil {
		return err
	}
	if err := c.validateJanitor(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.VideosDir == "" {
		return errors.New("paths.videos_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	// The janitor deletes every non-media file in videos_dir.
	if withinDir(c.Paths.VideosDir, c.Paths.LogDir) {
		return fmt.Errorf("paths.log_dir %q must not be inside paths.videos_dir %q", c.Paths.LogDir, c.Paths.VideosDir)
	}
	if c.Database.Driver == DriverSQLite && c.Database.Path != "" && withinDir(c.Paths.VideosDir, filepath.Dir(c.Database.Path)) {
		return fmt.Errorf("database.path %q must not be inside paths.videos_dir %q", c.Database.Path, c.Paths.VideosDir)
	}
	return nil
}

// withinDir reports whether path is dir or lies beneath it.
func withinDir(dir, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func (c *Config) validateDatabase() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return errors.New("database.path must be set when database.driver is sqlite")
		}
	case DriverPostgres:
		if c.Database.URL == "" {
			defaultPath, err := DefaultConfigPath()
			if err != nil {
				defaultPath = "~/.config/slidereel/config.toml"
			}
			return fmt.Errorf("database.url is required for postgres. Set SLIDEREEL_DATABASE_URL env var or edit %s", defaultPath)
		}
		if c.Database.ServiceKey == "" && !postgresURLHasPassword(c.Database.URL) {
			return errors.New("database.service_key is required for postgres when database.url carries no password. Set SLIDEREEL_SERVICE_KEY")
		}
	default:
		return fmt.Errorf("database.driver %q is not supported (use sqlite or postgres)", c.Database.Driver)
	}
	return nil
}

func postgresURLHasPassword(raw string) bool {
	if !strings.HasPrefix(raw, "postgres://") && !strings.HasPrefix(raw, "postgresql://") {
		for _, field := range strings.Fields(raw) {
			if value, ok := strings.CutPrefix(field, "password="); ok && value != "" {
				return true
			}
		}
		return false
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.User == nil {
		return false
	}
	password, ok := parsed.User.Password()
	return ok && password != ""
}

func (c *Config) validateRenderer() error {
	switch c.Renderer.Quality {
	case "l", "m", "h", "p", "k":
	default:
		return fmt.Errorf("renderer.quality %q must be one of l, m, h, p, k", c.Renderer.Quality)
	}
	if strings.ContainsAny(c.Renderer.SourceName, `/\`) {
		return errors.New("renderer.source_name must be a bare file name")
	}
	return nil
}

func (c *Config) validateNarrator() error {
	joined := strings.Join(c.Narrator.Args, " ")
	if !strings.Contains(joined, PlaceholderTextFile) {
		return fmt.Errorf("narrator.args must reference %s", PlaceholderTextFile)
	}
	if !strings.Contains(joined, PlaceholderOutput) {
		return fmt.Errorf("narrator.args must reference %s", PlaceholderOutput)
	}
	return nil
}

func (c *Config) validateTimeouts() error {
	return ensurePositiveMap(map[string]int{
		"renderer.scene_timeout": c.Renderer.SceneTimeout,
		"renderer.concurrency":   c.Renderer.Concurrency,
		"narrator.timeout":       c.Narrator.Timeout,
		"narrator.concurrency":   c.Narrator.Concurrency,
		"synchronizer.timeout":   c.Synchronizer.Timeout,
		"jobs.poll_interval":     c.Jobs.PollInterval,
		"jobs.workers":           c.Jobs.Workers,
		"jobs.stale_after":       c.Jobs.StaleAfter,
	})
}

func (c *Config) validateJanitor() error {
	if !c.Janitor.Enabled {
		return nil
	}
	if _, err := cron.ParseStandard(c.Janitor.Schedule); err != nil {
		return fmt.Errorf("janitor.schedule %q is invalid: %w", c.Janitor.Schedule, err)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
