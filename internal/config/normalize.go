package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeDatabase(); err != nil {
		return err
	}
	c.normalizeRenderer()
	c.normalizeNarrator()
	c.normalizeSynchronizer()
	c.normalizeJobs()
	c.normalizeJanitor()
	c.normalizePublish()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.VideosDir) == "" {
		c.Paths.VideosDir = defaultVideosDir
	}
	if c.Paths.VideosDir, err = expandPath(c.Paths.VideosDir); err != nil {
		return fmt.Errorf("paths.videos_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("SLIDEREEL_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeDatabase() error {
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	switch c.Database.Driver {
	case "", "sqlite3":
		c.Database.Driver = DriverSQLite
	case "postgresql", "supabase":
		c.Database.Driver = DriverPostgres
	}

	c.Database.URL = strings.TrimSpace(c.Database.URL)
	if c.Database.URL == "" {
		if value, ok := os.LookupEnv("SLIDEREEL_DATABASE_URL"); ok {
			c.Database.URL = strings.TrimSpace(value)
		}
	}
	c.Database.ServiceKey = strings.TrimSpace(c.Database.ServiceKey)
	if c.Database.ServiceKey == "" {
		if value, ok := os.LookupEnv("SLIDEREEL_SERVICE_KEY"); ok {
			c.Database.ServiceKey = strings.TrimSpace(value)
		}
	}

	if c.Database.Driver == DriverSQLite {
		if strings.TrimSpace(c.Database.Path) == "" {
			c.Database.Path = filepath.Join(c.Paths.LogDir, defaultDBName)
		}
		var err error
		if c.Database.Path, err = expandPath(c.Database.Path); err != nil {
			return fmt.Errorf("database.path: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeRenderer() {
	c.Renderer.Binary = strings.TrimSpace(c.Renderer.Binary)
	if c.Renderer.Binary == "" {
		c.Renderer.Binary = defaultRendererBinary
	}
	c.Renderer.Quality = strings.ToLower(strings.TrimSpace(c.Renderer.Quality))
	if c.Renderer.Quality == "" {
		c.Renderer.Quality = defaultRendererQuality
	}
	if c.Renderer.SceneTimeout <= 0 {
		c.Renderer.SceneTimeout = defaultRendererSceneTimeout
	}
	if c.Renderer.Concurrency <= 0 {
		c.Renderer.Concurrency = defaultRendererConcurrency
	}
	c.Renderer.SourceName = strings.TrimSpace(c.Renderer.SourceName)
	if c.Renderer.SourceName == "" {
		c.Renderer.SourceName = defaultRendererSourceName
	}
}

func (c *Config) normalizeNarrator() {
	c.Narrator.Binary = strings.TrimSpace(c.Narrator.Binary)
	if c.Narrator.Binary == "" {
		c.Narrator.Binary = defaultNarratorBinary
	}
	if len(c.Narrator.Args) == 0 {
		c.Narrator.Args = defaultNarratorArgs()
	}
	c.Narrator.Voice = strings.TrimSpace(c.Narrator.Voice)
	if c.Narrator.Voice == "" {
		c.Narrator.Voice = defaultNarratorVoice
	}
	if len(c.Narrator.Voices) > 0 {
		voices := make(map[string]string, len(c.Narrator.Voices))
		for lang, voice := range c.Narrator.Voices {
			lang = strings.ToLower(strings.TrimSpace(lang))
			voice = strings.TrimSpace(voice)
			if lang == "" || voice == "" {
				continue
			}
			voices[lang] = voice
		}
		c.Narrator.Voices = voices
	}
	c.Narrator.AudioExt = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(c.Narrator.AudioExt)), ".")
	if c.Narrator.AudioExt == "" {
		c.Narrator.AudioExt = defaultNarratorAudioExt
	}
	if c.Narrator.Timeout <= 0 {
		c.Narrator.Timeout = defaultNarratorTimeout
	}
	if c.Narrator.Concurrency <= 0 {
		c.Narrator.Concurrency = defaultNarratorConcurrency
	}
}

func (c *Config) normalizeSynchronizer() {
	c.Synchronizer.FFmpegBinary = strings.TrimSpace(c.Synchronizer.FFmpegBinary)
	if c.Synchronizer.FFmpegBinary == "" {
		c.Synchronizer.FFmpegBinary = defaultFFmpegBinary
	}
	c.Synchronizer.FFprobeBinary = strings.TrimSpace(c.Synchronizer.FFprobeBinary)
	if c.Synchronizer.FFprobeBinary == "" {
		c.Synchronizer.FFprobeBinary = defaultFFprobeBinary
	}
	if c.Synchronizer.Timeout <= 0 {
		c.Synchronizer.Timeout = defaultSynchronizerTimeout
	}
}

func (c *Config) normalizeJobs() {
	if c.Jobs.PollInterval <= 0 {
		c.Jobs.PollInterval = defaultPollInterval
	}
	if c.Jobs.Workers <= 0 {
		c.Jobs.Workers = defaultWorkers
	}
	if c.Jobs.StaleAfter <= 0 {
		c.Jobs.StaleAfter = defaultStaleAfter
	}
}

func (c *Config) normalizeJanitor() {
	c.Janitor.Schedule = strings.TrimSpace(c.Janitor.Schedule)
	if c.Janitor.Schedule == "" {
		c.Janitor.Schedule = defaultJanitorSchedule
	}
}

func (c *Config) normalizePublish() {
	c.Publish.BaseURL = strings.TrimRight(strings.TrimSpace(c.Publish.BaseURL), "/")
	if c.Publish.BaseURL == "" {
		c.Publish.BaseURL = defaultPublishBaseURL
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
