package config

const (
	defaultConfigPath = "~/.config/slidereel/config.toml"

	defaultVideosDir = "~/.local/share/slidereel/videos"
	defaultLogDir    = "~/.local/share/slidereel/logs"
	defaultAPIBind   = "127.0.0.1:7488"
	defaultDBName    = "slidereel.db"

	defaultRendererBinary       = "manim"
	defaultRendererQuality      = "l"
	defaultRendererSceneTimeout = 600
	defaultRendererConcurrency  = 2
	defaultRendererSourceName   = "slides.py"

	defaultNarratorBinary      = "edge-tts"
	defaultNarratorVoice       = "en-US-AriaNeural"
	defaultNarratorAudioExt    = "mp3"
	defaultNarratorTimeout     = 120
	defaultNarratorConcurrency = 4

	defaultFFmpegBinary        = "ffmpeg"
	defaultFFprobeBinary       = "ffprobe"
	defaultSynchronizerTimeout = 900

	defaultPollInterval = 5
	defaultWorkers      = 1
	defaultStaleAfter   = 60

	defaultJanitorSchedule = "@every 15m"
	defaultPublishBaseURL  = "/videos"

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
	defaultLogRetain = 14
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Placeholders understood by the narrator argument template.
const (
	PlaceholderTextFile = "{text_file}"
	PlaceholderOutput   = "{output}"
	PlaceholderVoice    = "{voice}"
)

func defaultNarratorArgs() []string {
	return []string{
		"--voice", PlaceholderVoice,
		"--file", PlaceholderTextFile,
		"--write-media", PlaceholderOutput,
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			VideosDir: defaultVideosDir,
			LogDir:    defaultLogDir,
			APIBind:   defaultAPIBind,
		},
		Database: Database{
			Driver: DriverSQLite,
		},
		Renderer: Renderer{
			Binary:       defaultRendererBinary,
			Quality:      defaultRendererQuality,
			SceneTimeout: defaultRendererSceneTimeout,
			Concurrency:  defaultRendererConcurrency,
			SourceName:   defaultRendererSourceName,
		},
		Narrator: Narrator{
			Binary:      defaultNarratorBinary,
			Args:        defaultNarratorArgs(),
			Voice:       defaultNarratorVoice,
			AudioExt:    defaultNarratorAudioExt,
			Timeout:     defaultNarratorTimeout,
			Concurrency: defaultNarratorConcurrency,
		},
		Synchronizer: Synchronizer{
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
			Timeout:       defaultSynchronizerTimeout,
			Thumbnail:     true,
		},
		Jobs: Jobs{
			PollInterval: defaultPollInterval,
			Workers:      defaultWorkers,
			StaleAfter:   defaultStaleAfter,
		},
		Janitor: Janitor{
			Enabled:  true,
			Schedule: defaultJanitorSchedule,
		},
		Publish: Publish{
			Enabled: true,
			BaseURL: defaultPublishBaseURL,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetain,
		},
	}
}
