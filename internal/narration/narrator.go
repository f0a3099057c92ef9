package narration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"

	"slidereel/internal/config"
	"slidereel/internal/logging"
	"slidereel/internal/services"
	"slidereel/internal/store"
)

const stageName = "narrate"

// silenceSeconds is the length of the clip produced for an empty narration.
const silenceSeconds = "1"

// Narrator produces one audio path per slide, positionally aligned.
type Narrator interface {
	Narrate(ctx context.Context, slides []store.Slide, workDir string) ([]string, error)
}

// Options configures a TTS narrator.
type Options struct {
	Binary       string
	Args         []string
	Voice        string
	Voices       map[string]string
	AudioExt     string
	Timeout      time.Duration
	Concurrency  int
	FFmpegBinary string
	Executor     services.Executor
	Logger       *slog.Logger
}

// OptionsFromConfig maps configuration onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Binary:       cfg.Narrator.Binary,
		Args:         cfg.Narrator.Args,
		Voice:        cfg.Narrator.Voice,
		Voices:       cfg.Narrator.Voices,
		AudioExt:     cfg.Narrator.AudioExt,
		Timeout:      cfg.NarrationTimeout(),
		Concurrency:  cfg.Narrator.Concurrency,
		FFmpegBinary: cfg.Synchronizer.FFmpegBinary,
	}
}

// TTS is a Narrator backed by an external speech command.
type TTS struct {
	opts   Options
	voices map[string]string
	exec   services.Executor
	logger *slog.Logger
}

// New validates opts and returns a TTS narrator.
func New(opts Options) (*TTS, error) {
	if strings.TrimSpace(opts.Binary) == "" {
		return nil, errors.New("narrator binary required")
	}
	if len(opts.Args) == 0 {
		return nil, errors.New("narrator args required")
	}
	if opts.AudioExt == "" {
		opts.AudioExt = "mp3"
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.FFmpegBinary == "" {
		opts.FFmpegBinary = "ffmpeg"
	}
	tts := &TTS{
		opts:   opts,
		voices: normalizeVoices(opts.Voices),
		exec:   opts.Executor,
		logger: opts.Logger,
	}
	if tts.exec == nil {
		tts.exec = services.CommandExecutor{}
	}
	if tts.logger == nil {
		tts.logger = logging.NewNop()
	}
	return tts, nil
}

// Narrate writes slide_<k>.txt and slide_<k>.<ext> for every slide. Any
// failure aborts the remaining work and returns a NarrationError.
func (t *TTS) Narrate(ctx context.Context, slides []store.Slide, workDir string) ([]string, error) {
	if len(slides) == 0 {
		return nil, services.Wrap(services.ErrNarration, stageName, "narrate", "no slides to narrate", nil)
	}
	paths := make([]string, len(slides))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(t.opts.Concurrency)
	for k, slide := range slides {
		group.Go(func() error {
			path, err := t.narrateOne(groupCtx, k, slide.Narration, workDir)
			if err != nil {
				return err
			}
			paths[k] = path
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return paths, nil
}

func (t *TTS) narrateOne(ctx context.Context, k int, text, workDir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	stepCtx := ctx
	if t.opts.Timeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, t.opts.Timeout)
		defer cancel()
	}

	base := fmt.Sprintf("slide_%d", k)
	output := filepath.Join(workDir, base+"."+t.opts.AudioExt)
	operation := fmt.Sprintf("slide %d", k)
	text = strings.TrimSpace(text)

	if text == "" {
		args := []string{
			"-hide_banner", "-loglevel", "error", "-y",
			"-f", "lavfi", "-i", "anullsrc=r=24000:cl=mono",
			"-t", silenceSeconds,
			output,
		}
		if err := t.exec.Run(stepCtx, t.opts.FFmpegBinary, args, nil); err != nil {
			return "", services.Wrap(services.ErrNarration, stageName, operation, "generate silence", err)
		}
	} else {
		textFile := filepath.Join(workDir, base+".txt")
		if err := os.WriteFile(textFile, []byte(text), 0o644); err != nil {
			return "", services.Wrap(services.ErrNarration, stageName, operation, "write narration text", err)
		}
		voice := t.VoiceFor(text)
		args := ExpandArgs(t.opts.Args, textFile, output, voice)
		if err := t.exec.Run(stepCtx, t.opts.Binary, args, nil); err != nil {
			if errors.Is(stepCtx.Err(), context.DeadlineExceeded) {
				return "", services.Wrap(services.ErrNarration, stageName, operation, fmt.Sprintf("timed out after %s", t.opts.Timeout), err)
			}
			return "", services.Wrap(services.ErrNarration, stageName, operation, "text-to-speech failed", err)
		}
		t.logger.Debug("narration synthesized",
			logging.Int("position", k),
			logging.String("voice", voice),
		)
	}

	info, err := os.Stat(output)
	if err != nil || info.Size() == 0 {
		return "", services.Wrap(services.ErrNarration, stageName, operation, "no audio produced", err)
	}
	return output, nil
}

// VoiceFor picks the configured voice for the detected language of text,
// falling back to the default voice.
func (t *TTS) VoiceFor(text string) string {
	if len(t.voices) == 0 {
		return t.opts.Voice
	}
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return t.opts.Voice
	}
	if voice, ok := t.voices[info.Lang.Iso6391()]; ok {
		return voice
	}
	return t.opts.Voice
}

// ExpandArgs substitutes the {text_file}, {output} and {voice} placeholders.
func ExpandArgs(template []string, textFile, output, voice string) []string {
	replacer := strings.NewReplacer(
		config.PlaceholderTextFile, textFile,
		config.PlaceholderOutput, output,
		config.PlaceholderVoice, voice,
	)
	args := make([]string, len(template))
	for i, arg := range template {
		args[i] = replacer.Replace(arg)
	}
	return args
}

// normalizeVoices keys the voice map by ISO 639-1 base language so "en-US"
// and "EN" both match detected English.
func normalizeVoices(voices map[string]string) map[string]string {
	out := make(map[string]string, len(voices))
	for key, voice := range voices {
		tag, err := language.Parse(key)
		if err != nil {
			out[strings.ToLower(key)] = voice
			continue
		}
		base, _ := tag.Base()
		out[base.String()] = voice
	}
	return out
}
