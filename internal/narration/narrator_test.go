package narration_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"slidereel/internal/config"
	"slidereel/internal/narration"
	"slidereel/internal/services"
	"slidereel/internal/store"
)

// ttsExecutor writes the file named after --write-media (or the last ffmpeg
// argument) and records the text it was asked to speak.
type ttsExecutor struct {
	mu     sync.Mutex
	failOn string
	spoken map[string]string
	voices map[string]string
	silent []string
}

func (e *ttsExecutor) Run(_ context.Context, binary string, args []string, _ func(string)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if binary == "ffmpeg" {
		out := args[len(args)-1]
		e.silent = append(e.silent, filepath.Base(out))
		return os.WriteFile(out, []byte("silence"), 0o644)
	}
	textFile := args[slices.Index(args, "--file")+1]
	out := args[slices.Index(args, "--write-media")+1]
	voice := args[slices.Index(args, "--voice")+1]
	text, err := os.ReadFile(textFile)
	if err != nil {
		return err
	}
	if e.failOn != "" && strings.Contains(string(text), e.failOn) {
		return errors.New("service unavailable")
	}
	if e.spoken == nil {
		e.spoken = map[string]string{}
		e.voices = map[string]string{}
	}
	e.spoken[filepath.Base(out)] = string(text)
	e.voices[filepath.Base(out)] = voice
	return os.WriteFile(out, []byte("audio:"+string(text)), 0o644)
}

func newNarrator(t *testing.T, exec services.Executor, voices map[string]string) *narration.TTS {
	t.Helper()
	cfg := config.Default()
	opts := narration.OptionsFromConfig(&cfg)
	opts.Executor = exec
	opts.Voices = voices
	n, err := narration.New(opts)
	if err != nil {
		t.Fatalf("narration.New: %v", err)
	}
	return n
}

func TestNarrateAlignsAudioWithSlides(t *testing.T) {
	work := t.TempDir()
	exec := &ttsExecutor{}
	n := newNarrator(t, exec, nil)

	slides := []store.Slide{{Narration: "A"}, {Narration: "C"}, {Narration: "  "}}
	paths, err := n.Narrate(context.Background(), slides, work)
	if err != nil {
		t.Fatalf("Narrate: %v", err)
	}
	want := []string{"slide_0.mp3", "slide_1.mp3", "slide_2.mp3"}
	for i, path := range paths {
		if filepath.Base(path) != want[i] {
			t.Fatalf("path %d = %s, want %s", i, path, want[i])
		}
	}
	if exec.spoken["slide_0.mp3"] != "A" || exec.spoken["slide_1.mp3"] != "C" {
		t.Fatalf("narration misaligned: %v", exec.spoken)
	}
	if !slices.Equal(exec.silent, []string{"slide_2.mp3"}) {
		t.Fatalf("expected silence for empty narration, got %v", exec.silent)
	}
	if exec.voices["slide_0.mp3"] != "en-US-AriaNeural" {
		t.Fatalf("expected default voice, got %q", exec.voices["slide_0.mp3"])
	}
}

func TestNarrateFailureIsNarrationError(t *testing.T) {
	n := newNarrator(t, &ttsExecutor{failOn: "B"}, nil)
	_, err := n.Narrate(context.Background(), []store.Slide{{Narration: "A"}, {Narration: "B"}}, t.TempDir())
	if !errors.Is(err, services.ErrNarration) {
		t.Fatalf("expected NarrationError, got %v", err)
	}
	if services.Kind(err) != "NarrationError" {
		t.Fatalf("unexpected kind %q", services.Kind(err))
	}

	if _, err := n.Narrate(context.Background(), nil, t.TempDir()); !errors.Is(err, services.ErrNarration) {
		t.Fatalf("expected NarrationError for empty input, got %v", err)
	}
}

func TestNarrateMissingOutputIsNarrationError(t *testing.T) {
	noop := execFunc(func(context.Context, string, []string, func(string)) error { return nil })
	n := newNarrator(t, noop, nil)
	_, err := n.Narrate(context.Background(), []store.Slide{{Narration: "A"}}, t.TempDir())
	if !errors.Is(err, services.ErrNarration) {
		t.Fatalf("expected NarrationError, got %v", err)
	}
}

func TestVoiceForDetectedLanguage(t *testing.T) {
	n := newNarrator(t, &ttsExecutor{}, map[string]string{"es-ES": "es-ES-ElviraNeural"})
	spanish := "¿Dónde está la biblioteca? Necesito encontrar un libro sobre la historia de España y sus ciudades más importantes."
	if got := n.VoiceFor(spanish); got != "es-ES-ElviraNeural" {
		t.Fatalf("VoiceFor(spanish) = %q", got)
	}
	english := "The quick brown fox jumps over the lazy dog while the children play in the park this afternoon."
	if got := n.VoiceFor(english); got != "en-US-AriaNeural" {
		t.Fatalf("VoiceFor(english) = %q", got)
	}
}

func TestExpandArgs(t *testing.T) {
	got := narration.ExpandArgs([]string{"--voice", "{voice}", "--in={text_file}", "{output}"}, "/w/s.txt", "/w/s.mp3", "v1")
	want := []string{"--voice", "v1", "--in=/w/s.txt", "/w/s.mp3"}
	if !slices.Equal(got, want) {
		t.Fatalf("ExpandArgs = %v, want %v", got, want)
	}
}

type execFunc func(ctx context.Context, binary string, args []string, onOutput func(string)) error

func (f execFunc) Run(ctx context.Context, binary string, args []string, onOutput func(string)) error {
	return f(ctx, binary, args, onOutput)
}
