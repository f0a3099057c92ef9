package render

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"slidereel/internal/fileutil"
	"slidereel/internal/logging"
	"slidereel/internal/services"
)

// Renderer renders the scenes of a generated source file.
type Renderer interface {
	Render(ctx context.Context, source string, scenes []string, workDir string) ([]Clip, error)
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec services.Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client wraps the manim CLI.
type Client struct {
	binary       string
	quality      string
	sceneTimeout time.Duration
	concurrency  int
	exec         services.Executor
	logger       *slog.Logger
}

// New constructs a renderer client.
func New(binary, quality string, sceneTimeout time.Duration, concurrency int, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("renderer binary required")
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	if quality == "" {
		quality = "l"
	}
	client := &Client{
		binary:       binary,
		quality:      quality,
		sceneTimeout: sceneTimeout,
		concurrency:  concurrency,
		exec:         services.CommandExecutor{},
		logger:       logging.NewNop(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Render invokes the tool once per scene with bounded parallelism. The result
// holds one Clip per requested scene in request order. The returned error is
// reserved for cancellation; per-scene failures are reported on the Clip.
func (c *Client) Render(ctx context.Context, source string, scenes []string, workDir string) ([]Clip, error) {
	clips := make([]Clip, len(scenes))
	var group errgroup.Group
	group.SetLimit(c.concurrency)
	for i, scene := range scenes {
		group.Go(func() error {
			clip := Clip{Index: i, Scene: scene}
			if err := ctx.Err(); err != nil {
				clip.Err = err
				clips[i] = clip
				return nil
			}
			path, err := c.renderScene(ctx, source, scene, workDir)
			if err != nil {
				clip.Err = err
			} else {
				clip.Path = path
				clip.OK = true
			}
			clips[i] = clip
			return nil
		})
	}
	_ = group.Wait()

	if err := ctx.Err(); err != nil {
		return clips, err
	}
	for _, clip := range clips {
		logger := c.logger.With(logging.Int(logging.FieldSlideIndex, clip.Index), logging.String("scene", clip.Scene))
		if clip.OK {
			logger.Debug("scene rendered", logging.String("clip", filepath.Base(clip.Path)))
			continue
		}
		logging.WarnWithContext(logger, "scene render failed", "scene_render_failed",
			logging.String(logging.FieldErrorHint, "inspect the scene body in the generated source"),
			logging.Error(clip.Err),
		)
	}
	return clips, nil
}

func (c *Client) renderScene(ctx context.Context, source, scene, workDir string) (string, error) {
	sceneCtx := ctx
	if c.sceneTimeout > 0 {
		var cancel context.CancelFunc
		sceneCtx, cancel = context.WithTimeout(ctx, c.sceneTimeout)
		defer cancel()
	}

	mediaDir := filepath.Join(workDir, "media", scene)
	args := []string{
		"render",
		"-q" + c.quality,
		"--media_dir", mediaDir,
		"-o", scene + ".mp4",
		source,
		scene,
	}
	if err := c.exec.Run(sceneCtx, c.binary, args, func(line string) {
		c.logger.Debug("renderer output", logging.String("scene", scene), logging.String("line", line))
	}); err != nil {
		if errors.Is(sceneCtx.Err(), context.DeadlineExceeded) {
			return "", services.Wrap(services.ErrTimeout, "render", scene, fmt.Sprintf("exceeded %s", c.sceneTimeout), err)
		}
		return "", services.Wrap(services.ErrExternalTool, "render", scene, "", err)
	}

	found, err := findSceneOutput(mediaDir, scene)
	if err != nil {
		return "", err
	}
	dest := filepath.Join(workDir, scene+".mp4")
	if found != dest {
		if err := fileutil.CopyFile(found, dest); err != nil {
			return "", fmt.Errorf("collect %s: %w", scene, err)
		}
	}
	return dest, nil
}

// findSceneOutput walks mediaDir for the finished clip of scene. An exact
// "<scene>.mp4" wins, otherwise the largest mp4 naming the scene.
func findSceneOutput(mediaDir, scene string) (string, error) {
	var (
		best     string
		bestSize int64 = -1
	)
	err := filepath.WalkDir(mediaDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			if d.Name() == "partial_movie_files" {
				return filepath.SkipDir
			}
			return nil
		}
		name := d.Name()
		if !strings.EqualFold(filepath.Ext(name), ".mp4") || !strings.Contains(name, scene) {
			return nil
		}
		if index, ok := ParseSceneIndex(name); !ok || fmt.Sprintf("Slide%dScene", index) != scene {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if name == scene+".mp4" {
			best, bestSize = path, 1<<62
			return nil
		}
		if info.Size() > bestSize {
			best, bestSize = path, info.Size()
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("inspect render output: %w", err)
	}
	if best == "" {
		return "", services.Wrap(services.ErrExternalTool, "render", scene, "renderer produced no output file", nil)
	}
	if _, err := os.Stat(best); err != nil {
		return "", err
	}
	return best, nil
}
