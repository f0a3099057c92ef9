package stitch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"slidereel/internal/logging"
	"slidereel/internal/media/ffprobe"
	"slidereel/internal/services"
	"slidereel/internal/store"
)

const stageName = "synchronize"

// Output frame geometry shared by every segment.
const (
	frameWidth  = 1280
	frameHeight = 720
	frameRate   = 30
)

// Synchronizer joins aligned clips and audio into output.
type Synchronizer interface {
	Synchronize(ctx context.Context, slides []store.Slide, clips, audio []string, output string) error
	Thumbnail(ctx context.Context, video, output string) error
}

// Options configures an FFmpeg synchronizer.
type Options struct {
	FFmpegBinary string
	Timeout      time.Duration
	Prober       ffprobe.Prober
	Executor     services.Executor
	Logger       *slog.Logger
}

// FFmpeg is the ffmpeg-backed Synchronizer.
type FFmpeg struct {
	binary  string
	timeout time.Duration
	prober  ffprobe.Prober
	exec    services.Executor
	logger  *slog.Logger
}

// New returns an FFmpeg synchronizer.
func New(opts Options) (*FFmpeg, error) {
	if opts.Prober == nil {
		return nil, errors.New("synchronizer requires a duration prober")
	}
	s := &FFmpeg{
		binary:  strings.TrimSpace(opts.FFmpegBinary),
		timeout: opts.Timeout,
		prober:  opts.Prober,
		exec:    opts.Executor,
		logger:  opts.Logger,
	}
	if s.binary == "" {
		s.binary = "ffmpeg"
	}
	if s.exec == nil {
		s.exec = services.CommandExecutor{}
	}
	if s.logger == nil {
		s.logger = logging.NewNop()
	}
	return s, nil
}

// Synchronize encodes one segment per index and concatenates them in order.
// slides, clips and audio must be the same non-zero length.
func (s *FFmpeg) Synchronize(ctx context.Context, slides []store.Slide, clips, audio []string, output string) error {
	k := len(slides)
	if k == 0 || len(clips) != k || len(audio) != k {
		return services.Wrap(services.ErrSynchronization, stageName, "validate",
			fmt.Sprintf("misaligned inputs: %d slides, %d clips, %d audio", k, len(clips), len(audio)), nil)
	}

	segmentDir := filepath.Join(filepath.Dir(output), "segments")
	if err := os.MkdirAll(segmentDir, 0o755); err != nil {
		return services.Wrap(services.ErrSynchronization, stageName, "prepare", "", err)
	}

	sampler := logging.NewProgressSampler(25)
	segments := make([]string, k)
	for i := range k {
		if err := ctx.Err(); err != nil {
			return err
		}
		duration, err := s.prober.Duration(ctx, audio[i])
		if err != nil {
			return services.Wrap(services.ErrSynchronization, stageName, fmt.Sprintf("segment %d", i), "probe audio", err)
		}
		segment := filepath.Join(segmentDir, fmt.Sprintf("segment_%03d.mp4", i))
		if err := s.run(ctx, SegmentArgs(clips[i], audio[i], duration, segment)); err != nil {
			return services.Wrap(services.ErrSynchronization, stageName, fmt.Sprintf("segment %d", i), "encode", err)
		}
		segments[i] = segment
		if sampler.ShouldLog(i+1, k) {
			s.logger.Info("segments encoded",
				logging.Int("done", i+1),
				logging.Int("total", k),
				logging.Duration("last_duration", duration),
			)
		}
	}

	listPath := filepath.Join(segmentDir, "concat.txt")
	if err := os.WriteFile(listPath, []byte(ConcatList(segments)), 0o644); err != nil {
		return services.Wrap(services.ErrSynchronization, stageName, "concat", "write list", err)
	}
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-f", "concat", "-safe", "0",
		"-i", listPath,
		"-c", "copy",
		"-movflags", "+faststart",
		output,
	}
	if err := s.run(ctx, args); err != nil {
		return services.Wrap(services.ErrSynchronization, stageName, "concat", "", err)
	}
	if info, err := os.Stat(output); err != nil || info.Size() == 0 {
		return services.Wrap(services.ErrSynchronization, stageName, "concat", "no output produced", err)
	}
	return nil
}

// Thumbnail extracts the first frame of video as a JPEG.
func (s *FFmpeg) Thumbnail(ctx context.Context, video, output string) error {
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", video,
		"-frames:v", "1",
		"-q:v", "3",
		output,
	}
	if err := s.run(ctx, args); err != nil {
		return services.Wrap(services.ErrSynchronization, stageName, "thumbnail", "", err)
	}
	return nil
}

func (s *FFmpeg) run(ctx context.Context, args []string) error {
	runCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.exec.Run(runCtx, s.binary, args, nil)
}

// SegmentArgs builds the ffmpeg arguments that fit clip to exactly duration,
// muxed with audio.
func SegmentArgs(clip, audio string, duration time.Duration, output string) []string {
	seconds := strconv.FormatFloat(duration.Seconds(), 'f', 3, 64)
	filter := fmt.Sprintf(
		"[0:v]scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,fps=%d,"+
			"tpad=stop_mode=clone:stop_duration=%s,trim=duration=%s,setpts=PTS-STARTPTS,format=yuv420p[v];"+
			"[1:a]aresample=48000,apad,atrim=duration=%s,asetpts=PTS-STARTPTS[a]",
		frameWidth, frameHeight, frameWidth, frameHeight, frameRate,
		seconds, seconds, seconds,
	)
	return []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", clip,
		"-i", audio,
		"-filter_complex", filter,
		"-map", "[v]", "-map", "[a]",
		"-c:v", "libx264", "-preset", "veryfast", "-crf", "23",
		"-c:a", "aac", "-b:a", "160k", "-ac", "2",
		"-t", seconds,
		output,
	}
}

// ConcatList renders a concat demuxer script for paths in order.
func ConcatList(paths []string) string {
	var b strings.Builder
	for _, path := range paths {
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(path, "'", `'\''`))
		b.WriteString("'\n")
	}
	return b.String()
}
