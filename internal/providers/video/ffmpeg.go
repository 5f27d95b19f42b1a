package video

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/notedwin-dev/storyforge-ai-sub000/internal/domain"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/providers"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/storage"
)

const slideshowFPS = 25

// runFunc executes an external command.
type runFunc func(ctx context.Context, name string, args ...string) error

func execRun(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 400 {
			msg = msg[len(msg)-400:]
		}
		return fmt.Errorf("%s: %w: %s", filepath.Base(name), err, msg)
	}
	return nil
}

// FFmpegOptions configures the slideshow composer.
type FFmpegOptions struct {
	Binary     string
	Blobs      storage.BlobStore
	Local      LocalResolver
	HTTPClient *http.Client
}

// FFmpeg composes a Ken Burns slideshow of the frames with the narration as
// the soundtrack.
type FFmpeg struct {
	binary string
	blobs  storage.BlobStore
	fetch  *fetcher
	run    runFunc
}

var _ providers.Adapter[Request, *domain.Video] = (*FFmpeg)(nil)

func NewFFmpeg(opts FFmpegOptions) *FFmpeg {
	binary := strings.TrimSpace(opts.Binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpeg{
		binary: binary,
		blobs:  opts.Blobs,
		fetch:  newFetcher(opts.Local, opts.HTTPClient),
		run:    execRun,
	}
}

func (f *FFmpeg) Name() string { return "ffmpeg" }

func (f *FFmpeg) Available(ctx context.Context) providers.Availability {
	if f.blobs == nil {
		return providers.Unavailable("no blob store configured", false)
	}
	if _, err := exec.LookPath(f.binary); err != nil {
		return providers.Unavailable(fmt.Sprintf("%s not found", f.binary), false)
	}
	return providers.Ready
}

func (f *FFmpeg) Generate(ctx context.Context, req Request) (*domain.Video, error) {
	if len(req.Frames) == 0 {
		return nil, fmt.Errorf("ffmpeg: no frames")
	}
	dir, err := os.MkdirTemp("", "storyforge-video-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	durations := FrameDurations(req)
	zoom := zoomFactor(req.Options.MotionIntensity)
	clips := make([]string, len(req.Frames))
	for i, frame := range req.Frames {
		img, err := f.fetch.fetch(ctx, frame, dir, fmt.Sprintf("frame-%02d", i+1))
		if err != nil {
			return nil, err
		}
		clips[i] = filepath.Join(dir, fmt.Sprintf("clip-%02d.mp4", i+1))
		if err := f.run(ctx, f.binary, kenBurnsArgs(img, clips[i], durations[i], zoom)...); err != nil {
			return nil, fmt.Errorf("ffmpeg clip %d: %w", i+1, err)
		}
	}

	silent := filepath.Join(dir, "visuals.mp4")
	if err := f.concat(ctx, dir, "visuals", clips, silent, []string{"-c", "copy"}); err != nil {
		return nil, fmt.Errorf("ffmpeg concat visuals: %w", err)
	}

	final := silent
	if audio := f.soundtrack(ctx, req, dir); audio != "" {
		final = filepath.Join(dir, "final.mp4")
		err := f.run(ctx, f.binary, "-y",
			"-i", silent,
			"-i", audio,
			"-c:v", "copy",
			"-c:a", "aac",
			"-b:a", "192k",
			"-shortest",
			"-movflags", "+faststart",
			final,
		)
		if err != nil {
			return nil, fmt.Errorf("ffmpeg combine: %w", err)
		}
	}

	data, err := os.ReadFile(final)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg output: %w", err)
	}
	url, err := f.blobs.Put(ctx, storage.AssetKey("videos", req.JobID, "story", -1, "video/mp4"), data)
	if err != nil {
		return nil, fmt.Errorf("store video: %w", err)
	}
	total := 0.0
	for _, d := range durations {
		total += d
	}
	return &domain.Video{URL: url, Duration: math.Round(total*10) / 10, Method: f.Name()}, nil
}

// soundtrack joins the narration clips; an empty path means no audio.
func (f *FFmpeg) soundtrack(ctx context.Context, req Request, dir string) string {
	if req.Narration == nil || len(req.Narration.Scenes) == 0 {
		return ""
	}
	files := make([]string, 0, len(req.Narration.Scenes))
	for i, s := range req.Narration.Scenes {
		path, err := f.fetch.fetch(ctx, s.URL, dir, fmt.Sprintf("audio-%02d", i+1))
		if err != nil {
			return ""
		}
		files = append(files, path)
	}
	out := filepath.Join(dir, "narration.m4a")
	if err := f.concat(ctx, dir, "audio", files, out, []string{"-c:a", "aac", "-b:a", "192k"}); err != nil {
		return ""
	}
	return out
}

func (f *FFmpeg) concat(ctx context.Context, dir, name string, files []string, out string, codec []string) error {
	lines := make([]string, len(files))
	for i, file := range files {
		lines[i] = fmt.Sprintf("file '%s'", strings.ReplaceAll(file, "'", `'\''`))
	}
	list := filepath.Join(dir, name+"_concat.txt")
	if err := os.WriteFile(list, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		return err
	}
	args := append([]string{"-y", "-f", "concat", "-safe", "0", "-i", list}, codec...)
	return f.run(ctx, f.binary, append(args, out)...)
}

func kenBurnsArgs(img, out string, duration, zoom float64) []string {
	frames := int(duration * slideshowFPS)
	if frames < 1 {
		frames = 1
	}
	step := (zoom - 1.0) / float64(frames)
	filter := fmt.Sprintf(
		"scale=2560:1440,zoompan=z='min(zoom+%.6f,%.3f)':x='iw/2-(iw/zoom/2)':y='ih/2-(ih/zoom/2)':d=%d:fps=%d,scale=1280:720",
		step, zoom, frames, slideshowFPS,
	)
	return []string{"-y",
		"-loop", "1",
		"-i", img,
		"-vf", filter,
		"-t", fmt.Sprintf("%.3f", duration),
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"-pix_fmt", "yuv420p",
		"-an",
		out,
	}
}

func zoomFactor(intensity string) float64 {
	switch intensity {
	case "low":
		return 1.04
	case "high":
		return 1.15
	}
	return 1.08
}
