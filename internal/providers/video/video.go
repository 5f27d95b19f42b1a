// Package video composes storyboard frames into a single video.
package video

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/notedwin-dev/storyforge-ai-sub000/internal/domain"
)

// Request is the video adapter input.
type Request struct {
	JobID     string
	Frames    []string
	Story     *domain.Story
	Narration *domain.Narration
	Style     string
	Options   domain.Options
}

// FrameDurations returns how long each frame stays on screen: the matching
// narration clip when present, otherwise a pace set by motion intensity.
func FrameDurations(req Request) []float64 {
	base := 4.0
	switch req.Options.MotionIntensity {
	case "low":
		base = 5
	case "high":
		base = 3
	}
	out := make([]float64, len(req.Frames))
	for i := range out {
		out[i] = base
		if req.Narration != nil && len(req.Frames) == len(req.Narration.Scenes) && req.Narration.Scenes[i].Duration > 0 {
			out[i] = req.Narration.Scenes[i].Duration
		}
	}
	return out
}

// LocalResolver maps URLs of locally stored blobs to file paths.
type LocalResolver interface {
	LocalPath(url string) (string, bool)
}

// fetcher materializes frame and audio URLs as local files.
type fetcher struct {
	local      LocalResolver
	httpClient *http.Client
}

func newFetcher(local LocalResolver, client *http.Client) *fetcher {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &fetcher{local: local, httpClient: client}
}

// fetch returns a local path for url, downloading into dir when needed.
func (f *fetcher) fetch(ctx context.Context, url, dir, name string) (string, error) {
	if f.local != nil {
		if path, ok := f.local.LocalPath(url); ok {
			return path, nil
		}
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "", fmt.Errorf("unsupported media url %q", url)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download %s: HTTP %d", url, resp.StatusCode)
	}
	path := filepath.Join(dir, name+extFromURL(url))
	out, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		return "", fmt.Errorf("download %s: %w", url, err)
	}
	return path, out.Close()
}

func (f *fetcher) read(ctx context.Context, url string) ([]byte, string, error) {
	dir, err := os.MkdirTemp("", "storyforge-frame-*")
	if err != nil {
		return nil, "", err
	}
	defer os.RemoveAll(dir)
	path, err := f.fetch(ctx, url, dir, "frame")
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	return data, http.DetectContentType(data), nil
}

func extFromURL(url string) string {
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		url = url[:i]
	}
	ext := filepath.Ext(url)
	if len(ext) > 5 || ext == "" {
		return ".bin"
	}
	return ext
}
