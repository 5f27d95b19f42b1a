package storyboard

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/notedwin-dev/storyforge-ai-sub000/internal/character"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/domain"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/prompt"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/providers"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/providers/genai"
)

type memBlobs struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memBlobs) Put(ctx context.Context, key string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = map[string][]byte{}
	}
	m.data[key] = data
	return "http://blobs/" + key, nil
}

type fakeRenderer struct {
	mu           sync.Mutex
	refs         bool
	failPortrait bool
	failScenes   bool
	calls        []Image
}

func (f *fakeRenderer) Name() string     { return "fake" }
func (f *fakeRenderer) References() bool { return f.refs }
func (f *fakeRenderer) Available(ctx context.Context) providers.Availability {
	return providers.Ready
}

func (f *fakeRenderer) Render(ctx context.Context, img Image) (*Rendered, error) {
	f.mu.Lock()
	f.calls = append(f.calls, img)
	f.mu.Unlock()
	portrait := strings.HasSuffix(img.RequestID, "-portrait")
	if portrait && f.failPortrait {
		return nil, errors.New("portrait refused")
	}
	if !portrait && f.failScenes {
		return nil, errors.New("scene refused")
	}
	return &Rendered{Data: []byte("img:" + img.RequestID), MIME: "image/png"}, nil
}

func request() Request {
	scenes := make([]domain.Scene, domain.SceneCount)
	for i := range scenes {
		scenes[i] = domain.Scene{
			Number:      i + 1,
			Title:       "Scene",
			Camera:      domain.CameraAngles[i],
			Description: strings.Repeat("a long winding description of the moonlit forest path ", 6),
		}
	}
	return Request{
		JobID:     "job1",
		Scenes:    scenes,
		Character: domain.Character{ID: "astronaut_cat", Name: "Astro Cat"},
		Style:     "cartoon",
	}
}

func TestStandardModeRendersEveryScene(t *testing.T) {
	r := &fakeRenderer{}
	blobs := &memBlobs{}
	gen := NewSceneGenerator(r, Options{Blobs: blobs, Concurrency: 2, Consistent: true})

	res, err := gen.Generate(context.Background(), request())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Mode != ModeStandard {
		t.Fatalf("mode = %q, renderer without references must use standard", res.Mode)
	}
	if len(res.URLs) != domain.SceneCount {
		t.Fatalf("urls = %d", len(res.URLs))
	}
	if res.URLs[2] != "http://blobs/storyboards/job1/scene-03.png" {
		t.Fatalf("url[2] = %q", res.URLs[2])
	}
	for _, call := range r.calls {
		if n := prompt.WordCount(call.Prompt); n > prompt.WordBudget {
			t.Fatalf("prompt of %d words escaped the budget", n)
		}
		if call.Reference != nil {
			t.Fatalf("standard mode sent a reference")
		}
	}
	seeds := map[int]bool{}
	for _, call := range r.calls {
		seeds[call.Seed] = true
	}
	for i := 0; i < domain.SceneCount; i++ {
		if !seeds[character.SceneSeed("astronaut_cat", i)] {
			t.Fatalf("scene %d seed not used", i)
		}
	}
}

func TestConsistentModeConditionsOnPortrait(t *testing.T) {
	r := &fakeRenderer{refs: true}
	blobs := &memBlobs{}
	gen := NewSceneGenerator(r, Options{Blobs: blobs, Consistent: true})

	res, err := gen.Generate(context.Background(), request())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Mode != ModeCharacterConsistent {
		t.Fatalf("mode = %q", res.Mode)
	}
	if r.calls[0].Seed != character.CharHash("astronaut_cat") {
		t.Fatalf("portrait seed = %d", r.calls[0].Seed)
	}
	for _, call := range r.calls[1:] {
		if call.Reference == nil || string(call.Reference.Data) != "img:job1-portrait" {
			t.Fatalf("scene %s not conditioned on portrait", call.RequestID)
		}
	}
	if _, ok := blobs.data["storyboards/job1/portrait.png"]; !ok {
		t.Fatalf("portrait not stored")
	}
}

func TestConsistentModeFallsBackToStandard(t *testing.T) {
	r := &fakeRenderer{refs: true, failPortrait: true}
	gen := NewSceneGenerator(r, Options{Blobs: &memBlobs{}, Consistent: true})

	res, err := gen.Generate(context.Background(), request())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Mode != ModeStandard || len(res.URLs) != domain.SceneCount {
		t.Fatalf("result = %+v", res)
	}
}

func TestSceneFailureFailsAdapter(t *testing.T) {
	gen := NewSceneGenerator(&fakeRenderer{failScenes: true}, Options{Blobs: &memBlobs{}})
	if _, err := gen.Generate(context.Background(), request()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestUnavailableWithoutBlobs(t *testing.T) {
	gen := NewSceneGenerator(&fakeRenderer{}, Options{})
	if gen.Available(context.Background()).Available {
		t.Fatalf("expected unavailable without blob store")
	}
}

func TestSyntheticRendererProducesPNG(t *testing.T) {
	r := NewSyntheticRenderer()
	a, err := r.Render(context.Background(), Image{Prompt: "cat", Seed: 7, AspectRatio: "16:9"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(a.Data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.Width != 512 || cfg.Height != 288 {
		t.Fatalf("size = %dx%d", cfg.Width, cfg.Height)
	}
	b, _ := r.Render(context.Background(), Image{Prompt: "cat", Seed: 7, AspectRatio: "16:9"})
	if !bytes.Equal(a.Data, b.Data) {
		t.Fatalf("synthetic render not deterministic")
	}
}

func TestPollinationsRenderer(t *testing.T) {
	var gotPath, gotSeed string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotSeed = r.URL.Query().Get("seed")
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write(bytes.Repeat([]byte{0xff}, 256))
	}))
	defer srv.Close()

	r := NewPollinationsRenderer(srv.URL, srv.Client())
	out, err := r.Render(context.Background(), Image{Prompt: "a cat", Seed: 99})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if gotPath != "/prompt/a cat" || gotSeed != "99" {
		t.Fatalf("path=%q seed=%q", gotPath, gotSeed)
	}
	if out.MIME != "image/jpeg" || len(out.Data) != 256 {
		t.Fatalf("out = %s %d", out.MIME, len(out.Data))
	}
}

func geminiServer(t *testing.T, statuses ...int) (*GeminiRenderer, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	frame := base64.StdEncoding.EncodeToString([]byte("jpeg-bytes"))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(calls.Add(1))
		status := http.StatusOK
		if n <= len(statuses) {
			status = statuses[n-1]
		} else if len(statuses) > 0 && statuses[len(statuses)-1] != http.StatusOK {
			status = statuses[len(statuses)-1]
		}
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			fmt.Fprintf(w, `{"error":{"message":"status %d"}}`, status)
			return
		}
		fmt.Fprintf(w, `{"candidates":[{"content":{"parts":[{"inlineData":{"mimeType":"image/jpeg","data":%q}}]}}]}`, frame)
	}))
	t.Cleanup(srv.Close)

	client, err := genai.NewClient(genai.Options{APIKey: "k", BaseURL: srv.URL, Model: "gemini-test", HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	return NewGeminiRenderer(client), &calls
}

func TestGeminiRendererReturnsInlineImage(t *testing.T) {
	r, calls := geminiServer(t)
	out, err := r.Render(context.Background(), Image{Prompt: "a cat", Seed: 3})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out.MIME != "image/jpeg" || string(out.Data) != "jpeg-bytes" {
		t.Fatalf("out = %s %q", out.MIME, out.Data)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d", calls.Load())
	}
}

func TestGeminiRendererRetriesOnceOnQuota(t *testing.T) {
	r, calls := geminiServer(t, http.StatusTooManyRequests, http.StatusOK)
	out, err := r.Render(context.Background(), Image{Prompt: "a cat"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if calls.Load() != 2 || out.MIME != "image/jpeg" {
		t.Fatalf("calls = %d mime = %s", calls.Load(), out.MIME)
	}
}

func TestGeminiRendererDoesNotRetryClientErrors(t *testing.T) {
	r, calls := geminiServer(t, http.StatusBadRequest)
	_, err := r.Render(context.Background(), Image{Prompt: "a cat"})
	var se *genai.StatusError
	if !errors.As(err, &se) || se.Code != http.StatusBadRequest {
		t.Fatalf("err = %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d", calls.Load())
	}
}

func TestGeminiRendererGivesUpAfterOneRetry(t *testing.T) {
	r, calls := geminiServer(t, http.StatusServiceUnavailable)
	if _, err := r.Render(context.Background(), Image{Prompt: "a cat"}); err == nil {
		t.Fatalf("expected error")
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d", calls.Load())
	}
}
