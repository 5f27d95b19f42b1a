package storyboard

import (
	"bytes"
	"context"
	"crypto/sha256"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strconv"
	"strings"

	"github.com/notedwin-dev/storyforge-ai-sub000/internal/providers"
)

// MethodSynthetic names the offline renderer.
const MethodSynthetic = "synthetic"

// SyntheticRenderer paints deterministic placeholder frames locally.
type SyntheticRenderer struct{}

func NewSyntheticRenderer() *SyntheticRenderer { return &SyntheticRenderer{} }

func (r *SyntheticRenderer) Name() string { return MethodSynthetic }

func (r *SyntheticRenderer) References() bool { return false }

func (r *SyntheticRenderer) Available(ctx context.Context) providers.Availability {
	return providers.Ready
}

func (r *SyntheticRenderer) Render(ctx context.Context, img Image) (*Rendered, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w, h := aspectDimensions(img.AspectRatio)
	data, err := renderSyntheticImage(w/2, h/2, strconv.Itoa(img.Seed)+"|"+img.Prompt)
	if err != nil {
		return nil, err
	}
	return &Rendered{Data: data, MIME: "image/png"}, nil
}

func renderSyntheticImage(width, height int, seed string) ([]byte, error) {
	sum := sha256.Sum256([]byte(seed))
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	base := colorAt(sum, 0)
	accent := colorAt(sum, 1)
	diagonal := colorAt(sum, 2)
	draw.Draw(img, img.Bounds(), &image.Uniform{base}, image.Point{}, draw.Src)

	stripe := max(32, height/12)
	for y := 0; y < height; y += stripe * 2 {
		band := image.Rect(0, y, width, min(height, y+stripe))
		draw.Draw(img, band, &image.Uniform{accent}, image.Point{}, draw.Over)
	}
	for x := 0; x < max(width, height); x += max(16, width/32) {
		for y := 0; y < height; y++ {
			if x+y >= width {
				break
			}
			img.Set(x+y, y, diagonal)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func colorAt(sum [32]byte, shift int) color.RGBA {
	i := (shift * 3) % (len(sum) - 2)
	return color.RGBA{R: sum[i], G: sum[i+1], B: sum[i+2], A: 255}
}

func aspectDimensions(aspect string) (int, int) {
	switch strings.TrimSpace(strings.ToLower(aspect)) {
	case "16:9":
		return 1024, 576
	case "9:16":
		return 576, 1024
	case "4:3":
		return 1024, 768
	case "3:4":
		return 768, 1024
	default:
		return 1024, 1024
	}
}
