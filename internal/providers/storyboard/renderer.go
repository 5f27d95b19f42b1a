// Package storyboard turns story scenes into storyboard frames. Each adapter
// wraps one image Renderer and may condition scenes on a character portrait.
package storyboard

import (
	"context"

	"github.com/notedwin-dev/storyforge-ai-sub000/internal/providers"
)

// Image is one render request.
type Image struct {
	Prompt         string
	NegativePrompt string
	AspectRatio    string
	Seed           int
	Reference      *Reference
	RequestID      string
}

// Reference is an image a render is conditioned on.
type Reference struct {
	Data []byte
	MIME string
}

// Rendered is encoded image bytes.
type Rendered struct {
	Data []byte
	MIME string
}

// Renderer generates single images.
type Renderer interface {
	Name() string
	Available(ctx context.Context) providers.Availability
	Render(ctx context.Context, img Image) (*Rendered, error)
	// References reports whether Render honours Image.Reference.
	References() bool
}
