package render

import (
	"context"
	"fmt"

	"github.com/lmcheong/eventtide/internal/pipeline"
)

// Noop implements pipeline.Renderer but always fails, indicating that
// headless rendering is not available in the current build.
type Noop struct{}

// NewNoop creates a new Noop renderer.
func NewNoop() *Noop {
	return &Noop{}
}

// Render returns an error since this is a stub implementation.
func (Noop) Render(_ context.Context, _ string, _ string) (string, error) {
	return "", fmt.Errorf("%w: headless renderer", pipeline.ErrConfiguration)
}
