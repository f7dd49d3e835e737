package extract

import (
	"context"
	"image"
	"io"
	"log/slog"
	"sync"

	"github.com/atelierflow/formscan/internal/imaging"
)

// scriptedGateway answers Generate calls through a handler so tests can react
// to the prompt of each pipeline pass.
type scriptedGateway struct {
	mu      sync.Mutex
	handler func(call int, prompt string) (string, error)
	prompts []string
}

func (g *scriptedGateway) Generate(_ context.Context, prompt string, _ []*imaging.Page) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	call := len(g.prompts)
	g.prompts = append(g.prompts, prompt)
	return g.handler(call, prompt)
}

func (g *scriptedGateway) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

func testPage() *imaging.Page {
	return &imaging.Page{Img: image.NewGray(image.Rect(0, 0, 40, 40))}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
