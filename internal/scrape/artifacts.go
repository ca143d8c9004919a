package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/masterscarnivals/sidelinesync/internal/browser"
)

// Artifacts writes debugging material for a run into a dump directory:
// a page screenshot when readiness fails, and the raw text of cards the
// extractor dropped. A nil *Artifacts, or an empty directory, disables it.
type Artifacts struct {
	dir string
	log *slog.Logger
}

// NewArtifacts creates an artifact writer rooted at dir/runID. Returns nil
// when dir is empty.
func NewArtifacts(dir, runID string, log *slog.Logger) *Artifacts {
	if dir == "" {
		return nil
	}
	return &Artifacts{dir: filepath.Join(dir, runID), log: log}
}

// Screenshot captures the page into name.png. Failures are logged, never
// surfaced; artifacts must not affect the run.
func (a *Artifacts) Screenshot(ctx context.Context, page browser.Page, name string) {
	if a == nil {
		return
	}
	png, err := page.Screenshot(ctx)
	if err != nil {
		a.log.Warn("screenshot failed", "name", name, "error", err)
		return
	}
	a.write(name+".png", png)
}

// CardText records the raw text of a dropped card.
func (a *Artifacts) CardText(index int, text string) {
	if a == nil {
		return
	}
	a.write(fmt.Sprintf("card-%03d.txt", index), []byte(text))
}

func (a *Artifacts) write(name string, data []byte) {
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		a.log.Warn("artifact dir", "error", err)
		return
	}
	path := filepath.Join(a.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		a.log.Warn("artifact write", "path", path, "error", err)
	}
}
