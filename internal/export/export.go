// Package export renders chart PNGs for a filtered selection into a
// directory, one file per view, plus a JSON manifest.
package export

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"powertrust/internal/chart"
	"powertrust/internal/core"
)

// ViewRenderer is the part of the dataset handle an export needs.
type ViewRenderer interface {
	Render(v core.View, f core.Filters) core.ViewModel
}

// Request is one export job.
type Request struct {
	ID      string
	Views   []core.View
	Filters core.Filters
}

// File describes one rendered view.
type File struct {
	View    string       `json:"view"`
	Path    string       `json:"path,omitempty"`
	Skipped bool         `json:"skipped,omitempty"`
	Summary core.Summary `json:"summary"`
}

// Manifest is written next to the PNGs as <id>.json.
type Manifest struct {
	ID          string       `json:"id"`
	Filters     core.Filters `json:"filters"`
	Files       []File       `json:"files"`
	GeneratedAt time.Time    `json:"generated_at"`
}

var (
	ErrInvalidID = errors.New("invalid export id")
	// ErrRender wraps chart failures; the same request fails the same way.
	ErrRender = errors.New("render failed")
)

var validID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// NewID creates a short random id that is safe as a file name prefix.
func NewID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("exp_%d", time.Now().UnixNano())
	}
	return "exp_" + hex.EncodeToString(b)
}

type Processor struct {
	views       ViewRenderer
	renderer    chart.Renderer
	dir         string
	concurrency int
}

func NewProcessor(views ViewRenderer, renderer chart.Renderer, dir string, concurrency int) *Processor {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Processor{views: views, renderer: renderer, dir: dir, concurrency: concurrency}
}

// Export renders every requested view concurrently. Views with nothing to
// plot are recorded as skipped rather than failing the job.
func (p *Processor) Export(ctx context.Context, req Request) (Manifest, error) {
	if !validID.MatchString(req.ID) {
		return Manifest{}, fmt.Errorf("%w: %q", ErrInvalidID, req.ID)
	}
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return Manifest{}, fmt.Errorf("create export dir: %w", err)
	}
	f := req.Filters.Normalize()
	start := time.Now()

	files := make([]File, len(req.Views))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, v := range req.Views {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			file, err := p.exportView(req.ID, v, f)
			if err != nil {
				return err
			}
			mu.Lock()
			files[i] = file
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Manifest{}, err
	}

	m := Manifest{ID: req.ID, Filters: f, Files: files, GeneratedAt: time.Now().UTC()}
	if err := p.writeManifest(m); err != nil {
		return Manifest{}, err
	}
	slog.InfoContext(ctx, "Export completed",
		"id", req.ID,
		"views", len(req.Views),
		"dir", p.dir,
		"duration_ms", time.Since(start).Milliseconds())
	return m, nil
}

func (p *Processor) exportView(id string, v core.View, f core.Filters) (File, error) {
	vm := p.views.Render(v, f)
	file := File{View: v.Slug(), Summary: vm.Summary}

	var buf bytes.Buffer
	err := p.renderer.Render(&buf, vm)
	if errors.Is(err, chart.ErrNoData) {
		file.Skipped = true
		return file, nil
	}
	if err != nil {
		return File{}, fmt.Errorf("%w: %s: %w", ErrRender, v.Slug(), err)
	}

	path := filepath.Join(p.dir, fmt.Sprintf("%s-%s.png", id, v.Slug()))
	if err := writeFileAtomic(path, buf.Bytes()); err != nil {
		return File{}, err
	}
	file.Path = path
	return file, nil
}

func (p *Processor) writeManifest(m Manifest) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	return writeFileAtomic(filepath.Join(p.dir, m.ID+".json"), b)
}

// writeFileAtomic writes to a temp file in the same directory and renames it
// so readers never see a partial PNG.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
