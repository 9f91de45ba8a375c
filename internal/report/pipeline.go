// Package report turns a finished session into a paginated PDF.
//
// Generation runs in three stages: photos are recompressed (PrepareImages),
// the document is laid out as a pure Plan (Layout), and the plan is drawn
// with fpdf (PDFRenderer). Pipeline chains them and owns file naming.
package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/roach88/nestcheck/internal/store"
)

// Request describes one document to generate.
type Request struct {
	Session          *store.Session
	Steps            []*store.Step
	Photos           map[int64][]string
	Dir              string
	Seq              int64
	ChecklistVersion string
}

// Result describes a generated document.
type Result struct {
	Path    string
	Pages   int
	Skipped []SkippedImage
}

// Pipeline generates report files.
type Pipeline struct {
	renderer *PDFRenderer
	loc      *time.Location
	now      func() time.Time
	logger   *slog.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithLocation sets the zone used for timestamps and file names.
func WithLocation(loc *time.Location) PipelineOption {
	return func(p *Pipeline) { p.loc = loc }
}

// WithNow overrides the clock used for file names.
func WithNow(now func() time.Time) PipelineOption {
	return func(p *Pipeline) { p.now = now }
}

// WithLogger sets the process logger.
func WithLogger(l *slog.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = l }
}

// NewPipeline creates a pipeline drawing with r.
func NewPipeline(r *PDFRenderer, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{renderer: r, loc: time.Local, now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Generate writes the document for req into req.Dir and returns its path.
// Unreadable photos are skipped and listed in the result. Any other failure
// returns a *RenderError and leaves no file behind.
func (p *Pipeline) Generate(ctx context.Context, req Request) (*Result, error) {
	if req.Session == nil {
		return nil, &RenderError{Stage: "input", Err: errors.New("no session")}
	}
	if req.Dir == "" {
		return nil, &RenderError{Stage: "input", Err: errors.New("no output directory")}
	}
	if err := os.MkdirAll(req.Dir, 0o755); err != nil {
		return nil, &RenderError{Stage: "prepare", Err: err}
	}

	var paths []string
	for _, st := range req.Steps {
		paths = append(paths, req.Photos[st.ID]...)
	}
	prepared, skipped, err := PrepareImages(ctx, paths)
	if err != nil {
		return nil, &RenderError{Stage: "images", Err: err}
	}
	for _, sk := range skipped {
		p.logger.Warn("skipping unreadable photo", "path", sk.Path, "error", sk.Err)
	}

	sizes := make(map[string]ImageSize, len(prepared))
	for path, img := range prepared {
		sizes[path] = ImageSize{Width: img.Width, Height: img.Height}
	}

	plan := Layout(Input{
		Session:          req.Session,
		Steps:            req.Steps,
		Photos:           req.Photos,
		Images:           sizes,
		Seq:              req.Seq,
		ChecklistVersion: req.ChecklistVersion,
		Location:         p.loc,
		Glyphs:           p.renderer.Glyphs(),
	}, p.renderer)

	if err := ctx.Err(); err != nil {
		return nil, &RenderError{Stage: "write", Err: err}
	}

	path := filepath.Join(req.Dir, FileName(p.now().In(p.loc), req.Session.OrderNo, req.Seq))
	if err := p.renderer.Render(plan, prepared, path); err != nil {
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			p.logger.Warn("could not remove partial report", "path", path, "error", rmErr)
		}
		return nil, &RenderError{Stage: "write", Err: fmt.Errorf("%s: %w", filepath.Base(path), err)}
	}

	p.logger.Info("report generated", "path", path, "pages", len(plan.Pages), "skipped_photos", len(skipped))
	return &Result{Path: path, Pages: len(plan.Pages), Skipped: skipped}, nil
}
