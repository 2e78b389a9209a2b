package paper

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"mcq-paper/internal/issues"
	"mcq-paper/internal/logger"
	"mcq-paper/internal/mathtext"
	"mcq-paper/internal/render"
	"mcq-paper/internal/types"
)

// DefaultFillWorkers bounds concurrent placeholder renders.
const DefaultFillWorkers = 8

// Fills maps placeholder IDs to rendered markup.
type Fills map[string]render.Markup

// Failures returns the total number of formulas that failed to render.
func (f Fills) Failures() int {
	n := 0
	for _, m := range f {
		n += m.Failures
	}
	return n
}

// Fill renders every placeholder of d through a. Re-rendering after a
// style change only needs another Fill, not another Assemble.
func (d *Document) Fill(a *render.Adapter) Fills {
	placeholders := d.Placeholders()
	fills := make(Fills, len(placeholders))
	for _, p := range placeholders {
		fills[p.ID] = renderPlaceholder(a, p)
	}
	return fills
}

// renderPlaceholder renders a text that is a single $$...$$ formula with
// one display-mode call; anything else is segmented.
func renderPlaceholder(a *render.Adapter, p Placeholder) render.Markup {
	if body, ok := displayBlock(p.Source); ok {
		return a.RenderDisplay(p.ID, body)
	}
	return a.RenderText(p.ID, p.Source)
}

// displayBlock returns the body of src when src is exactly one display
// formula, surrounding whitespace aside.
func displayBlock(src string) (string, bool) {
	segs := mathtext.ScanWithOptions(strings.TrimSpace(src), mathtext.ScanOptions{ForceDisplay: true})
	if len(segs) == 1 && segs[0].Kind == types.SegmentMath && segs[0].DisplayMode {
		return segs[0].Content, true
	}
	return "", false
}

// FillContext renders placeholders on up to workers goroutines. It stops
// starting new renders once ctx is done and returns the fills made so far
// with ctx's error. Issue records may arrive in any order.
func (d *Document) FillContext(ctx context.Context, a *render.Adapter, workers int) (Fills, error) {
	if workers <= 0 {
		workers = DefaultFillWorkers
	}
	placeholders := d.Placeholders()

	var (
		mu    sync.Mutex
		fills = make(Fills, len(placeholders))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, p := range placeholders {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			m := renderPlaceholder(a, p)
			mu.Lock()
			fills[p.ID] = m
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fills, err
	}
	return fills, ctx.Err()
}

// Render waits for the renderer to become ready, then fills d. A renderer
// that never becomes ready degrades the output to escaped source; the
// document is still produced. Only cancellation of ctx fails the render.
func (d *Document) Render(ctx context.Context, a *render.Adapter) (Fills, error) {
	if err := a.WaitReady(ctx); err != nil {
		logger.Warn("rendering without math renderer", logger.Err(err))
	}
	fills, err := d.FillContext(ctx, a, DefaultFillWorkers)
	if err != nil {
		logger.Warn("paper rendering cancelled",
			logger.Int("rendered", len(fills)),
			logger.Int("placeholders", len(d.Placeholders())))
		return nil, types.NewAppError(types.ErrRender, "rendering cancelled", err)
	}
	logger.Info("paper rendered",
		logger.Int("placeholders", len(fills)),
		logger.Int("failures", fills.Failures()),
		logger.Bool("degraded", a.Degraded()))
	return fills, nil
}

// Build assembles and renders a paper. Unresolved answers are recorded
// with reporter, which may be nil.
func Build(ctx context.Context, cfg types.DocumentConfig, sections []types.Section, a *render.Adapter, reporter issues.Reporter) (*Document, Fills, error) {
	doc, err := Assemble(cfg, sections)
	if err != nil {
		logger.Error("failed to assemble paper", err)
		return nil, nil, err
	}
	if reporter != nil {
		doc.AnswerKey.Report(reporter)
	}
	fills, err := doc.Render(ctx, a)
	if err != nil {
		return nil, nil, err
	}
	return doc, fills, nil
}
