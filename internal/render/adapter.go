package render

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"sync/atomic"
	"time"

	"mcq-paper/internal/issues"
	"mcq-paper/internal/logger"
	"mcq-paper/internal/mathtext"
	"mcq-paper/internal/types"
)

const (
	// DefaultErrorColor marks formulas the renderer rejected
	DefaultErrorColor = "#f44336"
	// DefaultReadyTimeout bounds the readiness wait
	DefaultReadyTimeout = 5 * time.Second
	// DefaultPollInterval is the readiness polling interval
	DefaultPollInterval = 50 * time.Millisecond

	// readinessRef is the issue reference used for renderer availability.
	readinessRef = "renderer"
)

// Markup is rendered output for one placeholder.
type Markup struct {
	HTML string `json:"html"`
	// Err is a document-level error message from a whole-string display
	// render. Empty on success.
	Err      string `json:"err,omitempty"`
	Failures int    `json:"failures"` // formulas replaced by an error marker
	Degraded bool   `json:"degraded"` // math emitted as escaped source
}

// OK reports whether every formula rendered.
func (m Markup) OK() bool {
	return m.Failures == 0 && m.Err == ""
}

// AdapterConfig configures an Adapter.
type AdapterConfig struct {
	ErrorColor   string
	ReadyTimeout time.Duration
	PollInterval time.Duration
	// Reporter receives malformed formulas and readiness failures. May be nil.
	Reporter issues.Reporter
}

// Adapter wraps a Renderer with per-segment failure isolation and a
// bounded readiness gate.
type Adapter struct {
	renderer Renderer
	config   AdapterConfig
	degraded atomic.Bool
}

// NewAdapter creates an Adapter. A nil renderer puts the adapter in
// degraded mode from the start.
func NewAdapter(r Renderer, config AdapterConfig) *Adapter {
	if config.ErrorColor == "" {
		config.ErrorColor = DefaultErrorColor
	}
	if config.ReadyTimeout <= 0 {
		config.ReadyTimeout = DefaultReadyTimeout
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}

	a := &Adapter{renderer: r, config: config}
	if r == nil {
		a.degraded.Store(true)
	}
	return a
}

// Degraded reports whether math is being emitted as escaped source.
func (a *Adapter) Degraded() bool {
	return a.degraded.Load()
}

// WaitReady blocks until the renderer reports ready, the configured
// timeout passes, or ctx is done. On timeout the adapter switches to
// degraded mode and an ErrRender error is returned; rendering still works.
func (a *Adapter) WaitReady(ctx context.Context) error {
	if a.renderer == nil {
		a.reportUnavailable("no math renderer configured")
		return types.NewAppError(types.ErrRender, "no math renderer configured", nil)
	}
	rd, ok := a.renderer.(Readiness)
	if !ok || rd.Ready() {
		return nil
	}

	logger.Debug("waiting for math renderer",
		logger.String("timeout", a.config.ReadyTimeout.String()),
		logger.String("pollInterval", a.config.PollInterval.String()))

	timer := time.NewTimer(a.config.ReadyTimeout)
	defer timer.Stop()
	ticker := time.NewTicker(a.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if rd.Ready() {
				logger.Debug("math renderer ready")
				a.degraded.Store(false)
				return nil
			}
		case <-timer.C:
			msg := fmt.Sprintf("math renderer not ready after %s", a.config.ReadyTimeout)
			a.reportUnavailable(msg)
			return types.NewAppError(types.ErrRender, msg, nil)
		case <-ctx.Done():
			a.reportUnavailable("wait for math renderer cancelled")
			return types.NewAppError(types.ErrRender, "wait for math renderer cancelled", ctx.Err())
		}
	}
}

func (a *Adapter) reportUnavailable(msg string) {
	a.degraded.Store(true)
	logger.Warn("falling back to plain-text math", logger.String("reason", msg))
	if a.config.Reporter != nil {
		a.config.Reporter.Record(readinessRef, issues.KindRendererUnavailable, "", msg)
	}
}

// RenderText normalizes tabular blocks, scans text and renders the segments.
// ref names the placeholder in issue reports.
func (a *Adapter) RenderText(ref, text string) Markup {
	return a.RenderSegments(ref, mathtext.Scan(mathtext.NormalizeTabular(text)))
}

// RenderSegments renders segments in order. A failing formula is replaced
// by an error marker and the remaining segments are still rendered.
func (a *Adapter) RenderSegments(ref string, segs []types.Segment) Markup {
	var sb strings.Builder
	m := Markup{Degraded: a.Degraded()}

	for _, seg := range segs {
		if seg.Kind != types.SegmentMath {
			sb.WriteString(textMarkup(seg.Content))
			continue
		}
		if m.Degraded {
			sb.WriteString(fallbackMarkup(seg))
			continue
		}

		out, err := a.renderMath(seg.Content, seg.DisplayMode)
		if err != nil {
			m.Failures++
			sb.WriteString(a.failureMarkup(seg.Content, err))
			a.reportFailure(ref, seg.Content, err)
			continue
		}
		sb.WriteString(out)
	}

	m.HTML = sb.String()
	return m
}

// RenderDisplay renders the whole of text as one display-mode formula
// without segmentation. A failure is returned in Markup.Err.
func (a *Adapter) RenderDisplay(ref, text string) Markup {
	src := mathtext.NormalizeTabular(text)
	if a.Degraded() {
		return Markup{
			HTML:     fallbackMarkup(types.MathSegment(src, true)),
			Degraded: true,
		}
	}

	out, err := a.renderMath(src, true)
	if err != nil {
		a.reportFailure(ref, src, err)
		return Markup{
			HTML:     a.failureMarkup(src, err),
			Err:      "Error rendering math: " + err.Error(),
			Failures: 1,
		}
	}
	return Markup{HTML: out}
}

// renderMath calls the renderer, turning a panic into an error.
func (a *Adapter) renderMath(src string, display bool) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("renderer panic: %v", r)
		}
	}()
	return a.renderer.RenderToString(src, DefaultOptions(display, a.config.ErrorColor))
}

func (a *Adapter) failureMarkup(src string, err error) string {
	var inline *InlineError
	if errors.As(err, &inline) && inline.Markup != "" {
		return inline.Markup
	}
	return fmt.Sprintf(`<span class="math-error" style="color:%s" title="%s">%s</span>`,
		html.EscapeString(a.config.ErrorColor), html.EscapeString(err.Error()), html.EscapeString(src))
}

func (a *Adapter) reportFailure(ref, src string, err error) {
	logger.Warn("formula failed to render",
		logger.String("placeholder", ref),
		logger.String("source", src),
		logger.Err(err))
	if a.config.Reporter != nil {
		a.config.Reporter.Record(ref, issues.KindMalformedMath, src, err.Error())
	}
}

var textReplacer = strings.NewReplacer(`\\`, "<br/>", `\$`, "$")

// textMarkup escapes plain text and turns `\\` into line breaks.
func textMarkup(s string) string {
	return `<span class="plain-text">` + textReplacer.Replace(html.EscapeString(s)) + `</span>`
}

// fallbackMarkup shows a formula as escaped source with its delimiters.
func fallbackMarkup(seg types.Segment) string {
	return `<span class="math-fallback">` + html.EscapeString(mathtext.Join([]types.Segment{seg})) + `</span>`
}
