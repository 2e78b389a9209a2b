package render

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcq-paper/internal/issues"
	"mcq-paper/internal/types"
)

// echoRenderer wraps the source in <m> tags and fails on anything
// containing "bad".
var echoRenderer = RendererFunc(func(src string, opts Options) (string, error) {
	if strings.Contains(src, "bad") {
		return "", errors.New("malformed formula")
	}
	if strings.Contains(src, "panic") {
		panic("renderer exploded")
	}
	if opts.DisplayMode {
		return "<M>" + src + "</M>", nil
	}
	return "<m>" + src + "</m>", nil
})

// slowRenderer becomes ready after readyAfter calls to Ready.
type slowRenderer struct {
	RendererFunc
	calls      atomic.Int32
	readyAfter int32
}

func (r *slowRenderer) Ready() bool {
	return r.calls.Add(1) > r.readyAfter
}

func fastConfig(reporter issues.Reporter) AdapterConfig {
	return AdapterConfig{
		ReadyTimeout: 50 * time.Millisecond,
		PollInterval: time.Millisecond,
		Reporter:     reporter,
	}
}

func TestRenderText(t *testing.T) {
	a := NewAdapter(echoRenderer, fastConfig(nil))

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain text escaped with line breaks",
			input: `a<b\\c \$5`,
			want:  `<span class="plain-text">a&lt;b<br/>c $5</span>`,
		},
		{
			name:  "inline and display math",
			input: "x $a$ y $$b$$",
			want:  `<span class="plain-text">x </span><m>a</m><span class="plain-text"> y </span><M>b</M>`,
		},
		{
			name:  "bare latex",
			input: `\frac{1}{2}`,
			want:  `<m>\frac{1}{2}</m>`,
		},
		{
			name:  "tabular normalized before rendering",
			input: `$$\begin{tabular}{c}A\end{tabular}$$`,
			want:  `<M>\begin{array}{c}\text{A}\end{array}</M>`,
		},
		{
			name:  "empty",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := a.RenderText("ref", tt.input)
			assert.Equal(t, tt.want, m.HTML)
			assert.True(t, m.OK())
		})
	}
}

func TestRenderSegments_FailureIsolation(t *testing.T) {
	collector := issues.NewCollector()
	a := NewAdapter(echoRenderer, fastConfig(collector))

	segs := []types.Segment{
		types.MathSegment("x", false),
		types.MathSegment("bad <x>", false),
		types.TextSegment(" then "),
		types.MathSegment("panic", true),
		types.MathSegment("y", false),
	}
	m := a.RenderSegments("question-q1-text", segs)

	assert.Equal(t, 2, m.Failures)
	assert.False(t, m.OK())
	assert.True(t, strings.HasPrefix(m.HTML, "<m>x</m>"))
	assert.Contains(t, m.HTML, `<span class="math-error" style="color:#f44336" title="malformed formula">bad &lt;x&gt;</span>`)
	assert.Contains(t, m.HTML, `<span class="plain-text"> then </span>`)
	assert.Contains(t, m.HTML, "renderer panic: renderer exploded")
	assert.True(t, strings.HasSuffix(m.HTML, "<m>y</m>"))

	recorded := collector.ListByKind(issues.KindMalformedMath)
	require.Len(t, recorded, 2)
	assert.Equal(t, "question-q1-text", recorded[0].Ref)
}

func TestRenderSegments_InlineErrorMarkup(t *testing.T) {
	r := RendererFunc(func(src string, opts Options) (string, error) {
		return "", &InlineError{Markup: `<span class="katex-error">` + src + `</span>`, Err: errors.New("bad")}
	})
	collector := issues.NewCollector()
	a := NewAdapter(r, fastConfig(collector))

	m := a.RenderText("option-q1-0", "$x^$")
	assert.Equal(t, `<span class="katex-error">x^</span>`, m.HTML)
	assert.Equal(t, 1, m.Failures)
	assert.True(t, collector.HasIssues())
}

func TestRenderDisplay(t *testing.T) {
	a := NewAdapter(echoRenderer, fastConfig(nil))

	t.Run("success", func(t *testing.T) {
		m := a.RenderDisplay("ref", `\sum_i x_i`)
		assert.Equal(t, `<M>\sum_i x_i</M>`, m.HTML)
		assert.Empty(t, m.Err)
	})

	t.Run("failure becomes document-level message", func(t *testing.T) {
		m := a.RenderDisplay("ref", "bad")
		assert.Equal(t, "Error rendering math: malformed formula", m.Err)
		assert.Equal(t, 1, m.Failures)
		assert.Contains(t, m.HTML, "math-error")
	})
}

func TestWaitReady(t *testing.T) {
	t.Run("renderer without readiness is ready", func(t *testing.T) {
		a := NewAdapter(echoRenderer, fastConfig(nil))
		require.NoError(t, a.WaitReady(context.Background()))
		assert.False(t, a.Degraded())
	})

	t.Run("becomes ready while polling", func(t *testing.T) {
		r := &slowRenderer{RendererFunc: echoRenderer, readyAfter: 3}
		a := NewAdapter(r, AdapterConfig{ReadyTimeout: time.Second, PollInterval: time.Millisecond})
		require.NoError(t, a.WaitReady(context.Background()))
		assert.False(t, a.Degraded())
		assert.Equal(t, "<m>x</m>", a.RenderText("ref", "$x$").HTML)
	})

	t.Run("timeout degrades to plain text", func(t *testing.T) {
		collector := issues.NewCollector()
		r := &slowRenderer{RendererFunc: echoRenderer, readyAfter: 1 << 30}
		a := NewAdapter(r, fastConfig(collector))

		err := a.WaitReady(context.Background())
		require.Error(t, err)
		var appErr *types.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, types.ErrRender, appErr.Code)
		assert.True(t, a.Degraded())

		m := a.RenderText("ref", "area $x^2$ and $$a<b$$")
		assert.True(t, m.Degraded)
		assert.Equal(t, `<span class="plain-text">area </span><span class="math-fallback">$x^2$</span>`+
			`<span class="plain-text"> and </span><span class="math-fallback">$$a&lt;b$$</span>`, m.HTML)

		assert.Len(t, collector.ListByKind(issues.KindRendererUnavailable), 1)
	})

	t.Run("context cancellation", func(t *testing.T) {
		r := &slowRenderer{RendererFunc: echoRenderer, readyAfter: 1 << 30}
		a := NewAdapter(r, AdapterConfig{ReadyTimeout: time.Minute, PollInterval: time.Millisecond})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := a.WaitReady(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.True(t, a.Degraded())
	})

	t.Run("nil renderer", func(t *testing.T) {
		a := NewAdapter(nil, fastConfig(nil))
		assert.True(t, a.Degraded())
		assert.Error(t, a.WaitReady(context.Background()))
		assert.Equal(t, `<span class="math-fallback">$$x$$</span>`, a.RenderDisplay("ref", "x").HTML)
	})
}
