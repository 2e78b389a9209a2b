// Package render turns scanned text/math segments into markup through an
// injected math renderer. A formula the renderer rejects is replaced by a
// local error marker; it never aborts the rest of the document.
package render

import (
	"fmt"
)

// Strictness levels understood by renderers.
const (
	StrictIgnore = "ignore"
	StrictWarn   = "warn"
	StrictError  = "error"
)

// Options are passed to the renderer for every formula.
type Options struct {
	DisplayMode  bool
	ErrorColor   string
	Trust        bool   // allow commands such as \href and \includegraphics
	Strict       string // StrictIgnore, StrictWarn or StrictError
	ThrowOnError bool
}

// DefaultOptions returns the permissive options used for paper content.
func DefaultOptions(display bool, errorColor string) Options {
	return Options{
		DisplayMode:  display,
		ErrorColor:   errorColor,
		Trust:        true,
		Strict:       StrictIgnore,
		ThrowOnError: false,
	}
}

// Renderer is the math typesetting engine.
type Renderer interface {
	// RenderToString renders one LaTeX formula (without delimiters).
	RenderToString(src string, opts Options) (string, error)
}

// Readiness is implemented by renderers that need time to load.
type Readiness interface {
	Ready() bool
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(src string, opts Options) (string, error)

// RenderToString calls f.
func (f RendererFunc) RenderToString(src string, opts Options) (string, error) {
	return f(src, opts)
}

// ParseError reports malformed LaTeX.
type ParseError struct {
	Source string
	Pos    int // byte offset, -1 when unknown
	Msg    string
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.Pos >= 0 {
		return fmt.Sprintf("LaTeX parse error at position %d: %s", e.Pos, e.Msg)
	}
	return "LaTeX parse error: " + e.Msg
}

// InlineError is returned instead of failing outright when ThrowOnError is
// false. Markup is the renderer's own error fragment, ready to embed.
type InlineError struct {
	Markup string
	Err    error
}

// Error implements the error interface
func (e *InlineError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error
func (e *InlineError) Unwrap() error {
	return e.Err
}
