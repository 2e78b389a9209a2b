package render

import (
	"fmt"
	"html"
	"strings"

	"github.com/go-latex/latex"

	"mcq-paper/internal/logger"
)

// untrustedCommands may pull external content or inject markup.
var untrustedCommands = []string{`\href`, `\url`, `\includegraphics`, `\htmlClass`, `\htmlId`, `\htmlStyle`, `\htmlData`}

// LatexRenderer checks formulas server side and emits source markup for a
// client-side typesetter (KaTeX reads the katex-src elements on load).
//
// Malformed structure (unbalanced braces, unmatched \begin/\end or
// \left/\right) is always an error. Expressions the go-latex parser
// rejects are errors only when Strict is not "ignore"; its grammar covers
// a subset of what the typesetter accepts.
type LatexRenderer struct{}

// NewLatexRenderer creates a LatexRenderer.
func NewLatexRenderer() *LatexRenderer {
	return &LatexRenderer{}
}

// Ready implements Readiness. The renderer has nothing to load.
func (r *LatexRenderer) Ready() bool {
	return true
}

// RenderToString implements Renderer.
func (r *LatexRenderer) RenderToString(src string, opts Options) (string, error) {
	if err := checkStructure(src); err != nil {
		return "", r.fail(src, opts, err)
	}
	if !opts.Trust {
		for _, cmd := range untrustedCommands {
			if containsCommand(src, cmd) {
				return "", r.fail(src, opts, &ParseError{Source: src, Pos: strings.Index(src, cmd), Msg: cmd + " is not trusted"})
			}
		}
	}
	if err := parseExpr(src); err != nil {
		switch opts.Strict {
		case StrictIgnore, "":
			logger.Debug("go-latex rejected formula, ignored", logger.String("source", src), logger.Err(err))
		case StrictWarn:
			logger.Warn("go-latex rejected formula", logger.String("source", src), logger.Err(err))
		default:
			return "", r.fail(src, opts, &ParseError{Source: src, Pos: -1, Msg: err.Error()})
		}
	}

	tag := "span"
	if opts.DisplayMode {
		tag = "div"
	}
	return fmt.Sprintf(`<%s class="katex-src" data-display="%t">%s</%s>`, tag, opts.DisplayMode, html.EscapeString(src), tag), nil
}

// fail returns err as is when ThrowOnError is set, otherwise wrapped in an
// InlineError carrying the error fragment.
func (r *LatexRenderer) fail(src string, opts Options, err error) error {
	if opts.ThrowOnError {
		return err
	}
	color := opts.ErrorColor
	if color == "" {
		color = DefaultErrorColor
	}
	return &InlineError{
		Markup: fmt.Sprintf(`<span class="katex-error" style="color:%s" title="%s">%s</span>`,
			html.EscapeString(color), html.EscapeString(err.Error()), html.EscapeString(src)),
		Err: err,
	}
}

// parseExpr runs the go-latex parser, which may panic on input outside its
// grammar.
func parseExpr(src string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parser panic: %v", r)
		}
	}()
	_, err = latex.ParseExpr("$" + src + "$")
	return err
}

// containsCommand reports whether src uses the control sequence cmd as a
// whole word (\url but not \urlx).
func containsCommand(src, cmd string) bool {
	for i := 0; ; {
		idx := strings.Index(src[i:], cmd)
		if idx < 0 {
			return false
		}
		end := i + idx + len(cmd)
		if end == len(src) || !isASCIILetter(src[end]) {
			return true
		}
		i = end
	}
}

// checkStructure validates brace balance, \begin/\end pairing and
// \left/\right counts.
func checkStructure(src string) error {
	depth := 0
	var envs []string
	leftRight := 0

	n := len(src)
	for i := 0; i < n; i++ {
		switch src[i] {
		case '\\':
			if i+1 >= n {
				continue
			}
			if !isASCIILetter(src[i+1]) {
				// \{ \} \\ \$ and friends
				i++
				continue
			}
			j := i + 1
			for j < n && isASCIILetter(src[j]) {
				j++
			}
			name := src[i+1 : j]
			switch name {
			case "begin", "end":
				arg, next, ok := braceArg(src, j)
				if !ok {
					return &ParseError{Source: src, Pos: i, Msg: `expected {name} after \` + name}
				}
				if name == "begin" {
					envs = append(envs, arg)
				} else {
					if len(envs) == 0 || envs[len(envs)-1] != arg {
						return &ParseError{Source: src, Pos: i, Msg: `\end{` + arg + `} without matching \begin`}
					}
					envs = envs[:len(envs)-1]
				}
				j = next
			case "left":
				leftRight++
			case "right":
				leftRight--
				if leftRight < 0 {
					return &ParseError{Source: src, Pos: i, Msg: `\right without matching \left`}
				}
			}
			i = j - 1
		case '{':
			depth++
		case '}':
			depth--
			if depth < 0 {
				return &ParseError{Source: src, Pos: i, Msg: "unexpected }"}
			}
		}
	}

	switch {
	case depth > 0:
		return &ParseError{Source: src, Pos: n, Msg: "missing }"}
	case len(envs) > 0:
		return &ParseError{Source: src, Pos: n, Msg: `missing \end{` + envs[len(envs)-1] + `}`}
	case leftRight > 0:
		return &ParseError{Source: src, Pos: n, Msg: `\left without matching \right`}
	}
	return nil
}

// braceArg reads a {name} argument starting at i, skipping spaces.
func braceArg(src string, i int) (arg string, next int, ok bool) {
	for i < len(src) && src[i] == ' ' {
		i++
	}
	if i >= len(src) || src[i] != '{' {
		return "", 0, false
	}
	end := strings.IndexByte(src[i:], '}')
	if end < 0 {
		return "", 0, false
	}
	return src[i+1 : i+end], i + end + 1, true
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
