// Package mathtext splits mixed text/math strings into typed segments and
// rewrites tabular environments into arrays a math renderer understands.
package mathtext

import (
	"strings"

	"mcq-paper/internal/types"
)

// Delimiters
const (
	InlineDelimiter  = "$"
	DisplayDelimiter = "$$"
)

type scanState int

const (
	statePlain scanState = iota
	stateInline
	stateDisplay
)

// ScanOptions controls post-processing of a scan.
type ScanOptions struct {
	// ForceDisplay disables the whole-string math heuristic. The caller is
	// going to hand the entire string to the renderer in display mode.
	ForceDisplay bool
}

// Scan partitions text into ordered text and math segments.
func Scan(text string) []types.Segment {
	return ScanWithOptions(text, ScanOptions{})
}

// ScanWithOptions partitions text into ordered text and math segments.
//
// Delimiter rules:
//   - `\$` is a literal dollar; both bytes stay in the content.
//   - `$$` opens display math from plain text and closes it.
//   - `$` opens inline math; inside inline math any unescaped `$` closes it.
//   - inside display math a lone `$` is content.
//
// An unclosed delimiter at end of input is emitted, with everything after
// it, as a trailing text segment.
func ScanWithOptions(text string, opts ScanOptions) []types.Segment {
	segs, recovered := scan(text)
	// Recovered text stays literal. Its dangling $ would always classify
	// as math, turning a lone "$5" into a formula.
	if recovered || opts.ForceDisplay {
		return segs
	}
	if len(segs) == 0 || (len(segs) == 1 && segs[0].Kind == types.SegmentText) {
		return Classify(text, segs)
	}
	return segs
}

// scan runs the state machine. recovered reports that input ended inside an
// open math run.
func scan(text string) (segs []types.Segment, recovered bool) {
	var buf strings.Builder
	state := statePlain

	flushText := func() {
		if buf.Len() > 0 {
			segs = append(segs, types.TextSegment(buf.String()))
			buf.Reset()
		}
	}
	flushMath := func(display bool) {
		segs = append(segs, types.MathSegment(buf.String(), display))
		buf.Reset()
	}

	n := len(text)
	i := 0
	for i < n {
		c := text[i]

		// 转义：\$ 与 \\ 作为整体保留，不参与定界符判断
		if c == '\\' && i+1 < n && (text[i+1] == '$' || text[i+1] == '\\') {
			buf.WriteString(text[i : i+2])
			i += 2
			continue
		}
		if c != '$' {
			buf.WriteByte(c)
			i++
			continue
		}

		double := i+1 < n && text[i+1] == '$'
		switch state {
		case statePlain:
			flushText()
			if double {
				state = stateDisplay
				i += 2
			} else {
				state = stateInline
				i++
			}
		case stateInline:
			flushMath(false)
			state = statePlain
			i++
		case stateDisplay:
			if double {
				flushMath(true)
				state = statePlain
				i += 2
			} else {
				buf.WriteByte(c)
				i++
			}
		}
	}

	switch state {
	case stateInline:
		segs = append(segs, types.TextSegment(InlineDelimiter+buf.String()))
		recovered = true
	case stateDisplay:
		segs = append(segs, types.TextSegment(DisplayDelimiter+buf.String()))
		recovered = true
	default:
		flushText()
	}
	return segs, recovered
}

// Join reassembles segments into source text, re-inserting delimiters
// around math content.
func Join(segs []types.Segment) string {
	var sb strings.Builder
	for _, s := range segs {
		if s.Kind != types.SegmentMath {
			sb.WriteString(s.Content)
			continue
		}
		d := InlineDelimiter
		if s.DisplayMode {
			d = DisplayDelimiter
		}
		sb.WriteString(d)
		sb.WriteString(s.Content)
		sb.WriteString(d)
	}
	return sb.String()
}

// HasMath reports whether any segment is math.
func HasMath(segs []types.Segment) bool {
	for _, s := range segs {
		if s.Kind == types.SegmentMath {
			return true
		}
	}
	return false
}
