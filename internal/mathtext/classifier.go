package mathtext

import (
	"strings"

	"mcq-paper/internal/types"
)

// lineBreak is the author's line break syntax.
const lineBreak = `\\`

// HasMathSymbols reports whether text looks like bare LaTeX: it contains a
// control sequence (backslash plus letters, not followed by another
// backslash) or one of $ { } ^ _.
//
// The two backslashes of a `\\` line break never start a control sequence,
// and an escaped `\$` does not count as a dollar.
func HasMathSymbols(text string) bool {
	n := len(text)
	for i := 0; i < n; i++ {
		switch text[i] {
		case '\\':
			if i+1 >= n {
				continue
			}
			next := text[i+1]
			if next == '\\' || next == '$' {
				i++
				continue
			}
			if !isLetter(next) {
				continue
			}
			j := i + 1
			for j < n && isLetter(text[j]) {
				j++
			}
			if j == n || text[j] != '\\' {
				return true
			}
			i = j - 1
		case '$', '{', '}', '^', '_':
			return true
		}
	}
	return false
}

// Classify decides whether an undelimited string is really math. It
// returns a single inline math segment wrapping the whole of text, or segs
// unchanged.
func Classify(text string, segs []types.Segment) []types.Segment {
	hasMath := HasMathSymbols(text)
	onlyLineBreaks := !hasMath && strings.Contains(text, lineBreak)
	if hasMath && !onlyLineBreaks {
		return []types.Segment{types.MathSegment(text, false)}
	}
	return segs
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
