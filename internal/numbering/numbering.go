// Package numbering parses option numbering styles such as "A)" or "(1)"
// and derives option labels from them.
package numbering

import (
	"strconv"
	"strings"
	"unicode"

	"mcq-paper/internal/types"
)

// Case is the alphabet used for option labels.
type Case int

const (
	Upper Case = iota
	Lower
	Numeric
)

// String returns the string representation of the case
func (c Case) String() string {
	switch c {
	case Upper:
		return "upper"
	case Lower:
		return "lower"
	case Numeric:
		return "numeric"
	default:
		return "unknown"
	}
}

// MaxOptions is the largest option count a question may have.
const MaxOptions = 5

// SupportedStyles lists the styles offered to authors.
var SupportedStyles = []string{"A)", "(A)", "a)", "(a)", "1)", "(1)"}

// Style is a parsed option numbering style.
type Style struct {
	WrapInParens bool
	Case         Case
	Suffix       string
}

// Parse parses a numbering style token. The alphabet is taken from the
// first of '1', 'a' or 'A' found; a leading '(' wraps labels in parens;
// any other punctuation becomes the suffix.
func Parse(style string) (Style, error) {
	s := strings.TrimSpace(style)
	var st Style

	switch {
	case strings.Contains(s, "1"):
		st.Case = Numeric
	case strings.Contains(s, "a"):
		st.Case = Lower
	case strings.Contains(s, "A"):
		st.Case = Upper
	default:
		return Style{}, types.NewAppErrorWithDetails(types.ErrInvalidInput,
			"unsupported option numbering style", style, nil)
	}

	if strings.HasPrefix(s, "(") {
		st.WrapInParens = true
		return st, nil
	}
	st.Suffix = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	return st, nil
}

// MustParse is like Parse but panics on an invalid style.
func MustParse(style string) Style {
	st, err := Parse(style)
	if err != nil {
		panic(err)
	}
	return st
}

// Letter returns the bare option letter for 0-based index i: "A", "a" or "1".
func (s Style) Letter(i int) string {
	switch s.Case {
	case Lower:
		return string(rune('a' + i))
	case Numeric:
		return strconv.Itoa(i + 1)
	default:
		return string(rune('A' + i))
	}
}

// Label returns the decorated option label for 0-based index i.
func (s Style) Label(i int) string {
	if s.WrapInParens {
		return "(" + s.Letter(i) + ")"
	}
	return s.Letter(i) + s.Suffix
}

// String renders the style back to its token form.
func (s Style) String() string {
	return s.Label(0)
}

// LetterIndex maps a letter answer such as "B" or " c " to its 0-based
// option index. ok is false for anything that is not a single letter
// within count.
func LetterIndex(answer string, count int) (idx int, ok bool) {
	a := strings.ToUpper(strings.TrimSpace(answer))
	if len(a) != 1 || a[0] < 'A' || a[0] > 'Z' {
		return 0, false
	}
	idx = int(a[0] - 'A')
	if idx >= count {
		return 0, false
	}
	return idx, true
}
