package mathtext

import (
	"regexp"
	"strings"
)

const (
	tabularBegin = `\begin{tabular}`
	tabularEnd   = `\end{tabular}`
	arrayBegin   = `\begin{array}`
	arrayEnd     = `\end{array}`
	hline        = `\hline`
)

var (
	rowSeparatorRe = regexp.MustCompile(`\\\\\s*`)
	dollarPairRe   = regexp.MustCompile(`\$(.*?)\$`)
)

// NormalizeTabular rewrites every \begin{tabular}{spec}...\end{tabular}
// block into an equivalent array block. Text outside the blocks is copied
// unchanged. A block without a column spec or closing \end{tabular} is left
// as is.
func NormalizeTabular(text string) string {
	if !strings.Contains(text, tabularBegin) {
		return text
	}

	var sb strings.Builder
	pos := 0
	for {
		idx := strings.Index(text[pos:], tabularBegin)
		if idx < 0 {
			break
		}
		start := pos + idx
		specStart, specEnd, ok := parseColumnSpec(text, start+len(tabularBegin))
		if !ok {
			sb.WriteString(text[pos : start+len(tabularBegin)])
			pos = start + len(tabularBegin)
			continue
		}
		bodyEnd := findTabularEnd(text, specEnd)
		if bodyEnd < 0 {
			break
		}

		sb.WriteString(text[pos:start])
		sb.WriteString(arrayBegin)
		sb.WriteString(text[specStart:specEnd])
		sb.WriteString(convertTabularBody(text[specEnd:bodyEnd]))
		sb.WriteString(arrayEnd)
		pos = bodyEnd + len(tabularEnd)
	}
	sb.WriteString(text[pos:])
	return sb.String()
}

// parseColumnSpec finds the braced column spec after \begin{tabular},
// skipping whitespace and an optional [pos] argument. It returns the byte
// range of the spec including its braces.
func parseColumnSpec(text string, i int) (start, end int, ok bool) {
	i = skipSpaces(text, i)
	if i < len(text) && text[i] == '[' {
		rb := strings.IndexByte(text[i:], ']')
		if rb < 0 {
			return 0, 0, false
		}
		i = skipSpaces(text, i+rb+1)
	}
	if i >= len(text) || text[i] != '{' {
		return 0, 0, false
	}

	// 列格式可能嵌套花括号，例如 p{2cm}
	depth := 0
	for j := i; j < len(text); j++ {
		switch text[j] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, j + 1, true
			}
		}
	}
	return 0, 0, false
}

// findTabularEnd returns the index of the \end{tabular} that closes the
// block whose body starts at from, honoring nested tabulars.
func findTabularEnd(text string, from int) int {
	depth := 1
	i := from
	for i < len(text) {
		nextBegin := strings.Index(text[i:], tabularBegin)
		nextEnd := strings.Index(text[i:], tabularEnd)
		if nextEnd < 0 {
			return -1
		}
		if nextBegin >= 0 && nextBegin < nextEnd {
			depth++
			i += nextBegin + len(tabularBegin)
			continue
		}
		depth--
		if depth == 0 {
			return i + nextEnd
		}
		i += nextEnd + len(tabularEnd)
	}
	return -1
}

func convertTabularBody(body string) string {
	rows := rowSeparatorRe.Split(strings.TrimSpace(body), -1)
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		trimmed := strings.TrimSpace(row)
		if trimmed == "" {
			continue
		}
		if trimmed == hline {
			out = append(out, hline)
			continue
		}

		cells := strings.Split(row, "&")
		for i, cell := range cells {
			cells[i] = convertCell(strings.TrimSpace(cell))
		}
		out = append(out, strings.Join(cells, " & "))
	}
	return strings.Join(out, ` \\ `)
}

func convertCell(cell string) string {
	switch {
	case isWrappedMath(cell):
		return cell[1 : len(cell)-1]
	case strings.Contains(cell, "$"):
		return dollarPairRe.ReplaceAllString(cell, "$1")
	case cell != "" && !strings.HasPrefix(cell, `\`):
		return `\text{` + cell + `}`
	default:
		return cell
	}
}

// isWrappedMath reports a cell of the form $...$ with no inner dollar.
func isWrappedMath(cell string) bool {
	if len(cell) < 2 || cell[0] != '$' || cell[len(cell)-1] != '$' {
		return false
	}
	return !strings.Contains(cell[1:len(cell)-1], "$")
}

func skipSpaces(text string, i int) int {
	for i < len(text) && (text[i] == ' ' || text[i] == '\t' || text[i] == '\n' || text[i] == '\r') {
		i++
	}
	return i
}
