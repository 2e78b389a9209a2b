package paper

import (
	"fmt"
	"html"
	"html/template"
	"io"
	"strconv"

	"mcq-paper/internal/answerkey"
	"mcq-paper/internal/types"
)

// HTMLOptions controls the print surface.
type HTMLOptions struct {
	// ClientTypeset loads KaTeX in the page and typesets every katex-src
	// element produced by render.LatexRenderer.
	ClientTypeset bool
	// OmitDecorations leaves the watermark and footer out of the page;
	// pdf.Finisher stamps them onto the printed PDF instead.
	OmitDecorations bool
}

// WriteHTML writes the print surface of doc with placeholders replaced by
// fills. A placeholder missing from fills is written as escaped source.
func WriteHTML(w io.Writer, doc *Document, fills Fills, opts HTMLOptions) error {
	v := &htmlView{Document: doc, fills: fills, opts: opts}
	if err := printTemplate.Execute(w, v); err != nil {
		return types.NewAppError(types.ErrInternal, "failed to write paper HTML", err)
	}
	return nil
}

type htmlView struct {
	*Document
	fills Fills
	opts  HTMLOptions
}

func (v *htmlView) ClientTypeset() bool {
	return v.opts.ClientTypeset
}

func (v *htmlView) ShowDecorations() bool {
	return !v.opts.OmitDecorations
}

// Fill returns the rendered markup of p.
func (v *htmlView) Fill(p *Placeholder) template.HTML {
	if p == nil {
		return ""
	}
	return v.FillID(p.ID, p.Source)
}

// FillID returns the rendered markup for id, or escaped source.
func (v *htmlView) FillID(id, source string) template.HTML {
	if m, ok := v.fills[id]; ok {
		return template.HTML(m.HTML)
	}
	return template.HTML(html.EscapeString(source))
}

func (v *htmlView) KeyIsGrid() bool {
	return v.AnswerKey != nil && v.AnswerKey.Layout == answerkey.LayoutGrid
}

// StyleCSS carries the font settings. Values were validated by Assemble.
func (v *htmlView) StyleCSS() template.CSS {
	s := v.Style
	return template.CSS(fmt.Sprintf(
		"body{font-size:%spx;font-weight:%s;color:%s}"+
			".question-header{font-size:%spx}"+
			".option-label,.option-content{font-size:%spx}",
		px(s.FontSize), s.FontWeight, s.FontColor, px(s.FontSize+1), px(s.FontSize-1)))
}

func px(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

var printTemplate = template.Must(template.New("paper").Parse(printHTML))

const printHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="referrer" content="no-referrer">
<title>{{.Header.Title}}</title>
{{- if .ClientTypeset}}
<link rel="stylesheet" href="https://cdnjs.cloudflare.com/ajax/libs/KaTeX/0.16.8/katex.min.css">
{{- end}}
<style>
body{font-family:'Times New Roman',serif;line-height:1.4;margin:15px}
.header{text-align:center;margin-bottom:25px;border-bottom:2px solid #333;padding-bottom:15px;column-span:all}
.title{font-size:22px;font-weight:bold;margin-bottom:8px}
.header-line{font-size:14px;color:#666;margin-bottom:5px}
.instructions{margin-bottom:25px;padding:12px;background-color:#f8f8f8;border-left:3px solid #333;column-span:all}
.instructions h3{margin-top:0;font-size:14px;margin-bottom:8px}
.instructions pre{margin:0;font-size:11px;line-height:1.3;white-space:pre-wrap}
.questions-container{column-count:2;column-gap:20px;column-rule:1px solid #ddd;padding-bottom:20px;column-fill:balance;margin-bottom:40px}
.section-header{font-size:16px;font-weight:bold;background-color:#f0f0f0;padding:3px 6px;border-radius:4px;page-break-inside:avoid;break-inside:avoid;display:block}
.question{margin-bottom:15px;page-break-inside:avoid;break-inside:avoid;display:inline-block;width:100%;padding-bottom:3px}
.question-num-text{display:flex;gap:5px}
.question-header{font-weight:bold;color:#333}
.question-image{max-width:100%;height:auto;margin:8px 0;display:block}
.options{margin-left:12px}
.option{margin-bottom:6px;display:flex;align-items:flex-start;gap:6px;line-height:1.3}
.option-label{font-weight:bold;min-width:18px}
.option-content{flex:1}
.option-image{max-width:150px;height:auto;margin-top:3px;display:block}
.math-error{font-family:monospace}
.math-fallback{font-family:monospace}
.watermark{position:fixed;top:50%;left:50%;transform:translate(-50%,-50%) rotate(-45deg);font-size:48px;color:rgba(0,0,0,0.1);z-index:-1;font-weight:bold;white-space:nowrap;pointer-events:none}
.footer{position:fixed;bottom:0;left:0;right:0;text-align:center;font-size:11px;color:#666;background:white;z-index:1000;border-top:1px solid #ddd;width:100%}
.page-break{page-break-before:always;break-before:page}
.answer-key-title{text-align:center;font-size:20px;margin-bottom:20px}
.answer-key-grid{display:grid;grid-template-columns:repeat(auto-fill,minmax(120px,1fr));gap:15px;width:100%}
.answer-key-entry{font-weight:bold;page-break-inside:avoid}
.answer-item{margin-bottom:15px;page-break-inside:avoid}
.answer-label{font-weight:bold}
.explanation{margin-top:5px;padding-left:15px}
@media print{@page{margin:0.5in}body{margin:0}.questions-container{column-gap:15px}}
{{.StyleCSS}}
</style>
</head>
<body>
<div class="header">
<div class="title">{{.Header.Title}}</div>
{{- range .Header.Lines}}
<div class="header-line">{{.}}</div>
{{- end}}
</div>
{{- with .Instructions}}
<div class="instructions">
<h3>Instructions:</h3>
<pre>{{.Text}}</pre>
</div>
{{- end}}
{{- if and .ShowDecorations .Decorations.Watermark.Active}}
<div class="watermark">{{.Decorations.Watermark.Text}}</div>
{{- end}}
<div class="questions-container">
{{- range .Sections}}
{{- if .ShowHeader}}
<div class="section-header">{{.Name}}</div>
{{- end}}
{{- range .Questions}}
<div class="question">
<div class="question-num-text"><span class="question-header">{{.Number}}.</span> <span id="{{if .Text}}{{.Text.ID}}{{end}}">{{$.Fill .Text}}</span></div>
{{- if .Image}}
<img src="{{.Image}}" class="question-image" alt="{{.ImageAlt}}">
{{- end}}
<div class="options">
{{- range .Options}}
<div class="option"><span class="option-label">{{.Label}}</span><span class="option-content"><span id="{{if .Text}}{{.Text.ID}}{{end}}">{{$.Fill .Text}}</span>
{{- if .Image}}<img src="{{.Image}}" class="option-image" alt="{{.ImageAlt}}">{{end}}</span></div>
{{- end}}
</div>
</div>
{{- end}}
{{- end}}
</div>
{{- with .AnswerKey}}
<div class="page-break"></div>
<div class="answer-key-container">
<h2 class="answer-key-title">{{.Title}}</h2>
{{- if $.KeyIsGrid}}
<div class="answer-key-grid">
{{- range .Entries}}
<div class="answer-key-entry">{{.Text}}</div>
{{- end}}
</div>
{{- else}}
{{- range .Entries}}
<div class="answer-item">
<div class="answer-label">{{.Text}}</div>
{{- if .ExplanationID}}
<div class="explanation" id="{{.ExplanationID}}"><strong>Explanation:</strong> {{$.FillID .ExplanationID .Explanation}}</div>
{{- end}}
</div>
{{- end}}
{{- end}}
</div>
{{- end}}
{{- if .ShowDecorations}}
{{- with .Decorations.Footer}}
<div class="footer">
{{- range .}}
<div>{{.}}</div>
{{- end}}
</div>
{{- end}}
{{- end}}
{{- if .ClientTypeset}}
<script src="https://cdnjs.cloudflare.com/ajax/libs/KaTeX/0.16.8/katex.min.js"></script>
<script>
document.querySelectorAll('.katex-src').forEach(function (el) {
  try {
    katex.render(el.textContent, el, {displayMode: el.dataset.display === 'true', throwOnError: false, errorColor: '#f44336', trust: true, strict: 'ignore'});
  } catch (e) {}
});
</script>
{{- end}}
</body>
</html>
`
