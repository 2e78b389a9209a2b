// Package paper assembles question papers into a structured document with
// stable placeholder identifiers, and writes the print surface.
package paper

import (
	"fmt"
	"regexp"
	"strings"

	"mcq-paper/internal/answerkey"
	"mcq-paper/internal/logger"
	"mcq-paper/internal/numbering"
	"mcq-paper/internal/types"
)

// LayoutHints are declarative pagination hints for the presentation layer.
type LayoutHints struct {
	AvoidBreakInside bool `json:"avoid_break_inside"`
	PageBreakBefore  bool `json:"page_break_before"`
	SpanAllColumns   bool `json:"span_all_columns"`
}

// Placeholder is a named slot whose Source is rendered later by the math
// render adapter.
type Placeholder struct {
	ID         string `json:"id"`
	QuestionID string `json:"question_id"`
	Role       string `json:"role"`
	Source     string `json:"source"`
}

// HeaderBlock 试卷标题与页眉
type HeaderBlock struct {
	Title  string      `json:"title"`
	Lines  []string    `json:"lines"`
	Layout LayoutHints `json:"layout"`
}

// InstructionsBlock 考试说明
type InstructionsBlock struct {
	Text   string      `json:"text"`
	Layout LayoutHints `json:"layout"`
}

// OptionBlock 选项
type OptionBlock struct {
	Index    int          `json:"index"`
	Label    string       `json:"label"`
	Text     *Placeholder `json:"text,omitempty"` // nil for an empty option
	Image    string       `json:"image,omitempty"`
	ImageAlt string       `json:"image_alt,omitempty"`
}

// QuestionBlock 题目，整体不可跨页拆分
type QuestionBlock struct {
	ID       string        `json:"id"`
	Number   int           `json:"number"`
	Text     *Placeholder  `json:"text,omitempty"`
	Image    string        `json:"image,omitempty"`
	ImageAlt string        `json:"image_alt,omitempty"`
	Options  []OptionBlock `json:"options"`
	Layout   LayoutHints   `json:"layout"`
}

// SectionBlock groups questions. Name is empty for the implicit section of
// a flat question list; no header is shown for it.
type SectionBlock struct {
	Name string `json:"name"`
	// HeaderLayout applies to the header alone; the section itself may
	// break across pages and columns.
	HeaderLayout LayoutHints     `json:"header_layout"`
	Layout       LayoutHints     `json:"layout"`
	Questions    []QuestionBlock `json:"questions"`
}

// ShowHeader reports whether the section header is rendered.
func (s SectionBlock) ShowHeader() bool {
	return strings.TrimSpace(s.Name) != ""
}

// Decorations are applied to every output page, not to individual blocks.
type Decorations struct {
	Watermark types.Watermark `json:"watermark"`
	Footer    []string        `json:"footer"`
}

// Style 字体与编号样式
type Style struct {
	FontSize   float64          `json:"font_size"`
	FontWeight types.FontWeight `json:"font_weight"`
	FontColor  string           `json:"font_color"`
	Numbering  numbering.Style  `json:"numbering"`
}

// Document is an assembled paper.
type Document struct {
	Header          HeaderBlock        `json:"header"`
	Instructions    *InstructionsBlock `json:"instructions,omitempty"`
	Sections        []SectionBlock     `json:"sections"`
	AnswerKey       *answerkey.Block   `json:"answer_key,omitempty"`
	AnswerKeyLayout LayoutHints        `json:"answer_key_layout"`
	Decorations     Decorations        `json:"decorations"`
	Style           Style              `json:"style"`
}

const (
	// DefaultNumberingStyle is used when the config leaves the style empty
	DefaultNumberingStyle = "A)"
	// DefaultFontSize is used when the config leaves the size unset
	DefaultFontSize = 12.0
	// DefaultFontColor is used when the config leaves the color empty
	DefaultFontColor = "#000000"
)

var colorRe = regexp.MustCompile(`^(#[0-9a-fA-F]{3}|#[0-9a-fA-F]{4}|#[0-9a-fA-F]{6}|#[0-9a-fA-F]{8}|[a-zA-Z]+)$`)

// Assemble builds the document for cfg and sections. Numbering is 1-based
// and continuous across sections. Inputs are not modified.
//
// A configuration that cannot produce a paper (no questions, an invalid
// numbering style or color, duplicate or empty question IDs, a question
// with fewer than two or more than five options) returns a single
// *types.AppError and no document.
func Assemble(cfg types.DocumentConfig, sections []types.Section) (*Document, error) {
	style, err := resolveStyle(cfg)
	if err != nil {
		return nil, err
	}
	mode, err := types.ParseAnswerKeyMode(string(cfg.AnswerKeyDisplayMode))
	if err != nil {
		return nil, types.NewAppError(types.ErrConfig, "invalid answer key display mode", err)
	}
	if err := validateQuestions(sections); err != nil {
		return nil, err
	}

	doc := &Document{
		Header: HeaderBlock{
			Title:  cfg.PaperTitle,
			Lines:  nonBlank(cfg.Header),
			Layout: LayoutHints{SpanAllColumns: true},
		},
		Decorations: Decorations{
			Watermark: cfg.Watermark,
			Footer:    nonBlank(cfg.Footer),
		},
		Style: style,
	}
	if strings.TrimSpace(cfg.Instructions) != "" {
		doc.Instructions = &InstructionsBlock{
			Text:   cfg.Instructions,
			Layout: LayoutHints{SpanAllColumns: true},
		}
	}

	number := 0
	doc.Sections = make([]SectionBlock, 0, len(sections))
	for _, s := range sections {
		sb := SectionBlock{
			Name:         s.Name,
			HeaderLayout: LayoutHints{AvoidBreakInside: true},
			Questions:    make([]QuestionBlock, 0, len(s.Questions)),
		}
		for _, q := range s.Questions {
			number++
			sb.Questions = append(sb.Questions, buildQuestion(q, number, style.Numbering))
		}
		doc.Sections = append(doc.Sections, sb)
	}

	doc.AnswerKey = answerkey.Build(types.FlattenQuestions(sections), mode, style.Numbering)
	if doc.AnswerKey != nil {
		doc.AnswerKeyLayout = LayoutHints{PageBreakBefore: true, SpanAllColumns: true}
	}

	logger.Debug("paper assembled",
		logger.Int("sections", len(doc.Sections)),
		logger.Int("questions", number),
		logger.String("answerKeyMode", string(mode)))
	return doc, nil
}

func resolveStyle(cfg types.DocumentConfig) (Style, error) {
	token := cfg.OptionNumberingStyle
	if strings.TrimSpace(token) == "" {
		token = DefaultNumberingStyle
	}
	ns, err := numbering.Parse(token)
	if err != nil {
		return Style{}, types.NewAppErrorWithDetails(types.ErrConfig, "invalid option numbering style", token, err)
	}

	weight, err := types.ParseFontWeight(string(cfg.FontWeight))
	if err != nil {
		return Style{}, types.NewAppError(types.ErrConfig, "invalid font weight", err)
	}

	size := cfg.FontSize
	if size <= 0 {
		size = DefaultFontSize
	}

	color := strings.TrimSpace(cfg.FontColor)
	if color == "" {
		color = DefaultFontColor
	}
	if !colorRe.MatchString(color) {
		return Style{}, types.NewAppErrorWithDetails(types.ErrConfig, "invalid font color", color, nil)
	}

	return Style{FontSize: size, FontWeight: weight, FontColor: color, Numbering: ns}, nil
}

func validateQuestions(sections []types.Section) error {
	seen := make(map[string]bool)
	total := 0
	for _, s := range sections {
		for _, q := range s.Questions {
			total++
			if strings.TrimSpace(q.ID) == "" {
				return types.NewAppErrorWithDetails(types.ErrInvalidInput, "question has no id", fmt.Sprintf("question %d", total), nil)
			}
			if seen[q.ID] {
				return types.NewAppErrorWithDetails(types.ErrInvalidInput, "duplicate question id", q.ID, nil)
			}
			seen[q.ID] = true
			if n := len(q.Options); n < 2 || n > numbering.MaxOptions {
				return types.NewAppErrorWithDetails(types.ErrInvalidInput,
					fmt.Sprintf("question must have 2 to %d options", numbering.MaxOptions),
					fmt.Sprintf("question %s has %d", q.ID, n), nil)
			}
		}
	}
	if total == 0 {
		return types.NewAppError(types.ErrInvalidInput, "no questions to assemble", nil)
	}
	return nil
}

func buildQuestion(q types.Question, number int, ns numbering.Style) QuestionBlock {
	qb := QuestionBlock{
		ID:      q.ID,
		Number:  number,
		Text:    newPlaceholder(q.ID, types.RoleQuestionText, q.QuestionText),
		Options: make([]OptionBlock, 0, len(q.Options)),
		Layout:  LayoutHints{AvoidBreakInside: true},
	}
	if q.QuestionImage != "" {
		qb.Image = q.QuestionImage
		qb.ImageAlt = fmt.Sprintf("Question %d Image", number)
	}

	for i, opt := range q.Options {
		ob := OptionBlock{
			Index: i,
			Label: ns.Label(i),
			Text:  newPlaceholder(q.ID, types.OptionRole(i), opt.Text),
		}
		if opt.Image != "" {
			ob.Image = opt.Image
			ob.ImageAlt = fmt.Sprintf("Option %c Image", 'A'+i)
		}
		qb.Options = append(qb.Options, ob)
	}
	return qb
}

// newPlaceholder returns nil for blank source.
func newPlaceholder(questionID, role, source string) *Placeholder {
	if strings.TrimSpace(source) == "" {
		return nil
	}
	return &Placeholder{
		ID:         types.PlaceholderID(questionID, role),
		QuestionID: questionID,
		Role:       role,
		Source:     source,
	}
}

func nonBlank(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}

// Questions returns the question blocks of all sections in order.
func (d *Document) Questions() []QuestionBlock {
	var out []QuestionBlock
	for _, s := range d.Sections {
		out = append(out, s.Questions...)
	}
	return out
}

// Placeholders returns every placeholder in document order: question
// text, then its options, then answer-key explanations.
func (d *Document) Placeholders() []Placeholder {
	var out []Placeholder
	for _, q := range d.Questions() {
		if q.Text != nil {
			out = append(out, *q.Text)
		}
		for _, o := range q.Options {
			if o.Text != nil {
				out = append(out, *o.Text)
			}
		}
	}
	if d.AnswerKey != nil {
		for _, e := range d.AnswerKey.Entries {
			if e.ExplanationID != "" {
				out = append(out, Placeholder{
					ID:         e.ExplanationID,
					QuestionID: e.QuestionID,
					Role:       types.RoleExplanation,
					Source:     e.Explanation,
				})
			}
		}
	}
	return out
}
