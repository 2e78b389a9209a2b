// Package importer maps the backend quiz JSON export onto sections and a
// document configuration.
package importer

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"mcq-paper/internal/issues"
	"mcq-paper/internal/logger"
	"mcq-paper/internal/types"
)

// Messages shown to the user after an import.
const (
	MsgQuizNotFound = "Invalid JSON: 'quiz' object not found"
	MsgInvalidJSON  = "Invalid JSON format: "
	MsgNoQuestions  = "No questions found in the JSON data"
	msgLoadedFormat = "Successfully loaded %d questions from JSON!"
)

// Warning is a non-fatal problem found while importing.
type Warning struct {
	Ref     string `json:"ref"`
	Message string `json:"message"`
}

// Result is the outcome of an import. A bad payload gives Success=false and
// a Message; it is never returned as an error.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	// Encoding is the detected payload encoding.
	Encoding string `json:"encoding,omitempty"`
	// Config carries the title, header, instructions, footer and watermark.
	// Style fields are left zero.
	Config    types.DocumentConfig `json:"config"`
	Sections  []types.Section      `json:"sections"`
	Questions []types.Question     `json:"questions"`
	Warnings  []Warning            `json:"warnings,omitempty"`
}

// Apply overlays the imported paper metadata on base. Empty imported values
// keep the base value.
func (r *Result) Apply(base types.DocumentConfig) types.DocumentConfig {
	if r == nil {
		return base
	}
	if r.Config.PaperTitle != "" {
		base.PaperTitle = r.Config.PaperTitle
	}
	if r.Config.Instructions != "" {
		base.Instructions = r.Config.Instructions
	}
	if len(r.Config.Header) > 0 {
		base.Header = r.Config.Header
	}
	if len(r.Config.Footer) > 0 {
		base.Footer = r.Config.Footer
	}
	if r.Config.Watermark.Enabled || r.Config.Watermark.Text != "" {
		base.Watermark = r.Config.Watermark
	}
	return base
}

// Report records the failure or warnings of r with rep.
func (r *Result) Report(rep issues.Reporter) {
	if r == nil || rep == nil {
		return
	}
	if !r.Success {
		rep.Record("import", issues.KindImport, "", r.Message)
		return
	}
	for _, w := range r.Warnings {
		rep.Record(w.Ref, issues.KindImport, "", w.Message)
	}
}

type payload struct {
	Quiz object[quiz] `json:"quiz"`
}

type quiz struct {
	Title    flexString       `json:"title"`
	Metadata object[metadata] `json:"metadata"`
	Sections list[*section]   `json:"sections"`
}

type metadata struct {
	Header       stringList         `json:"header"`
	Instructions stringList         `json:"instructions"`
	Footer       stringList         `json:"footer"`
	Watermark    object[watermarks] `json:"watermark"`
}

type watermarks struct {
	Enabled flexBool   `json:"enabled"`
	Text    flexString `json:"text"`
}

type section struct {
	Name      flexString      `json:"name"`
	Questions list[*question] `json:"questions"`
}

type question struct {
	MongoID      flexID          `json:"_id"`
	ID           flexID          `json:"id"`
	QuestionText flexString      `json:"question_text"`
	ImageURL     flexString      `json:"image_url"`
	OptionA      flexString      `json:"option_a"`
	OptionB      flexString      `json:"option_b"`
	OptionC      flexString      `json:"option_c"`
	OptionD      flexString      `json:"option_d"`
	OptionE      flexString      `json:"option_e"`
	OptionAImage flexString      `json:"option_a_image_url"`
	OptionBImage flexString      `json:"option_b_image_url"`
	OptionCImage flexString      `json:"option_c_image_url"`
	OptionDImage flexString      `json:"option_d_image_url"`
	OptionEImage flexString      `json:"option_e_image_url"`
	Correct      flexString      `json:"correct_answer"`
	Explanation  flexString      `json:"explanation"`
	Tags         json.RawMessage `json:"tags"`
}

// ParseQuizJSON parses a backend quiz export. Question and option text is
// kept as is, including `\\` row separators.
func ParseQuizJSON(data []byte) *Result {
	text, enc, err := decodePayload(data)
	if err != nil {
		return &Result{Message: MsgInvalidJSON + err.Error(), Encoding: enc}
	}

	var p payload
	if err := json.Unmarshal(text, &p); err != nil {
		logger.Warn("quiz JSON rejected", logger.Err(err))
		return &Result{Message: MsgInvalidJSON + err.Error(), Encoding: enc}
	}
	q := p.Quiz.Value
	if q == nil {
		return &Result{Message: MsgQuizNotFound, Encoding: enc}
	}

	r := &Result{
		Success:  true,
		Encoding: enc,
		Config:   types.DocumentConfig{PaperTitle: string(q.Title)},
	}
	if md := q.Metadata.Value; md != nil {
		r.Config.Header = md.Header
		r.Config.Footer = md.Footer
		r.Config.Instructions = strings.Join(md.Instructions, "\n")
		if wm := md.Watermark.Value; wm != nil {
			r.Config.Watermark = types.Watermark{Enabled: bool(wm.Enabled), Text: string(wm.Text)}
		}
	}

	for si, s := range q.Sections {
		if s == nil {
			continue
		}
		sec := types.Section{Name: string(s.Name)}
		for qi, raw := range s.Questions {
			if raw == nil {
				r.warn(fmt.Sprintf("section %d question %d", si+1, qi+1), "null question skipped")
				continue
			}
			sec.Questions = append(sec.Questions, r.mapQuestion(raw, sec.Name))
		}
		if len(sec.Questions) == 0 {
			continue
		}
		r.Sections = append(r.Sections, sec)
		r.Questions = append(r.Questions, sec.Questions...)
	}

	if len(r.Questions) == 0 {
		r.Message = MsgNoQuestions
	} else {
		r.Message = fmt.Sprintf(msgLoadedFormat, len(r.Questions))
	}

	logger.Info("quiz imported",
		logger.String("encoding", enc),
		logger.Int("sections", len(r.Sections)),
		logger.Int("questions", len(r.Questions)),
		logger.Int("warnings", len(r.Warnings)))
	return r
}

func (r *Result) mapQuestion(raw *question, sectionName string) types.Question {
	id := strings.TrimSpace(string(raw.MongoID))
	if id == "" {
		id = strings.TrimSpace(string(raw.ID))
	}
	if id == "" {
		id = uuid.NewString()
		r.warn(id, "question has no id, generated one")
	}

	q := types.Question{
		ID:            id,
		QuestionText:  string(raw.QuestionText),
		QuestionImage: string(raw.ImageURL),
		Options: []types.Option{
			{Text: string(raw.OptionA), Image: string(raw.OptionAImage)},
			{Text: string(raw.OptionB), Image: string(raw.OptionBImage)},
			{Text: string(raw.OptionC), Image: string(raw.OptionCImage)},
			{Text: string(raw.OptionD), Image: string(raw.OptionDImage)},
		},
		CorrectAnswer: string(raw.Correct),
		Explanation:   string(raw.Explanation),
		SectionName:   sectionName,
		Tags:          decodeTags(raw.Tags),
	}
	if strings.TrimSpace(string(raw.OptionE)) != "" {
		q.Options = append(q.Options, types.Option{Text: string(raw.OptionE), Image: string(raw.OptionEImage)})
	}
	return q
}

// decodeTags keeps tags only when they are a JSON object.
func decodeTags(raw json.RawMessage) map[string]any {
	tags := map[string]any{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &tags)
	}
	return tags
}

func (r *Result) warn(ref, msg string) {
	r.Warnings = append(r.Warnings, Warning{Ref: ref, Message: msg})
}

// ParseQuizFile reads and parses a quiz export. Only a read failure is
// returned as an error.
func ParseQuizFile(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, types.NewAppErrorWithDetails(types.ErrFileNotFound, "quiz file not found", path, err)
		}
		return nil, types.NewAppErrorWithDetails(types.ErrImport, "failed to read quiz file", path, err)
	}
	return ParseQuizJSON(data), nil
}
