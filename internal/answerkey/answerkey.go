// Package answerkey derives the correct option of each question and builds
// the answer key block appended after the questions.
package answerkey

import (
	"strconv"
	"strings"

	"mcq-paper/internal/issues"
	"mcq-paper/internal/numbering"
	"mcq-paper/internal/types"
)

// Layout is how entries are arranged on the page.
type Layout string

const (
	LayoutGrid Layout = "grid" // compact multi-column flow, KEY_ONLY
	LayoutList Layout = "list" // one block per question, KEY_AND_EXPLANATION
)

// Titles
const (
	TitleKeyOnly         = "Answer Key"
	TitleWithExplanation = "Answer Key & Explanations"
)

// Entry is one question's line in the key.
type Entry struct {
	QuestionID string `json:"question_id"`
	Number     int    `json:"number"` // global 1-based question number
	Index      int    `json:"index"`  // correct option index, -1 when unresolved
	Label      string `json:"label"`  // blank when unresolved
	Resolved   bool   `json:"resolved"`
	Answer     string `json:"answer,omitempty"` // stored correct answer

	// ExplanationID and Explanation are set only in KEY_AND_EXPLANATION
	// mode for questions that have an explanation.
	ExplanationID string `json:"explanation_id,omitempty"`
	Explanation   string `json:"explanation,omitempty"`
}

// Text returns the "<number>. <label>" line.
func (e Entry) Text() string {
	return strconv.Itoa(e.Number) + ". " + e.Label
}

// Block is the answer key appended after the questions.
type Block struct {
	Mode            types.AnswerKeyMode `json:"mode"`
	Title           string              `json:"title"`
	Layout          Layout              `json:"layout"`
	PageBreakBefore bool                `json:"page_break_before"`
	Entries         []Entry             `json:"entries"`
}

// ResolveIndex finds the correct option of q: first the option whose text
// equals CorrectAnswer, then CorrectAnswer read as a letter A..E.
func ResolveIndex(q types.Question) (int, bool) {
	if q.CorrectAnswer != "" {
		for i, opt := range q.Options {
			if opt.Text == q.CorrectAnswer {
				return i, true
			}
		}
	}
	return numbering.LetterIndex(q.CorrectAnswer, len(q.Options))
}

// Build builds the answer key for questions, numbered from 1 in order.
// It returns nil for AnswerKeyNone. Questions whose answer cannot be
// resolved get an entry with a blank label.
func Build(questions []types.Question, mode types.AnswerKeyMode, style numbering.Style) *Block {
	if mode == types.AnswerKeyNone || mode == "" {
		return nil
	}

	b := &Block{
		Mode:            mode,
		Title:           TitleKeyOnly,
		Layout:          LayoutGrid,
		PageBreakBefore: true,
		Entries:         make([]Entry, 0, len(questions)),
	}
	withExplanation := mode == types.AnswerKeyWithExplanation
	if withExplanation {
		b.Title = TitleWithExplanation
		b.Layout = LayoutList
	}

	for i, q := range questions {
		e := Entry{
			QuestionID: q.ID,
			Number:     i + 1,
			Index:      -1,
			Answer:     q.CorrectAnswer,
		}
		if idx, ok := ResolveIndex(q); ok {
			e.Index = idx
			e.Label = style.Label(idx)
			e.Resolved = true
		}
		if withExplanation && strings.TrimSpace(q.Explanation) != "" {
			e.ExplanationID = types.PlaceholderID(q.ID, types.RoleExplanation)
			e.Explanation = q.Explanation
		}
		b.Entries = append(b.Entries, e)
	}
	return b
}

// Unresolved returns the entries whose answer could not be resolved.
func (b *Block) Unresolved() []Entry {
	if b == nil {
		return nil
	}
	var out []Entry
	for _, e := range b.Entries {
		if !e.Resolved {
			out = append(out, e)
		}
	}
	return out
}

// Report records every unresolved entry with r.
func (b *Block) Report(r issues.Reporter) {
	if r == nil {
		return
	}
	for _, e := range b.Unresolved() {
		msg := "correct answer matches no option text or letter"
		if e.Answer == "" {
			msg = "no correct answer stored"
		}
		r.Record(e.QuestionID, issues.KindUnresolvedAnswer, e.Answer, msg)
	}
}
