package paper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcq-paper/internal/answerkey"
	"mcq-paper/internal/issues"
	"mcq-paper/internal/render"
	"mcq-paper/internal/types"
)

func question(id, text string, options ...string) types.Question {
	q := types.Question{ID: id, QuestionText: text}
	for _, o := range options {
		q.Options = append(q.Options, types.Option{Text: o})
	}
	return q
}

func twoSections() []types.Section {
	return []types.Section{
		{Name: "Biology", Questions: []types.Question{
			question("b1", "Cell is the unit of?", "Life", "Matter"),
			question("b2", "Which stage follows childhood?", "Puberty", "Embryonic development stage", "Birth", "Adult"),
			question("b3", "DNA stands for?", "Deoxyribonucleic acid", "Ribose"),
		}},
		{Name: "Maths", Questions: []types.Question{
			question("m1", "Solve $x^2 = 4$", "$x = 2$", "$x = \\pm 2$"),
			question("m2", "$$\\int_0^1 x\\,dx$$", "$\\frac{1}{2}$", "1"),
		}},
	}
}

func baseConfig() types.DocumentConfig {
	return types.DocumentConfig{
		PaperTitle:           "Unit Test",
		Instructions:         "Answer all questions.\nNo calculators.",
		Header:               []string{"Class 10", " "},
		Footer:               []string{"Page footer"},
		Watermark:            types.Watermark{Enabled: true, Text: "DRAFT"},
		FontSize:             12,
		FontWeight:           types.FontWeightNormal,
		FontColor:            "#000000",
		OptionNumberingStyle: "A)",
		AnswerKeyDisplayMode: types.AnswerKeyNone,
	}
}

func TestAssemble_ContinuousNumbering(t *testing.T) {
	doc, err := Assemble(baseConfig(), twoSections())
	require.NoError(t, err)

	require.Len(t, doc.Sections, 2)
	assert.Equal(t, "Biology", doc.Sections[0].Name)
	assert.Equal(t, "Maths", doc.Sections[1].Name)

	var numbers []int
	for _, q := range doc.Questions() {
		numbers = append(numbers, q.Number)
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5}, numbers)
}

func TestAssemble_PlaceholdersAndLabels(t *testing.T) {
	cfg := baseConfig()
	cfg.OptionNumberingStyle = "(a)"
	doc, err := Assemble(cfg, twoSections())
	require.NoError(t, err)

	q := doc.Sections[1].Questions[0]
	require.NotNil(t, q.Text)
	assert.Equal(t, "question-m1-text", q.Text.ID)
	assert.Equal(t, "Solve $x^2 = 4$", q.Text.Source)
	assert.Equal(t, "(a)", q.Options[0].Label)
	assert.Equal(t, "(b)", q.Options[1].Label)
	assert.Equal(t, "option-m1-1", q.Options[1].Text.ID)
	assert.Equal(t, types.OptionRole(1), q.Options[1].Text.Role)

	ids := make(map[string]bool)
	for _, p := range doc.Placeholders() {
		assert.False(t, ids[p.ID], "placeholder %s emitted twice", p.ID)
		ids[p.ID] = true
	}
	assert.Len(t, ids, 17)
}

func TestAssemble_LayoutHints(t *testing.T) {
	doc, err := Assemble(baseConfig(), twoSections())
	require.NoError(t, err)

	assert.True(t, doc.Header.Layout.SpanAllColumns)
	require.NotNil(t, doc.Instructions)
	assert.True(t, doc.Instructions.Layout.SpanAllColumns)
	for _, s := range doc.Sections {
		assert.True(t, s.HeaderLayout.AvoidBreakInside, "section header %s", s.Name)
		assert.Equal(t, LayoutHints{}, s.Layout, "section %s may break across pages", s.Name)
		for _, q := range s.Questions {
			assert.True(t, q.Layout.AvoidBreakInside, "question %s", q.ID)
		}
	}
	assert.Equal(t, []string{"Class 10"}, doc.Header.Lines, "blank header lines dropped")
	assert.Equal(t, "DRAFT", doc.Decorations.Watermark.Text)
	assert.Equal(t, []string{"Page footer"}, doc.Decorations.Footer)
}

func TestAssemble_OptionalContentOmitted(t *testing.T) {
	q := question("q1", "", "with image", "")
	q.QuestionImage = "https://example.com/q.png"
	q.Options[0].Image = "https://example.com/a.png"

	doc, err := Assemble(baseConfig(), []types.Section{{Questions: []types.Question{q}}})
	require.NoError(t, err)

	qb := doc.Sections[0].Questions[0]
	assert.Nil(t, qb.Text, "no placeholder for blank question text")
	assert.Equal(t, "Question 1 Image", qb.ImageAlt)
	assert.Equal(t, "Option A Image", qb.Options[0].ImageAlt)
	assert.Empty(t, qb.Options[1].Image)
	assert.Nil(t, qb.Options[1].Text)
	assert.False(t, doc.Sections[0].ShowHeader())
	assert.Len(t, doc.Placeholders(), 1)

	cfg := baseConfig()
	cfg.Instructions = "  "
	doc, err = Assemble(cfg, []types.Section{{Questions: []types.Question{q}}})
	require.NoError(t, err)
	assert.Nil(t, doc.Instructions)
}

func TestAssemble_AnswerKey(t *testing.T) {
	sections := twoSections()
	sections[0].Questions[1].CorrectAnswer = "B"
	sections[0].Questions[1].Explanation = "The embryo comes first."

	cfg := baseConfig()
	cfg.AnswerKeyDisplayMode = types.AnswerKeyWithExplanation
	doc, err := Assemble(cfg, sections)
	require.NoError(t, err)

	require.NotNil(t, doc.AnswerKey)
	assert.True(t, doc.AnswerKeyLayout.PageBreakBefore)
	assert.Len(t, doc.AnswerKey.Entries, 5)
	assert.Equal(t, "B)", doc.AnswerKey.Entries[1].Label)
	assert.Equal(t, 2, doc.AnswerKey.Entries[1].Number)

	last := doc.Placeholders()[len(doc.Placeholders())-1]
	assert.Equal(t, "explanation-b2", last.ID)
	assert.Equal(t, types.RoleExplanation, last.Role)
}

func TestAssemble_FatalErrors(t *testing.T) {
	dup := twoSections()
	dup[1].Questions[0].ID = "b1"

	tooFew := twoSections()
	tooFew[0].Questions[0].Options = tooFew[0].Questions[0].Options[:1]

	tooMany := twoSections()
	tooMany[0].Questions[0].Options = make([]types.Option, 6)

	noID := twoSections()
	noID[0].Questions[2].ID = " "

	badStyle := baseConfig()
	badStyle.OptionNumberingStyle = "#)"

	badColor := baseConfig()
	badColor.FontColor = "red;background:url(x)"

	badMode := baseConfig()
	badMode.AnswerKeyDisplayMode = "SOMETIMES"

	tests := []struct {
		name     string
		cfg      types.DocumentConfig
		sections []types.Section
		code     types.ErrorCode
	}{
		{"no sections", baseConfig(), nil, types.ErrInvalidInput},
		{"empty sections", baseConfig(), []types.Section{{Name: "Empty"}}, types.ErrInvalidInput},
		{"duplicate id", baseConfig(), dup, types.ErrInvalidInput},
		{"one option", baseConfig(), tooFew, types.ErrInvalidInput},
		{"six options", baseConfig(), tooMany, types.ErrInvalidInput},
		{"blank id", baseConfig(), noID, types.ErrInvalidInput},
		{"bad numbering style", badStyle, twoSections(), types.ErrConfig},
		{"bad color", badColor, twoSections(), types.ErrConfig},
		{"bad answer key mode", badMode, twoSections(), types.ErrConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Assemble(tt.cfg, tt.sections)
			assert.Nil(t, doc)
			var appErr *types.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.code, appErr.Code)
		})
	}
}

func TestAssemble_DoesNotMutateInput(t *testing.T) {
	sections := twoSections()
	before := fmt.Sprintf("%+v", sections)
	_, err := Assemble(baseConfig(), sections)
	require.NoError(t, err)
	assert.Equal(t, before, fmt.Sprintf("%+v", sections))
}

func TestAssemble_Defaults(t *testing.T) {
	cfg := baseConfig()
	cfg.OptionNumberingStyle = ""
	cfg.FontSize = 0
	cfg.FontColor = ""
	cfg.FontWeight = ""

	doc, err := Assemble(cfg, twoSections())
	require.NoError(t, err)
	assert.Equal(t, DefaultFontSize, doc.Style.FontSize)
	assert.Equal(t, DefaultFontColor, doc.Style.FontColor)
	assert.Equal(t, types.FontWeightNormal, doc.Style.FontWeight)
	assert.Equal(t, "A)", doc.Sections[0].Questions[0].Options[0].Label)
}

// failingRenderer rejects any formula containing \broken.
var failingRenderer = render.RendererFunc(func(src string, opts render.Options) (string, error) {
	if strings.Contains(src, `\broken`) {
		return "", errors.New("undefined control sequence")
	}
	return "<k>" + src + "</k>", nil
})

func TestFill_MalformedFormulaIsIsolated(t *testing.T) {
	sections := twoSections()
	sections[0].Questions[0].QuestionText = `Bad $\broken{x}$ formula`

	collector := issues.NewCollector()
	a := render.NewAdapter(failingRenderer, render.AdapterConfig{Reporter: collector})

	doc, fills, err := Build(context.Background(), baseConfig(), sections, a, collector)
	require.NoError(t, err)
	require.NotNil(t, doc)

	bad := fills["question-b1-text"]
	assert.Equal(t, 1, bad.Failures)
	assert.Contains(t, bad.HTML, "math-error")
	assert.Contains(t, bad.HTML, `<span class="plain-text"> formula</span>`)

	sibling := fills["question-m1-text"]
	assert.True(t, sibling.OK())
	assert.Equal(t, `<span class="plain-text">Solve </span><k>x^2 = 4</k>`, sibling.HTML)
	assert.Equal(t, "<k>\\frac{1}{2}</k>", fills["option-m2-0"].HTML)

	assert.Equal(t, 1, fills.Failures())
	assert.Len(t, collector.ListByKind(issues.KindMalformedMath), 1)
}

func TestBuild_RecordsUnresolvedAnswers(t *testing.T) {
	sections := twoSections()
	sections[0].Questions[0].CorrectAnswer = "Z"

	cfg := baseConfig()
	cfg.AnswerKeyDisplayMode = types.AnswerKeyOnly
	collector := issues.NewCollector()
	a := render.NewAdapter(failingRenderer, render.AdapterConfig{})

	doc, _, err := Build(context.Background(), cfg, sections, a, collector)
	require.NoError(t, err)
	assert.Equal(t, answerkey.LayoutGrid, doc.AnswerKey.Layout)
	assert.Len(t, collector.ListByKind(issues.KindUnresolvedAnswer), 5)
}

func TestBuild_FatalError(t *testing.T) {
	a := render.NewAdapter(failingRenderer, render.AdapterConfig{})
	doc, fills, err := Build(context.Background(), baseConfig(), nil, a, nil)
	assert.Error(t, err)
	assert.Nil(t, doc)
	assert.Nil(t, fills)
}

func TestFillContext_MatchesFill(t *testing.T) {
	doc, err := Assemble(baseConfig(), twoSections())
	require.NoError(t, err)
	a := render.NewAdapter(failingRenderer, render.AdapterConfig{})

	want := doc.Fill(a)
	for _, workers := range []int{0, 1, 3} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			got, err := doc.FillContext(context.Background(), a, workers)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestBuild_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := render.NewAdapter(failingRenderer, render.AdapterConfig{})
	doc, fills, err := Build(ctx, baseConfig(), twoSections(), a, nil)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrRender, appErr.Code)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, doc)
	assert.Nil(t, fills)
}

func TestFill_WholeDisplayFormula(t *testing.T) {
	var displayCalls int
	recording := render.RendererFunc(func(src string, opts render.Options) (string, error) {
		if opts.DisplayMode {
			displayCalls++
		}
		return failingRenderer(src, opts)
	})

	sections := twoSections()
	sections[0].Questions[0].QuestionText = "  $$x^2 + y^2$$ "
	sections[0].Questions[1].QuestionText = `$$\broken{x}$$`
	sections[0].Questions[2].QuestionText = "Area is $$r^2$$ units"

	doc, err := Assemble(baseConfig(), sections)
	require.NoError(t, err)
	fills := doc.Fill(render.NewAdapter(recording, render.AdapterConfig{}))

	whole := fills["question-b1-text"]
	assert.Equal(t, "<k>x^2 + y^2</k>", whole.HTML)
	assert.True(t, whole.OK())

	broken := fills["question-b2-text"]
	assert.Equal(t, 1, broken.Failures)
	assert.Contains(t, broken.Err, "undefined control sequence", "whole display failure is a document-level error")

	mixed := fills["question-b3-text"]
	assert.Empty(t, mixed.Err)
	assert.Contains(t, mixed.HTML, `<span class="plain-text">Area is </span><k>r^2</k>`)

	// b1, b2, b3 and the integral of m2
	assert.Equal(t, 4, displayCalls)
}

func TestDisplayBlock(t *testing.T) {
	tests := []struct {
		src  string
		body string
		ok   bool
	}{
		{"$$a+b$$", "a+b", true},
		{" $$a+b$$\n", "a+b", true},
		{"$a+b$", "", false},
		{"$$a$$ and $$b$$", "", false},
		{`\frac{1}{2}`, "", false},
		{"$$a", "", false},
	}
	for _, tt := range tests {
		body, ok := displayBlock(tt.src)
		assert.Equal(t, tt.ok, ok, "src %q", tt.src)
		assert.Equal(t, tt.body, body, "src %q", tt.src)
	}
}
