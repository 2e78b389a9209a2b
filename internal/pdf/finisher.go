package pdf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	pdftypes "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"mcq-paper/internal/logger"
	"mcq-paper/internal/types"
)

const (
	// DefaultWatermarkOpacity matches the print stylesheet (rgba 0,0,0,0.1)
	DefaultWatermarkOpacity = 0.1
	// DefaultWatermarkPoints is the watermark font size
	DefaultWatermarkPoints = 48
	// DefaultFooterPoints is the footer font size
	DefaultFooterPoints = 9
	// PageNumberFormat uses the pdfcpu page number placeholders
	PageNumberFormat = "Page %p of %P"
)

// FinishOptions selects the decorations stamped onto every page.
type FinishOptions struct {
	Watermark   types.Watermark
	Footer      []string
	PageNumbers bool
	// Opacity of the watermark; DefaultWatermarkOpacity when zero.
	Opacity float64
}

func (o FinishOptions) footerText() string {
	lines := make([]string, 0, len(o.Footer)+1)
	for _, l := range o.Footer {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	if o.PageNumbers {
		lines = append(lines, PageNumberFormat)
	}
	return strings.Join(lines, "\n")
}

// Finisher stamps decorations onto a printed paper using pdfcpu.
type Finisher struct {
	conf *model.Configuration
}

// NewFinisher creates a Finisher with the default pdfcpu configuration.
func NewFinisher() *Finisher {
	return &Finisher{conf: model.NewDefaultConfiguration()}
}

// Finish writes inPath to outPath with the watermark and footer of opts
// stamped on every page, validates the result and returns its info.
// inPath and outPath may be equal.
func (f *Finisher) Finish(inPath, outPath string, opts FinishOptions) (*PDFInfo, error) {
	if _, err := statPDF(inPath); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return nil, NewPDFError(ErrStampFailed, "failed to create output directory", err)
	}

	logger.Info("finishing PDF",
		logger.String("input", filepath.Base(inPath)),
		logger.String("output", filepath.Base(outPath)),
		logger.Bool("watermark", opts.Watermark.Active()),
		logger.Bool("pageNumbers", opts.PageNumbers))

	src := inPath
	stamped := false

	if opts.Watermark.Active() {
		wm, err := f.watermark(opts)
		if err != nil {
			return nil, err
		}
		if err := api.AddWatermarksFile(src, outPath, nil, wm, f.conf); err != nil {
			return nil, NewPDFError(ErrStampFailed, "failed to add watermark", err)
		}
		src, stamped = outPath, true
	}

	if text := opts.footerText(); text != "" {
		wm, err := f.footer(text)
		if err != nil {
			return nil, err
		}
		// An empty output file updates src in place.
		out := outPath
		if src == outPath {
			out = ""
		}
		if err := api.AddWatermarksFile(src, out, nil, wm, f.conf); err != nil {
			return nil, NewPDFError(ErrStampFailed, "failed to add footer", err)
		}
		stamped = true
	}

	if !stamped && inPath != outPath {
		if err := copyFile(inPath, outPath); err != nil {
			return nil, NewPDFError(ErrStampFailed, "failed to copy PDF", err)
		}
	}

	if err := api.ValidateFile(outPath, f.conf); err != nil {
		return nil, NewPDFError(ErrPDFInvalid, "finished PDF is not valid", err)
	}

	info, err := Inspect(outPath)
	if err != nil {
		return nil, err
	}
	logger.Info("PDF finished", logger.Int("pages", info.PageCount))
	return info, nil
}

// watermark builds the diagonal watermark stamp.
func (f *Finisher) watermark(opts FinishOptions) (*model.Watermark, error) {
	opacity := opts.Opacity
	if opacity <= 0 || opacity > 1 {
		opacity = DefaultWatermarkOpacity
	}
	desc := fmt.Sprintf("fontname:Helvetica-Bold, points:%d, scalefactor:1 abs, rotation:45, opacity:%.2f, fillcolor:#000000",
		DefaultWatermarkPoints, opacity)

	wm, err := api.TextWatermark(opts.Watermark.Text, desc, true, false, pdftypes.POINTS)
	if err != nil {
		return nil, NewPDFErrorWithDetails(ErrInvalidOptions, "failed to create watermark", desc, err)
	}
	return wm, nil
}

// footer builds the bottom-centered footer stamp.
func (f *Finisher) footer(text string) (*model.Watermark, error) {
	desc := fmt.Sprintf("fontname:Times-Roman, points:%d, scalefactor:1 abs, rotation:0, position:bc, offset:0 12, fillcolor:#666666",
		DefaultFooterPoints)

	wm, err := api.TextWatermark(text, desc, true, false, pdftypes.POINTS)
	if err != nil {
		return nil, NewPDFErrorWithDetails(ErrInvalidOptions, "failed to create footer", desc, err)
	}
	return wm, nil
}

// SplitAnswerKey writes the pages before the first page containing title
// to questionsPath and the rest to keyPath. It returns the page the
// answer key starts on.
func (f *Finisher) SplitAnswerKey(inPath, title, questionsPath, keyPath string) (int, error) {
	page, err := FindPage(inPath, title)
	if err != nil {
		return 0, err
	}
	if page == 1 {
		return 0, NewPDFErrorWithPage(ErrSplitFailed, "answer key starts on the first page", page, nil)
	}

	logger.Info("splitting answer key",
		logger.String("input", filepath.Base(inPath)),
		logger.Int("keyPage", page))

	for _, part := range []struct {
		path  string
		pages string
	}{
		{questionsPath, fmt.Sprintf("1-%d", page-1)},
		{keyPath, fmt.Sprintf("%d-", page)},
	} {
		if err := os.MkdirAll(filepath.Dir(part.path), 0755); err != nil {
			return 0, NewPDFError(ErrSplitFailed, "failed to create output directory", err)
		}
		if err := api.TrimFile(inPath, part.path, []string{part.pages}, f.conf); err != nil {
			return 0, NewPDFErrorWithDetails(ErrSplitFailed, "failed to write pages", part.pages, err)
		}
	}
	return page, nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644)
}
