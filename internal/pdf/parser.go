package pdf

import (
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"mcq-paper/internal/logger"
)

// Inspect 获取 PDF 基本信息（页数、文件大小、是否含文本）
func Inspect(pdfPath string) (*PDFInfo, error) {
	fileInfo, err := statPDF(pdfPath)
	if err != nil {
		return nil, err
	}

	// pdfcpu gives the page count; ledongthuc/pdf is used for text.
	ctx, err := api.ReadContextFile(pdfPath)
	if err != nil {
		return nil, NewPDFError(ErrPDFInvalid, "无法读取 PDF 文件", err)
	}

	hasText, err := HasText(pdfPath)
	if err != nil {
		logger.Warn("could not determine whether PDF has text",
			logger.String("path", pdfPath), logger.Err(err))
		hasText = false
	}

	return &PDFInfo{
		FilePath:  pdfPath,
		FileName:  filepath.Base(pdfPath),
		PageCount: ctx.PageCount,
		FileSize:  fileInfo.Size(),
		HasText:   hasText,
	}, nil
}

func statPDF(pdfPath string) (os.FileInfo, error) {
	fileInfo, err := os.Stat(pdfPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewPDFErrorWithDetails(ErrPDFNotFound, "文件不存在，请检查路径", pdfPath, err)
		}
		return nil, NewPDFError(ErrPDFInvalid, "无法访问文件", err)
	}
	if fileInfo.IsDir() {
		return nil, NewPDFError(ErrPDFInvalid, "路径指向目录而非文件", nil)
	}
	return fileInfo, nil
}

// HasText reports whether any of the first pages has extractable text.
// A paper printed as images has none, and FindPage cannot work on it.
func HasText(pdfPath string) (bool, error) {
	texts, err := PageTexts(pdfPath, 3)
	if err != nil {
		return false, err
	}
	for _, text := range texts {
		for _, r := range text {
			if !unicode.IsSpace(r) {
				return true, nil
			}
		}
	}
	return false, nil
}

// PageTexts returns the plain text of the first limit pages, or of every
// page when limit <= 0. Pages whose text cannot be extracted are "".
func PageTexts(pdfPath string, limit int) ([]string, error) {
	if _, err := statPDF(pdfPath); err != nil {
		return nil, err
	}

	f, r, err := pdf.Open(pdfPath)
	if err != nil {
		return nil, NewPDFError(ErrPDFInvalid, "无法打开 PDF 文件", err)
	}
	defer f.Close()

	n := r.NumPage()
	if limit > 0 && limit < n {
		n = limit
	}

	texts := make([]string, n)
	for pageNum := 1; pageNum <= n; pageNum++ {
		page := r.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			logger.Debug("failed to extract page text",
				logger.Int("page", pageNum), logger.Err(err))
			continue
		}
		texts[pageNum-1] = content
	}
	return texts, nil
}

// FindPage returns the 1-based number of the first page whose text
// contains needle. Whitespace is ignored when matching since extracted
// text often loses or adds spaces between glyph runs.
func FindPage(pdfPath, needle string) (int, error) {
	texts, err := PageTexts(pdfPath, 0)
	if err != nil {
		return 0, err
	}

	want := squash(needle)
	if want == "" {
		return 0, NewPDFError(ErrInvalidOptions, "search text is empty", nil)
	}
	for i, text := range texts {
		if strings.Contains(squash(text), want) {
			return i + 1, nil
		}
	}
	return 0, NewPDFErrorWithDetails(ErrTextNotFound, "text not found in PDF", needle, nil)
}

func squash(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
