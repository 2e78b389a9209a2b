// Command check_pages reports the page layout of a printed question paper.
// It prints the page count, whether the pages carry extractable text and
// the page on which the answer key starts.
//
// Usage:
//
//	go run cmd/check_pages/main.go <paper.pdf> [answer key title]
package main

import (
	"fmt"
	"os"
	"strings"

	"mcq-paper/internal/answerkey"
	"mcq-paper/internal/pdf"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: check_pages <paper.pdf> [answer key title]")
		fmt.Println()
		fmt.Println("This tool checks a question paper printed from the generated HTML.")
		fmt.Println("It reports:")
		fmt.Println("  - Page count and file size")
		fmt.Println("  - Whether the pages carry extractable text")
		fmt.Println("  - The page where the answer key starts")
		os.Exit(1)
	}

	paperPath := os.Args[1]
	titles := []string{answerkey.TitleWithExplanation, answerkey.TitleKeyOnly}
	if len(os.Args) > 2 {
		titles = []string{os.Args[2]}
	}

	info, err := pdf.Inspect(paperPath)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Paper: %s\n", info.FileName)
	fmt.Printf("  Pages:    %d\n", info.PageCount)
	fmt.Printf("  Size:     %d bytes\n", info.FileSize)
	fmt.Printf("  Has text: %v\n", info.HasText)

	if !info.HasText {
		fmt.Println("Answer key: cannot search a PDF without text")
		os.Exit(2)
	}

	// longest title first, "Answer Key" also matches "Answer Key & Explanations"
	for _, title := range titles {
		page, err := pdf.FindPage(paperPath, title)
		if err != nil {
			continue
		}
		fmt.Printf("Answer key: %q starts on page %d of %d\n", title, page, info.PageCount)
		if page == 1 {
			fmt.Println("Warning: answer key is on the first page, the paper has no question pages")
			os.Exit(2)
		}
		return
	}

	quoted := make([]string, len(titles))
	for i, t := range titles {
		quoted[i] = fmt.Sprintf("%q", t)
	}
	fmt.Printf("Answer key: none of %s found\n", strings.Join(quoted, ", "))
}
