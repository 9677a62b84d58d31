// Package extract turns course PDFs into plain text while keeping track of
// page boundaries, so downstream chunks can carry a page reference.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

var (
	ErrNotFound   = errors.New("document not found")
	ErrUnreadable = errors.New("document unreadable")
)

// PageSpan records which character range of the extracted text came from
// which page (1-based).
type PageSpan struct {
	Page  int
	Start int
	End   int
}

type Result struct {
	Text  string
	Pages []PageSpan
}

// pageSeparator keeps page breaks visible to the chunker's paragraph
// heuristic.
const pageSeparator = "\n\n"

// Extract reads the PDF at path and returns its text in reading order.
// A valid PDF with no extractable text yields an empty Result and no error;
// the caller decides how to surface empty course material.
func Extract(ctx context.Context, path string) (Result, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return Result{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return Result{}, fmt.Errorf("%w: stat %s: %v", ErrUnreadable, path, err)
	}

	f, reader, err := pdf.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("%w: open %s: %v", ErrUnreadable, path, err)
	}
	defer f.Close()

	var b strings.Builder
	var spans []PageSpan

	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			// A single broken page should not sink the document.
			slog.WarnContext(ctx, "failed to extract page, skipping", "path", path, "page", i, "error", err)
			continue
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		if b.Len() > 0 {
			b.WriteString(pageSeparator)
		}
		start := b.Len()
		b.WriteString(text)
		spans = append(spans, PageSpan{Page: i, Start: start, End: b.Len()})
	}

	return Result{Text: b.String(), Pages: spans}, nil
}

// PDFExtractor gives Extract a receiver for callers that take the extractor
// as a dependency.
type PDFExtractor struct{}

func (PDFExtractor) Extract(ctx context.Context, path string) (Result, error) {
	return Extract(ctx, path)
}

// PageOf resolves the page a character offset belongs to. Offsets that fall
// into a separator between pages are attributed to the preceding page.
func PageOf(spans []PageSpan, offset int) int {
	page := 0
	for _, s := range spans {
		if offset >= s.Start {
			page = s.Page
		} else {
			break
		}
	}
	return page
}
