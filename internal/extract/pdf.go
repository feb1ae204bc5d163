package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/book-expert/logger"
	"github.com/ledongthuc/pdf"
)

// KindPDF labels the PDF extractor in logs and metrics.
const KindPDF = "pdf"

// PDFExtractor reads the embedded text layer of a PDF document.
// Scanned PDFs without a text layer produce a Failure.
type PDFExtractor struct {
	log *logger.Logger
}

// NewPDFExtractor creates a PDFExtractor.
func NewPDFExtractor(log *logger.Logger) *PDFExtractor {
	return &PDFExtractor{log: log}
}

// Kind returns KindPDF.
func (e *PDFExtractor) Kind() string {
	return KindPDF
}

// Extract returns the text of every page joined by newlines and trimmed.
func (e *PDFExtractor) Extract(_ context.Context, path string) (string, error) {
	pages, err := readPages(path)
	if err != nil {
		e.log.Warn("Failed to read PDF '%s': %v", path, err)

		return "", pdfFailure(err)
	}

	text := strings.TrimSpace(strings.Join(pages, "\n"))
	if text == "" {
		return "", &Failure{Message: MsgNoPDFText, Cause: nil}
	}

	e.log.Info("Extracted %d characters from %d PDF page(s)", len(text), len(pages))

	return text, nil
}

// readPages returns the plain text of each page. The parser panics on some
// malformed files, so panics are turned into errors here.
func readPages(path string) (pages []string, err error) {
	defer func() {
		recovered := recover()
		if recovered != nil {
			pages = nil
			err = panicError(recovered)
		}
	}()

	file, reader, err := pdf.Open(path)
	if err != nil {
		if file != nil {
			_ = file.Close()
		}

		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}

	defer func() {
		closeErr := file.Close()
		if closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close pdf: %w", closeErr)
		}
	}()

	numPages := reader.NumPage()
	pages = make([]string, 0, numPages)

	for pageIndex := 1; pageIndex <= numPages; pageIndex++ {
		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			pages = append(pages, "")

			continue
		}

		pageText, textErr := page.GetPlainText(nil)
		if textErr != nil {
			return nil, fmt.Errorf("failed to extract text from page %d: %w", pageIndex, textErr)
		}

		pages = append(pages, pageText)
	}

	return pages, nil
}
