package extractor

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/askfmi/fmicrawl/internal/item"
)

var (
	// ErrNotAPDF is returned when neither the declared type nor the byte
	// signature identify the payload as a PDF.
	ErrNotAPDF = errors.New("payload is not a PDF")
	// ErrForbiddenDocument is returned when the document name is on the
	// forbidden-name list.
	ErrForbiddenDocument = errors.New("document name is forbidden")
	// ErrUndecodablePDF is returned when the PDF structure cannot be read.
	ErrUndecodablePDF = errors.New("cannot decode PDF")
)

// DefaultDocumentName is used when neither the response headers nor the URL
// carry a file name.
const DefaultDocumentName = "document_google_drive.pdf"

var (
	pdfMagic           = []byte("%PDF")
	dispositionPattern = regexp.MustCompile(`(?i)filename="?([^";]+)"?`)
)

// DocumentFilter rejects documents by file name.
type DocumentFilter interface {
	ForbiddenDocument(name string) bool
}

// Payload is a fetched document.
type Payload struct {
	URL                string
	Body               []byte
	ContentType        string
	ContentDisposition string
}

// Document is the result of extracting one PDF.
type Document struct {
	Filename string
	Pages    []item.PDFPage
	// SkippedPages counts pages that failed to decode.
	SkippedPages int
}

// Blocks returns the pages as item blocks.
func (d *Document) Blocks() []item.Block {
	blocks := make([]item.Block, 0, len(d.Pages))
	for _, p := range d.Pages {
		blocks = append(blocks, p)
	}
	return blocks
}

// PDFExtractor validates and decodes PDF payloads.
type PDFExtractor struct {
	filter DocumentFilter
}

// NewPDFExtractor creates an extractor. filter may be nil.
func NewPDFExtractor(filter DocumentFilter) *PDFExtractor {
	return &PDFExtractor{filter: filter}
}

// IsPDF reports whether the declared content type or the byte signature
// identify a PDF.
func IsPDF(contentType string, body []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "application/pdf") {
		return true
	}
	return bytes.HasPrefix(body, pdfMagic)
}

// Filename resolves the document name from the Content-Disposition header,
// then from the URL path, then falls back to DefaultDocumentName.
func Filename(contentDisposition, rawURL string) string {
	if contentDisposition != "" {
		if _, params, err := mime.ParseMediaType(contentDisposition); err == nil && params["filename"] != "" {
			return params["filename"]
		}
		if m := dispositionPattern.FindStringSubmatch(contentDisposition); m != nil {
			if name := strings.TrimSpace(m[1]); name != "" {
				return name
			}
		}
	}

	if u, err := url.Parse(rawURL); err == nil {
		if base := path.Base(u.Path); strings.HasSuffix(strings.ToLower(base), ".pdf") {
			return base
		}
	}

	return DefaultDocumentName
}

// Extract validates the payload, applies the name filter and decodes every
// page. A page that fails to decode is skipped; the remaining pages are
// still returned. Pages without text are omitted.
func (e *PDFExtractor) Extract(p Payload) (*Document, error) {
	if !IsPDF(p.ContentType, p.Body) {
		return nil, ErrNotAPDF
	}

	doc := &Document{Filename: Filename(p.ContentDisposition, p.URL)}
	if e.filter != nil && e.filter.ForbiddenDocument(doc.Filename) {
		return doc, ErrForbiddenDocument
	}

	reader, err := openPDF(p.Body)
	if err != nil {
		return doc, fmt.Errorf("%w: %v", ErrUndecodablePDF, err)
	}

	for i := 1; i <= reader.NumPage(); i++ {
		text, err := pageText(reader, i)
		if err != nil {
			slog.Debug("Skipping unreadable PDF page", "url", p.URL, "page", i, "error", err)
			doc.SkippedPages++
			continue
		}
		if text = NormalizeText(text); text != "" {
			doc.Pages = append(doc.Pages, item.PDFPage{PageNumber: i, Text: text})
		}
	}

	return doc, nil
}

// openPDF wraps pdf.NewReader, which panics on some malformed inputs.
func openPDF(body []byte) (r *pdf.Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r, err = nil, fmt.Errorf("malformed document: %v", rec)
		}
	}()
	return pdf.NewReader(bytes.NewReader(body), int64(len(body)))
}

func pageText(r *pdf.Reader, n int) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			text, err = "", fmt.Errorf("page %d: %v", n, rec)
		}
	}()

	page := r.Page(n)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}
