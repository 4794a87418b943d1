package extractor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askfmi/fmicrawl/internal/item"
	"github.com/askfmi/fmicrawl/internal/testutil"
)

type nameFilter []string

func (f nameFilter) ForbiddenDocument(name string) bool {
	name = strings.ToLower(name)
	for _, needle := range f {
		if strings.Contains(name, needle) {
			return true
		}
	}
	return false
}

func TestIsPDF(t *testing.T) {
	assert.True(t, IsPDF("application/pdf", nil))
	assert.True(t, IsPDF("Application/PDF; charset=binary", []byte("garbage")))
	assert.True(t, IsPDF("application/octet-stream", []byte("%PDF-1.7\n...")))
	assert.True(t, IsPDF("", []byte("%PDF-1.4")))
	assert.False(t, IsPDF("text/html", []byte("<html>")))
	assert.False(t, IsPDF("", []byte(" %PDF")))
}

func TestFilename(t *testing.T) {
	tests := []struct {
		name        string
		disposition string
		url         string
		want        string
	}{
		{"quoted", `attachment; filename="Regulament 2024.pdf"`, "https://drive.google.com/uc?id=1", "Regulament 2024.pdf"},
		{"unquoted", `inline; filename=orar.pdf`, "", "orar.pdf"},
		{"unparsable header falls back to regex", `attachment; filename="rezultate.pdf"; bogus`, "", "rezultate.pdf"},
		{"from url", "", "https://fmi.unibuc.ro/uploads/Ghid%20admitere.pdf", "Ghid admitere.pdf"},
		{"default", "", "https://drive.google.com/uc?export=download&id=1", DefaultDocumentName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Filename(tt.disposition, tt.url))
		})
	}
}

func TestExtractPDFSkipsBlankPages(t *testing.T) {
	body := testutil.BuildPDF(testutil.PDFPage{Text: "Intro"}, testutil.PDFPage{})

	doc, err := NewPDFExtractor(nil).Extract(Payload{
		URL:         "https://fmi.unibuc.ro/ghid.pdf",
		Body:        body,
		ContentType: "application/pdf",
	})
	require.NoError(t, err)

	assert.Equal(t, "ghid.pdf", doc.Filename)
	assert.Equal(t, []item.PDFPage{{PageNumber: 1, Text: "Intro"}}, doc.Pages)
	assert.Equal(t, []item.Block{item.PDFPage{PageNumber: 1, Text: "Intro"}}, doc.Blocks())
}

func TestExtractPDFBySignature(t *testing.T) {
	body := testutil.BuildPDF(testutil.PDFPage{}, testutil.PDFPage{Text: "Taxe   de\tscolarizare"})

	doc, err := NewPDFExtractor(nil).Extract(Payload{
		URL:         "https://drive.google.com/uc?export=download&id=abc",
		Body:        body,
		ContentType: "application/octet-stream",
	})
	require.NoError(t, err)

	assert.Equal(t, DefaultDocumentName, doc.Filename)
	require.Len(t, doc.Pages, 1)
	assert.Equal(t, 2, doc.Pages[0].PageNumber)
	assert.Equal(t, "Taxe de scolarizare", doc.Pages[0].Text)
}

func TestExtractPDFSignatureGate(t *testing.T) {
	payloads := [][]byte{
		[]byte("<html><body>Virus scan warning</body></html>"),
		[]byte(""),
		[]byte("PDF-1.4 but no percent sign"),
	}

	for _, body := range payloads {
		doc, err := NewPDFExtractor(nil).Extract(Payload{Body: body, ContentType: "text/html; charset=utf-8"})
		assert.ErrorIs(t, err, ErrNotAPDF)
		assert.Nil(t, doc)
	}
}

func TestExtractPDFForbiddenName(t *testing.T) {
	body := testutil.BuildPDF(testutil.PDFPage{Text: "Admis"})

	doc, err := NewPDFExtractor(nameFilter{"rezultate"}).Extract(Payload{
		URL:                "https://drive.google.com/uc?export=download&id=abc",
		Body:               body,
		ContentType:        "application/pdf",
		ContentDisposition: `attachment; filename="rezultate_2024.pdf"`,
	})
	assert.ErrorIs(t, err, ErrForbiddenDocument)
	require.NotNil(t, doc)
	assert.Equal(t, "rezultate_2024.pdf", doc.Filename)
	assert.Empty(t, doc.Pages)
}

func TestExtractPDFUndecodable(t *testing.T) {
	_, err := NewPDFExtractor(nil).Extract(Payload{
		Body:        []byte("%PDF-1.4\nthis is not really a pdf"),
		ContentType: "application/pdf",
	})
	assert.ErrorIs(t, err, ErrUndecodablePDF)
}

func TestExtractPDFBrokenPageDoesNotAbort(t *testing.T) {
	body := testutil.BuildPDF(
		testutil.PDFPage{Text: "Capitolul 1"},
		testutil.PDFPage{Broken: true},
		testutil.PDFPage{Text: "Capitolul 3"},
	)

	doc, err := NewPDFExtractor(nil).Extract(Payload{Body: body, ContentType: "application/pdf"})
	require.NoError(t, err)

	assert.Equal(t, []item.PDFPage{
		{PageNumber: 1, Text: "Capitolul 1"},
		{PageNumber: 3, Text: "Capitolul 3"},
	}, doc.Pages)
	assert.Equal(t, 1, doc.SkippedPages)
}
