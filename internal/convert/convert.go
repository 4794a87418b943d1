// Package convert renders the crawl output as the plain-text context file
// consumed by the question-answering service.
package convert

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/askfmi/fmicrawl/internal/item"
)

const (
	untitled = "Fără Titlu"
	missing  = "N/A"
)

var (
	headerRule = strings.Repeat("-", 20)
	itemRule   = strings.Repeat("=", 50)
)

// ReadItems decodes a JSON item array
func ReadItems(r io.Reader) ([]item.Item, error) {
	var items []item.Item
	if err := json.NewDecoder(r).Decode(&items); err != nil {
		return nil, fmt.Errorf("convert: decode items: %w", err)
	}
	return items, nil
}

// Render writes every item as a delimited text section
func Render(w io.Writer, items []item.Item) error {
	bw := bufio.NewWriter(w)
	for i := range items {
		renderItem(bw, &items[i])
	}
	return bw.Flush()
}

func renderItem(w *bufio.Writer, it *item.Item) {
	title := orDefault(it.Metadata.Title, untitled)
	url := orDefault(it.Metadata.URL, missing)
	date := orDefault(it.Metadata.ScrapedAt.String(), missing)

	fmt.Fprintf(w, "##### %s #####\n", title)
	fmt.Fprintf(w, "Sursa URL: %s\n", url)
	fmt.Fprintf(w, "Data accesării: %s\n", date)
	fmt.Fprintf(w, "%s\n", headerRule)

	for _, block := range it.Blocks {
		switch b := block.(type) {
		case item.Heading:
			fmt.Fprintf(w, "\n[SECȚIUNE: %s]\n", b.Text)
		case item.Paragraph:
			if b.Text != "" {
				fmt.Fprintf(w, "%s\n", b.Text)
			}
		case item.List:
			for _, li := range b.Items {
				fmt.Fprintf(w, "  - %s\n", li)
			}
			w.WriteString("\n")
		case item.PDFPage:
			fmt.Fprintf(w, "\n--- Pagina %d ---\n", b.PageNumber)
			if b.Text != "" {
				fmt.Fprintf(w, "%s\n", b.Text)
			}
		}
	}

	fmt.Fprintf(w, "\n%s\n\n", itemRule)
}

// ConvertFile reads the item array at in and writes the text file at out.
// It returns the number of items rendered.
func ConvertFile(in, out string) (int, error) {
	src, err := os.Open(in)
	if err != nil {
		return 0, fmt.Errorf("convert: %w", err)
	}
	defer func() { _ = src.Close() }()

	items, err := ReadItems(src)
	if err != nil {
		return 0, err
	}

	dst, err := os.Create(out)
	if err != nil {
		return 0, fmt.Errorf("convert: %w", err)
	}
	if err := Render(dst, items); err != nil {
		_ = dst.Close()
		return 0, fmt.Errorf("convert: write %s: %w", out, err)
	}
	if err := dst.Close(); err != nil {
		return 0, fmt.Errorf("convert: close %s: %w", out, err)
	}

	return len(items), nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
