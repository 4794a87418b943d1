// Package item defines the records emitted by the crawler and their JSON form.
//
// The JSON layout is the one the downstream text converter reads:
//
//	{"metadata": {"title", "date_scraped", "url"}, "text": [block, ...]}
//
// where every block carries a "type" discriminator.
package item

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimestampLayout is the layout used for date_scraped.
const TimestampLayout = "2006-01-02 15:04:05"

// BlockType discriminates the content block variants.
type BlockType string

// Block types as they appear in the JSON "type" field.
const (
	TypeHeading   BlockType = "heading"
	TypeParagraph BlockType = "paragraph"
	TypeList      BlockType = "list"
	TypePDFPage   BlockType = "pdf_page"
)

// Block is one typed unit of extracted text. The set of implementations is
// closed: Heading, Paragraph, List and PDFPage.
type Block interface {
	Type() BlockType
	isBlock()
}

// Heading is an h1..h6 element.
type Heading struct {
	Level int
	Text  string
}

// Paragraph is a p element.
type Paragraph struct {
	Text string
}

// List is a ul or ol element.
type List struct {
	Items []string
}

// PDFPage is the text of one non-empty PDF page. PageNumber is 1-indexed.
type PDFPage struct {
	PageNumber int
	Text       string
}

func (Heading) Type() BlockType   { return TypeHeading }
func (Paragraph) Type() BlockType { return TypeParagraph }
func (List) Type() BlockType      { return TypeList }
func (PDFPage) Type() BlockType   { return TypePDFPage }

func (Heading) isBlock()   {}
func (Paragraph) isBlock() {}
func (List) isBlock()      {}
func (PDFPage) isBlock()   {}

// Timestamp marshals as "YYYY-MM-DD HH:MM:SS".
type Timestamp struct {
	time.Time
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Format(TimestampLayout))
}

// UnmarshalJSON accepts the crawler layout and RFC 3339.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date_scraped: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range []string{TimestampLayout, "2006-01-02 15:04:05.999999", time.RFC3339Nano} {
		if parsed, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("date_scraped: unrecognized timestamp %q", s)
}

// String renders the timestamp in the crawler layout, or "" for the zero value.
func (t Timestamp) String() string {
	if t.IsZero() {
		return ""
	}
	return t.Format(TimestampLayout)
}

// Metadata describes the origin of an item.
type Metadata struct {
	Title     string    `json:"title"`
	ScrapedAt Timestamp `json:"date_scraped"`
	URL       string    `json:"url"`
}

// Item is one emitted record. An item is only emitted with at least one block.
type Item struct {
	Metadata Metadata `json:"metadata"`
	Blocks   []Block  `json:"text"`
}

// New builds an item, returning nil when there are no blocks.
func New(meta Metadata, blocks []Block) *Item {
	if len(blocks) == 0 {
		return nil
	}
	return &Item{Metadata: meta, Blocks: blocks}
}

// Kind reports whether the item came from a PDF document or an HTML page.
func (it *Item) Kind() string {
	for _, b := range it.Blocks {
		if b.Type() == TypePDFPage {
			return "pdf"
		}
	}
	return "page"
}

// Text joins the text of every block, one block per line.
func (it *Item) Text() string {
	var b strings.Builder
	for _, block := range it.Blocks {
		switch v := block.(type) {
		case Heading:
			b.WriteString(v.Text)
		case Paragraph:
			b.WriteString(v.Text)
		case List:
			b.WriteString(strings.Join(v.Items, "\n"))
		case PDFPage:
			b.WriteString(v.Text)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// wireBlock is the union of every block's JSON fields.
type wireBlock struct {
	Type       BlockType `json:"type"`
	Level      string    `json:"level,omitempty"`
	Content    *string   `json:"content,omitempty"`
	Items      []string  `json:"items,omitempty"`
	PageNumber int       `json:"page_number,omitempty"`
}

func encodeBlock(block Block) (wireBlock, error) {
	switch v := block.(type) {
	case Heading:
		return wireBlock{Type: TypeHeading, Level: "h" + strconv.Itoa(v.Level), Content: &v.Text}, nil
	case Paragraph:
		return wireBlock{Type: TypeParagraph, Content: &v.Text}, nil
	case List:
		return wireBlock{Type: TypeList, Items: v.Items}, nil
	case PDFPage:
		return wireBlock{Type: TypePDFPage, PageNumber: v.PageNumber, Content: &v.Text}, nil
	default:
		return wireBlock{}, fmt.Errorf("unknown block %T", block)
	}
}

func decodeBlock(w wireBlock) (Block, error) {
	content := ""
	if w.Content != nil {
		content = *w.Content
	}

	switch w.Type {
	case TypeHeading:
		level, err := strconv.Atoi(strings.TrimPrefix(strings.ToLower(w.Level), "h"))
		if err != nil || level < 1 || level > 6 {
			return nil, fmt.Errorf("invalid heading level %q", w.Level)
		}
		return Heading{Level: level, Text: content}, nil
	case TypeParagraph:
		return Paragraph{Text: content}, nil
	case TypeList:
		return List{Items: w.Items}, nil
	case TypePDFPage:
		return PDFPage{PageNumber: w.PageNumber, Text: content}, nil
	default:
		return nil, fmt.Errorf("unknown block type %q", w.Type)
	}
}

// MarshalJSON implements json.Marshaler.
func (it Item) MarshalJSON() ([]byte, error) {
	blocks := make([]wireBlock, 0, len(it.Blocks))
	for _, block := range it.Blocks {
		w, err := encodeBlock(block)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, w)
	}

	return json.Marshal(struct {
		Metadata Metadata    `json:"metadata"`
		Blocks   []wireBlock `json:"text"`
	}{it.Metadata, blocks})
}

// UnmarshalJSON implements json.Unmarshaler.
func (it *Item) UnmarshalJSON(data []byte) error {
	var raw struct {
		Metadata Metadata    `json:"metadata"`
		Blocks   []wireBlock `json:"text"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	blocks := make([]Block, 0, len(raw.Blocks))
	for i, w := range raw.Blocks {
		block, err := decodeBlock(w)
		if err != nil {
			return fmt.Errorf("block %d: %w", i, err)
		}
		blocks = append(blocks, block)
	}

	it.Metadata = raw.Metadata
	it.Blocks = blocks
	return nil
}
