package item

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresBlocks(t *testing.T) {
	assert.Nil(t, New(Metadata{Title: "Empty"}, nil))
	assert.Nil(t, New(Metadata{Title: "Empty"}, []Block{}))

	it := New(Metadata{Title: "Page"}, []Block{Paragraph{Text: "x"}})
	require.NotNil(t, it)
	assert.Len(t, it.Blocks, 1)
}

func TestItemMarshalMatchesConverterFields(t *testing.T) {
	scraped := time.Date(2025, 3, 14, 9, 26, 53, 0, time.Local)
	it := New(Metadata{
		Title:     "Admitere",
		ScrapedAt: Timestamp{scraped},
		URL:       "https://fmi.unibuc.ro/admitere/",
	}, []Block{
		Heading{Level: 2, Text: "Calendar"},
		Paragraph{Text: "Inscrieri online"},
		List{Items: []string{"iulie", "septembrie"}},
		PDFPage{PageNumber: 3, Text: "Intro"},
	})

	data, err := json.Marshal(it)
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(data, &generic))

	meta := generic["metadata"].(map[string]any)
	assert.Equal(t, "Admitere", meta["title"])
	assert.Equal(t, "2025-03-14 09:26:53", meta["date_scraped"])
	assert.Equal(t, "https://fmi.unibuc.ro/admitere/", meta["url"])

	blocks := generic["text"].([]any)
	require.Len(t, blocks, 4)
	assert.Equal(t, map[string]any{"type": "heading", "level": "h2", "content": "Calendar"}, blocks[0])
	assert.Equal(t, map[string]any{"type": "paragraph", "content": "Inscrieri online"}, blocks[1])
	assert.Equal(t, map[string]any{"type": "list", "items": []any{"iulie", "septembrie"}}, blocks[2])
	assert.Equal(t, map[string]any{"type": "pdf_page", "page_number": float64(3), "content": "Intro"}, blocks[3])
}

func TestItemUnmarshal(t *testing.T) {
	raw := `{"metadata":{"title":"T","date_scraped":"2024-11-02 02:00:01","url":"u"},
		"text":[{"type":"heading","level":"h1","content":"H"},{"type":"pdf_page","page_number":2,"content":"P"}]}`

	var it Item
	require.NoError(t, json.Unmarshal([]byte(raw), &it))

	assert.Equal(t, "T", it.Metadata.Title)
	assert.Equal(t, "2024-11-02 02:00:01", it.Metadata.ScrapedAt.String())
	assert.Equal(t, []Block{Heading{Level: 1, Text: "H"}, PDFPage{PageNumber: 2, Text: "P"}}, it.Blocks)
	assert.Equal(t, "pdf", it.Kind())
}

func TestItemUnmarshalRejectsUnknownBlock(t *testing.T) {
	var it Item
	err := json.Unmarshal([]byte(`{"metadata":{},"text":[{"type":"table"}]}`), &it)
	assert.ErrorContains(t, err, "unknown block type")

	err = json.Unmarshal([]byte(`{"metadata":{},"text":[{"type":"heading","level":"h9"}]}`), &it)
	assert.ErrorContains(t, err, "invalid heading level")
}

func TestItemText(t *testing.T) {
	it := New(Metadata{}, []Block{Heading{Level: 1, Text: "A"}, List{Items: []string{"b", "c"}}})
	assert.Equal(t, "A\nb\nc\n", it.Text())
	assert.Equal(t, "page", it.Kind())
}
