package policy

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askfmi/fmicrawl/internal/frontier"
)

func testPolicy(t *testing.T) *Policy {
	t.Helper()
	p, err := New(Rules{
		AllowedDomains: []string{"fmi.unibuc.ro", "unibuc.ro"},
		ForbiddenSubstrings: []string{
			"facebook.com", "old.fmi.unibuc.ro", "noutati/", "https://admitere.fmi.unibuc.ro",
			"https://drive.google.com/file/d/1q_3gIfcSsQ0KRT0LRzlUHNC3dQFd9SC7/view", "mailto:", "tel:",
		},
		IgnoredExtensions:      []string{".docx", ".zip", "PNG"},
		ForbiddenDocumentNames: []string{"rezultate", "barem", "lista"},
	})
	require.NoError(t, err)
	return p
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestNewRequiresDomain(t *testing.T) {
	_, err := New(Rules{AllowedDomains: []string{" "}})
	assert.ErrorIs(t, err, ErrNoAllowedDomains)
}

func TestClassify(t *testing.T) {
	p := testPolicy(t)
	base := mustURL(t, "https://fmi.unibuc.ro/admitere/")

	tests := []struct {
		name   string
		href   string
		action Action
		url    string
		reason string
	}{
		{"relative page", "../secretariat/", Follow, "https://fmi.unibuc.ro/secretariat/", ""},
		{"fragment stripped", "/regulamente/#art-3", Follow, "https://fmi.unibuc.ro/regulamente/", ""},
		{"subdomain page", "https://cs.fmi.unibuc.ro/x", Follow, "https://cs.fmi.unibuc.ro/x", ""},
		{"anchor only", "#top", Reject, "", ReasonEmpty},
		{"empty", "   ", Reject, "", ReasonEmpty},
		{"social", "https://www.facebook.com/fmi", Reject, "", ReasonForbiddenURL},
		{"forbidden path case-insensitive", "/NOUTATI/anunt", Reject, "", ReasonForbiddenURL},
		{"withdrawn subdomain", "https://admitere.fmi.unibuc.ro/", Reject, "", ReasonForbiddenURL},
		{"mailto", "mailto:secretariat@fmi.unibuc.ro", Reject, "", ReasonForbiddenURL},
		{"javascript", "javascript:void(0)", Reject, "", ReasonScheme},
		{"ignored extension", "/files/orar.docx", Reject, "", ReasonIgnoredExtension},
		{"ignored extension uppercase", "/img/logo.PNG", Reject, "", ReasonIgnoredExtension},
		{"offsite page", "https://example.com/page", Reject, "", ReasonOffsite},
		{"parent domain page is offsite", "https://unibuc.ro/despre/", Reject, "", ReasonOffsite},
		{"pdf on primary domain", "/wp-content/uploads/regulament.pdf", FollowDocument, "https://fmi.unibuc.ro/wp-content/uploads/regulament.pdf", ""},
		{"pdf on parent domain", "https://unibuc.ro/docs/Taxe.PDF", FollowDocument, "https://unibuc.ro/docs/Taxe.PDF", ""},
		{"pdf offsite", "https://example.com/a.pdf", Reject, "", ReasonOffsite},
		{"pdf forbidden name", "/uploads/Rezultate_2024.pdf", Reject, "", ReasonForbiddenDocument},
		{"pdf forbidden escaped name", "/uploads/lista%20finala.pdf", Reject, "", ReasonForbiddenDocument},
		{"drive file", "https://drive.google.com/file/d/1AbC-d_9/view?usp=sharing", FollowDocument, DriveDownloadURL + "1AbC-d_9", ""},
		{"docs file", "https://docs.google.com/document/d/XYZ123/edit", FollowDocument, DriveDownloadURL + "XYZ123", ""},
		{"drive without id", "https://drive.google.com/drive/folders", Reject, "", ReasonNoFileID},
		{"drive blocklisted", "https://drive.google.com/file/d/1q_3gIfcSsQ0KRT0LRzlUHNC3dQFd9SC7/view", Reject, "", ReasonForbiddenURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := p.Classify(base, tt.href)
			assert.Equal(t, tt.action, d.Action, "reason=%s", d.Reason)
			if tt.url != "" {
				assert.Equal(t, tt.url, d.URL)
			}
			if tt.reason != "" {
				assert.Equal(t, tt.reason, d.Reason)
			}
		})
	}
}

func TestClassifyKinds(t *testing.T) {
	p := testPolicy(t)

	assert.Equal(t, frontier.KindPage, p.ClassifyURL("https://fmi.unibuc.ro/casierie/").Kind)
	assert.Equal(t, frontier.KindPDF, p.ClassifyURL("https://fmi.unibuc.ro/a.pdf").Kind)
	assert.Equal(t, frontier.KindPDF, p.ClassifyURL("https://drive.google.com/file/d/abc/view").Kind)
}

func TestForbiddenTakesPrecedenceOverDomain(t *testing.T) {
	p := testPolicy(t)

	// In scope by domain, but on the forbidden list.
	d := p.ClassifyURL("https://old.fmi.unibuc.ro/admitere/")
	assert.Equal(t, Reject, d.Action)
	assert.Equal(t, ReasonForbiddenURL, d.Reason)
	assert.False(t, p.InScope("https://fmi.unibuc.ro/noutati/"))
	assert.True(t, p.InScope("https://fmi.unibuc.ro/admitere/"))
}

func TestForbiddenDocument(t *testing.T) {
	p := testPolicy(t)

	assert.True(t, p.ForbiddenDocument("rezultate_2024.pdf"))
	assert.True(t, p.ForbiddenDocument("BAREM-info.pdf"))
	assert.False(t, p.ForbiddenDocument("regulament.pdf"))
	assert.False(t, p.ForbiddenDocument(""))
}
