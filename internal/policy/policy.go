// Package policy decides which discovered links the crawler follows.
//
// Rules are applied in a fixed order, so that a forbidden substring always
// wins over domain scope:
//
//  1. forbidden substrings (case-insensitive, on the absolute URL)
//  2. non-http(s) schemes
//  3. direct .pdf links on an allowed domain (document name pre-check)
//  4. Drive/Docs links, rewritten to a direct download URL
//  5. pages on the primary domain, minus ignored extensions
//  6. everything else is off-site
package policy

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/askfmi/fmicrawl/internal/frontier"
)

// Action is the outcome of classifying a link.
type Action int

const (
	// Reject drops the link.
	Reject Action = iota
	// Follow enqueues the link as an HTML page.
	Follow
	// FollowDocument enqueues the link for the document extractor.
	FollowDocument
)

func (a Action) String() string {
	switch a {
	case Follow:
		return "follow"
	case FollowDocument:
		return "follow_document"
	default:
		return "reject"
	}
}

// Reject reasons.
const (
	ReasonEmpty             = "empty"
	ReasonInvalid           = "invalid_url"
	ReasonForbiddenURL      = "forbidden_url"
	ReasonScheme            = "unsupported_scheme"
	ReasonIgnoredExtension  = "ignored_extension"
	ReasonOffsite           = "offsite"
	ReasonForbiddenDocument = "forbidden_document"
	ReasonNoFileID          = "no_file_id"
)

// Decision is the classification of one link.
type Decision struct {
	Action Action
	// URL is the absolute URL to enqueue. Drive links are already rewritten.
	URL string
	// Kind is set for Follow and FollowDocument.
	Kind frontier.Kind
	// Reason is set for Reject.
	Reason string
}

// Rules is the static filtering configuration.
type Rules struct {
	// AllowedDomains scopes documents; the first entry also scopes pages.
	AllowedDomains []string
	// ForbiddenSubstrings reject any URL containing one of them.
	ForbiddenSubstrings []string
	// IgnoredExtensions reject page URLs whose path ends with one of them.
	IgnoredExtensions []string
	// ForbiddenDocumentNames reject documents whose file name contains one of them.
	ForbiddenDocumentNames []string
}

// ErrNoAllowedDomains is returned by New without any allowed domain.
var ErrNoAllowedDomains = errors.New("policy: at least one allowed domain is required")

// DriveDownloadURL is the direct download endpoint for a Drive file id.
const DriveDownloadURL = "https://drive.google.com/uc?export=download&id="

var (
	driveHosts  = []string{"drive.google.com", "docs.google.com"}
	driveFileID = regexp.MustCompile(`/d/([a-zA-Z0-9_-]+)`)
)

// Policy classifies links. It is immutable and safe for concurrent use.
type Policy struct {
	primaryDomain  string
	allowedDomains []string
	forbidden      []string
	ignoredExt     map[string]struct{}
	forbiddenNames []string
}

// New builds a Policy from rules. Matching is case-insensitive.
func New(rules Rules) (*Policy, error) {
	domains := lowerAll(rules.AllowedDomains)
	if len(domains) == 0 {
		return nil, ErrNoAllowedDomains
	}

	ignored := make(map[string]struct{}, len(rules.IgnoredExtensions))
	for _, ext := range lowerAll(rules.IgnoredExtensions) {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		ignored[ext] = struct{}{}
	}

	return &Policy{
		primaryDomain:  domains[0],
		allowedDomains: domains,
		forbidden:      lowerAll(rules.ForbiddenSubstrings),
		ignoredExt:     ignored,
		forbiddenNames: lowerAll(rules.ForbiddenDocumentNames),
	}, nil
}

// Classify resolves href against base (the page it was found on) and decides
// whether to follow it.
func (p *Policy) Classify(base *url.URL, href string) Decision {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return rejected(ReasonEmpty)
	}

	ref, err := url.Parse(href)
	if err != nil {
		return rejected(ReasonInvalid)
	}
	abs := ref
	if base != nil {
		abs = base.ResolveReference(ref)
	}
	abs.Fragment = ""
	abs.RawFragment = ""

	return p.classify(abs)
}

// ClassifyURL classifies an absolute URL.
func (p *Policy) ClassifyURL(rawURL string) Decision {
	return p.Classify(nil, rawURL)
}

func (p *Policy) classify(u *url.URL) Decision {
	absolute := u.String()
	lower := strings.ToLower(absolute)

	for _, needle := range p.forbidden {
		if strings.Contains(lower, needle) {
			return rejected(ReasonForbiddenURL)
		}
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return rejected(ReasonScheme)
	}
	if u.Host == "" {
		return rejected(ReasonInvalid)
	}

	host := strings.ToLower(u.Hostname())
	lowerPath := strings.ToLower(u.Path)

	if strings.HasSuffix(lowerPath, ".pdf") {
		if !p.documentInScope(host) {
			return rejected(ReasonOffsite)
		}
		if p.ForbiddenDocument(path.Base(u.Path)) {
			return rejected(ReasonForbiddenDocument)
		}
		return Decision{Action: FollowDocument, URL: absolute, Kind: frontier.KindPDF}
	}

	if isDriveHost(host) {
		m := driveFileID.FindStringSubmatch(u.Path)
		if m == nil {
			return rejected(ReasonNoFileID)
		}
		return Decision{Action: FollowDocument, URL: DriveDownloadURL + m[1], Kind: frontier.KindPDF}
	}

	if !matchesDomain(host, p.primaryDomain) {
		return rejected(ReasonOffsite)
	}
	if _, ignored := p.ignoredExt[strings.ToLower(path.Ext(lowerPath))]; ignored {
		return rejected(ReasonIgnoredExtension)
	}

	return Decision{Action: Follow, URL: absolute, Kind: frontier.KindPage}
}

// ForbiddenDocument reports whether a document file name matches the
// forbidden-name list.
func (p *Policy) ForbiddenDocument(name string) bool {
	name = strings.ToLower(name)
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	for _, needle := range p.forbiddenNames {
		if strings.Contains(name, needle) {
			return true
		}
	}
	return false
}

// InScope reports whether rawURL may be fetched as a page.
func (p *Policy) InScope(rawURL string) bool {
	d := p.ClassifyURL(rawURL)
	return d.Action != Reject
}

// String summarizes the policy for logs.
func (p *Policy) String() string {
	return fmt.Sprintf("policy(primary=%s domains=%d forbidden=%d ignored_ext=%d forbidden_names=%d)",
		p.primaryDomain, len(p.allowedDomains), len(p.forbidden), len(p.ignoredExt), len(p.forbiddenNames))
}

func (p *Policy) documentInScope(host string) bool {
	for _, d := range p.allowedDomains {
		if matchesDomain(host, d) {
			return true
		}
	}
	return false
}

// matchesDomain reports whether host is domain or one of its subdomains.
func matchesDomain(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}

func isDriveHost(host string) bool {
	for _, h := range driveHosts {
		if host == h {
			return true
		}
	}
	return false
}

func rejected(reason string) Decision {
	return Decision{Action: Reject, Reason: reason}
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
