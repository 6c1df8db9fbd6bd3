package fetch

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/sofim-uhk/sofim/internal/extract"
)

// maxDetailDepth caps how many intermediate HTML pages a document fetch follows.
const maxDetailDepth = 1

// WebPage is a fetched seed page.
type WebPage struct {
	URL   string
	Title string
	// Text is the cleaned main content; empty when the page has no usable text.
	Text string
	// DocumentLinks are absolute, same-origin document URLs in discovery order.
	DocumentLinks []string
}

// Document is the extracted text of a linked document.
type Document struct {
	URL  string
	Kind extract.Kind
	Text string
}

// FetchPage downloads a seed page, discovers document links on the raw markup,
// and extracts the cleaned main text.
func (f *Fetcher) FetchPage(ctx context.Context, rawURL string) (*WebPage, error) {
	resp, err := f.get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	page, err := extract.ParseHTML(resp.body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", rawURL, err)
	}
	out := &WebPage{
		URL:           rawURL,
		Title:         page.Title(),
		DocumentLinks: f.documentLinks(page.Hrefs(), resp.finalURL),
	}
	if text := page.MainText(); f.usable(text) {
		out.Text = text
	}
	f.logger.Debug("fetched page",
		zap.String("url", rawURL),
		zap.Int("text_chars", len(out.Text)),
		zap.Int("document_links", len(out.DocumentLinks)))
	return out, nil
}

// FetchDocument downloads a linked document and extracts its text. An HTML
// response is treated as a detail page and scanned for one further document
// link; the walk stops after maxDetailDepth pages.
func (f *Fetcher) FetchDocument(ctx context.Context, rawURL string) (*Document, error) {
	target := rawURL
	visited := map[string]bool{}
	for depth := 0; ; depth++ {
		visited[target] = true
		resp, err := f.get(ctx, target)
		if err != nil {
			return nil, err
		}
		kind := extract.Detect(resp.contentType, resp.body, resp.finalURL.Path)
		switch kind {
		case extract.KindPDF, extract.KindDOCX, extract.KindPlain:
			text, err := extract.Text(kind, resp.body)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", target, err)
			}
			if !f.usable(text) {
				return nil, fmt.Errorf("%s: %w", target, ErrNoUsableText)
			}
			return &Document{URL: target, Kind: kind, Text: strings.TrimSpace(text)}, nil

		case extract.KindHTML:
			if depth >= maxDetailDepth {
				return nil, fmt.Errorf("%s: %w: detail page depth limit reached", target, ErrNoUsableText)
			}
			page, err := extract.ParseHTML(resp.body)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", target, err)
			}
			next := ""
			for _, link := range f.documentLinks(page.Hrefs(), resp.finalURL) {
				if !visited[link] {
					next = link
					break
				}
			}
			if next == "" {
				return nil, fmt.Errorf("%s: %w: detail page links no document", target, ErrNoUsableText)
			}
			f.logger.Debug("following detail page", zap.String("from", target), zap.String("to", next))
			target = next

		default:
			return nil, fmt.Errorf("%s: unsupported content type %q", target, resp.contentType)
		}
	}
}

// documentLinks resolves hrefs against base and keeps same-host http(s) links
// that look like documents, de-duplicated in order.
func (f *Fetcher) documentLinks(hrefs []string, base *url.URL) []string {
	seen := map[string]bool{}
	var out []string
	for _, href := range hrefs {
		ref, err := url.Parse(href)
		if err != nil {
			continue
		}
		u := base.ResolveReference(ref)
		u.Fragment = ""
		if u.Scheme != "http" && u.Scheme != "https" {
			continue
		}
		if !strings.EqualFold(u.Hostname(), base.Hostname()) {
			continue
		}
		if !f.looksLikeDocument(u) {
			continue
		}
		s := u.String()
		if s == base.String() || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func (f *Fetcher) looksLikeDocument(u *url.URL) bool {
	p := strings.ToLower(u.Path)
	if strings.HasSuffix(p, ".pdf") || strings.HasSuffix(p, ".docx") {
		return true
	}
	for _, pattern := range f.linkPatterns {
		if pattern != "" && strings.Contains(p, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}
