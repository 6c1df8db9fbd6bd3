// Package fetch retrieves raw content for ingestion: web pages with document
// link discovery, linked binary documents, and local tabular files.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

var (
	// ErrNoUsableText marks content whose extracted text is too short to index.
	// Callers discard it without recording an error.
	ErrNoUsableText = errors.New("no usable text")
	// ErrHeaderNotFound is returned when no encoding yields the expected tabular header.
	ErrHeaderNotFound = errors.New("tabular header not found")
	// ErrTooLarge is returned when a response body exceeds the configured limit.
	ErrTooLarge = errors.New("response too large")
)

// StatusError is returned for non-2xx HTTP responses.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d", e.URL, e.Code)
}

// Fetcher downloads web pages and documents with a per-request timeout.
type Fetcher struct {
	client       *http.Client
	timeout      time.Duration
	userAgent    string
	maxBytes     int64
	minTextChars int
	linkPatterns []string
	logger       *zap.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithTimeout bounds every request.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) { f.timeout = d }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) { f.userAgent = ua }
}

// WithMaxBytes caps response bodies.
func WithMaxBytes(n int64) Option {
	return func(f *Fetcher) { f.maxBytes = n }
}

// WithMinTextChars sets the threshold below which text is not usable.
func WithMinTextChars(n int) Option {
	return func(f *Fetcher) { f.minTextChars = n }
}

// WithLinkPatterns sets path substrings that mark a link as a document link
// in addition to the .pdf suffix.
func WithLinkPatterns(patterns []string) Option {
	return func(f *Fetcher) { f.linkPatterns = patterns }
}

// New returns a Fetcher with the given options.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:       &http.Client{},
		timeout:      20 * time.Second,
		userAgent:    "sofim-crawler/1.0",
		maxBytes:     32 << 20,
		minTextChars: 10,
		logger:       zap.NewNop(),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

type response struct {
	body        []byte
	contentType string
	finalURL    *url.URL
}

func (f *Fetcher) get(ctx context.Context, rawURL string) (*response, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{URL: rawURL, Code: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rawURL, err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, fmt.Errorf("%s: %w (limit %d bytes)", rawURL, ErrTooLarge, f.maxBytes)
	}
	final := resp.Request.URL
	if final == nil {
		final, _ = url.Parse(rawURL)
	}
	return &response{body: body, contentType: resp.Header.Get("Content-Type"), finalURL: final}, nil
}

func (f *Fetcher) usable(text string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(text)) >= f.minTextChars
}
