package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/net/html/charset"

	"github.com/hyperifyio/urlpreview/internal/cache"
)

// DefaultMaxBytes caps how much of a page body is read.
const DefaultMaxBytes = 4 << 20

var (
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")
	ErrNotHTML           = errors.New("response is not HTML")
	ErrTooManyRedirects  = errors.New("too many redirects")
)

// StatusError is returned for non-2xx responses other than 304.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string { return fmt.Sprintf("unexpected status: %d", e.Code) }

// Page is a fetched HTML document decoded to UTF-8.
type Page struct {
	URL         string
	ContentType string
	Body        string
	// FromCache is true when the body was served from the page cache after a
	// 304 revalidation.
	FromCache bool
}

// Client fetches one HTML page per call. It makes a single attempt; callers
// decide what a failure means.
type Client struct {
	HTTPClient *http.Client
	UserAgent  string
	// PerRequestTimeout bounds each request. Zero means no extra bound.
	PerRequestTimeout time.Duration
	// MaxBytes caps the body size. Zero means DefaultMaxBytes.
	MaxBytes int64
	// Optional on-disk cache used for conditional revalidation.
	Cache *cache.PageCache
	// If true, skip conditional headers but still store the response.
	BypassCache bool
	// RedirectMaxHops caps redirect following. Zero means default (5).
	RedirectMaxHops int
}

func (c *Client) getHTTPClient() *http.Client {
	if c.HTTPClient != nil {
		// Clone to attach our redirect policy without mutating caller's client
		base := *c.HTTPClient
		base.CheckRedirect = c.checkRedirectFunc()
		return &base
	}
	return &http.Client{CheckRedirect: c.checkRedirectFunc()}
}

func (c *Client) maxBytes() int64 {
	if c.MaxBytes > 0 {
		return c.MaxBytes
	}
	return DefaultMaxBytes
}

// Get issues a GET for rawURL and returns the decoded HTML page.
func (c *Client) Get(ctx context.Context, rawURL string) (Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Page{}, fmt.Errorf("parse url: %w", err)
	}
	if !isHTTPScheme(u) {
		return Page{}, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}

	var etag, lastMod string
	if c.Cache != nil && !c.BypassCache {
		if meta, err := c.Cache.LoadMeta(ctx, rawURL); err == nil && meta != nil {
			etag = meta.ETag
			lastMod = meta.LastModified
		}
	}

	if c.PerRequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.PerRequestTimeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Page{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastMod != "" {
		req.Header.Set("If-Modified-Since", lastMod)
	}

	resp, err := c.getHTTPClient().Do(req)
	if err != nil {
		return Page{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified && c.Cache != nil {
		return c.fromCache(ctx, rawURL)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Page{}, &StatusError{Code: resp.StatusCode}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes()))
	if err != nil {
		return Page{}, fmt.Errorf("read body: %w", err)
	}
	contentType := resp.Header.Get("Content-Type")
	if !isHTML(contentType, raw) {
		return Page{}, fmt.Errorf("%w: %s", ErrNotHTML, contentType)
	}
	body, err := decode(raw, contentType)
	if err != nil {
		return Page{}, err
	}

	if c.Cache != nil {
		_ = c.Cache.Save(ctx, cache.Entry{
			URL:          rawURL,
			ContentType:  contentType,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}, []byte(body))
	}
	return Page{URL: resp.Request.URL.String(), ContentType: contentType, Body: body}, nil
}

func (c *Client) fromCache(ctx context.Context, rawURL string) (Page, error) {
	body, err := c.Cache.LoadBody(ctx, rawURL)
	if err != nil {
		return Page{}, fmt.Errorf("cached body: %w", err)
	}
	var ct string
	if meta, err := c.Cache.LoadMeta(ctx, rawURL); err == nil && meta != nil {
		ct = meta.ContentType
	}
	return Page{URL: rawURL, ContentType: ct, Body: string(body), FromCache: true}, nil
}

// decode converts raw to UTF-8 using the declared or sniffed charset.
func decode(raw []byte, contentType string) (string, error) {
	r, err := charset.NewReader(bytes.NewReader(raw), contentType)
	if err != nil {
		return "", fmt.Errorf("charset: %w", err)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("decode body: %w", err)
	}
	return string(b), nil
}

func (c *Client) checkRedirectFunc() func(req *http.Request, via []*http.Request) error {
	max := c.RedirectMaxHops
	if max <= 0 {
		max = 5
	}
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= max {
			return ErrTooManyRedirects
		}
		// Only allow http/https during redirects
		if !isHTTPScheme(req.URL) {
			return ErrUnsupportedScheme
		}
		return nil
	}
}

func isHTTPScheme(u *url.URL) bool {
	if u == nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}

// isHTML trusts an explicit HTML content type, rejects any other explicit
// type, and sniffs the body when the server sent nothing useful.
func isHTML(contentType string, body []byte) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if isAllowedHTMLContentType(ct) {
		return true
	}
	if ct != "" && !strings.HasPrefix(ct, "application/octet-stream") && !strings.HasPrefix(ct, "text/plain") {
		return false
	}
	m := mimetype.Detect(body)
	return m.Is("text/html") || m.Is("application/xhtml+xml")
}

func isAllowedHTMLContentType(ct string) bool {
	// allow text/html variants and application/xhtml+xml
	return strings.HasPrefix(ct, "text/html") || strings.HasPrefix(ct, "application/xhtml+xml")
}
