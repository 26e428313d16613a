// Package pageinfo fetches a page and extracts its title and meta
// description for display next to a search result.
package pageinfo

import (
	"context"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/sells-group/serp-scraper/internal/model"
)

const (
	defaultTimeout   = 5 * time.Second
	defaultUserAgent = "Mozilla/5.0 (compatible; SerpScraper/1.0)"
	defaultMaxBody   = 1024 * 1024
)

// Info is the metadata shown for one result URL.
type Info struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Fallback returns the placeholder pair used when nothing could be read.
func Fallback() Info {
	return Info{Title: model.NoTitle, Description: model.NoDescription}
}

// Option configures the Fetcher.
type Option func(*Fetcher)

// WithTimeout bounds the whole request including the body read.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.client.Timeout = d
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithMaxBodyBytes caps how much of the page is parsed.
func WithMaxBodyBytes(n int64) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBody = n
		}
	}
}

// WithHTTPClient replaces the default client. Its Timeout is kept as-is.
func WithHTTPClient(hc *http.Client) Option {
	return func(f *Fetcher) {
		f.client = hc
	}
}

// Fetcher reads page titles and meta descriptions over plain HTTP.
type Fetcher struct {
	client    *http.Client
	userAgent string
	maxBody   int64
}

// New creates a Fetcher with a 5s timeout.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client: &http.Client{
			Timeout: defaultTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: defaultTimeout,
				}).DialContext,
				TLSHandshakeTimeout: defaultTimeout,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent: defaultUserAgent,
		maxBody:   defaultMaxBody,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Fetch returns the page's title and meta description. It never fails: any
// error, and any missing element, yields the fallback text for that field.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) Info {
	info, err := f.fetch(ctx, rawURL)
	if err != nil {
		zap.L().Debug("pageinfo: using fallback",
			zap.String("url", rawURL),
			zap.Error(err),
		)
		return Fallback()
	}
	return info
}

func (f *Fetcher) fetch(ctx context.Context, rawURL string) (Info, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Info{}, eris.Wrap(err, "pageinfo: parse url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Info{}, eris.Errorf("pageinfo: unsupported scheme %q", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Info{}, eris.Wrap(err, "pageinfo: create request")
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return Info{}, eris.Wrap(err, "pageinfo: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return Info{}, eris.Errorf("pageinfo: status %d", resp.StatusCode)
	}

	body, err := decodeBody(io.LimitReader(resp.Body, f.maxBody), resp.Header.Get("Content-Type"))
	if err != nil {
		return Info{}, err
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return Info{}, eris.Wrap(err, "pageinfo: parse html")
	}

	return Extract(doc), nil
}

// decodeBody converts a non-UTF-8 body to UTF-8 using the charset declared
// in the Content-Type header.
func decodeBody(r io.Reader, contentType string) (io.Reader, error) {
	if contentType == "" {
		return r, nil
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return r, nil
	}
	charset := strings.ToLower(strings.TrimSpace(params["charset"]))
	if charset == "" || charset == "utf-8" || charset == "utf8" {
		return r, nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, eris.Wrapf(err, "pageinfo: unsupported charset %q", charset)
	}
	return enc.NewDecoder().Reader(r), nil
}

// Extract reads the title element and the description meta tag from a parsed
// document, falling back per field.
func Extract(doc *goquery.Document) Info {
	info := Fallback()

	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		info.Title = title
	}

	doc.Find("meta[name]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		name, _ := s.Attr("name")
		if !strings.EqualFold(strings.TrimSpace(name), "description") {
			return true
		}
		if content, ok := s.Attr("content"); ok && strings.TrimSpace(content) != "" {
			info.Description = strings.TrimSpace(content)
		}
		return false
	})

	return info
}
