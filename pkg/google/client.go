// Package google scrapes organic result links from Google's HTML results
// page. It needs no API key.
package google

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const (
	defaultBaseURL   = "https://www.google.com"
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	defaultLanguage  = "en"
	pageSize         = 10
)

// Client searches Google and returns organic result URLs in rank order.
type Client interface {
	Search(ctx context.Context, query string, count int) ([]string, error)
}

// Option configures the client.
type Option func(*scraper)

// WithBaseURL overrides the default results host.
func WithBaseURL(u string) Option {
	return func(s *scraper) {
		if u != "" {
			s.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithUserAgent overrides the browser User-Agent header.
func WithUserAgent(ua string) Option {
	return func(s *scraper) {
		if ua != "" {
			s.userAgent = ua
		}
	}
}

// WithLanguage sets the hl interface language parameter.
func WithLanguage(lang string) Option {
	return func(s *scraper) {
		if lang != "" {
			s.language = lang
		}
	}
}

// WithTimeout sets the per-page request timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *scraper) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithHTTPClient overrides the http.Client used by the collector. The
// client is used as-is; WithTimeout does not apply to it.
func WithHTTPClient(hc *http.Client) Option {
	return func(s *scraper) {
		s.http = hc
	}
}

type scraper struct {
	baseURL   string
	userAgent string
	language  string
	timeout   time.Duration
	http      *http.Client
}

// NewClient creates a Google results scraper.
func NewClient(opts ...Option) Client {
	s := &scraper{
		baseURL:   defaultBaseURL,
		userAgent: defaultUserAgent,
		language:  defaultLanguage,
		timeout:   10 * time.Second,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Search walks result pages until count unique links are collected or a page
// yields nothing new.
func (s *scraper) Search(ctx context.Context, query string, count int) ([]string, error) {
	if count <= 0 {
		return []string{}, nil
	}

	base, err := url.Parse(s.baseURL)
	if err != nil {
		return nil, eris.Wrap(err, "google: parse base url")
	}

	seen := make(map[string]struct{})
	links := make([]string, 0, count)
	maxPages := count/pageSize + 2
	start := 0

	for page := 0; page < maxPages && len(links) < count; page++ {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "google: search")
		}

		found, err := s.fetchPage(ctx, base, query, count-len(links), start)
		if err != nil {
			return nil, err
		}
		start += len(found)

		added := 0
		for _, l := range found {
			if _, dup := seen[l]; dup {
				continue
			}
			seen[l] = struct{}{}
			links = append(links, l)
			added++
			if len(links) == count {
				break
			}
		}

		zap.L().Debug("google: results page",
			zap.String("query", query),
			zap.Int("page", page),
			zap.Int("found", len(found)),
			zap.Int("added", added),
		)

		if added == 0 {
			break
		}
	}

	return links, nil
}

func (s *scraper) fetchPage(ctx context.Context, base *url.URL, query string, num, start int) ([]string, error) {
	c := colly.NewCollector(
		colly.UserAgent(s.userAgent),
		colly.AllowURLRevisit(),
		colly.StdlibContext(ctx),
	)
	if s.http != nil {
		c.SetClient(s.http)
	} else {
		c.SetRequestTimeout(s.timeout)
	}

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml")
		r.Headers.Set("Accept-Language", s.language)
	})

	var found []string
	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		if link, ok := resultLink(base, e.Attr("href")); ok {
			found = append(found, link)
		}
	})

	var visitErr error
	c.OnError(func(r *colly.Response, err error) {
		visitErr = eris.Wrapf(err, "google: status %d", r.StatusCode)
	})

	params := url.Values{}
	params.Set("q", query)
	params.Set("num", strconv.Itoa(num+2))
	params.Set("hl", s.language)
	if start > 0 {
		params.Set("start", strconv.Itoa(start))
	}

	if err := c.Visit(s.baseURL + "/search?" + params.Encode()); err != nil {
		if visitErr != nil {
			return nil, visitErr
		}
		return nil, eris.Wrap(err, "google: visit results page")
	}
	if visitErr != nil {
		return nil, visitErr
	}

	return found, nil
}

// resultLink extracts the target of an organic result anchor. Google wraps
// results as /url?q=<target>; direct absolute links are accepted as well.
// Links back to the results host or any Google property are rejected.
func resultLink(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}

	if strings.HasPrefix(href, "/url?") {
		u, err := url.Parse(href)
		if err != nil {
			return "", false
		}
		q := u.Query()
		href = q.Get("q")
		if href == "" {
			href = q.Get("url")
		}
	}

	target, err := url.Parse(href)
	if err != nil || (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
		return "", false
	}

	host := strings.ToLower(target.Hostname())
	if host == strings.ToLower(base.Hostname()) || isGoogleHost(host) {
		return "", false
	}

	return target.String(), true
}

func isGoogleHost(host string) bool {
	for _, suffix := range []string{"google.com", "googleusercontent.com", "gstatic.com"} {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return true
		}
	}
	return strings.HasPrefix(host, "google.") || strings.Contains(host, ".google.")
}
