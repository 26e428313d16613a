// Package search resolves a query to an ordered list of result URLs through
// one of the configured providers.
package search

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/serp-scraper/pkg/google"
	"github.com/sells-group/serp-scraper/pkg/jina"
	"github.com/sells-group/serp-scraper/pkg/serpapi"
)

// Provider names accepted by the search.provider setting.
const (
	ProviderGoogle  = "google"
	ProviderJina    = "jina"
	ProviderSerpAPI = "serpapi"
)

// Searcher returns at most count result URLs for query, in provider rank
// order, with duplicates removed.
type Searcher interface {
	Search(ctx context.Context, query string, count int) ([]string, error)
}

// Normalize drops blanks and repeats, keeping the first occurrence, and
// truncates to count.
func Normalize(urls []string, count int) []string {
	if count <= 0 {
		return []string{}
	}
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, min(len(urls), count))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
		if len(out) == count {
			break
		}
	}
	return out
}

// GoogleSearcher scrapes Google's HTML results page.
type GoogleSearcher struct {
	client google.Client
}

// NewGoogle wraps a Google results scraper.
func NewGoogle(client google.Client) *GoogleSearcher {
	return &GoogleSearcher{client: client}
}

// Search implements Searcher.
func (s *GoogleSearcher) Search(ctx context.Context, query string, count int) ([]string, error) {
	start := time.Now()
	urls, err := s.client.Search(ctx, query, count)
	if err != nil {
		return nil, eris.Wrap(err, "search: google")
	}
	out := Normalize(urls, count)
	logSearch(ProviderGoogle, query, len(out), start)
	return out, nil
}

// JinaSearcher queries the Jina AI search API.
type JinaSearcher struct {
	client jina.Client
}

// NewJina wraps a Jina search client.
func NewJina(client jina.Client) *JinaSearcher {
	return &JinaSearcher{client: client}
}

// Search implements Searcher. Jina returns a single page of results.
func (s *JinaSearcher) Search(ctx context.Context, query string, count int) ([]string, error) {
	start := time.Now()
	resp, err := s.client.Search(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "search: jina")
	}
	out := Normalize(resp.URLs(), count)
	logSearch(ProviderJina, query, len(out), start)
	return out, nil
}

// SerpAPISearcher queries SerpAPI's Google engine, paging by offset until
// enough links are collected.
type SerpAPISearcher struct {
	client   serpapi.Client
	language string
}

// NewSerpAPI wraps a SerpAPI client.
func NewSerpAPI(client serpapi.Client, language string) *SerpAPISearcher {
	return &SerpAPISearcher{client: client, language: language}
}

// serpAPIMaxPages bounds paging when pages keep returning only duplicates.
const serpAPIMaxPages = 10

// Search implements Searcher.
func (s *SerpAPISearcher) Search(ctx context.Context, query string, count int) ([]string, error) {
	began := time.Now()
	var collected []string
	offset := 0

	for page := 0; page < serpAPIMaxPages; page++ {
		resp, err := s.client.Search(ctx, serpapi.SearchRequest{
			Query:    query,
			Num:      count,
			Start:    offset,
			Language: s.language,
		})
		if err != nil {
			return nil, eris.Wrap(err, "search: serpapi")
		}

		links := resp.Links()
		if len(links) == 0 {
			break
		}
		before := len(Normalize(collected, count))
		collected = append(collected, links...)
		after := len(Normalize(collected, count))
		if after >= count || after == before {
			break
		}
		offset += len(resp.OrganicResults)
	}

	out := Normalize(collected, count)
	logSearch(ProviderSerpAPI, query, len(out), began)
	return out, nil
}

func logSearch(provider, query string, n int, start time.Time) {
	zap.L().Debug("search: results",
		zap.String("provider", provider),
		zap.String("query", query),
		zap.Int("urls", n),
		zap.Duration("elapsed", time.Since(start)),
	)
}
