//go:build !integration

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sells-group/serp-scraper/internal/job"
	"github.com/sells-group/serp-scraper/internal/pageinfo"
)

type stubGenerator struct {
	keyword string
	err     error
	gate    chan struct{}
}

func (g *stubGenerator) Generate(ctx context.Context, _ string) (string, error) {
	if g.gate != nil {
		select {
		case <-g.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return g.keyword, g.err
}

type stubSearcher struct {
	urls []string
	err  error
}

func (s *stubSearcher) Search(_ context.Context, _ string, count int) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.urls[:min(count, len(s.urls))], nil
}

type stubFetcher struct {
	onFetch func()
}

func (f *stubFetcher) Fetch(_ context.Context, url string) pageinfo.Info {
	if f.onFetch != nil {
		f.onFetch()
	}
	return pageinfo.Info{Title: fmt.Sprintf("Title of %s", url), Description: "desc"}
}

func newStubHost(gen *stubGenerator, pace time.Duration) *job.Host {
	return job.NewHost(job.Deps{
		Generator: gen,
		Searcher:  &stubSearcher{urls: []string{"https://a.com/", "https://b.com/", "https://c.com/"}},
		Fetcher:   &stubFetcher{},
	}, job.WithPace(pace))
}
