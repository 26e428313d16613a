package main

import (
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/serp-scraper/internal/config"
	"github.com/sells-group/serp-scraper/internal/job"
	"github.com/sells-group/serp-scraper/internal/pageinfo"
	"github.com/sells-group/serp-scraper/internal/querygen"
	"github.com/sells-group/serp-scraper/internal/search"
	anthropicpkg "github.com/sells-group/serp-scraper/pkg/anthropic"
	"github.com/sells-group/serp-scraper/pkg/google"
	"github.com/sells-group/serp-scraper/pkg/jina"
	"github.com/sells-group/serp-scraper/pkg/perplexity"
	"github.com/sells-group/serp-scraper/pkg/serpapi"
)

// initHost validates c for mode, builds the job collaborators from it and
// returns a Host ready to accept scrape requests.
func initHost(c *config.Config, mode string) (*job.Host, error) {
	if err := c.Validate(mode); err != nil {
		return nil, err
	}

	deps, err := buildDeps(c)
	if err != nil {
		return nil, err
	}

	return job.NewHost(deps,
		job.WithPace(time.Duration(c.Job.PaceMS)*time.Millisecond),
		job.WithEventBuffer(c.Job.EventBuffer),
	), nil
}

func buildDeps(c *config.Config) (job.Deps, error) {
	completer, err := newCompleter(c)
	if err != nil {
		return job.Deps{}, err
	}

	searcher, err := newSearcher(c)
	if err != nil {
		return job.Deps{}, err
	}

	zap.L().Debug("providers configured",
		zap.String("llm", c.LLM.Provider),
		zap.String("search", c.Search.Provider),
	)

	return job.Deps{
		Generator: querygen.New(completer,
			querygen.WithTemperature(c.LLM.Temperature),
			querygen.WithMaxTokens(c.LLM.MaxTokens),
		),
		Searcher: searcher,
		Fetcher:  newFetcher(c),
	}, nil
}

func newCompleter(c *config.Config) (querygen.Completer, error) {
	switch c.LLM.Provider {
	case querygen.ProviderAnthropic:
		opts := []anthropicpkg.Option{anthropicpkg.WithMaxRetries(0)}
		if c.Anthropic.BaseURL != "" {
			opts = append(opts, anthropicpkg.WithBaseURL(c.Anthropic.BaseURL))
		}
		return querygen.NewAnthropic(anthropicpkg.NewClient(c.Anthropic.Key, opts...), c.Anthropic.Model), nil
	case querygen.ProviderPerplexity:
		client := perplexity.NewClient(c.Perplexity.Key,
			perplexity.WithBaseURL(c.Perplexity.BaseURL),
			perplexity.WithModel(c.Perplexity.Model),
		)
		return querygen.NewPerplexity(client), nil
	case querygen.ProviderOllama:
		completer, err := querygen.NewOllama(c.Ollama.ServerURL, c.Ollama.Model)
		if err != nil {
			return nil, eris.Wrap(err, "init ollama")
		}
		return completer, nil
	default:
		return nil, eris.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
}

func newSearcher(c *config.Config) (search.Searcher, error) {
	timeout := time.Duration(c.Search.TimeoutSecs) * time.Second

	switch c.Search.Provider {
	case search.ProviderGoogle:
		client := google.NewClient(
			google.WithBaseURL(c.Google.BaseURL),
			google.WithUserAgent(c.Google.UserAgent),
			google.WithLanguage(c.Google.Language),
			google.WithTimeout(timeout),
		)
		return search.NewGoogle(client), nil
	case search.ProviderJina:
		var opts []jina.Option
		if c.Jina.SearchBaseURL != "" {
			opts = append(opts, jina.WithSearchBaseURL(c.Jina.SearchBaseURL))
		}
		return search.NewJina(jina.NewClient(c.Jina.Key, opts...)), nil
	case search.ProviderSerpAPI:
		client := serpapi.NewClient(c.SerpAPI.Key, serpapi.WithBaseURL(c.SerpAPI.BaseURL))
		return search.NewSerpAPI(client, c.Google.Language), nil
	default:
		return nil, eris.Errorf("unknown search provider %q", c.Search.Provider)
	}
}

func newFetcher(c *config.Config) *pageinfo.Fetcher {
	return pageinfo.New(
		pageinfo.WithTimeout(time.Duration(c.PageInfo.TimeoutSecs)*time.Second),
		pageinfo.WithUserAgent(c.PageInfo.UserAgent),
		pageinfo.WithMaxBodyBytes(int64(c.PageInfo.MaxBodyKB)*1024),
	)
}
