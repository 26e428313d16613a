// Package serpapi provides a client for the SerpAPI Google search endpoint.
package serpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://serpapi.com"

// Client performs SerpAPI searches.
type Client interface {
	Search(ctx context.Context, req SearchRequest) (*SearchResponse, error)
}

// SearchRequest selects one page of Google organic results.
type SearchRequest struct {
	Query    string
	Num      int // results per page; 0 leaves the engine default
	Start    int // zero-based result offset
	Language string
}

// SearchResponse is the subset of the SerpAPI payload we consume.
type SearchResponse struct {
	OrganicResults []OrganicResult `json:"organic_results"`
	SearchMetadata SearchMetadata  `json:"search_metadata"`
	Error          string          `json:"error,omitempty"`
}

// OrganicResult is one organic search hit.
type OrganicResult struct {
	Position int    `json:"position"`
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet"`
}

// SearchMetadata carries the request status reported by SerpAPI.
type SearchMetadata struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Links returns the organic result links in position order.
func (r *SearchResponse) Links() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.OrganicResults))
	for _, o := range r.OrganicResults {
		if o.Link != "" {
			out = append(out, o.Link)
		}
	}
	return out
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a SerpAPI client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, sr SearchRequest) (*SearchResponse, error) {
	params := url.Values{}
	params.Set("engine", "google")
	params.Set("q", sr.Query)
	params.Set("api_key", c.apiKey)
	if sr.Start > 0 {
		params.Set("start", strconv.Itoa(sr.Start))
	}
	if sr.Num > 0 {
		params.Set("num", strconv.Itoa(sr.Num))
	}
	if sr.Language != "" {
		params.Set("hl", sr.Language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search.json?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "serpapi: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "serpapi: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "serpapi: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("serpapi: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var result SearchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "serpapi: unmarshal response")
	}

	// An empty result page is reported as an error string with status 200.
	if result.Error != "" && len(result.OrganicResults) == 0 && result.SearchMetadata.Status != "Success" {
		return nil, eris.Errorf("serpapi: %s", result.Error)
	}

	return &result, nil
}
