package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Bounds applied to both counts of a ScrapeRequest.
const (
	MinCount = 1
	MaxCount = 100
)

// ScrapeRequest describes one scrape job: how many queries to generate from
// the description and how many search results to keep per query.
type ScrapeRequest struct {
	KeywordCount      int    `json:"keywords"`
	ResultsPerKeyword int    `json:"results"`
	Description       string `json:"description"`
}

// Validate reports the first field that is out of range.
func (r ScrapeRequest) Validate() error {
	if r.KeywordCount < MinCount || r.KeywordCount > MaxCount {
		return eris.Errorf("request: keywords must be between %d and %d, got %d", MinCount, MaxCount, r.KeywordCount)
	}
	if r.ResultsPerKeyword < MinCount || r.ResultsPerKeyword > MaxCount {
		return eris.Errorf("request: results must be between %d and %d, got %d", MinCount, MaxCount, r.ResultsPerKeyword)
	}
	if strings.TrimSpace(r.Description) == "" {
		return eris.New("request: description is required")
	}
	return nil
}
