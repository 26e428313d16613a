package job

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/serp-scraper/internal/pageinfo"
)

// --- QueryGenerator Mock ---

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Generate(ctx context.Context, description string) (string, error) {
	args := m.Called(ctx, description)
	return args.String(0), args.Error(1)
}

// --- Searcher Mock ---

type mockSearcher struct {
	mock.Mock
}

func (m *mockSearcher) Search(ctx context.Context, query string, count int) ([]string, error) {
	args := m.Called(ctx, query, count)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// --- PageFetcher Mock ---

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) Fetch(ctx context.Context, url string) pageinfo.Info {
	args := m.Called(ctx, url)
	return args.Get(0).(pageinfo.Info)
}
