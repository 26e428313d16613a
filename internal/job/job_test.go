package job

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/serp-scraper/internal/model"
	"github.com/sells-group/serp-scraper/internal/pageinfo"
)

type recorder struct {
	events []model.Event
}

func (r *recorder) emit(ev model.Event) {
	r.events = append(r.events, ev)
}

func (r *recorder) kinds() []model.EventKind {
	out := make([]model.EventKind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

func (r *recorder) ofKind(k model.EventKind) []model.Event {
	var out []model.Event
	for _, ev := range r.events {
		if ev.Kind == k {
			out = append(out, ev)
		}
	}
	return out
}

func (r *recorder) result(t *testing.T) []model.ResultRow {
	t.Helper()
	res := r.ofKind(model.EventResult)
	require.Len(t, res, 1, "exactly one result event")
	return res[0].Rows
}

// assertClosed checks the stream ends with Result then one Finished event.
func (r *recorder) assertClosed(t *testing.T, want model.JobState) {
	t.Helper()
	require.GreaterOrEqual(t, len(r.events), 2)
	last := r.events[len(r.events)-1]
	assert.Equal(t, model.EventFinished, last.Kind)
	assert.Equal(t, want, last.State)
	assert.Equal(t, model.EventResult, r.events[len(r.events)-2].Kind)
	assert.Len(t, r.ofKind(model.EventFinished), 1)
	assert.Len(t, r.ofKind(model.EventResult), 1)
}

func request(keywords, results int) model.ScrapeRequest {
	return model.ScrapeRequest{KeywordCount: keywords, ResultsPerKeyword: results, Description: "fantasy rpg mods"}
}

func TestRun_TwoRoundScenario(t *testing.T) {
	t.Parallel()

	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, "fantasy rpg mods").Return("kw1", nil).Once()
	gen.On("Generate", mock.Anything, "fantasy rpg mods").Return("kw2", nil).Once()

	srch := &mockSearcher{}
	srch.On("Search", mock.Anything, "kw1", 1).Return([]string{"http://a"}, nil).Once()
	srch.On("Search", mock.Anything, "kw2", 1).Return([]string{"http://b"}, nil).Once()

	fetch := &mockFetcher{}
	fetch.On("Fetch", mock.Anything, "http://a").Return(pageinfo.Info{Title: "TA", Description: "DA"}).Once()
	fetch.On("Fetch", mock.Anything, "http://b").Return(pageinfo.Info{Title: "TB", Description: "DB"}).Once()

	j := New(request(2, 1), Deps{Generator: gen, Searcher: srch, Fetcher: fetch}, 0)
	rec := &recorder{}
	state := j.Run(context.Background(), rec.emit)

	assert.Equal(t, model.JobStateCompleted, state)
	assert.Equal(t, model.JobStateCompleted, j.State())
	assert.Equal(t, []model.EventKind{
		model.EventKeyword, model.EventProgress,
		model.EventKeyword, model.EventProgress,
		model.EventResult, model.EventFinished,
	}, rec.kinds())

	assert.Equal(t, "kw1", rec.events[0].Keyword)
	assert.Equal(t, 50, rec.events[1].Progress.Percent())
	assert.Equal(t, "kw2", rec.events[2].Keyword)
	assert.Equal(t, 100, rec.events[3].Progress.Percent())

	assert.Equal(t, []model.ResultRow{
		{URL: "http://a", Title: "TA", Description: "DA", Keyword: "kw1"},
		{URL: "http://b", Title: "TB", Description: "DB", Keyword: "kw2"},
	}, rec.result(t))
	rec.assertClosed(t, model.JobStateCompleted)

	for _, ev := range rec.events {
		assert.Equal(t, j.ID, ev.JobID)
	}
	gen.AssertExpectations(t)
	srch.AssertExpectations(t)
	fetch.AssertExpectations(t)
}

func TestRun_RoundCountAndProgress(t *testing.T) {
	t.Parallel()

	for _, n := range []int{1, 3, 7, 100} {
		t.Run(fmt.Sprintf("keywords_%d", n), func(t *testing.T) {
			t.Parallel()

			gen := &mockGenerator{}
			gen.On("Generate", mock.Anything, mock.Anything).Return("kw", nil)
			srch := &mockSearcher{}
			srch.On("Search", mock.Anything, "kw", 2).Return([]string{"http://x", "http://y"}, nil)
			fetch := &mockFetcher{}
			fetch.On("Fetch", mock.Anything, mock.Anything).Return(pageinfo.Fallback())

			rec := &recorder{}
			state := New(request(n, 2), Deps{Generator: gen, Searcher: srch, Fetcher: fetch}, 0).
				Run(context.Background(), rec.emit)

			assert.Equal(t, model.JobStateCompleted, state)
			gen.AssertNumberOfCalls(t, "Generate", n)
			srch.AssertNumberOfCalls(t, "Search", n)
			fetch.AssertNumberOfCalls(t, "Fetch", 2*n)

			progress := rec.ofKind(model.EventProgress)
			require.Len(t, progress, n)
			prev := -1
			for i, ev := range progress {
				pct := ev.Progress.Percent()
				assert.Equal(t, (i+1)*100/n, pct)
				assert.GreaterOrEqual(t, pct, prev)
				prev = pct
			}
			assert.Equal(t, 100, prev)
			assert.Len(t, rec.result(t), 2*n)
			rec.assertClosed(t, model.JobStateCompleted)
		})
	}
}

func TestRun_FallbackRows(t *testing.T) {
	t.Parallel()

	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).Return("kw", nil)
	srch := &mockSearcher{}
	srch.On("Search", mock.Anything, "kw", 2).Return([]string{"not a url", "http://dead.invalid"}, nil)
	fetch := &mockFetcher{}
	fetch.On("Fetch", mock.Anything, mock.Anything).Return(pageinfo.Info{})

	rec := &recorder{}
	New(request(1, 2), Deps{Generator: gen, Searcher: srch, Fetcher: fetch}, 0).Run(context.Background(), rec.emit)

	rows := rec.result(t)
	require.Len(t, rows, 2)
	for _, r := range rows {
		assert.Equal(t, model.NoTitle, r.Title)
		assert.Equal(t, model.NoDescription, r.Description)
		assert.Equal(t, "kw", r.Keyword)
	}
	assert.Empty(t, rec.ofKind(model.EventError))
	rec.assertClosed(t, model.JobStateCompleted)
}

func TestRun_EmptySearchResults(t *testing.T) {
	t.Parallel()

	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).Return("kw", nil)
	srch := &mockSearcher{}
	srch.On("Search", mock.Anything, "kw", 5).Return([]string{}, nil)
	fetch := &mockFetcher{}

	rec := &recorder{}
	state := New(request(2, 5), Deps{Generator: gen, Searcher: srch, Fetcher: fetch}, 0).Run(context.Background(), rec.emit)

	assert.Equal(t, model.JobStateCompleted, state)
	assert.Empty(t, rec.result(t))
	assert.Len(t, rec.ofKind(model.EventProgress), 2)
	fetch.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
}

func TestRun_GenerationFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		failAt  int
		keyword string
		err     error
	}{
		{"empty_first_round", 0, "", nil},
		{"empty_third_round", 2, "", nil},
		{"provider_error", 1, "", errors.New("model unavailable")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			gen := &mockGenerator{}
			if tt.failAt > 0 {
				gen.On("Generate", mock.Anything, mock.Anything).Return("kw", nil).Times(tt.failAt)
			}
			gen.On("Generate", mock.Anything, mock.Anything).Return(tt.keyword, tt.err).Once()
			srch := &mockSearcher{}
			srch.On("Search", mock.Anything, "kw", 1).Return([]string{"http://a"}, nil)
			fetch := &mockFetcher{}
			fetch.On("Fetch", mock.Anything, "http://a").Return(pageinfo.Info{Title: "T", Description: "D"})

			rec := &recorder{}
			state := New(request(5, 1), Deps{Generator: gen, Searcher: srch, Fetcher: fetch}, 0).
				Run(context.Background(), rec.emit)

			assert.Equal(t, model.JobStateFailed, state)
			errs := rec.ofKind(model.EventError)
			require.Len(t, errs, 1)
			assert.Equal(t, MsgNoKeyword, errs[0].Message)
			assert.Empty(t, rec.result(t), "no rows regardless of round")
			rec.assertClosed(t, model.JobStateFailed)
			gen.AssertNumberOfCalls(t, "Generate", tt.failAt+1)
			srch.AssertNumberOfCalls(t, "Search", tt.failAt)
			assert.Len(t, rec.ofKind(model.EventKeyword), tt.failAt)
		})
	}
}

func TestRun_SearchFailureDiscardsEarlierRows(t *testing.T) {
	t.Parallel()

	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).Return("kw1", nil).Once()
	gen.On("Generate", mock.Anything, mock.Anything).Return("kw2", nil).Once()
	srch := &mockSearcher{}
	srch.On("Search", mock.Anything, "kw1", 2).Return([]string{"http://a", "http://b"}, nil).Once()
	srch.On("Search", mock.Anything, "kw2", 2).Return(nil, errors.New("quota exceeded")).Once()
	fetch := &mockFetcher{}
	fetch.On("Fetch", mock.Anything, mock.Anything).Return(pageinfo.Info{Title: "T", Description: "D"})

	rec := &recorder{}
	state := New(request(3, 2), Deps{Generator: gen, Searcher: srch, Fetcher: fetch}, 0).
		Run(context.Background(), rec.emit)

	assert.Equal(t, model.JobStateFailed, state)
	assert.Equal(t, []model.EventKind{
		model.EventKeyword, model.EventProgress,
		model.EventKeyword, model.EventError,
		model.EventResult, model.EventFinished,
	}, rec.kinds())
	assert.Equal(t, "Error occurred: quota exceeded", rec.ofKind(model.EventError)[0].Message)
	assert.Empty(t, rec.result(t))
	fetch.AssertNumberOfCalls(t, "Fetch", 2)
	gen.AssertNumberOfCalls(t, "Generate", 2)
}

func TestRun_CancelBetweenRounds(t *testing.T) {
	t.Parallel()

	var j *Job
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).Return("kw1", nil).Once()
	srch := &mockSearcher{}
	srch.On("Search", mock.Anything, "kw1", 1).Return([]string{"http://a"}, nil).Once()
	fetch := &mockFetcher{}
	fetch.On("Fetch", mock.Anything, "http://a").
		Run(func(mock.Arguments) { j.Cancel() }).
		Return(pageinfo.Info{Title: "TA", Description: "DA"}).Once()

	j = New(request(2, 1), Deps{Generator: gen, Searcher: srch, Fetcher: fetch}, DefaultPace)
	rec := &recorder{}
	state := j.Run(context.Background(), rec.emit)

	assert.Equal(t, model.JobStateCancelled, state)
	assert.Equal(t, []model.EventKind{
		model.EventKeyword, model.EventProgress,
		model.EventResult, model.EventFinished,
	}, rec.kinds())
	assert.Equal(t, 50, rec.events[1].Progress.Percent())
	// Rows accumulated before the cancellation point are published.
	assert.Equal(t, []model.ResultRow{{URL: "http://a", Title: "TA", Description: "DA", Keyword: "kw1"}}, rec.result(t))
	rec.assertClosed(t, model.JobStateCancelled)
	gen.AssertNumberOfCalls(t, "Generate", 1)
	srch.AssertExpectations(t)
}

func TestRun_CancelAfterLastRoundCompletes(t *testing.T) {
	t.Parallel()

	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).Return("kw1", nil).Once()
	srch := &mockSearcher{}
	srch.On("Search", mock.Anything, "kw1", 1).Return([]string{"http://a"}, nil).Once()
	fetch := &mockFetcher{}
	fetch.On("Fetch", mock.Anything, "http://a").Return(pageinfo.Info{Title: "TA", Description: "DA"}).Once()

	j := New(request(1, 1), Deps{Generator: gen, Searcher: srch, Fetcher: fetch}, 0)
	rec := &recorder{}
	state := j.Run(context.Background(), func(ev model.Event) {
		rec.emit(ev)
		if ev.Kind == model.EventProgress {
			j.Cancel()
		}
	})

	assert.True(t, j.Cancelled())
	assert.Equal(t, model.JobStateCompleted, state)
	assert.Equal(t, model.JobStateCompleted, j.State())
	assert.Equal(t, []model.ResultRow{{URL: "http://a", Title: "TA", Description: "DA", Keyword: "kw1"}}, rec.result(t))
	rec.assertClosed(t, model.JobStateCompleted)
}

func TestRun_CancelMidRoundStopsFetching(t *testing.T) {
	t.Parallel()

	var j *Job
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).Return("kw", nil).Once()
	srch := &mockSearcher{}
	srch.On("Search", mock.Anything, "kw", 4).Return([]string{"http://1", "http://2", "http://3", "http://4"}, nil)
	fetch := &mockFetcher{}
	fetch.On("Fetch", mock.Anything, "http://1").Return(pageinfo.Fallback()).Once()
	fetch.On("Fetch", mock.Anything, "http://2").
		Run(func(mock.Arguments) { j.Cancel() }).
		Return(pageinfo.Fallback()).Once()

	j = New(request(3, 4), Deps{Generator: gen, Searcher: srch, Fetcher: fetch}, 0)
	rec := &recorder{}
	state := j.Run(context.Background(), rec.emit)

	assert.Equal(t, model.JobStateCancelled, state)
	rows := rec.result(t)
	require.Len(t, rows, 2)
	assert.Equal(t, "http://1", rows[0].URL)
	assert.Equal(t, "http://2", rows[1].URL)
	fetch.AssertExpectations(t)
	gen.AssertNumberOfCalls(t, "Generate", 1)
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	t.Parallel()

	gen := &mockGenerator{}
	j := New(request(3, 3), Deps{Generator: gen, Searcher: &mockSearcher{}, Fetcher: &mockFetcher{}}, 0)
	j.Cancel()
	assert.True(t, j.Cancelled())

	rec := &recorder{}
	state := j.Run(context.Background(), rec.emit)

	assert.Equal(t, model.JobStateCancelled, state)
	assert.Equal(t, []model.EventKind{model.EventResult, model.EventFinished}, rec.kinds())
	assert.Empty(t, rec.result(t))
	gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestRun_CancelInterruptsPacing(t *testing.T) {
	t.Parallel()

	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).Return("kw", nil)
	srch := &mockSearcher{}
	srch.On("Search", mock.Anything, "kw", 2).Return([]string{"http://1", "http://2"}, nil)
	fetched := make(chan struct{})
	fetch := &mockFetcher{}
	fetch.On("Fetch", mock.Anything, "http://1").
		Run(func(mock.Arguments) { close(fetched) }).
		Return(pageinfo.Fallback()).Once()

	j := New(request(1, 2), Deps{Generator: gen, Searcher: srch, Fetcher: fetch}, time.Hour)

	done := make(chan model.JobState, 1)
	go func() {
		done <- j.Run(context.Background(), func(model.Event) {})
	}()

	<-fetched
	time.Sleep(20 * time.Millisecond)
	j.Cancel()

	select {
	case state := <-done:
		assert.Equal(t, model.JobStateCancelled, state)
	case <-time.After(2 * time.Second):
		t.Fatal("pacing delay was not interrupted")
	}
	fetch.AssertNumberOfCalls(t, "Fetch", 1)
}

func TestRun_ContextCancelEndsPacing(t *testing.T) {
	t.Parallel()

	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).Return("kw", nil)
	srch := &mockSearcher{}
	srch.On("Search", mock.Anything, "kw", 1).Return([]string{"http://1"}, nil)
	fetch := &mockFetcher{}
	fetch.On("Fetch", mock.Anything, "http://1").Return(pageinfo.Fallback())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	state := New(request(1, 1), Deps{Generator: gen, Searcher: srch, Fetcher: fetch}, time.Hour).Run(ctx, func(model.Event) {})
	assert.Equal(t, model.JobStateCompleted, state)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestCancel_AfterFinishIsIgnored(t *testing.T) {
	t.Parallel()

	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).Return("kw", nil)
	srch := &mockSearcher{}
	srch.On("Search", mock.Anything, "kw", 1).Return([]string{}, nil)

	j := New(request(1, 1), Deps{Generator: gen, Searcher: srch, Fetcher: &mockFetcher{}}, 0)
	assert.Equal(t, model.JobStateIdle, j.State())
	j.Run(context.Background(), func(model.Event) {})

	j.Cancel()
	assert.Equal(t, model.JobStateCompleted, j.State())
	assert.False(t, j.Cancelled())
}

func TestNew_AssignsUniqueIDs(t *testing.T) {
	t.Parallel()

	a := New(request(1, 1), Deps{}, 0)
	b := New(request(1, 1), Deps{}, 0)
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, request(1, 1), a.Request())
}
