// Package job runs scrape jobs: rounds of query generation, search and
// per-page metadata extraction, reported to a consumer as events.
package job

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/serp-scraper/internal/model"
	"github.com/sells-group/serp-scraper/internal/pageinfo"
)

// MsgNoKeyword is the error message for a round whose query came back empty.
const MsgNoKeyword = "No keyword generated."

// DefaultPace is the delay between page fetches.
const DefaultPace = 100 * time.Millisecond

// QueryGenerator produces one search query from a topic description.
type QueryGenerator interface {
	Generate(ctx context.Context, description string) (string, error)
}

// Searcher resolves a query to ordered result URLs.
type Searcher interface {
	Search(ctx context.Context, query string, count int) ([]string, error)
}

// PageFetcher reads a page's title and meta description. It never fails.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) pageinfo.Info
}

// Deps are the collaborators a job calls.
type Deps struct {
	Generator QueryGenerator
	Searcher  Searcher
	Fetcher   PageFetcher
}

// Emit receives job events in order. It is called from the job's goroutine.
type Emit func(model.Event)

// Job is one scrape run over a fixed request. A Job runs at most once.
type Job struct {
	ID   string
	req  model.ScrapeRequest
	deps Deps
	pace time.Duration

	cancelled atomic.Bool
	stop      chan struct{}
	stopOnce  sync.Once

	mu    sync.Mutex
	state model.JobState
}

// New creates an idle job. A non-positive pace disables the fetch delay.
func New(req model.ScrapeRequest, deps Deps, pace time.Duration) *Job {
	return &Job{
		ID:    uuid.NewString(),
		req:   req,
		deps:  deps,
		pace:  pace,
		stop:  make(chan struct{}),
		state: model.JobStateIdle,
	}
}

// Request returns the job's request.
func (j *Job) Request() model.ScrapeRequest {
	return j.req
}

// State returns the job's current lifecycle state.
func (j *Job) State() model.JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

func (j *Job) setState(s model.JobState) {
	j.mu.Lock()
	j.state = s
	j.mu.Unlock()
}

// Cancel asks the job to stop at its next checkpoint. It does not interrupt
// a network call already in flight. Cancelling a finished job is a no-op.
func (j *Job) Cancel() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.IsTerminal() {
		return
	}
	j.cancelled.Store(true)
	j.stopOnce.Do(func() { close(j.stop) })
	if j.state == model.JobStateRunning {
		j.state = model.JobStateCancelling
	}
}

// Cancelled reports whether cancellation has been requested.
func (j *Job) Cancelled() bool {
	return j.cancelled.Load()
}

// Run executes the job synchronously, emitting events to emit, and returns
// the terminal state. Exactly one Result event precedes the single terminal
// Finished event on every path.
func (j *Job) Run(ctx context.Context, emit Emit) model.JobState {
	j.mu.Lock()
	if j.state == model.JobStateIdle {
		j.state = model.JobStateRunning
	}
	if j.cancelled.Load() {
		j.state = model.JobStateCancelling
	}
	j.mu.Unlock()

	log := zap.L().With(zap.String("job_id", j.ID))
	log.Info("job: started",
		zap.Int("keywords", j.req.KeywordCount),
		zap.Int("results_per_keyword", j.req.ResultsPerKeyword),
	)

	var (
		rows    []model.ResultRow
		stopped bool
	)

	for i := 0; i < j.req.KeywordCount && !stopped; i++ {
		if j.Cancelled() {
			stopped = true
			break
		}
		roundStart := time.Now()

		keyword, err := j.deps.Generator.Generate(ctx, j.req.Description)
		if err != nil {
			log.Warn("job: query generation failed", zap.Int("round", i), zap.Error(err))
		}
		if err != nil || keyword == "" {
			return j.fail(emit, MsgNoKeyword)
		}
		emit(model.KeywordEvent(j.ID, keyword))

		urls, err := j.deps.Searcher.Search(ctx, keyword, j.req.ResultsPerKeyword)
		if err != nil {
			log.Error("job: search failed",
				zap.Int("round", i),
				zap.String("keyword", keyword),
				zap.Error(err),
			)
			// Rows from earlier rounds are dropped along with this one.
			return j.fail(emit, "Error occurred: "+err.Error())
		}

		for _, u := range urls {
			if j.Cancelled() {
				stopped = true
				break
			}
			info := j.deps.Fetcher.Fetch(ctx, u)
			rows = append(rows, model.NewResultRow(u, info.Title, info.Description, keyword))
			if j.Cancelled() {
				stopped = true
				break
			}
			j.pause(ctx)
		}

		emit(model.ProgressEvent(j.ID, model.Progress{Completed: i + 1, Total: j.req.KeywordCount}))
		log.Info("job: round finished",
			zap.Int("round", i),
			zap.String("keyword", keyword),
			zap.Int("urls", len(urls)),
			zap.Duration("elapsed", time.Since(roundStart)),
		)
	}

	// A cancel that lands after the last round finished leaves nothing undone.
	final := model.JobStateCompleted
	if stopped {
		final = model.JobStateCancelled
	}
	return j.finish(emit, rows, final)
}

func (j *Job) fail(emit Emit, msg string) model.JobState {
	emit(model.ErrorEvent(j.ID, msg))
	return j.finish(emit, nil, model.JobStateFailed)
}

func (j *Job) finish(emit Emit, rows []model.ResultRow, state model.JobState) model.JobState {
	j.setState(state)
	emit(model.ResultEvent(j.ID, rows))
	zap.L().Info("job: finished",
		zap.String("job_id", j.ID),
		zap.String("state", string(state)),
		zap.Int("rows", len(rows)),
	)
	emit(model.FinishedEvent(j.ID, state))
	return state
}

// pause waits for the pacing delay, returning early on cancellation.
func (j *Job) pause(ctx context.Context) {
	if j.pace <= 0 {
		return
	}
	t := time.NewTimer(j.pace)
	defer t.Stop()
	select {
	case <-t.C:
	case <-j.stop:
	case <-ctx.Done():
	}
}
