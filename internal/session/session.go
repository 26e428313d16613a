// Package session keeps the consumer-side view of scrape jobs: the latest
// result list, progress, keyword and error, updated from a job's events.
package session

import (
	"context"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/sells-group/serp-scraper/internal/job"
	"github.com/sells-group/serp-scraper/internal/model"
)

// Snapshot is a point-in-time copy of the session.
type Snapshot struct {
	JobID    string               `json:"job_id,omitempty"`
	State    model.JobState       `json:"state"`
	Request  *model.ScrapeRequest `json:"request,omitempty"`
	Progress int                  `json:"progress"`
	Keyword  string               `json:"keyword,omitempty"`
	Error    string               `json:"error,omitempty"`
	RowCount int                  `json:"row_count"`
	Rows     []model.ResultRow    `json:"-"`
}

// Session drives jobs on a Host and folds their events into its state.
type Session struct {
	host *job.Host

	mu       sync.RWMutex
	jobID    string
	state    model.JobState
	req      *model.ScrapeRequest
	progress int
	keyword  string
	errMsg   string
	rows     []model.ResultRow
	done     chan struct{}
	observer func(model.Event)
}

// Option configures a Session.
type Option func(*Session)

// WithObserver registers fn to see every event after it is applied.
func WithObserver(fn func(model.Event)) Option {
	return func(s *Session) {
		s.observer = fn
	}
}

// New creates an idle session over host.
func New(host *job.Host, opts ...Option) *Session {
	s := &Session{host: host, state: model.JobStateIdle}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start submits req and returns the new job's ID. The previous error and
// result list are cleared once the job is accepted.
func (s *Session) Start(ctx context.Context, req model.ScrapeRequest) (string, error) {
	h, err := s.host.Submit(ctx, req)
	if err != nil {
		return "", err
	}

	done := make(chan struct{})
	s.mu.Lock()
	s.jobID = h.ID()
	s.state = model.JobStateRunning
	s.req = &req
	s.progress = 0
	s.keyword = ""
	s.errMsg = ""
	s.rows = nil
	s.done = done
	s.mu.Unlock()

	go s.consume(h, done)
	return h.ID(), nil
}

func (s *Session) consume(h *job.Handle, done chan struct{}) {
	defer close(done)
	for ev := range h.Events() {
		s.apply(ev)
		if s.observer != nil {
			s.observer(ev)
		}
	}
}

func (s *Session) apply(ev model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// A newer job may already own the session once the slot is released.
	if ev.JobID != s.jobID {
		return
	}

	switch ev.Kind {
	case model.EventKeyword:
		s.keyword = ev.Keyword
	case model.EventProgress:
		s.progress = ev.Progress.Percent()
	case model.EventError:
		s.errMsg = ev.Message
	case model.EventResult:
		s.rows = ev.Rows
	case model.EventFinished:
		s.state = ev.State
		s.progress = 100
		zap.L().Info("session: job finished",
			zap.String("job_id", ev.JobID),
			zap.String("state", string(ev.State)),
			zap.Int("rows", len(s.rows)),
		)
	}
}

// Stop cancels the running job, if any.
func (s *Session) Stop() {
	s.host.Cancel()
	s.mu.Lock()
	if s.state == model.JobStateRunning {
		s.state = model.JobStateCancelling
	}
	s.mu.Unlock()
}

// Wait blocks until the current job's events are fully applied or ctx ends.
func (s *Session) Wait(ctx context.Context) error {
	s.mu.RLock()
	done := s.done
	s.mu.RUnlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns a copy of the session state, rows included.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		JobID:    s.jobID,
		State:    s.state,
		Request:  s.req,
		Progress: s.progress,
		Keyword:  s.keyword,
		Error:    s.errMsg,
		RowCount: len(s.rows),
		Rows:     slices.Clone(s.rows),
	}
}

// Rows returns a copy of the latest published result list.
func (s *Session) Rows() []model.ResultRow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.rows)
}
