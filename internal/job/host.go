package job

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/serp-scraper/internal/model"
)

// ErrAlreadyRunning is returned by Submit while another job holds the slot.
var ErrAlreadyRunning = eris.New("job: already running")

// DefaultEventBuffer is the capacity of a Handle's event channel.
const DefaultEventBuffer = 64

// HostOption configures a Host.
type HostOption func(*Host)

// WithPace sets the delay between page fetches.
func WithPace(d time.Duration) HostOption {
	return func(h *Host) {
		h.pace = d
	}
}

// WithEventBuffer sets the event channel capacity.
func WithEventBuffer(n int) HostOption {
	return func(h *Host) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// Host runs at most one job at a time.
type Host struct {
	deps   Deps
	pace   time.Duration
	buffer int

	mu     sync.Mutex
	active *Job
}

// NewHost creates a Host whose jobs use deps.
func NewHost(deps Deps, opts ...HostOption) *Host {
	h := &Host{
		deps:   deps,
		pace:   DefaultPace,
		buffer: DefaultEventBuffer,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Handle is the consumer's view of a submitted job.
type Handle struct {
	job    *Job
	events chan model.Event
}

// ID returns the job ID.
func (h *Handle) ID() string { return h.job.ID }

// Request returns the submitted request.
func (h *Handle) Request() model.ScrapeRequest { return h.job.Request() }

// State returns the job's current state.
func (h *Handle) State() model.JobState { return h.job.State() }

// Events streams the job's events. The channel is closed after the terminal
// event. Consumers must drain it.
func (h *Handle) Events() <-chan model.Event { return h.events }

// Cancel requests cooperative cancellation of this job.
func (h *Handle) Cancel() { h.job.Cancel() }

// Submit validates req and starts a job for it in a new goroutine. It fails
// with ErrAlreadyRunning while another job is active.
func (h *Host) Submit(ctx context.Context, req model.ScrapeRequest) (*Handle, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	h.mu.Lock()
	if h.active != nil {
		h.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	j := New(req, h.deps, h.pace)
	j.setState(model.JobStateRunning)
	h.active = j
	h.mu.Unlock()

	handle := &Handle{job: j, events: make(chan model.Event, h.buffer)}

	go func() {
		defer close(handle.events)
		j.Run(ctx, func(ev model.Event) {
			if ev.Terminal() {
				h.release(j)
			}
			handle.events <- ev
		})
	}()

	zap.L().Debug("job: submitted", zap.String("job_id", j.ID))
	return handle, nil
}

// Cancel cancels the active job, if any.
func (h *Host) Cancel() {
	h.mu.Lock()
	j := h.active
	h.mu.Unlock()
	if j != nil {
		j.Cancel()
	}
}

// ActiveID returns the running job's ID, or "" when idle.
func (h *Host) ActiveID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.active == nil {
		return ""
	}
	return h.active.ID
}

// Busy reports whether a job holds the slot.
func (h *Host) Busy() bool {
	return h.ActiveID() != ""
}

func (h *Host) release(j *Job) {
	h.mu.Lock()
	if h.active == j {
		h.active = nil
	}
	h.mu.Unlock()
}
