package model

// JobState represents the lifecycle state of a scrape job.
type JobState string

const (
	JobStateIdle       JobState = "idle"
	JobStateRunning    JobState = "running"
	JobStateCancelling JobState = "cancelling"
	JobStateCompleted  JobState = "completed"
	JobStateFailed     JobState = "failed"
	JobStateCancelled  JobState = "cancelled"
)

// IsTerminal returns true once the job will do no further work.
func (s JobState) IsTerminal() bool {
	switch s {
	case JobStateCompleted, JobStateFailed, JobStateCancelled:
		return true
	}
	return false
}

// IsActive returns true while the job occupies its host's slot.
func (s JobState) IsActive() bool {
	return s == JobStateRunning || s == JobStateCancelling
}

// Progress counts finished rounds out of the requested keyword count.
type Progress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// Percent returns Completed/Total as an integer-truncated percentage.
func (p Progress) Percent() int {
	if p.Total <= 0 {
		return 0
	}
	return p.Completed * 100 / p.Total
}
