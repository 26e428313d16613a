package model

// EventKind tags the variant carried by an Event.
type EventKind string

const (
	EventKeyword  EventKind = "keyword"
	EventProgress EventKind = "progress"
	EventResult   EventKind = "result"
	EventError    EventKind = "error"
	EventFinished EventKind = "finished"
)

// Event is one message from a running job to its consumer. Only the fields
// belonging to Kind are set.
type Event struct {
	Kind     EventKind   `json:"kind"`
	JobID    string      `json:"job_id"`
	Keyword  string      `json:"keyword,omitempty"`
	Progress Progress    `json:"progress,omitzero"`
	Rows     []ResultRow `json:"rows,omitempty"`
	Message  string      `json:"message,omitempty"`
	State    JobState    `json:"state,omitempty"`
}

// Terminal returns true for the last event a job emits.
func (e Event) Terminal() bool {
	return e.Kind == EventFinished
}

// KeywordEvent reports the query generated for the current round.
func KeywordEvent(jobID, keyword string) Event {
	return Event{Kind: EventKeyword, JobID: jobID, Keyword: keyword}
}

// ProgressEvent reports a finished round.
func ProgressEvent(jobID string, p Progress) Event {
	return Event{Kind: EventProgress, JobID: jobID, Progress: p}
}

// ResultEvent publishes the job's complete result list. Ownership of rows
// passes to the consumer.
func ResultEvent(jobID string, rows []ResultRow) Event {
	if rows == nil {
		rows = []ResultRow{}
	}
	return Event{Kind: EventResult, JobID: jobID, Rows: rows}
}

// ErrorEvent carries a user-facing failure message.
func ErrorEvent(jobID, message string) Event {
	return Event{Kind: EventError, JobID: jobID, Message: message}
}

// FinishedEvent closes the stream with the job's terminal state.
func FinishedEvent(jobID string, state JobState) Event {
	return Event{Kind: EventFinished, JobID: jobID, State: state}
}
