package worker

import (
	"sync"
	"time"
)

const recentErrorLimit = 10

// JobError is one entry in the recent-errors ring exposed by Status
type JobError struct {
	MsgID      int64     `json:"msg_id"`
	DocumentID string    `json:"document_id,omitempty"`
	Stage      string    `json:"stage,omitempty"`
	Error      string    `json:"error"`
	At         time.Time `json:"at"`
}

// Stats are cumulative counters since the worker started
type Stats struct {
	JobsProcessed uint64     `json:"jobs_processed"`
	JobsFailed    uint64     `json:"jobs_failed"`
	JobsRetried   uint64     `json:"jobs_retried"`
	JobsSkipped   uint64     `json:"jobs_skipped"`
	LastJobAt     *time.Time `json:"last_job_at,omitempty"`
	RecentErrors  []JobError `json:"recent_errors,omitempty"`
}

// Snapshot is a point-in-time view of the worker for the ops endpoint
type Snapshot struct {
	Running                    bool       `json:"running"`
	WorkerID                   string     `json:"worker_id"`
	QueueName                  string     `json:"queue_name"`
	ActiveJobs                 int        `json:"active_jobs"`
	MaxConcurrentJobs          int        `json:"max_concurrent_jobs"`
	CurrentPollIntervalSeconds float64    `json:"current_poll_interval_seconds"`
	LastPollAt                 *time.Time `json:"last_poll_at,omitempty"`
	Stats                      Stats      `json:"stats"`
}

// state holds the worker's mutable counters behind a mutex. Pipelines and
// the dispatcher write it; Status reads it.
type state struct {
	mu         sync.Mutex
	lastPollAt time.Time
	lastJobAt  time.Time
	processed  uint64
	failed     uint64
	retried    uint64
	skipped    uint64
	recent     []JobError
}

func (s *state) recordPoll(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastPollAt = t
}

func (s *state) recordOutcome(o Outcome, t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastJobAt = t
	switch o {
	case OutcomeCompleted:
		s.processed++
	case OutcomeSkipped:
		s.skipped++
	case OutcomeRetrying:
		s.retried++
	case OutcomeArchived:
		s.failed++
	}
}

func (s *state) recordError(e JobError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recent = append(s.recent, e)
	if len(s.recent) > recentErrorLimit {
		s.recent = s.recent[len(s.recent)-recentErrorLimit:]
	}
}

func (s *state) stats() (Stats, *time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		JobsProcessed: s.processed,
		JobsFailed:    s.failed,
		JobsRetried:   s.retried,
		JobsSkipped:   s.skipped,
	}
	if !s.lastJobAt.IsZero() {
		t := s.lastJobAt
		st.LastJobAt = &t
	}
	if len(s.recent) > 0 {
		st.RecentErrors = append([]JobError(nil), s.recent...)
	}

	var lastPoll *time.Time
	if !s.lastPollAt.IsZero() {
		t := s.lastPollAt
		lastPoll = &t
	}
	return st, lastPoll
}
