package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the state of a formatting job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusReading    JobStatus = "reading"
	StatusFormatting JobStatus = "formatting"
	StatusWriting    JobStatus = "writing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusSkipped    JobStatus = "skipped"
)

// Job tracks the state of a single document.
type Job struct {
	mu sync.Mutex

	ID     string `json:"job_id"`
	Source string `json:"source"`
	Dest   string `json:"dest,omitempty"` // Empty means standard output.

	Status JobStatus `json:"status"`
	Phase  string    `json:"phase"`
	Title  string    `json:"title"`

	Progress Progress `json:"progress"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Internal: not serialized.
	result string
	errors []string
}

// Progress counts what the formatter did with the document.
type Progress struct {
	Lines        int      `json:"lines"`
	CommentLines int      `json:"comment_lines"`
	Errors       []string `json:"errors"`
}

// NewJob creates a queued job with a fresh ID.
func NewJob(source, dest string) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.NewString(),
		Source:    source,
		Dest:      dest,
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ResultStore is a thread-safe in-memory result registry with TTL eviction.
type ResultStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewResultStore(ttl time.Duration) *ResultStore {
	return &ResultStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *ResultStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *ResultStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Len returns the number of stored jobs.
func (s *ResultStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Cleanup removes expired jobs.
func (s *ResultStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		if now.Sub(job.updatedAt()) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// Fail records err and marks the job failed in phase.
func (j *Job) Fail(phase string, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err.Error())
	j.Progress.Errors = j.errors
	j.Status = StatusFailed
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// SetCounts records the formatted line count and dropped comment lines.
func (j *Job) SetCounts(lines, comments int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Lines = lines
	j.Progress.CommentLines = comments
	j.UpdatedAt = time.Now()
}

// SetTitle records the manuscript title.
func (j *Job) SetTitle(title string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Title = title
}

// SetResult keeps the formatted text for later retrieval.
func (j *Job) SetResult(text string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.result = text
	j.UpdatedAt = time.Now()
}

// Result returns the formatted text kept by SetResult.
func (j *Job) Result() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

func (j *Job) updatedAt() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.UpdatedAt
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID       string    `json:"job_id"`
	Source   string    `json:"source"`
	Dest     string    `json:"dest,omitempty"`
	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`
	Title    string    `json:"title"`
	Progress Progress  `json:"progress"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := make([]string, len(j.Progress.Errors))
	copy(errs, j.Progress.Errors)
	return JobSnapshot{
		ID:     j.ID,
		Source: j.Source,
		Dest:   j.Dest,
		Status: j.Status,
		Phase:  j.Phase,
		Title:  j.Title,
		Progress: Progress{
			Lines:        j.Progress.Lines,
			CommentLines: j.Progress.CommentLines,
			Errors:       errs,
		},
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
