package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/dgallion1/docrank/internal/config"
	"github.com/dgallion1/docrank/internal/document"
	"github.com/dgallion1/docrank/internal/report"
)

// JobStatus represents the state of an analysis run.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusExtracting JobStatus = "extracting"
	StatusEmbedding  JobStatus = "embedding"
	StatusRanking    JobStatus = "ranking"
	StatusRefining   JobStatus = "refining"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusPartial    JobStatus = "partial"
)

// Job tracks the state of a single asynchronous analysis run.
type Job struct {
	mu sync.Mutex

	ID     string    `json:"run_id"`
	Status JobStatus `json:"status"`
	Phase  string    `json:"phase"`

	Progress Progress `json:"progress"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Internal: not serialized.
	config   config.RunConfig
	inputs   []Input
	report   *report.Report
	errors   []string
	warnings []string
}

// Progress tracks processing progress.
type Progress struct {
	Documents int      `json:"documents"`
	Sections  int      `json:"sections"`
	Excluded  int      `json:"excluded"`
	Errors    []string `json:"errors"`
}

// NewJob creates a queued job for rc over inputs.
func NewJob(id string, rc config.RunConfig, inputs []Input) *Job {
	now := time.Now()
	return &Job{
		ID:        id,
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: now,
		UpdatedAt: now,
		config:    rc,
		inputs:    inputs,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Len returns the number of tracked jobs.
func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		updated := job.UpdatedAt
		job.mu.Unlock()
		if now.Sub(updated) > s.ttl {
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

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// AddWarning records a non-fatal note about the submission.
func (j *Job) AddWarning(w string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.warnings = append(j.warnings, w)
	j.UpdatedAt = time.Now()
}

// AddExclusion counts an excluded document or section.
func (j *Job) AddExclusion(ex document.Exclusion) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Excluded++
	j.UpdatedAt = time.Now()
}

// SetCounts records how many documents and sections the run covers.
func (j *Job) SetCounts(documents, sections int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Documents = documents
	j.Progress.Sections = sections
	j.UpdatedAt = time.Now()
}

// Inputs returns the run's documents.
func (j *Job) Inputs() []Input {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.inputs
}

// Config returns the run's request.
func (j *Job) Config() config.RunConfig {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.config
}

// Finish stores the report and releases the inputs. Submission warnings
// are prepended to the report's warnings.
func (j *Job) Finish(rep *report.Report) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.warnings) > 0 {
		rep.Warnings = append(append([]string{}, j.warnings...), rep.Warnings...)
	}
	j.report = rep
	j.inputs = nil
	j.Status = StatusCompleted
	if len(rep.Excluded) > 0 {
		j.Status = StatusPartial
	}
	j.Phase = "done"
	j.UpdatedAt = time.Now()
}

// Fail marks the job failed in phase and releases the inputs.
func (j *Job) Fail(phase string, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err.Error())
	j.Progress.Errors = j.errors
	j.inputs = nil
	j.Status = StatusFailed
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID       string         `json:"run_id"`
	Status   JobStatus      `json:"status"`
	Phase    string         `json:"phase"`
	Progress Progress       `json:"progress"`
	Warnings []string       `json:"warnings"`
	Report   *report.Report `json:"report,omitempty"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := append([]string{}, j.Progress.Errors...)
	return JobSnapshot{
		ID:     j.ID,
		Status: j.Status,
		Phase:  j.Phase,
		Progress: Progress{
			Documents: j.Progress.Documents,
			Sections:  j.Progress.Sections,
			Excluded:  j.Progress.Excluded,
			Errors:    errs,
		},
		Warnings: append([]string{}, j.warnings...),
		Report:   j.report,
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
