package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/docmap/internal/parser"
)

// JobStatus represents the state of a map job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusExtracting JobStatus = "extracting"
	StatusGenerating JobStatus = "generating"
	StatusPublishing JobStatus = "publishing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Job tracks one queued document-to-map request.
type Job struct {
	mu sync.Mutex

	ID     string
	UserID string

	Filename string
	Kind     parser.Kind
	Options  Options

	Status JobStatus
	Phase  string

	ContentHash string
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Set on completion.
	mapID    uuid.UUID
	url      string
	title    string
	fallback bool
	errMsg   string

	// Internal: not serialized.
	fileData []byte
}

// NewJob creates a queued job for data.
func NewJob(userID string, in parser.Input, opts Options) *Job {
	now := time.Now()
	return &Job{
		ID:          uuid.NewString(),
		UserID:      userID,
		Filename:    in.Filename,
		Kind:        in.Kind,
		Options:     opts,
		Status:      StatusQueued,
		Phase:       "queued",
		ContentHash: ContentHashHex(in.Data),
		CreatedAt:   now,
		UpdatedAt:   now,
		fileData:    in.Data,
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

// Len reports the number of tracked jobs.
func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// Fail marks the job failed with a user-safe message.
func (j *Job) Fail(phase, msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = StatusFailed
	j.Phase = phase
	j.errMsg = msg
	j.UpdatedAt = time.Now()
}

// Complete records the published map.
func (j *Job) Complete(mapID uuid.UUID, url, title string, fallback bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = StatusCompleted
	j.Phase = "done"
	j.mapID = mapID
	j.url = url
	j.title = title
	j.fallback = fallback
	j.fileData = nil
	j.UpdatedAt = time.Now()
}

// Input rebuilds the payload the job was created from.
func (j *Job) Input() parser.Input {
	j.mu.Lock()
	defer j.mu.Unlock()
	return parser.Input{Data: j.fileData, Filename: j.Filename, Kind: j.Kind}
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string    `json:"job_id"`
	UserID      string    `json:"user_id"`
	Status      JobStatus `json:"status"`
	Phase       string    `json:"phase"`
	Filename    string    `json:"filename"`
	Kind        string    `json:"kind"`
	Depth       string    `json:"depth"`
	Model       string    `json:"model"`
	ContentHash string    `json:"content_hash"`
	MapID       string    `json:"map_id,omitempty"`
	URL         string    `json:"url,omitempty"`
	Title       string    `json:"title,omitempty"`
	Fallback    bool      `json:"fallback,omitempty"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	snap := JobSnapshot{
		ID:          j.ID,
		UserID:      j.UserID,
		Status:      j.Status,
		Phase:       j.Phase,
		Filename:    j.Filename,
		Kind:        j.Kind.String(),
		Depth:       string(j.Options.Depth),
		Model:       j.Options.Model,
		ContentHash: j.ContentHash,
		URL:         j.url,
		Title:       j.title,
		Fallback:    j.fallback,
		Error:       j.errMsg,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
	if j.mapID != uuid.Nil {
		snap.MapID = j.mapID.String()
	}
	return snap
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
