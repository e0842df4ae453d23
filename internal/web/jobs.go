package web

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/signalnine/qrscale/internal/result"
	"github.com/signalnine/qrscale/internal/runner"
)

type JobStatus string

const (
	JobQueued  JobStatus = "queued"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// Job is a background pipeline run started from the UI.
type Job struct {
	ID         string                 `json:"id"`
	Dataset    string                 `json:"dataset"`
	Decoder    string                 `json:"decoder"`
	Scales     []float64              `json:"scales"`
	Iterations int                    `json:"iterations"`
	Status     JobStatus              `json:"status"`
	Progress   runner.Progress        `json:"progress"`
	Error      string                 `json:"error,omitempty"`
	RunDir     string                 `json:"run_dir,omitempty"`
	Created    time.Time              `json:"created"`
	Finished   *time.Time             `json:"finished,omitempty"`
	Stats      []result.AggregateStat `json:"-"`
}

// jobStore is owned by a Server; handlers only see copies of jobs.
type jobStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func newJobStore() *jobStore {
	return &jobStore{jobs: make(map[string]*Job)}
}

func (s *jobStore) create(j Job) Job {
	j.ID = uuid.NewString()
	j.Status = JobQueued
	j.Created = time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[j.ID] = &j
	return j
}

func (s *jobStore) get(id string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *j, true
}

func (s *jobStore) update(id string, fn func(*Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		fn(j)
	}
}

// list returns jobs newest first.
func (s *jobStore) list() []Job {
	s.mu.RLock()
	out := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, *j)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, k int) bool {
		return out[i].Created.After(out[k].Created)
	})
	return out
}
