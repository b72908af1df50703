package queue

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryTaskQueue is an in-memory TaskQueue used by tests and single-process
// development runs. It records every ScheduleSingle call so tests can assert
// on fan-out behavior.
type MemoryTaskQueue struct {
	mu     sync.Mutex
	jobs   map[uuid.UUID]*Job
	config GormQueueConfig

	// ScheduleCalls grows by one entry per ScheduleSingle invocation, in
	// call order, including jobs later cancelled or completed.
	ScheduleCalls []Job
}

// NewMemoryTaskQueue creates an empty in-memory queue
func NewMemoryTaskQueue() *MemoryTaskQueue {
	return &MemoryTaskQueue{
		jobs:   make(map[uuid.UUID]*Job),
		config: DefaultGormQueueConfig(),
	}
}

// ScheduleSingle enqueues one pending job
func (q *MemoryTaskQueue) ScheduleSingle(_ context.Context, runAt time.Time, hook string, args []string, group string) (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job := &Job{
		ID:     uuid.New(),
		Hook:   hook,
		Args:   append([]string(nil), args...),
		Group:  group,
		Status: JobStatusPending,
		RunAt:  runAt,
	}
	q.jobs[job.ID] = job
	q.ScheduleCalls = append(q.ScheduleCalls, *job)
	return cloneJob(job), nil
}

// Search returns jobs matching the filter
func (q *MemoryTaskQueue) Search(_ context.Context, filter SearchFilter) ([]*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var matched []*Job
	for _, job := range q.jobs {
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		if filter.Hook != "" && job.Hook != filter.Hook {
			continue
		}
		if filter.Group != "" && job.Group != filter.Group {
			continue
		}
		if filter.ExcludeClaimed && job.Status == JobStatusClaimed {
			continue
		}
		if filter.Search != "" && !jobMatchesSearch(job, filter.Search) {
			continue
		}
		matched = append(matched, cloneJob(job))
	}

	sort.Slice(matched, func(i, j int) bool {
		if filter.Order == "desc" {
			return matched[i].RunAt.After(matched[j].RunAt)
		}
		return matched[i].RunAt.Before(matched[j].RunAt)
	})

	if filter.PerPage > 0 && len(matched) > filter.PerPage {
		matched = matched[:filter.PerPage]
	}
	return matched, nil
}

// CancelAll removes matching pending jobs
func (q *MemoryTaskQueue) CancelAll(_ context.Context, hook string, args []string, group string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	encoded := encodeArgs(args)
	for id, job := range q.jobs {
		if job.Status != JobStatusPending {
			continue
		}
		if job.Group != group {
			continue
		}
		if hook != "" && job.Hook != hook {
			continue
		}
		if len(args) > 0 && encodeArgs(job.Args) != encoded {
			continue
		}
		delete(q.jobs, id)
	}
	return nil
}

// ClaimDue claims up to limit due pending jobs
func (q *MemoryTaskQueue) ClaimDue(_ context.Context, limit int) ([]*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	var due []*Job
	for _, job := range q.jobs {
		if job.Status == JobStatusPending && !job.RunAt.After(now) {
			due = append(due, job)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].RunAt.Before(due[j].RunAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	claimed := make([]*Job, len(due))
	for i, job := range due {
		job.Status = JobStatusClaimed
		claimed[i] = cloneJob(job)
	}
	return claimed, nil
}

// ClaimAll claims every pending job regardless of its scheduled time. Tests
// use it to drain recursively fanned-out work without waiting out the
// scheduling delays.
func (q *MemoryTaskQueue) ClaimAll() []*Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	var claimed []*Job
	for _, job := range q.jobs {
		if job.Status == JobStatusPending {
			job.Status = JobStatusClaimed
			claimed = append(claimed, cloneJob(job))
		}
	}
	sort.Slice(claimed, func(i, j int) bool { return claimed[i].RunAt.Before(claimed[j].RunAt) })
	return claimed
}

// MarkComplete finishes a claimed job
func (q *MemoryTaskQueue) MarkComplete(_ context.Context, id uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	job.Status = JobStatusComplete
	return nil
}

// MarkFailed re-schedules or parks a job after a handler failure
func (q *MemoryTaskQueue) MarkFailed(_ context.Context, id uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	job.RetryCount++
	if job.RetryCount > q.config.MaxRetries {
		job.Status = JobStatusFailed
		return nil
	}
	job.Status = JobStatusPending
	job.RunAt = time.Now().Add(q.config.RetryDelay)
	return nil
}

// PendingCount returns the number of pending jobs, optionally restricted to
// one hook.
func (q *MemoryTaskQueue) PendingCount(hook string) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	count := 0
	for _, job := range q.jobs {
		if job.Status != JobStatusPending {
			continue
		}
		if hook != "" && job.Hook != hook {
			continue
		}
		count++
	}
	return count
}

func jobMatchesSearch(job *Job, search string) bool {
	if strings.Contains(job.Hook, search) {
		return true
	}
	return strings.Contains(encodeArgs(job.Args), search)
}

func cloneJob(job *Job) *Job {
	clone := *job
	clone.Args = append([]string(nil), job.Args...)
	return &clone
}

// Ensure MemoryTaskQueue implements TaskQueue
var _ TaskQueue = (*MemoryTaskQueue)(nil)
