package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the lifecycle state of a queued action
type JobStatus string

const (
	JobStatusPending  JobStatus = "PENDING"
	JobStatusClaimed  JobStatus = "CLAIMED"
	JobStatusComplete JobStatus = "COMPLETE"
	JobStatusFailed   JobStatus = "FAILED"
)

// Job is the handle for one queued action. Consumers only read a job's hook,
// args and next scheduled run time; state transitions go through the queue.
type Job struct {
	ID         uuid.UUID
	Hook       string
	Args       []string
	Group      string
	Status     JobStatus
	RunAt      time.Time
	RetryCount int
}

// NextRun returns the job's next scheduled run time, or nil when the job is
// no longer actually pending.
func (j *Job) NextRun() *time.Time {
	if j.Status != JobStatusPending || j.RunAt.IsZero() {
		return nil
	}
	runAt := j.RunAt
	return &runAt
}

// SearchFilter selects queued jobs. Zero values mean "any". Search matches a
// substring of the serialized argument list, which is how callers look up
// jobs targeting a particular record id.
type SearchFilter struct {
	Status         JobStatus
	Hook           string
	Search         string
	Group          string
	ExcludeClaimed bool
	OrderBy        string // "run_at"
	Order          string // "asc" or "desc"
	PerPage        int
}

// TaskQueue is the durable queue the reporting pipeline schedules against.
// It is the only synchronization point between workers; everything scheduled
// through it must tolerate concurrent execution and redundant delivery.
type TaskQueue interface {
	// ScheduleSingle enqueues one pending job to run at or after runAt.
	ScheduleSingle(ctx context.Context, runAt time.Time, hook string, args []string, group string) (*Job, error)

	// Search returns jobs matching the filter.
	Search(ctx context.Context, filter SearchFilter) ([]*Job, error)

	// CancelAll cancels every pending job matching the given hook, args and
	// group. Empty hook and nil args match everything in the group.
	CancelAll(ctx context.Context, hook string, args []string, group string) error

	// ClaimDue atomically claims up to limit due pending jobs for execution.
	ClaimDue(ctx context.Context, limit int) ([]*Job, error)

	// MarkComplete finishes a claimed job.
	MarkComplete(ctx context.Context, id uuid.UUID) error

	// MarkFailed records a handler failure. The job is re-scheduled as
	// pending with a delay until its retry budget runs out.
	MarkFailed(ctx context.Context, id uuid.UUID) error
}
