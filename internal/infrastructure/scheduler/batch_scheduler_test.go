package scheduler

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/storefront/analytics/internal/infrastructure/queue"
)

func newTestScheduler(t *testing.T, maxJobs int) (*BatchScheduler, *queue.MemoryTaskQueue) {
	t.Helper()
	q := queue.NewMemoryTaskQueue()
	s, err := NewBatchScheduler(q, BatchSchedulerConfig{
		MaxJobsPerDispatch: maxJobs,
		ScheduleDelay:      0,
	}, zap.NewNop())
	require.NoError(t, err)
	return s, q
}

func TestBatchSchedulerConfigValidate(t *testing.T) {
	cfg := DefaultBatchSchedulerConfig()
	assert.NoError(t, cfg.Validate())

	cfg.MaxJobsPerDispatch = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = DefaultBatchSchedulerConfig()
	cfg.ScheduleDelay = -1
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}

func TestQueueBatchesSmallRange(t *testing.T) {
	s, q := newTestScheduler(t, 100)

	err := s.QueueBatches(context.Background(), 1, 5, "reports.customers_batch", []string{"0", "true"})
	require.NoError(t, err)

	require.Len(t, q.ScheduleCalls, 5)
	for i, call := range q.ScheduleCalls {
		assert.Equal(t, "reports.customers_batch", call.Hook)
		assert.Equal(t, QueueGroup, call.Group)
		assert.Equal(t, []string{strconv.Itoa(i + 1), "0", "true"}, call.Args)
	}
}

func TestQueueBatchesInvalidRange(t *testing.T) {
	s, q := newTestScheduler(t, 100)

	err := s.QueueBatches(context.Background(), 10, 5, "reports.orders_batch", nil)
	assert.ErrorIs(t, err, ErrInvalidBatchRange)
	assert.Empty(t, q.ScheduleCalls)
}

func TestQueueBatchesRecursiveFanOut(t *testing.T) {
	s, q := newTestScheduler(t, 10)
	ctx := context.Background()

	require.NoError(t, s.QueueBatches(ctx, 1, 250, "reports.orders_batch", []string{"30", "false"}))

	// The initial dispatch must not exceed the per-dispatch bound: the range
	// is split into chunk jobs that re-enter the scheduler via the queue.
	require.Len(t, q.ScheduleCalls, 10)
	for _, call := range q.ScheduleCalls {
		assert.Equal(t, HookQueueBatches, call.Hook)
	}

	// Drain the queue the way the worker would, re-entering the handler for
	// every chunk job until only single-batch jobs are left.
	seen := make(map[int]int)
	for {
		claimed := q.ClaimAll()
		if len(claimed) == 0 {
			break
		}
		for _, job := range claimed {
			if job.Hook == HookQueueBatches {
				require.NoError(t, s.HandleQueueBatches(ctx, job.Args))
				continue
			}
			require.Equal(t, "reports.orders_batch", job.Hook)
			require.Equal(t, []string{"30", "false"}, job.Args[1:])
			batchNo, err := strconv.Atoi(job.Args[0])
			require.NoError(t, err)
			seen[batchNo]++
		}
	}

	// Every batch number in [1, 250] exactly once: no gaps, no duplicates.
	require.Len(t, seen, 250)
	for i := 1; i <= 250; i++ {
		assert.Equal(t, 1, seen[i], "batch %d", i)
	}
}

func TestQueueBatchesRangeNotDivisible(t *testing.T) {
	s, q := newTestScheduler(t, 3)
	ctx := context.Background()

	require.NoError(t, s.QueueBatches(ctx, 1, 7, "reports.orders_batch", nil))

	seen := make(map[int]bool)
	for {
		claimed := q.ClaimAll()
		if len(claimed) == 0 {
			break
		}
		for _, job := range claimed {
			if job.Hook == HookQueueBatches {
				require.NoError(t, s.HandleQueueBatches(ctx, job.Args))
				continue
			}
			batchNo, err := strconv.Atoi(job.Args[0])
			require.NoError(t, err)
			require.False(t, seen[batchNo], "batch %d dispatched twice", batchNo)
			seen[batchNo] = true
		}
	}
	assert.Len(t, seen, 7)
}

func TestHandleQueueBatchesArgValidation(t *testing.T) {
	s, _ := newTestScheduler(t, 10)
	ctx := context.Background()

	assert.ErrorIs(t, s.HandleQueueBatches(ctx, []string{"1", "5"}), ErrInvalidBatchRange)
	assert.ErrorIs(t, s.HandleQueueBatches(ctx, []string{"x", "5", "hook"}), ErrInvalidBatchRange)
	assert.ErrorIs(t, s.HandleQueueBatches(ctx, []string{"1", "x", "hook"}), ErrInvalidBatchRange)
}

func TestHandleQueueBatchesForwardsExtraArgs(t *testing.T) {
	s, q := newTestScheduler(t, 100)

	err := s.HandleQueueBatches(context.Background(), []string{"3", "4", "reports.customers_batch", "90", "true"})
	require.NoError(t, err)

	require.Len(t, q.ScheduleCalls, 2)
	assert.Equal(t, []string{"3", "90", "true"}, q.ScheduleCalls[0].Args)
	assert.Equal(t, []string{"4", "90", "true"}, q.ScheduleCalls[1].Args)
}
