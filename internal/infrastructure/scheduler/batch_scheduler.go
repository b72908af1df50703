package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/storefront/analytics/internal/infrastructure/queue"
)

// QueueGroup is the queue group every job of the reporting pipeline is
// scheduled under, so a fresh regeneration can cancel the lot in one call.
const QueueGroup = "reports"

// HookQueueBatches is the hook a recursive fan-out chunk is queued under.
// Its args are [range_start, range_end, single_batch_hook, extra args...].
const HookQueueBatches = "reports.queue_batches"

// BatchSchedulerConfig holds fan-out configuration
type BatchSchedulerConfig struct {
	// MaxJobsPerDispatch bounds how many jobs a single QueueBatches call
	// writes to the queue before recursing.
	MaxJobsPerDispatch int
	// ScheduleDelay pushes queued jobs slightly into the future so a large
	// fan-out does not execute in the same instant it is scheduled.
	ScheduleDelay time.Duration
}

// DefaultBatchSchedulerConfig returns default fan-out configuration
func DefaultBatchSchedulerConfig() BatchSchedulerConfig {
	return BatchSchedulerConfig{
		MaxJobsPerDispatch: 100,
		ScheduleDelay:      5 * time.Second,
	}
}

// Validate validates the configuration
func (c *BatchSchedulerConfig) Validate() error {
	if c.MaxJobsPerDispatch <= 0 {
		return ErrInvalidConfig
	}
	if c.ScheduleDelay < 0 {
		return ErrInvalidConfig
	}
	return nil
}

// BatchScheduler fans a numeric batch range out into individually queued
// single-batch jobs, recursively chunking through the queue itself whenever
// the range exceeds the per-dispatch bound.
type BatchScheduler struct {
	queue  queue.TaskQueue
	config BatchSchedulerConfig
	logger *zap.Logger
}

// NewBatchScheduler creates a new batch scheduler
func NewBatchScheduler(q queue.TaskQueue, config BatchSchedulerConfig, logger *zap.Logger) (*BatchScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &BatchScheduler{queue: q, config: config, logger: logger}, nil
}

// QueueBatches schedules one single-batch job per integer in the closed
// range [rangeStart, rangeEnd], each with args [batch_no, extraArgs...].
// When the range exceeds MaxJobsPerDispatch it is split into at most that
// many contiguous chunks, each re-queued as another QueueBatches job, so no
// single invocation ever enqueues more than the bound.
func (s *BatchScheduler) QueueBatches(ctx context.Context, rangeStart, rangeEnd int64, singleBatchHook string, args []string) error {
	if rangeStart > rangeEnd {
		return fmt.Errorf("%w: range [%d, %d]", ErrInvalidBatchRange, rangeStart, rangeEnd)
	}

	rangeSize := rangeEnd - rangeStart + 1
	runAt := time.Now().Add(s.config.ScheduleDelay)

	if rangeSize <= int64(s.config.MaxJobsPerDispatch) {
		for i := rangeStart; i <= rangeEnd; i++ {
			batchArgs := append([]string{strconv.FormatInt(i, 10)}, args...)
			if _, err := s.queue.ScheduleSingle(ctx, runAt, singleBatchHook, batchArgs, QueueGroup); err != nil {
				return fmt.Errorf("failed to schedule batch %d: %w", i, err)
			}
		}
		s.logger.Debug("Queued single-batch jobs",
			zap.Int64("range_start", rangeStart),
			zap.Int64("range_end", rangeEnd),
			zap.String("hook", singleBatchHook),
		)
		return nil
	}

	// Split into MaxJobsPerDispatch contiguous chunks of roughly equal size
	// and let each chunk re-enter QueueBatches via the queue.
	chunkSize := (rangeSize + int64(s.config.MaxJobsPerDispatch) - 1) / int64(s.config.MaxJobsPerDispatch)
	for i := int64(0); i < int64(s.config.MaxJobsPerDispatch); i++ {
		chunkStart := rangeStart + i*chunkSize
		if chunkStart > rangeEnd {
			break
		}
		chunkEnd := chunkStart + chunkSize - 1
		if chunkEnd > rangeEnd {
			chunkEnd = rangeEnd
		}

		chunkArgs := append([]string{
			strconv.FormatInt(chunkStart, 10),
			strconv.FormatInt(chunkEnd, 10),
			singleBatchHook,
		}, args...)
		if _, err := s.queue.ScheduleSingle(ctx, runAt, HookQueueBatches, chunkArgs, QueueGroup); err != nil {
			return fmt.Errorf("failed to schedule batch chunk [%d, %d]: %w", chunkStart, chunkEnd, err)
		}
	}

	s.logger.Debug("Split batch range into chunks",
		zap.Int64("range_start", rangeStart),
		zap.Int64("range_end", rangeEnd),
		zap.Int64("chunk_size", chunkSize),
		zap.String("hook", singleBatchHook),
	)
	return nil
}

// HandleQueueBatches is the worker handler for HookQueueBatches jobs: it
// decodes the chunk args and re-enters QueueBatches.
func (s *BatchScheduler) HandleQueueBatches(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("%w: queue_batches needs [start, end, hook], got %d args", ErrInvalidBatchRange, len(args))
	}
	rangeStart, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad range start %q", ErrInvalidBatchRange, args[0])
	}
	rangeEnd, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad range end %q", ErrInvalidBatchRange, args[1])
	}
	return s.QueueBatches(ctx, rangeStart, rangeEnd, args[2], args[3:])
}
