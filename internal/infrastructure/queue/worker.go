package queue

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// HandlerFunc executes one claimed job. A returned error re-schedules the
// job through the queue's retry policy, so handlers must be idempotent.
type HandlerFunc func(ctx context.Context, args []string) error

// WorkerConfig holds configuration for the queue worker
type WorkerConfig struct {
	PollInterval   time.Duration
	ClaimBatchSize int
	JobTimeout     time.Duration
}

// DefaultWorkerConfig returns default worker configuration
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		PollInterval:   5 * time.Second,
		ClaimBatchSize: 25,
		JobTimeout:     5 * time.Minute,
	}
}

// Validate validates the configuration
func (c *WorkerConfig) Validate() error {
	if c.PollInterval <= 0 {
		return ErrInvalidConfig
	}
	if c.ClaimBatchSize <= 0 {
		return ErrInvalidConfig
	}
	if c.JobTimeout <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// Worker polls the task queue for due jobs and dispatches them to registered
// handlers. Multiple workers may run against the same queue; the queue's
// claiming semantics are the only synchronization between them.
type Worker struct {
	queue    TaskQueue
	config   WorkerConfig
	logger   *zap.Logger
	handlers map[string]HandlerFunc

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewWorker creates a new queue worker
func NewWorker(q TaskQueue, config WorkerConfig, logger *zap.Logger) (*Worker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Worker{
		queue:    q,
		config:   config,
		logger:   logger,
		handlers: make(map[string]HandlerFunc),
	}, nil
}

// Register associates a handler with a hook name. Must be called before
// Start; registrations after Start are not synchronized.
func (w *Worker) Register(hook string, handler HandlerFunc) {
	w.handlers[hook] = handler
}

// Start starts the poll loop
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = true
	w.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go w.pollLoop(ctx)

	w.logger.Info("Queue worker started",
		zap.Duration("poll_interval", w.config.PollInterval),
		zap.Int("claim_batch_size", w.config.ClaimBatchSize),
	)
	return nil
}

// Stop gracefully stops the worker
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	w.mu.Unlock()

	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("Queue worker stopped gracefully")
		return nil
	case <-ctx.Done():
		w.logger.Warn("Queue worker stop timed out")
		return ctx.Err()
	}
}

func (w *Worker) pollLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.ProcessBatch(ctx)
		}
	}
}

// ProcessBatch claims and executes one batch of due jobs. Exposed so tests
// and the dev loop can drive the worker without waiting on the ticker.
func (w *Worker) ProcessBatch(ctx context.Context) {
	jobs, err := w.queue.ClaimDue(ctx, w.config.ClaimBatchSize)
	if err != nil {
		w.logger.Error("Failed to claim due jobs", zap.Error(err))
		return
	}

	for _, job := range jobs {
		w.processJob(ctx, job)
	}
}

func (w *Worker) processJob(ctx context.Context, job *Job) {
	handler, ok := w.handlers[job.Hook]
	if !ok {
		w.logger.Error("No handler registered for claimed job",
			zap.String("job_id", job.ID.String()),
			zap.String("hook", job.Hook),
		)
		if err := w.queue.MarkFailed(ctx, job.ID); err != nil {
			w.logger.Error("Failed to mark job failed", zap.Error(err))
		}
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.config.JobTimeout)
	defer cancel()

	if err := handler(jobCtx, job.Args); err != nil {
		w.logger.Warn("Job handler failed",
			zap.String("job_id", job.ID.String()),
			zap.String("hook", job.Hook),
			zap.Strings("args", job.Args),
			zap.Int("retry_count", job.RetryCount),
			zap.Error(err),
		)
		if err := w.queue.MarkFailed(ctx, job.ID); err != nil {
			w.logger.Error("Failed to mark job failed", zap.Error(err))
		}
		return
	}

	if err := w.queue.MarkComplete(ctx, job.ID); err != nil {
		w.logger.Error("Failed to mark job complete",
			zap.String("job_id", job.ID.String()),
			zap.Error(err),
		)
	}

	w.logger.Debug("Job completed",
		zap.String("job_id", job.ID.String()),
		zap.String("hook", job.Hook),
	)
}

// Hooks returns the registered hook names, for diagnostics
func (w *Worker) Hooks() []string {
	hooks := make([]string, 0, len(w.handlers))
	for hook := range w.handlers {
		hooks = append(hooks, hook)
	}
	return hooks
}
