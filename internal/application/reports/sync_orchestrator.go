package reports

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/storefront/analytics/internal/infrastructure/queue"
	"github.com/storefront/analytics/internal/infrastructure/scheduler"
)

// Hooks for the regeneration pipeline. The customers batch hooks share a
// prefix with the customers init hook on purpose: the chainer's substring
// search treats a pending init job as blocking, so order-table work cannot
// start before customer fan-out has even been computed.
const (
	HookCustomersBatchInit = "reports.customers_batch_init"
	HookCustomersBatch     = "reports.customers_batch"
	HookOrdersBatchInit    = "reports.orders_batch_init"
	HookOrdersBatch        = "reports.orders_batch"
	HookSyncOrder          = "reports.sync_order"
	HookSyncCustomer       = "reports.sync_customer"
)

// SyncConfig holds orchestrator configuration
type SyncConfig struct {
	// BatchSize is how many records one single-batch job processes
	BatchSize int
	// ScheduleDelay pushes scheduled jobs slightly into the future
	ScheduleDelay time.Duration
}

// DefaultSyncConfig returns default orchestrator configuration
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		BatchSize:     25,
		ScheduleDelay: 5 * time.Second,
	}
}

// SyncOrchestrator drives regeneration of the derived report tables. All
// heavy work happens in queued jobs; every public method returns promptly.
type SyncOrchestrator struct {
	queue        queue.TaskQueue
	batches      *scheduler.BatchScheduler
	chainer      *scheduler.DependentActionChainer
	enumerator   RecordEnumerator
	orderSteps   OrderSyncSteps
	customerStep CustomerSyncStep
	config       SyncConfig
	logger       *zap.Logger
}

// NewSyncOrchestrator creates a new sync orchestrator
func NewSyncOrchestrator(
	q queue.TaskQueue,
	batches *scheduler.BatchScheduler,
	chainer *scheduler.DependentActionChainer,
	enumerator RecordEnumerator,
	orderSteps OrderSyncSteps,
	customerStep CustomerSyncStep,
	config SyncConfig,
	logger *zap.Logger,
) *SyncOrchestrator {
	return &SyncOrchestrator{
		queue:        q,
		batches:      batches,
		chainer:      chainer,
		enumerator:   enumerator,
		orderSteps:   orderSteps,
		customerStep: customerStep,
		config:       config,
		logger:       logger,
	}
}

// RegisterHandlers wires every pipeline hook into the queue worker
func (s *SyncOrchestrator) RegisterHandlers(w *queue.Worker) {
	w.Register(scheduler.HookQueueBatches, s.batches.HandleQueueBatches)
	w.Register(scheduler.HookQueueDependentAction, s.chainer.HandleQueueDependentAction)
	w.Register(HookCustomersBatchInit, s.handleCustomersBatchInit)
	w.Register(HookCustomersBatch, s.handleCustomersBatch)
	w.Register(HookOrdersBatchInit, s.handleOrdersBatchInit)
	w.Register(HookOrdersBatch, s.handleOrdersBatch)
	w.Register(HookSyncOrder, s.handleSyncOrder)
	w.Register(HookSyncCustomer, s.handleSyncCustomer)
}

// Regenerate starts a full rebuild of the derived report tables: customer
// batches first, order batch initialization chained behind them. It is
// fire-and-forget and returns before any batch has executed.
func (s *SyncOrchestrator) Regenerate(ctx context.Context, days int, skipExisting bool) (string, error) {
	if err := s.ClearQueuedActions(ctx); err != nil {
		return "", fmt.Errorf("failed to clear queued actions: %w", err)
	}

	initArgs := []string{strconv.Itoa(days), strconv.FormatBool(skipExisting)}

	_, err := s.queue.ScheduleSingle(ctx, time.Now().Add(s.config.ScheduleDelay), HookCustomersBatchInit, initArgs, scheduler.QueueGroup)
	if err != nil {
		return "", fmt.Errorf("failed to schedule customer batch init: %w", err)
	}

	if _, err := s.chainer.QueueDependentAction(ctx, HookOrdersBatchInit, initArgs, HookCustomersBatch); err != nil {
		return "", fmt.Errorf("failed to chain order batch init: %w", err)
	}

	s.logger.Info("Report regeneration scheduled",
		zap.Int("days", days),
		zap.Bool("skip_existing", skipExisting),
	)
	return "Report table regeneration has been started.", nil
}

// ClearQueuedActions cancels every pending job in the reports queue group,
// so a fresh regeneration does not stack on top of a running one.
func (s *SyncOrchestrator) ClearQueuedActions(ctx context.Context) error {
	return s.queue.CancelAll(ctx, "", nil, scheduler.QueueGroup)
}

// SyncOneOrder runs the four per-dimension sync steps for one order. On
// partial failure the whole record is re-scheduled rather than the failed
// step alone; the steps are cheap upserts, so re-running all of them is
// simpler than tracking which one broke.
func (s *SyncOrchestrator) SyncOneOrder(ctx context.Context, orderID int64) error {
	results := []SyncResult{
		s.orderSteps.SyncOrderStats(ctx, orderID),
		s.orderSteps.SyncOrderProducts(ctx, orderID),
		s.orderSteps.SyncOrderCoupons(ctx, orderID),
		s.orderSteps.SyncOrderTaxes(ctx, orderID),
	}

	successes, skipped := reduceResults(results)
	expected := len(results) - skipped
	if successes == expected {
		s.logger.Debug("Order synced",
			zap.Int64("order_id", orderID),
			zap.Int("steps", expected),
			zap.Int("skipped", skipped),
		)
		return nil
	}

	s.logger.Warn("Order sync incomplete, re-scheduling",
		zap.Int64("order_id", orderID),
		zap.Int("expected", expected),
		zap.Int("succeeded", successes),
	)
	return s.rescheduleOrderSync(ctx, orderID)
}

// rescheduleOrderSync queues the order for another full sync, behind the
// customer batches so the order's customer profile has had a chance to be
// written first. A de-duplication search skips scheduling when a pending
// job for the same order already exists.
func (s *SyncOrchestrator) rescheduleOrderSync(ctx context.Context, orderID int64) error {
	pending, err := s.queue.Search(ctx, queue.SearchFilter{
		Status:  queue.JobStatusPending,
		Hook:    HookSyncOrder,
		Search:  strconv.FormatInt(orderID, 10),
		Group:   scheduler.QueueGroup,
		PerPage: 1,
	})
	if err != nil {
		return fmt.Errorf("failed to search for pending order sync: %w", err)
	}
	if len(pending) > 0 {
		s.logger.Debug("Order sync already queued", zap.Int64("order_id", orderID))
		return nil
	}

	_, err = s.chainer.QueueDependentAction(ctx, HookSyncOrder, []string{strconv.FormatInt(orderID, 10)}, HookCustomersBatch)
	return err
}

// ScheduleSyncOrder queues a single-order sync from an external trigger
// (order save, refund). Redundant triggers for the same order are dropped
// by the same de-duplication guard.
func (s *SyncOrchestrator) ScheduleSyncOrder(ctx context.Context, orderID int64) error {
	return s.rescheduleOrderSync(ctx, orderID)
}

// SyncOneCustomer writes the derived customer profile row for one customer
func (s *SyncOrchestrator) SyncOneCustomer(ctx context.Context, customerID int64) error {
	result := s.customerStep.SyncCustomer(ctx, customerID)
	if result == SyncFailure {
		s.logger.Warn("Customer sync failed, re-scheduling", zap.Int64("customer_id", customerID))
		_, err := s.queue.ScheduleSingle(
			ctx,
			time.Now().Add(s.config.ScheduleDelay),
			HookSyncCustomer,
			[]string{strconv.FormatInt(customerID, 10)},
			scheduler.QueueGroup,
		)
		return err
	}
	return nil
}

// handleCustomersBatchInit counts candidate customers and fans the range of
// batch numbers out through the batch scheduler.
func (s *SyncOrchestrator) handleCustomersBatchInit(ctx context.Context, args []string) error {
	days, skipExisting, err := parseInitArgs(args)
	if err != nil {
		return err
	}
	return s.queueEntityBatches(ctx, EntityCustomer, HookCustomersBatch, days, skipExisting)
}

// handleOrdersBatchInit does the same for orders; by the time it runs, the
// chainer has verified the customer batches are no longer pending.
func (s *SyncOrchestrator) handleOrdersBatchInit(ctx context.Context, args []string) error {
	days, skipExisting, err := parseInitArgs(args)
	if err != nil {
		return err
	}
	return s.queueEntityBatches(ctx, EntityOrder, HookOrdersBatch, days, skipExisting)
}

func (s *SyncOrchestrator) queueEntityBatches(ctx context.Context, entity EntityType, batchHook string, days int, skipExisting bool) error {
	page, err := s.enumerator.Enumerate(ctx, entity, 1, 1, days, skipExisting)
	if err != nil {
		return fmt.Errorf("failed to count %s records: %w", entity, err)
	}
	if page.TotalCount == 0 {
		s.logger.Info("No records to sync", zap.String("entity", string(entity)))
		return nil
	}

	numBatches := (page.TotalCount + int64(s.config.BatchSize) - 1) / int64(s.config.BatchSize)
	s.logger.Info("Queuing sync batches",
		zap.String("entity", string(entity)),
		zap.Int64("records", page.TotalCount),
		zap.Int64("batches", numBatches),
	)

	batchArgs := []string{strconv.Itoa(days), strconv.FormatBool(skipExisting)}
	return s.batches.QueueBatches(ctx, 1, numBatches, batchHook, batchArgs)
}

// handleCustomersBatch syncs one page of customers
func (s *SyncOrchestrator) handleCustomersBatch(ctx context.Context, args []string) error {
	batchNo, days, skipExisting, err := parseBatchArgs(args)
	if err != nil {
		return err
	}

	page, err := s.enumerator.Enumerate(ctx, EntityCustomer, s.config.BatchSize, batchNo, days, skipExisting)
	if err != nil {
		return fmt.Errorf("failed to enumerate customer batch %d: %w", batchNo, err)
	}
	for _, id := range page.IDs {
		if err := s.SyncOneCustomer(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// handleOrdersBatch syncs one page of orders
func (s *SyncOrchestrator) handleOrdersBatch(ctx context.Context, args []string) error {
	batchNo, days, skipExisting, err := parseBatchArgs(args)
	if err != nil {
		return err
	}

	page, err := s.enumerator.Enumerate(ctx, EntityOrder, s.config.BatchSize, batchNo, days, skipExisting)
	if err != nil {
		return fmt.Errorf("failed to enumerate order batch %d: %w", batchNo, err)
	}
	for _, id := range page.IDs {
		if err := s.SyncOneOrder(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *SyncOrchestrator) handleSyncOrder(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("sync_order job needs an order id")
	}
	orderID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("bad order id %q: %w", args[0], err)
	}
	return s.SyncOneOrder(ctx, orderID)
}

func (s *SyncOrchestrator) handleSyncCustomer(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("sync_customer job needs a customer id")
	}
	customerID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("bad customer id %q: %w", args[0], err)
	}
	return s.SyncOneCustomer(ctx, customerID)
}

func parseInitArgs(args []string) (days int, skipExisting bool, err error) {
	if len(args) < 2 {
		return 0, false, fmt.Errorf("batch init job needs [days, skip_existing] args")
	}
	days, err = strconv.Atoi(args[0])
	if err != nil {
		return 0, false, fmt.Errorf("bad days arg %q: %w", args[0], err)
	}
	skipExisting, err = strconv.ParseBool(args[1])
	if err != nil {
		return 0, false, fmt.Errorf("bad skip_existing arg %q: %w", args[1], err)
	}
	return days, skipExisting, nil
}

func parseBatchArgs(args []string) (batchNo, days int, skipExisting bool, err error) {
	if len(args) < 3 {
		return 0, 0, false, fmt.Errorf("batch job needs [batch_no, days, skip_existing] args")
	}
	batchNo, err = strconv.Atoi(args[0])
	if err != nil {
		return 0, 0, false, fmt.Errorf("bad batch number %q: %w", args[0], err)
	}
	days, skipExisting, err = parseInitArgs(args[1:])
	return batchNo, days, skipExisting, err
}
