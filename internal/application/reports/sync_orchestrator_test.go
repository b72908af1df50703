package reports

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/storefront/analytics/internal/infrastructure/queue"
	"github.com/storefront/analytics/internal/infrastructure/scheduler"
)

type fakeEnumerator struct {
	counts map[EntityType]int64
	pages  map[EntityType]map[int][]int64
	err    error
}

func (f *fakeEnumerator) Enumerate(_ context.Context, entity EntityType, _, pageNo, _ int, _ bool) (RecordPage, error) {
	if f.err != nil {
		return RecordPage{}, f.err
	}
	page := RecordPage{TotalCount: f.counts[entity]}
	if pages, ok := f.pages[entity]; ok {
		page.IDs = pages[pageNo]
	}
	return page, nil
}

type fakeOrderSteps struct {
	stats, products, coupons, taxes SyncResult
	calls                           map[string]int
}

func newFakeOrderSteps() *fakeOrderSteps {
	return &fakeOrderSteps{
		stats:    SyncSuccess,
		products: SyncSuccess,
		coupons:  SyncSuccess,
		taxes:    SyncSuccess,
		calls:    make(map[string]int),
	}
}

func (f *fakeOrderSteps) SyncOrderStats(context.Context, int64) SyncResult {
	f.calls["stats"]++
	return f.stats
}

func (f *fakeOrderSteps) SyncOrderProducts(context.Context, int64) SyncResult {
	f.calls["products"]++
	return f.products
}

func (f *fakeOrderSteps) SyncOrderCoupons(context.Context, int64) SyncResult {
	f.calls["coupons"]++
	return f.coupons
}

func (f *fakeOrderSteps) SyncOrderTaxes(context.Context, int64) SyncResult {
	f.calls["taxes"]++
	return f.taxes
}

type fakeCustomerStep struct {
	result SyncResult
	synced []int64
}

func (f *fakeCustomerStep) SyncCustomer(_ context.Context, customerID int64) SyncResult {
	f.synced = append(f.synced, customerID)
	return f.result
}

type orchestratorFixture struct {
	orchestrator *SyncOrchestrator
	queue        *queue.MemoryTaskQueue
	enumerator   *fakeEnumerator
	orderSteps   *fakeOrderSteps
	customerStep *fakeCustomerStep
}

func newOrchestratorFixture(t *testing.T) *orchestratorFixture {
	t.Helper()
	q := queue.NewMemoryTaskQueue()
	log := zap.NewNop()

	batches, err := scheduler.NewBatchScheduler(q, scheduler.BatchSchedulerConfig{
		MaxJobsPerDispatch: 100,
		ScheduleDelay:      0,
	}, log)
	require.NoError(t, err)
	chainer := scheduler.NewDependentActionChainer(q, 0, log)

	enumerator := &fakeEnumerator{counts: map[EntityType]int64{}, pages: map[EntityType]map[int][]int64{}}
	orderSteps := newFakeOrderSteps()
	customerStep := &fakeCustomerStep{result: SyncSuccess}

	orchestrator := NewSyncOrchestrator(q, batches, chainer, enumerator, orderSteps, customerStep, SyncConfig{
		BatchSize:     25,
		ScheduleDelay: 0,
	}, log)

	return &orchestratorFixture{
		orchestrator: orchestrator,
		queue:        q,
		enumerator:   enumerator,
		orderSteps:   orderSteps,
		customerStep: customerStep,
	}
}

func (f *orchestratorFixture) pendingHooks(t *testing.T) []string {
	t.Helper()
	jobs, err := f.queue.Search(context.Background(), queue.SearchFilter{Status: queue.JobStatusPending})
	require.NoError(t, err)
	hooks := make([]string, len(jobs))
	for i, job := range jobs {
		hooks[i] = job.Hook
	}
	return hooks
}

func TestRegenerateSchedulesPipeline(t *testing.T) {
	f := newOrchestratorFixture(t)

	msg, err := f.orchestrator.Regenerate(context.Background(), 30, true)
	require.NoError(t, err)
	assert.NotEmpty(t, msg)

	require.Len(t, f.queue.ScheduleCalls, 2)

	init := f.queue.ScheduleCalls[0]
	assert.Equal(t, HookCustomersBatchInit, init.Hook)
	assert.Equal(t, []string{"30", "true"}, init.Args)
	assert.Equal(t, scheduler.QueueGroup, init.Group)

	// The pending customers init job blocks the orders init through the
	// chainer's prefix match, so the second job is a chain wrapper rather
	// than the orders init itself.
	wrapper := f.queue.ScheduleCalls[1]
	assert.Equal(t, scheduler.HookQueueDependentAction, wrapper.Hook)
	assert.Equal(t, []string{HookOrdersBatchInit, HookCustomersBatch, "30", "true"}, wrapper.Args)
}

func TestRegenerateClearsPreviousRun(t *testing.T) {
	f := newOrchestratorFixture(t)
	ctx := context.Background()

	_, err := f.queue.ScheduleSingle(ctx, time.Now().Add(time.Hour), HookOrdersBatch, []string{"9", "0", "false"}, scheduler.QueueGroup)
	require.NoError(t, err)

	_, err = f.orchestrator.Regenerate(ctx, 0, false)
	require.NoError(t, err)

	stale, err := f.queue.Search(ctx, queue.SearchFilter{Hook: HookOrdersBatch})
	require.NoError(t, err)
	assert.Empty(t, stale, "a fresh regeneration must cancel the previous run's jobs")
}

func TestSyncOneOrderAllStepsSucceed(t *testing.T) {
	f := newOrchestratorFixture(t)

	require.NoError(t, f.orchestrator.SyncOneOrder(context.Background(), 42))

	assert.Equal(t, 1, f.orderSteps.calls["stats"])
	assert.Equal(t, 1, f.orderSteps.calls["taxes"])
	assert.Empty(t, f.queue.ScheduleCalls, "a clean sync must not re-schedule")
}

func TestSyncOneOrderSkippedStepsAreNotFailures(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.orderSteps.coupons = SyncSkipped
	f.orderSteps.taxes = SyncSkipped

	require.NoError(t, f.orchestrator.SyncOneOrder(context.Background(), 42))
	assert.Empty(t, f.queue.ScheduleCalls)
}

func TestSyncOneOrderPartialFailureReschedules(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.orderSteps.coupons = SyncFailure

	require.NoError(t, f.orchestrator.SyncOneOrder(context.Background(), 42))

	// No customer batches are pending, so the chainer fires the sync
	// immediately rather than deferring it.
	require.Len(t, f.queue.ScheduleCalls, 1)
	assert.Equal(t, HookSyncOrder, f.queue.ScheduleCalls[0].Hook)
	assert.Equal(t, []string{"42"}, f.queue.ScheduleCalls[0].Args)
}

func TestSyncOneOrderRescheduleWaitsOnCustomerBatches(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.orderSteps.stats = SyncFailure
	ctx := context.Background()

	_, err := f.queue.ScheduleSingle(ctx, time.Now().Add(time.Hour), HookCustomersBatch, []string{"1", "0", "false"}, scheduler.QueueGroup)
	require.NoError(t, err)

	require.NoError(t, f.orchestrator.SyncOneOrder(ctx, 42))

	assert.Contains(t, f.pendingHooks(t), scheduler.HookQueueDependentAction)
	assert.NotContains(t, f.pendingHooks(t), HookSyncOrder)
}

func TestScheduleSyncOrderDeduplicates(t *testing.T) {
	f := newOrchestratorFixture(t)
	ctx := context.Background()

	require.NoError(t, f.orchestrator.ScheduleSyncOrder(ctx, 42))
	require.NoError(t, f.orchestrator.ScheduleSyncOrder(ctx, 42))

	pending, err := f.queue.Search(ctx, queue.SearchFilter{Status: queue.JobStatusPending, Hook: HookSyncOrder})
	require.NoError(t, err)
	assert.Len(t, pending, 1, "redundant triggers for the same order must collapse")

	// A different order still gets its own job.
	require.NoError(t, f.orchestrator.ScheduleSyncOrder(ctx, 7))
	pending, err = f.queue.Search(ctx, queue.SearchFilter{Status: queue.JobStatusPending, Hook: HookSyncOrder})
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestSyncOneCustomerFailureReschedules(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.customerStep.result = SyncFailure

	require.NoError(t, f.orchestrator.SyncOneCustomer(context.Background(), 9))

	require.Len(t, f.queue.ScheduleCalls, 1)
	assert.Equal(t, HookSyncCustomer, f.queue.ScheduleCalls[0].Hook)
	assert.Equal(t, []string{"9"}, f.queue.ScheduleCalls[0].Args)
}

func TestBatchInitFansOutByRecordCount(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.enumerator.counts[EntityCustomer] = 60 // 3 batches of 25

	err := f.orchestrator.handleCustomersBatchInit(context.Background(), []string{"30", "false"})
	require.NoError(t, err)

	require.Len(t, f.queue.ScheduleCalls, 3)
	for i, call := range f.queue.ScheduleCalls {
		assert.Equal(t, HookCustomersBatch, call.Hook)
		assert.Equal(t, []string{strconv.Itoa(i + 1), "30", "false"}, call.Args)
	}
}

func TestBatchInitNoRecords(t *testing.T) {
	f := newOrchestratorFixture(t)

	err := f.orchestrator.handleOrdersBatchInit(context.Background(), []string{"0", "false"})
	require.NoError(t, err)
	assert.Empty(t, f.queue.ScheduleCalls)
}

func TestBatchInitEnumeratorError(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.enumerator.err = errors.New("database gone")

	err := f.orchestrator.handleCustomersBatchInit(context.Background(), []string{"0", "false"})
	assert.Error(t, err)
}

func TestHandleCustomersBatchSyncsPage(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.enumerator.counts[EntityCustomer] = 3
	f.enumerator.pages[EntityCustomer] = map[int][]int64{2: {4, 5, 6}}

	err := f.orchestrator.handleCustomersBatch(context.Background(), []string{"2", "0", "false"})
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 5, 6}, f.customerStep.synced)
}

func TestHandleOrdersBatchSyncsPage(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.enumerator.counts[EntityOrder] = 2
	f.enumerator.pages[EntityOrder] = map[int][]int64{1: {10, 11}}

	err := f.orchestrator.handleOrdersBatch(context.Background(), []string{"1", "0", "false"})
	require.NoError(t, err)
	assert.Equal(t, 2, f.orderSteps.calls["stats"])
	assert.Equal(t, 2, f.orderSteps.calls["products"])
}

func TestParseBatchArgs(t *testing.T) {
	batchNo, days, skipExisting, err := parseBatchArgs([]string{"3", "30", "true"})
	require.NoError(t, err)
	assert.Equal(t, 3, batchNo)
	assert.Equal(t, 30, days)
	assert.True(t, skipExisting)

	_, _, _, err = parseBatchArgs([]string{"3", "30"})
	assert.Error(t, err)

	_, _, _, err = parseBatchArgs([]string{"x", "30", "true"})
	assert.Error(t, err)

	_, _, err = parseInitArgs([]string{"30", "maybe"})
	assert.Error(t, err)
}
