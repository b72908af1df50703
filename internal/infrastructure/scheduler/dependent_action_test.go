package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/storefront/analytics/internal/infrastructure/queue"
)

func newTestChainer(t *testing.T, delay time.Duration) (*DependentActionChainer, *queue.MemoryTaskQueue) {
	t.Helper()
	q := queue.NewMemoryTaskQueue()
	return NewDependentActionChainer(q, delay, zap.NewNop()), q
}

func TestQueueDependentActionReadyWhenPrerequisiteClear(t *testing.T) {
	c, q := newTestChainer(t, 0)

	state, err := c.QueueDependentAction(context.Background(), "reports.orders_batch_init", []string{"30", "false"}, "reports.customers_batch")
	require.NoError(t, err)
	assert.Equal(t, ChainStateReady, state)

	require.Len(t, q.ScheduleCalls, 1)
	assert.Equal(t, "reports.orders_batch_init", q.ScheduleCalls[0].Hook)
	assert.Equal(t, []string{"30", "false"}, q.ScheduleCalls[0].Args)
	assert.Equal(t, QueueGroup, q.ScheduleCalls[0].Group)
}

func TestQueueDependentActionWaitsOnPendingPrerequisite(t *testing.T) {
	delay := 5 * time.Second
	c, q := newTestChainer(t, delay)
	ctx := context.Background()

	prereqRunAt := time.Now().Add(time.Minute)
	_, err := q.ScheduleSingle(ctx, prereqRunAt, "reports.customers_batch", []string{"3", "30", "false"}, QueueGroup)
	require.NoError(t, err)

	state, err := c.QueueDependentAction(ctx, "reports.orders_batch_init", []string{"30", "false"}, "reports.customers_batch")
	require.NoError(t, err)
	assert.Equal(t, ChainStateWaiting, state)

	// A wrapper job is queued to re-check after the blocking job's run time,
	// carrying everything needed to re-enter the evaluation.
	require.Len(t, q.ScheduleCalls, 2)
	wrapper := q.ScheduleCalls[1]
	assert.Equal(t, HookQueueDependentAction, wrapper.Hook)
	assert.Equal(t, []string{"reports.orders_batch_init", "reports.customers_batch", "30", "false"}, wrapper.Args)
	assert.True(t, wrapper.RunAt.Equal(prereqRunAt.Add(delay)), "recheck at %v, want %v", wrapper.RunAt, prereqRunAt.Add(delay))
}

func TestQueueDependentActionPrefixMatchesInitHook(t *testing.T) {
	// The prerequisite match is a substring search, so a pending
	// customers_batch_init job blocks actions waiting on customers_batch.
	// That ordering is load-bearing: order work must not start while the
	// customer fan-out has not even been computed yet.
	c, q := newTestChainer(t, 0)
	ctx := context.Background()

	_, err := q.ScheduleSingle(ctx, time.Now().Add(time.Minute), "reports.customers_batch_init", []string{"30", "false"}, QueueGroup)
	require.NoError(t, err)

	state, err := c.QueueDependentAction(ctx, "reports.orders_batch_init", []string{"30", "false"}, "reports.customers_batch")
	require.NoError(t, err)
	assert.Equal(t, ChainStateWaiting, state)
}

func TestQueueDependentActionIgnoresOtherChainWrappers(t *testing.T) {
	// Another wrapper waiting on the same prerequisite must not count as
	// blocking, or two racing dependents would defer each other forever.
	c, q := newTestChainer(t, 0)
	ctx := context.Background()

	_, err := q.ScheduleSingle(ctx, time.Now().Add(time.Minute), HookQueueDependentAction,
		[]string{"reports.orders_batch_init", "reports.customers_batch", "30", "false"}, QueueGroup)
	require.NoError(t, err)

	state, err := c.QueueDependentAction(ctx, "reports.sync_order", []string{"42"}, "reports.customers_batch")
	require.NoError(t, err)
	assert.Equal(t, ChainStateReady, state)

	require.Len(t, q.ScheduleCalls, 2)
	assert.Equal(t, "reports.sync_order", q.ScheduleCalls[1].Hook)
}

func TestQueueDependentActionIgnoresCompletedPrerequisite(t *testing.T) {
	c, q := newTestChainer(t, 0)
	ctx := context.Background()

	job, err := q.ScheduleSingle(ctx, time.Now(), "reports.customers_batch", []string{"1", "30", "false"}, QueueGroup)
	require.NoError(t, err)
	require.NoError(t, q.MarkComplete(ctx, job.ID))

	state, err := c.QueueDependentAction(ctx, "reports.orders_batch_init", nil, "reports.customers_batch")
	require.NoError(t, err)
	assert.Equal(t, ChainStateReady, state)
}

func TestHandleQueueDependentActionRoundTrip(t *testing.T) {
	c, q := newTestChainer(t, 0)
	ctx := context.Background()

	prereq, err := q.ScheduleSingle(ctx, time.Now().Add(time.Minute), "reports.customers_batch", []string{"1", "30", "false"}, QueueGroup)
	require.NoError(t, err)

	state, err := c.QueueDependentAction(ctx, "reports.sync_order", []string{"42"}, "reports.customers_batch")
	require.NoError(t, err)
	require.Equal(t, ChainStateWaiting, state)
	wrapper := q.ScheduleCalls[len(q.ScheduleCalls)-1]
	require.Equal(t, HookQueueDependentAction, wrapper.Hook)

	// Once the prerequisite completes, re-entering through the wrapper's own
	// args fires the original action with its original arguments.
	require.NoError(t, q.MarkComplete(ctx, prereq.ID))
	require.NoError(t, c.HandleQueueDependentAction(ctx, wrapper.Args))

	fired := q.ScheduleCalls[len(q.ScheduleCalls)-1]
	assert.Equal(t, "reports.sync_order", fired.Hook)
	assert.Equal(t, []string{"42"}, fired.Args)
}

func TestHandleQueueDependentActionArgValidation(t *testing.T) {
	c, _ := newTestChainer(t, 0)

	assert.ErrorIs(t, c.HandleQueueDependentAction(context.Background(), []string{"only-action"}), ErrInvalidChainArgs)
	assert.ErrorIs(t, c.HandleQueueDependentAction(context.Background(), nil), ErrInvalidChainArgs)
}
