package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/storefront/analytics/internal/infrastructure/queue"
)

// HookQueueDependentAction is the hook the chain wrapper job is queued
// under. Its args are [action_hook, prerequisite_hook, action args...].
const HookQueueDependentAction = "reports.queue_dependent_action"

// ChainState is the explicit state of one dependency evaluation
type ChainState string

const (
	// ChainStateWaiting means a prerequisite job is still pending and the
	// chain wrapper has been re-queued for a later re-check.
	ChainStateWaiting ChainState = "WAITING"
	// ChainStateReady means the prerequisite queue came back empty and the
	// dependent action can be scheduled.
	ChainStateReady ChainState = "READY"
)

// DependentActionChainer schedules an action to run only after a named
// prerequisite hook has no pending jobs left. It is a polling re-check
// pattern: the wrapper job it queues re-invokes the same evaluation until
// the prerequisite queue is actually clear, then fires the action.
type DependentActionChainer struct {
	queue  queue.TaskQueue
	delay  time.Duration
	logger *zap.Logger
}

// NewDependentActionChainer creates a new chainer. delay is the small margin
// added to every scheduled time.
func NewDependentActionChainer(q queue.TaskQueue, delay time.Duration, logger *zap.Logger) *DependentActionChainer {
	return &DependentActionChainer{queue: q, delay: delay, logger: logger}
}

// QueueDependentAction evaluates the prerequisite and either fires the
// action (Ready) or re-queues itself to check again later (Waiting). The
// returned state is the transition taken.
func (c *DependentActionChainer) QueueDependentAction(ctx context.Context, actionHook string, actionArgs []string, prerequisiteHook string) (ChainState, error) {
	state, recheckAt := c.evaluate(ctx, prerequisiteHook)

	if state == ChainStateReady {
		_, err := c.queue.ScheduleSingle(ctx, time.Now().Add(c.delay), actionHook, actionArgs, QueueGroup)
		if err != nil {
			return state, err
		}
		c.logger.Debug("Dependent action scheduled",
			zap.String("action", actionHook),
			zap.String("prerequisite", prerequisiteHook),
		)
		return state, nil
	}

	wrapperArgs := append([]string{actionHook, prerequisiteHook}, actionArgs...)
	_, err := c.queue.ScheduleSingle(ctx, recheckAt, HookQueueDependentAction, wrapperArgs, QueueGroup)
	if err != nil {
		return state, err
	}
	c.logger.Debug("Dependent action deferred behind prerequisite",
		zap.String("action", actionHook),
		zap.String("prerequisite", prerequisiteHook),
		zap.Time("recheck_at", recheckAt),
	)
	return state, nil
}

// evaluate decides whether the prerequisite is clear. It returns Ready when
// no blocking pending job exists, otherwise Waiting plus the time at which
// to re-check. Failures of the queue search fail toward delay, never toward
// early execution of the dependent action.
func (c *DependentActionChainer) evaluate(ctx context.Context, prerequisiteHook string) (ChainState, time.Time) {
	blocking, err := c.queue.Search(ctx, queue.SearchFilter{
		Status:         queue.JobStatusPending,
		Search:         prerequisiteHook,
		Group:          QueueGroup,
		ExcludeClaimed: true,
		OrderBy:        "run_at",
		Order:          "desc",
		PerPage:        1,
	})
	if err != nil {
		c.logger.Warn("Prerequisite search failed, deferring dependent action",
			zap.String("prerequisite", prerequisiteHook),
			zap.Error(err),
		)
		return ChainStateWaiting, time.Now().Add(c.delay)
	}

	if len(blocking) == 0 {
		return ChainStateReady, time.Time{}
	}

	job := blocking[0]

	// The search string also matches other chain wrappers waiting on the
	// same prerequisite. Treating one of those as blocking would chain two
	// racing dependents off each other forever, so fire instead.
	if job.Hook == HookQueueDependentAction {
		return ChainStateReady, time.Time{}
	}

	nextRun := job.NextRun()
	if nextRun == nil {
		// A pending job with no next run time is no longer actually
		// pending; re-check shortly rather than firing blind.
		return ChainStateWaiting, time.Now().Add(c.delay)
	}

	return ChainStateWaiting, nextRun.Add(c.delay)
}

// HandleQueueDependentAction is the worker handler for chain wrapper jobs:
// it re-enters QueueDependentAction with the original arguments, advancing
// the Waiting state until the prerequisite clears.
func (c *DependentActionChainer) HandleQueueDependentAction(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return ErrInvalidChainArgs
	}
	_, err := c.QueueDependentAction(ctx, args[0], args[2:], args[1])
	return err
}
