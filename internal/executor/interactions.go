package executor

import (
	"context"
	"errors"
	"time"

	"github.com/jonesrussell/gopace/internal/domain"
	"github.com/jonesrussell/gopace/internal/logger"
)

// drainScheduled pulls due scheduled interactions and runs them through the
// same pacing pipeline as loop actions, reporting each outcome back to the
// scheduler.
func (e *Executor) drainScheduled(ctx context.Context) {
	ready := e.scheduler.Ready(e.readyBatch)
	for i := range ready {
		if e.stopping(ctx) {
			return
		}
		if err := e.executeInteraction(ctx, &ready[i]); err != nil {
			return
		}
	}
}

// executeInteraction performs one scheduled interaction. Failures are
// reported to the scheduler, which retries until the attempt budget runs
// out; only cancellation is returned.
func (e *Executor) executeInteraction(ctx context.Context, in *domain.Interaction) error {
	action := domain.LoopAction{
		Type:   in.Type,
		Params: map[string]any{"target": in.Target},
	}

	token := e.monitor.StartOperation(in.Type.String())
	if err := e.limiter.WaitIfNeeded(ctx, in.Type); err != nil {
		e.monitor.EndOperation(token, false, "cancelled while waiting for admission")
		return err
	}
	if e.stopping(ctx) {
		e.monitor.EndOperation(token, false, "stopped before execution")
		return context.Canceled
	}

	started := e.clock()
	result, err := e.dispatch(ctx, &action)
	e.recordOutcome(&action, err, e.clock().Sub(started))

	status := domain.InteractionCompleted
	payload := result.AsMap()
	if err != nil {
		e.monitor.EndOperation(token, false, err.Error())
		status = domain.InteractionFailed
		payload = map[string]any{"error": err.Error()}
	} else {
		e.monitor.EndOperation(token, true, "")
	}

	if markErr := e.scheduler.MarkExecuted(ctx, in.ID, status, payload); markErr != nil {
		e.logger.Warn("failed to mark interaction executed",
			logger.String("id", in.ID), logger.Error(markErr))
	}
	if e.metrics != nil {
		e.metrics.InteractionsExecuted.
			WithLabelValues(in.Type.String(), string(status)).Inc()
	}

	if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return err
	}
	return nil
}

// LoopStatus summarizes one installed loop.
type LoopStatus struct {
	ID      string    `json:"id"`
	NextRun time.Time `json:"next_run"`
	Passes  int       `json:"passes"`
}

// Status is a point-in-time view of the executor.
type Status struct {
	State string       `json:"state"`
	Loops []LoopStatus `json:"loops"`
}

// Status reports the executor state and per-loop progress.
func (e *Executor) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	status := Status{
		State: e.State().String(),
		Loops: make([]LoopStatus, 0, len(e.loops)),
	}
	for _, ls := range e.loops {
		status.Loops = append(status.Loops, LoopStatus{
			ID:      ls.config.ID,
			NextRun: ls.nextRun,
			Passes:  ls.passes,
		})
	}
	return status
}
