package engine

import (
	"context"
	"errors"
	"time"

	"github.com/jamesainslie/mirror/pkg/mirror/types"
)

// NextDelay returns how long to sleep after a pass that took elapsed. A pass
// shorter than interval sleeps out the remainder of the interval. A pass that
// overran sleeps a full interval.
func NextDelay(elapsed, interval time.Duration) time.Duration {
	if interval <= 0 {
		return 0
	}
	if elapsed >= interval {
		return interval
	}
	return interval - (elapsed % interval)
}

// Run prepares the roots and then runs passes until ctx is cancelled or a
// pass fails. Cancellation returns ctx.Err(); anything else returned is a
// *FatalError.
func (e *Engine) Run(ctx context.Context) error {
	defer e.setState(StateStopped)

	if err := e.Prepare(); err != nil {
		return err
	}
	e.setState(StateRunning)
	e.logger.Info("mirroring started",
		"source", e.cfg.Source,
		"destination", e.cfg.Destination,
		"interval", e.cfg.Interval,
		"compare", e.differ.Comparator().Name(),
	)

	for {
		result, err := e.Pass(ctx)
		if ctxErr := ctx.Err(); err != nil && ctxErr != nil && errors.Is(err, ctxErr) {
			e.logger.Info("mirroring stopped", "passes", e.Passes())
			return ctx.Err()
		}
		e.record(result)
		if err != nil {
			return &FatalError{Kind: KindOperational, Op: "pass", Path: e.cfg.Source, Err: err}
		}

		// Pacing counts from the pass start, recording included.
		elapsed := e.clock.Since(result.Started)
		delay := NextDelay(elapsed, e.cfg.Interval)
		if elapsed >= e.cfg.Interval {
			e.logger.Warn("pass overran interval", "elapsed", elapsed, "interval", e.cfg.Interval)
		}
		e.logger.Debug("sleeping", "delay", delay)

		if err := e.sleep(ctx, delay); err != nil {
			e.logger.Info("mirroring stopped", "passes", e.Passes())
			return err
		}
	}
}

// sleep waits for delay, for ctx to end, or for a trigger, whichever comes first.
func (e *Engine) sleep(ctx context.Context, delay time.Duration) error {
	e.setState(StateSleeping)
	defer e.setState(StateRunning)

	timer := e.clock.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.Chan():
		return nil
	case <-e.trigger:
		e.logger.Debug("change detected, starting pass early")
		return nil
	}
}

func (e *Engine) record(result types.PassResult) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.Record(result); err != nil {
		e.logger.Warn("failed to record pass", "pass", shortID(result.ID), "error", err)
	}
}

// RunOnce prepares the roots and runs a single pass. Errors are reported the
// same way as by Run.
func (e *Engine) RunOnce(ctx context.Context) (types.PassResult, error) {
	defer e.setState(StateStopped)

	if err := e.Prepare(); err != nil {
		return types.PassResult{}, err
	}
	e.setState(StateRunning)

	result, err := e.Pass(ctx)
	if ctxErr := ctx.Err(); err != nil && ctxErr != nil && errors.Is(err, ctxErr) {
		return result, ctxErr
	}
	e.record(result)
	if err != nil {
		return result, &FatalError{Kind: KindOperational, Op: "pass", Path: e.cfg.Source, Err: err}
	}
	return result, nil
}
