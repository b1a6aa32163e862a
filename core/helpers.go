package orchestration

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type workerRun func(context.Context) error

func panicSafeNamedWorker(name string, run func(context.Context) error) workerRun {
	return func(ctx context.Context) (err error) {
		defer func() {
			if recovered := recover(); recovered != nil {
				err = fmt.Errorf("%s worker panicked: %v", name, recovered)
			}
		}()

		if err = run(ctx); err != nil {
			return fmt.Errorf("%s worker failed: %w", name, err)
		}

		return nil
	}
}

// spawn runs a turn worker in the background and hands its outcome to done,
// a panic included. Close waits for every spawned worker.
func (o *Orchestrator) spawn(ctx context.Context, name string, run func(context.Context) error, done func(error)) {
	var runErr error
	worker := panicSafeNamedWorker(name, func(ctx context.Context) error {
		runErr = run(ctx)
		return runErr
	})

	o.workers.Add(1)
	go func() {
		defer o.workers.Done()
		if err := worker(ctx); err != nil {
			if runErr == nil {
				runErr = err
			}
			logger.DebugContext(ctx, "worker ended with error", "worker", name, "error", err)
		}
		done(runErr)
	}()
}

func recordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
