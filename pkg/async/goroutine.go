package async

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/portal/pkg/observability"
)

// SafeGo executes fn in a goroutine with a timeout, panic recovery and error
// logging through the context logger. The returned channel is closed when fn
// has returned.
//
// Example:
//
//	done := SafeGo(ctx, 30*time.Second, "session bootstrap", mgr.Bootstrap)
func SafeGo(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context) error) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		ctx, cancel := context.WithTimeout(parentCtx, timeout)
		defer cancel()

		if err := run(ctx, fn); err != nil {
			observability.FromContext(parentCtx).WithField("task", taskName).WithError(err).Warn("background task failed")
		}
	}()
	return done
}

// SafeGoNoError is like SafeGo but for functions that don't return errors
func SafeGoNoError(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context)) <-chan struct{} {
	return SafeGo(parentCtx, timeout, taskName, func(ctx context.Context) error {
		fn(ctx)
		return nil
	})
}

// run calls fn and converts a panic into an error
func run(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return fn(ctx)
}

// Trigger runs fn on demand in a single background worker. Fires that arrive
// while fn is running are coalesced into one further run, so bursts of change
// notifications cost at most two calls.
type Trigger struct {
	taskName string
	timeout  time.Duration
	fn       func(context.Context) error
	pending  chan struct{}
	done     chan struct{}
	once     sync.Once
}

// NewTrigger starts the worker. It exits when ctx is cancelled.
func NewTrigger(ctx context.Context, taskName string, timeout time.Duration, fn func(context.Context) error) *Trigger {
	t := &Trigger{
		taskName: taskName,
		timeout:  timeout,
		fn:       fn,
		pending:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	go t.loop(ctx)
	return t
}

// Fire requests a run without blocking
func (t *Trigger) Fire() {
	select {
	case t.pending <- struct{}{}:
	default:
	}
}

// Done is closed once the worker has exited
func (t *Trigger) Done() <-chan struct{} {
	return t.done
}

func (t *Trigger) loop(ctx context.Context) {
	defer t.once.Do(func() { close(t.done) })
	logger := observability.FromContext(ctx).WithField("task", t.taskName)

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.pending:
			runCtx, cancel := context.WithTimeout(ctx, t.timeout)
			if err := run(runCtx, t.fn); err != nil {
				logger.WithError(err).Warn("triggered task failed")
			}
			cancel()
		}
	}
}

// Batch calls fn for every item with at most workers running at once and
// returns the errors in item order. A nil slice means every call succeeded.
//
// Example:
//
//	errs := Batch(ctx, ids, 4, 10*time.Second, func(ctx context.Context, id int64) error {
//	    return svc.Delete(ctx, id)
//	})
func Batch[T any](ctx context.Context, items []T, workers int, timeout time.Duration, fn func(context.Context, T) error) []error {
	if workers <= 0 {
		workers = 1
	}
	results := make([]error, len(items))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, item := range items {
		g.Go(func() error {
			taskCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			results[i] = run(taskCtx, func(ctx context.Context) error { return fn(ctx, item) })
			return nil
		})
	}
	g.Wait()

	var errs []error
	for _, err := range results {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
