package task

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hearthd/hearthd/internal/metrics"
	"github.com/hearthd/hearthd/internal/schedule"
	"github.com/hearthd/hearthd/pkg/types"
)

// Runner owns one goroutine driving a Runnable under a scheduling strategy.
//
// Lifecycle: created -> preparing -> waiting <-> running -> stopped.
// A Prepare or Invoke failure is logged and counted but never ends the loop;
// one broken task must not take down the others or the HTTP surface.
type Runner struct {
	name     string
	run      Runnable
	strategy schedule.Strategy
	log      *zap.SugaredLogger
	col      *metrics.Collector

	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	mu    sync.Mutex
	state types.TaskState

	runs     atomic.Uint64
	failures atomic.Uint64
}

// NewRunner creates a runner in the created state. col may be nil.
func NewRunner(name string, run Runnable, strategy schedule.Strategy, logger *zap.Logger, col *metrics.Collector) *Runner {
	return &Runner{
		name:     name,
		run:      run,
		strategy: strategy,
		log:      logger.Sugar().With("task", name),
		col:      col,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
		state:    types.TaskCreated,
	}
}

// Name returns the task's registration name.
func (r *Runner) Name() string { return r.name }

// State returns the runner's current lifecycle state.
func (r *Runner) State() types.TaskState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Info returns a point-in-time view for the /tasks listing.
func (r *Runner) Info() types.TaskInfo {
	return types.TaskInfo{
		Name:     r.name,
		State:    r.State(),
		Runs:     r.runs.Load(),
		Failures: r.failures.Load(),
	}
}

// Start launches the runner goroutine.
func (r *Runner) Start() {
	go r.loop()
}

// Stop signals the runner to exit. It interrupts a wait in progress but does
// not preempt a running invocation. Safe to call more than once.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

// Wait blocks until the runner goroutine has exited.
func (r *Runner) Wait() {
	<-r.done
}

func (r *Runner) setState(s types.TaskState) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

func (r *Runner) loop() {
	defer close(r.done)
	defer r.setState(types.TaskStopped)

	r.setState(types.TaskPreparing)
	if err := r.safely(r.run.Prepare); err != nil {
		r.failures.Add(1)
		r.log.Errorw("prepare failed", "error", err)
		if r.col != nil {
			r.col.RecordTaskFailure(r.name)
		}
	}

	next := r.strategy.First(time.Now())
	for {
		r.setState(types.TaskWaiting)
		if !r.waitUntil(next) {
			return
		}

		r.setState(types.TaskRunning)
		start := time.Now()
		err := r.safely(r.run.Invoke)
		elapsed := time.Since(start)

		r.runs.Add(1)
		if r.col != nil {
			r.col.RecordTaskRun(r.name, elapsed.Seconds())
		}
		if err != nil {
			r.failures.Add(1)
			r.log.Errorw("invoke failed", "error", err)
			if r.col != nil {
				r.col.RecordTaskFailure(r.name)
			}
		}

		next = r.strategy.Next(time.Now())
	}
}

// waitUntil sleeps until t or until Stop is called. Returns false on stop.
func (r *Runner) waitUntil(t time.Time) bool {
	// Observe shutdown first even if the timer is already due.
	select {
	case <-r.stopCh:
		return false
	default:
	}

	d := time.Until(t)
	if d < 0 {
		d = 0
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-r.stopCh:
		return false
	}
}

// safely runs fn, converting a panic into an error. The store lock is
// released by the store's own defer before the panic reaches us.
func (r *Runner) safely(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("task %s panicked: %v", r.name, p)
		}
	}()
	return fn()
}
