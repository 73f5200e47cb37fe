// Package app wires the store, scheduler runners, command registry, and HTTP
// surface into one host process with a clean start/stop lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hearthd/hearthd/internal/api"
	"github.com/hearthd/hearthd/internal/command"
	"github.com/hearthd/hearthd/internal/config"
	"github.com/hearthd/hearthd/internal/metrics"
	"github.com/hearthd/hearthd/internal/publish"
	"github.com/hearthd/hearthd/internal/schedule"
	"github.com/hearthd/hearthd/internal/store"
	"github.com/hearthd/hearthd/internal/task"
	"github.com/hearthd/hearthd/pkg/types"
)

// ErrStarted is returned when registration happens after Start.
var ErrStarted = errors.New("application already started")

// ErrDuplicateTask is returned when two tasks share a name.
var ErrDuplicateTask = errors.New("duplicate task name")

// App is the host process. Build it, register tasks and commands, then
// Start. All registration must happen before Start.
type App struct {
	cfg      config.Config
	log      *zap.Logger
	store    *store.Store
	registry *command.Registry
	col      *metrics.Collector

	mu      sync.Mutex
	runners []*task.Runner
	started bool

	ln  net.Listener
	srv *http.Server
}

// New creates an app with an empty store and registry.
func New(cfg config.Config, logger *zap.Logger) *App {
	return &App{
		cfg:      cfg,
		log:      logger,
		store:    store.New(),
		registry: command.NewRegistry(),
		col:      metrics.NewCollector(),
	}
}

// Store returns the shared data tree.
func (a *App) Store() *store.Store { return a.store }

// Commands returns the registry for command registration.
func (a *App) Commands() *command.Registry { return a.registry }

// AddTask registers a worker task under the given scheduling strategy.
// Its Prepare and Invoke calls run with the store lock held.
func (a *App) AddTask(name string, t task.Task, strategy schedule.Strategy) error {
	return a.AddRunnable(name, task.Bind(a.store, t), strategy)
}

// AddRunnable registers a pre-bound runnable. Publishers and other work
// that manages its own store access enters here.
func (a *App) AddRunnable(name string, run task.Runnable, strategy schedule.Strategy) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return ErrStarted
	}
	for _, r := range a.runners {
		if r.Name() == name {
			return fmt.Errorf("%w: %s", ErrDuplicateTask, name)
		}
	}
	a.runners = append(a.runners, task.NewRunner(name, run, strategy, a.log, a.col))
	return nil
}

// AddPublisher registers a snapshot publisher on a fixed interval.
func (a *App) AddPublisher(name string, h publish.Handler, interval time.Duration) error {
	return a.AddRunnable(name, publish.NewRunnable(a.store, h), schedule.Interval(interval))
}

// TaskInfos reports the current state of every registered runner.
func (a *App) TaskInfos() []types.TaskInfo {
	a.mu.Lock()
	defer a.mu.Unlock()

	infos := make([]types.TaskInfo, 0, len(a.runners))
	for _, r := range a.runners {
		infos = append(infos, r.Info())
	}
	return infos
}

// Start freezes the registry, binds the listen address, and launches the
// HTTP server and every runner. The listener is bound synchronously so a
// taken port fails here, not in a goroutine.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return ErrStarted
	}

	a.registry.Freeze()
	dispatcher := command.NewDispatcher(a.registry, a.log, a.col)
	router := api.NewRouter(a.log, a.store, a.registry, dispatcher, a.TaskInfos, a.col)

	ln, err := net.Listen("tcp", a.cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.cfg.Server.Addr, err)
	}
	a.ln = ln
	a.srv = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: a.cfg.Server.ReadHeaderTimeout,
	}

	go func() {
		if err := a.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("http server exited", zap.Error(err))
		}
	}()

	for _, r := range a.runners {
		r.Start()
	}
	a.started = true

	a.log.Info("hearthd started",
		zap.String("addr", ln.Addr().String()),
		zap.Int("tasks", len(a.runners)),
		zap.Int("commands", a.registry.Len()))
	return nil
}

// Addr returns the bound listen address. Empty before Start.
func (a *App) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ln == nil {
		return ""
	}
	return a.ln.Addr().String()
}

// Stop shuts the process down: runners first so no task mutates the tree
// mid-drain, then the HTTP server with the configured grace period.
func (a *App) Stop() error {
	a.mu.Lock()
	runners := a.runners
	srv := a.srv
	a.mu.Unlock()

	for _, r := range runners {
		r.Stop()
	}
	for _, r := range runners {
		r.Wait()
	}

	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	a.log.Info("hearthd stopped")
	return nil
}
