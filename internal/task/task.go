// Package task defines the worker task contract and the runner that drives
// each task's prepare/invoke lifecycle on its own goroutine.
package task

// Task is a user-supplied unit of periodic work. Both methods receive the
// shared data tree and are only ever called while the store lock is held.
//
// Prepare runs exactly once before the task's loop starts; Invoke runs on
// every scheduled iteration until shutdown.
type Task interface {
	Prepare(data map[string]any) error
	Invoke(data map[string]any) error
}

// Store is the slice of the shared store a runner needs: scoped, lock-held
// access to the data tree.
type Store interface {
	Update(fn func(data map[string]any) error) error
}

// Runnable is what a Runner actually drives. Bind adapts a Task into one;
// other packages (publishing) provide their own implementations.
type Runnable interface {
	Prepare() error
	Invoke() error
}

type boundTask struct {
	store Store
	task  Task
}

// Bind couples a Task to the shared store so that every Prepare and Invoke
// call runs under the store lock.
func Bind(store Store, t Task) Runnable {
	return boundTask{store: store, task: t}
}

func (b boundTask) Prepare() error { return b.store.Update(b.task.Prepare) }

func (b boundTask) Invoke() error { return b.store.Update(b.task.Invoke) }

// Func adapts a bare function into a Task with a no-op Prepare.
type Func func(data map[string]any) error

func (f Func) Prepare(map[string]any) error { return nil }

func (f Func) Invoke(data map[string]any) error { return f(data) }
