// Package types defines the domain model shared between the hearthd host
// packages and the HTTP surface.
package types

// TaskState describes where a task runner currently is in its lifecycle.
type TaskState string

const (
	TaskCreated   TaskState = "created"   // runner constructed, loop not started
	TaskPreparing TaskState = "preparing" // one-time Prepare in progress
	TaskWaiting   TaskState = "waiting"   // sleeping until the next scheduled run
	TaskRunning   TaskState = "running"   // Invoke in progress
	TaskStopped   TaskState = "stopped"   // loop exited after shutdown
)

// TaskInfo is a point-in-time view of a task runner, served by GET /tasks.
type TaskInfo struct {
	Name     string    `json:"name"`
	State    TaskState `json:"state"`
	Runs     uint64    `json:"runs"`
	Failures uint64    `json:"failures"`
}
