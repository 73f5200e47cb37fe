// Package publish pushes periodic JSON snapshots of the shared data tree to
// an external sink, driven by the same runner machinery as worker tasks.
package publish

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hearthd/hearthd/internal/task"
)

// Handler receives the marshaled snapshots. Prepare runs once under the
// store lock before the publishing loop starts, so a handler can seed the
// tree with its own keys.
type Handler interface {
	Prepare(data map[string]any) error
	Publish(snapshot []byte) error
}

// Store is the slice of the shared store the publisher needs.
type Store interface {
	Update(fn func(data map[string]any) error) error
	Snapshot() map[string]any
}

type runnable struct {
	store Store
	h     Handler
}

// NewRunnable adapts a Handler into something a task runner can drive.
// The snapshot is taken under the store lock; marshaling and delivery
// happen outside it, so a slow sink never blocks the worker tasks.
func NewRunnable(store Store, h Handler) task.Runnable {
	return runnable{store: store, h: h}
}

func (r runnable) Prepare() error {
	return r.store.Update(r.h.Prepare)
}

func (r runnable) Invoke() error {
	snap := r.store.Snapshot()
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return r.h.Publish(payload)
}

// HTTPSink posts each snapshot to a fixed URL as application/json.
type HTTPSink struct {
	URL    string
	Client *http.Client
}

var defaultClient = &http.Client{Timeout: 10 * time.Second}

// Prepare is a no-op; the sink does not own any keys in the tree.
func (s *HTTPSink) Prepare(map[string]any) error { return nil }

// Publish delivers one snapshot. Any status outside 2xx is an error.
func (s *HTTPSink) Publish(snapshot []byte) error {
	client := s.Client
	if client == nil {
		client = defaultClient
	}

	resp, err := client.Post(s.URL, "application/json", bytes.NewReader(snapshot))
	if err != nil {
		return fmt.Errorf("failed to post snapshot to %s: %w", s.URL, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("snapshot post to %s returned %s", s.URL, resp.Status)
	}
	return nil
}
