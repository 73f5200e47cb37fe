package publish

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthd/hearthd/internal/store"
)

type recordingHandler struct {
	prepared atomic.Bool
	payloads [][]byte
	err      error
}

func (h *recordingHandler) Prepare(data map[string]any) error {
	h.prepared.Store(true)
	data["publisher"] = "ready"
	return nil
}

func (h *recordingHandler) Publish(snapshot []byte) error {
	h.payloads = append(h.payloads, snapshot)
	return h.err
}

func TestRunnablePublishesSnapshot(t *testing.T) {
	st := store.New()
	require.NoError(t, st.Update(func(data map[string]any) error {
		data["doorBell"] = "on"
		return nil
	}))

	h := &recordingHandler{}
	run := NewRunnable(st, h)

	require.NoError(t, run.Prepare())
	assert.True(t, h.prepared.Load())

	require.NoError(t, run.Invoke())
	require.Len(t, h.payloads, 1)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(h.payloads[0], &doc))
	assert.Equal(t, "on", doc["doorBell"])
	assert.Equal(t, "ready", doc["publisher"])
}

// The sink runs outside the store lock, so a handler that needs the store
// during Publish must not deadlock.
type reentrantHandler struct {
	st *store.Store
}

func (h *reentrantHandler) Prepare(map[string]any) error { return nil }

func (h *reentrantHandler) Publish([]byte) error {
	return h.st.Update(func(data map[string]any) error {
		data["lastPublish"] = "done"
		return nil
	})
}

func TestPublishRunsOutsideStoreLock(t *testing.T) {
	st := store.New()
	run := NewRunnable(st, &reentrantHandler{st: st})

	require.NoError(t, run.Invoke())

	v, err := st.Read("lastPublish")
	require.NoError(t, err)
	assert.Equal(t, "done", v)
}

func TestHTTPSinkPublish(t *testing.T) {
	var got atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var doc map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&doc))
		got.Store(doc)
	}))
	defer srv.Close()

	sink := &HTTPSink{URL: srv.URL, Client: srv.Client()}
	require.NoError(t, sink.Publish([]byte(`{"doorBell":"off"}`)))

	doc := got.Load().(map[string]any)
	assert.Equal(t, "off", doc["doorBell"])
}

func TestHTTPSinkRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	sink := &HTTPSink{URL: srv.URL, Client: srv.Client()}
	err := sink.Publish([]byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestHTTPSinkUnreachable(t *testing.T) {
	sink := &HTTPSink{URL: "http://127.0.0.1:1/ingest"}
	assert.Error(t, sink.Publish([]byte(`{}`)))
}
