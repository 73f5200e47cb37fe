package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hearthd/hearthd/internal/command"
	"github.com/hearthd/hearthd/internal/metrics"
	"github.com/hearthd/hearthd/internal/store"
	"github.com/hearthd/hearthd/pkg/types"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()

	st := store.New()
	require.NoError(t, st.Update(func(data map[string]any) error {
		data["basement"] = map[string]any{"temperature": 18.5}
		data["doorBell"] = "on"
		return nil
	}))

	registry := command.NewRegistry()
	require.NoError(t, registry.Register("doorBell", "switchDoorBell",
		[]command.Param{{Name: "onoff"}},
		func(args map[string]any) (any, error) {
			switch v := args["onoff"].(type) {
			case string:
				return v, nil
			case int64:
				if v >= 1 {
					return "on", nil
				}
				return "off", nil
			default:
				return nil, errors.New("state must be int or string")
			}
		}))
	require.NoError(t, registry.Register("doorBell", "getCurrentState", nil,
		func(map[string]any) (any, error) { return "on", nil }))
	require.NoError(t, registry.Register("siren", "test",
		[]command.Param{{Name: "volume", Default: 5}},
		func(args map[string]any) (any, error) { return args["volume"], nil }))
	registry.Freeze()

	logger := zap.NewNop()
	dispatcher := command.NewDispatcher(registry, logger, nil)
	tasks := func() []types.TaskInfo {
		return []types.TaskInfo{{Name: "cellar", State: types.TaskWaiting, Runs: 7}}
	}
	return NewRouter(logger, st, registry, dispatcher, tasks, metrics.NewCollector())
}

func doRequest(t *testing.T, r *gin.Engine, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var doc map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	return doc
}

func TestGetDataWholeTree(t *testing.T) {
	r := newTestRouter(t)
	rec := doRequest(t, r, http.MethodGet, "/data", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	doc := decodeBody(t, rec)
	assert.Equal(t, "on", doc["doorBell"])
}

func TestGetDataNestedPath(t *testing.T) {
	r := newTestRouter(t)
	rec := doRequest(t, r, http.MethodGet, "/data/basement/temperature", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "18.5", strings.TrimSpace(rec.Body.String()))
}

func TestGetDataUnknownPath(t *testing.T) {
	r := newTestRouter(t)

	rec := doRequest(t, r, http.MethodGet, "/data/attic", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decodeBody(t, rec), "Error")

	// Descending through a scalar leaf is NotFound too.
	rec = doRequest(t, r, http.MethodGet, "/data/doorBell/state", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListCommands(t *testing.T) {
	r := newTestRouter(t)
	rec := doRequest(t, r, http.MethodGet, "/cmds", "")
	require.Equal(t, http.StatusOK, rec.Code)

	doc := decodeBody(t, rec)
	cmds, ok := doc["Commands"].([]any)
	require.True(t, ok)
	require.Len(t, cmds, 3)

	// Registration order is preserved.
	first := cmds[0].(map[string]any)["Command"].(map[string]any)
	assert.Equal(t, "doorBell.switchDoorBell", first["Name"])
	assert.Equal(t, "/cmd?name=doorBell.switchDoorBell&onoff=", first["URL"])
	assert.Equal(t, map[string]any{"onoff": ""}, first["Args"])

	// Defaults show up in the listing.
	third := cmds[2].(map[string]any)["Command"].(map[string]any)
	assert.Equal(t, map[string]any{"volume": 5.0}, third["Args"])
}

func TestInvokeViaGet(t *testing.T) {
	r := newTestRouter(t)
	rec := doRequest(t, r, http.MethodGet, "/cmd?name=doorBell.switchDoorBell&onoff=off", "")
	require.Equal(t, http.StatusOK, rec.Code)

	cmd := decodeBody(t, rec)["Command"].(map[string]any)
	assert.Equal(t, "doorBell.switchDoorBell", cmd["Name"])
	assert.Equal(t, "off", cmd["Result"])
	assert.Equal(t, map[string]any{"onoff": "off"}, cmd["Args"])
}

func TestInvokeViaGetCoercesQueryValues(t *testing.T) {
	r := newTestRouter(t)
	// "1" must arrive as the integer 1, mapping to "on".
	rec := doRequest(t, r, http.MethodGet, "/cmd?name=doorBell.switchDoorBell&onoff=1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	cmd := decodeBody(t, rec)["Command"].(map[string]any)
	assert.Equal(t, "on", cmd["Result"])
}

func TestInvokeViaGetErrors(t *testing.T) {
	r := newTestRouter(t)

	rec := doRequest(t, r, http.MethodGet, "/cmd?name=nobody.home", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, r, http.MethodGet, "/cmd?name=doorBell.switchDoorBell", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, r, http.MethodGet, "/cmd", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInvokeViaGetCommandErrorIsData(t *testing.T) {
	r := newTestRouter(t)
	// A boolean state is rejected by the command itself: transport-level
	// success, error in the Result payload.
	rec := doRequest(t, r, http.MethodGet, "/cmd?name=doorBell.switchDoorBell&onoff=true", "")
	require.Equal(t, http.StatusOK, rec.Code)

	cmd := decodeBody(t, rec)["Command"].(map[string]any)
	result := cmd["Result"].(map[string]any)
	assert.Contains(t, result["Error"], "state must be int or string")
}

func TestInvokePostPassThrough(t *testing.T) {
	r := newTestRouter(t)
	body := `{"Command":{"Name":"doorBell.getCurrentState","Args":{}},"elementId":"btn1"}`
	rec := doRequest(t, r, http.MethodPost, "/", body)
	require.Equal(t, http.StatusOK, rec.Code)

	doc := decodeBody(t, rec)
	// Sibling fields supplied by the caller survive untouched.
	assert.Equal(t, "btn1", doc["elementId"])
	cmd := doc["Command"].(map[string]any)
	assert.Equal(t, "doorBell.getCurrentState", cmd["Name"])
	assert.Equal(t, "on", cmd["Result"])
}

func TestInvokePostTypedArgs(t *testing.T) {
	r := newTestRouter(t)
	body := `{"Command":{"Name":"doorBell.switchDoorBell","Args":{"onoff":"off"}}}`
	rec := doRequest(t, r, http.MethodPost, "/", body)
	require.Equal(t, http.StatusOK, rec.Code)

	cmd := decodeBody(t, rec)["Command"].(map[string]any)
	assert.Equal(t, "off", cmd["Result"])
}

func TestInvokePostArgsOptional(t *testing.T) {
	r := newTestRouter(t)
	body := `{"Command":{"Name":"doorBell.getCurrentState"}}`
	rec := doRequest(t, r, http.MethodPost, "/", body)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestInvokePostBadRequests(t *testing.T) {
	r := newTestRouter(t)

	rec := doRequest(t, r, http.MethodPost, "/", `{"Command":{"Name"`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, r, http.MethodPost, "/", `{"NotACommand":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, r, http.MethodPost, "/", `{"Command":{"Args":{}}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, r, http.MethodPost, "/", `{"Command":{"Name":"nobody.home"}}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInvokePostCommandErrorIsData(t *testing.T) {
	r := newTestRouter(t)
	body := `{"Command":{"Name":"doorBell.switchDoorBell","Args":{"onoff":true}},"elementId":"btn1"}`
	rec := doRequest(t, r, http.MethodPost, "/", body)
	require.Equal(t, http.StatusOK, rec.Code)

	doc := decodeBody(t, rec)
	assert.Equal(t, "btn1", doc["elementId"])
	result := doc["Command"].(map[string]any)["Result"].(map[string]any)
	assert.Contains(t, result["Error"], "state must be int or string")
}

func TestListTasks(t *testing.T) {
	r := newTestRouter(t)
	rec := doRequest(t, r, http.MethodGet, "/tasks", "")
	require.Equal(t, http.StatusOK, rec.Code)

	doc := decodeBody(t, rec)
	tasks := doc["Tasks"].([]any)
	require.Len(t, tasks, 1)
	info := tasks[0].(map[string]any)
	assert.Equal(t, "cellar", info["name"])
	assert.Equal(t, "waiting", info["state"])
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestRouter(t)
	rec := doRequest(t, r, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUnknownRouteAndMethod(t *testing.T) {
	r := newTestRouter(t)

	rec := doRequest(t, r, http.MethodGet, "/nothing/here", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, r, http.MethodPut, "/data", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
