// Package api exposes the shared data tree and the command registry over
// HTTP as JSON: data reads, command listing, and command invocation via GET
// query strings or a POST body that is echoed back augmented with the result.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hearthd/hearthd/internal/command"
	"github.com/hearthd/hearthd/internal/metrics"
	"github.com/hearthd/hearthd/internal/store"
	"github.com/hearthd/hearthd/pkg/types"
)

// DataReader is the read-only slice of the store the API needs.
type DataReader interface {
	Read(path ...string) (any, error)
}

// TaskLister reports the current runner states for GET /tasks.
type TaskLister func() []types.TaskInfo

type handlers struct {
	data       DataReader
	registry   *command.Registry
	dispatcher *command.Dispatcher
	tasks      TaskLister
	col        *metrics.Collector
}

// NewRouter builds the gin engine serving the full HTTP surface.
// col and tasks may be nil; the corresponding endpoints degrade gracefully.
func NewRouter(logger *zap.Logger, data DataReader, registry *command.Registry, dispatcher *command.Dispatcher, tasks TaskLister, col *metrics.Collector) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	h := &handlers{
		data:       data,
		registry:   registry,
		dispatcher: dispatcher,
		tasks:      tasks,
		col:        col,
	}

	r := gin.New()
	r.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	r.Use(ginzap.RecoveryWithZap(logger, true))
	if col != nil {
		r.Use(func(c *gin.Context) {
			c.Next()
			col.RecordHTTPRequest(c.Request.Method, strconv.Itoa(c.Writer.Status()))
		})
	}

	r.HandleMethodNotAllowed = true
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"Error": "method not allowed"})
	})
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"Error": "not found"})
	})

	r.GET("/data", h.getData)
	r.GET("/data/*path", h.getData)
	r.GET("/cmds", h.listCommands)
	r.GET("/cmd", h.invokeGet)
	r.POST("/", h.invokePost)
	r.GET("/tasks", h.listTasks)
	if col != nil {
		r.GET("/metrics", gin.WrapH(col.Handler()))
	}
	return r
}

// getData serves GET /data and GET /data/<k1>/<k2>/... — the store read
// happens under the lock, the JSON encoding on the returned snapshot.
func (h *handlers) getData(c *gin.Context) {
	raw := strings.Trim(c.Param("path"), "/")
	var path []string
	if raw != "" {
		path = strings.Split(raw, "/")
	}

	v, err := h.data.Read(path...)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"Error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"Error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, v)
}

// listCommands serves GET /cmds in registration order.
func (h *handlers) listCommands(c *gin.Context) {
	descriptors := h.registry.List()
	cmds := make([]gin.H, 0, len(descriptors))
	for _, d := range descriptors {
		args := make(map[string]any, len(d.Params))
		for _, p := range d.Params {
			if p.Default != nil {
				args[p.Name] = p.Default
			} else {
				args[p.Name] = ""
			}
		}
		cmds = append(cmds, gin.H{
			"Command": gin.H{
				"Name": d.Name,
				"Args": args,
				"URL":  d.URL(),
			},
		})
	}
	c.JSON(http.StatusOK, gin.H{"Commands": cmds})
}

// invokeGet serves GET /cmd?name=X&a=1&b=2. Query values arrive as strings
// and go through the dispatcher's ordered-attempt coercion.
func (h *handlers) invokeGet(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"Error": "missing 'name' query parameter"})
		return
	}

	args := make(map[string]any)
	for key, values := range c.Request.URL.Query() {
		if key == "name" || len(values) == 0 {
			continue
		}
		args[key] = values[0]
	}

	result, err := h.dispatcher.Invoke(name, args)
	body := gin.H{"Name": name, "Args": args}
	if err != nil {
		var execErr *command.ExecError
		if errors.As(err, &execErr) {
			// Command failures are data, not transport errors.
			body["Result"] = gin.H{"Error": execErr.Err.Error()}
			c.JSON(http.StatusOK, gin.H{"Command": body})
			return
		}
		h.writeProtocolError(c, err)
		return
	}
	body["Result"] = result
	c.JSON(http.StatusOK, gin.H{"Command": body})
}

// invokePost serves POST / with a {"Command":{"Name",...,"Args":{...}}}
// body. The response is the caller's entire document with Result inserted
// into its Command object; sibling fields ride along untouched.
func (h *handlers) invokePost(c *gin.Context) {
	var doc map[string]any
	if err := c.ShouldBindJSON(&doc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"Error": "malformed JSON body"})
		return
	}

	cmdObj, ok := doc["Command"].(map[string]any)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"Error": "payload must contain a 'Command' object"})
		return
	}
	name, ok := cmdObj["Name"].(string)
	if !ok || name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"Error": "'Command' object must contain a 'Name'"})
		return
	}

	args := make(map[string]any)
	if rawArgs, present := cmdObj["Args"]; present {
		args, ok = rawArgs.(map[string]any)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"Error": "'Args' must be an object"})
			return
		}
	}

	result, err := h.dispatcher.Invoke(name, args)
	if err != nil {
		var execErr *command.ExecError
		if errors.As(err, &execErr) {
			cmdObj["Result"] = gin.H{"Error": execErr.Err.Error()}
			c.JSON(http.StatusOK, doc)
			return
		}
		h.writeProtocolError(c, err)
		return
	}

	cmdObj["Result"] = result
	c.JSON(http.StatusOK, doc)
}

// listTasks serves GET /tasks with the runner states.
func (h *handlers) listTasks(c *gin.Context) {
	infos := []types.TaskInfo{}
	if h.tasks != nil {
		infos = h.tasks()
	}
	c.JSON(http.StatusOK, gin.H{"Tasks": infos})
}

// writeProtocolError maps dispatcher protocol errors to client status codes.
func (h *handlers) writeProtocolError(c *gin.Context, err error) {
	status := http.StatusBadRequest
	if errors.Is(err, command.ErrUnknownCommand) {
		status = http.StatusNotFound
	}
	c.JSON(status, gin.H{"Error": err.Error()})
}
