package command

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/hearthd/hearthd/internal/metrics"
)

// ExecError wraps an error raised by the command callable itself. The HTTP
// layer surfaces it as data inside the response rather than as a transport
// failure, so frontends can render it without error handling.
type ExecError struct {
	Name string
	Err  error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("command %s failed: %v", e.Name, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

// Dispatcher resolves command names and invokes them with bound, coerced
// arguments.
type Dispatcher struct {
	registry *Registry
	log      *zap.SugaredLogger
	col      *metrics.Collector
}

// NewDispatcher creates a dispatcher over the given registry. col may be nil.
func NewDispatcher(registry *Registry, logger *zap.Logger, col *metrics.Collector) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		log:      logger.Sugar(),
		col:      col,
	}
}

// Invoke resolves name, binds rawArgs against the declared schema and calls
// the command. Argument binding rules:
//   - undeclared keys are rejected with ErrUnknownArgument
//   - absent parameters fall back to their default, or ErrMissingArgument
//   - string values go through the ordered-attempt coercion (Coerce)
//
// A callable error comes back as *ExecError; everything else is a protocol
// error.
func (d *Dispatcher) Invoke(name string, rawArgs map[string]any) (any, error) {
	desc, err := d.registry.Resolve(name)
	if err != nil {
		return nil, err
	}

	for key := range rawArgs {
		if _, ok := desc.param(key); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownArgument, key)
		}
	}

	args := make(map[string]any, len(desc.Params))
	for _, p := range desc.Params {
		raw, ok := rawArgs[p.Name]
		if !ok {
			if p.Default == nil {
				return nil, fmt.Errorf("%w: %s", ErrMissingArgument, p.Name)
			}
			args[p.Name] = p.Default
			continue
		}
		args[p.Name] = Coerce(raw)
	}

	result, err := desc.fn(args)
	if d.col != nil {
		d.col.RecordCommand(name, err != nil)
	}
	if err != nil {
		d.log.Warnw("command raised an error", "command", name, "error", err)
		return nil, &ExecError{Name: name, Err: err}
	}
	return result, nil
}

// Coerce converts a raw string argument by ordered attempt: integer, then
// float, then the boolean literals "true"/"false" (case-insensitive), else
// the string stays a string. Non-string values (typed JSON from a POST
// body) pass through untouched. The attempt order is a compatibility
// contract: "1" is the integer 1, never a boolean.
func Coerce(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	}
	return s
}
