// Package command maps qualified command names to callables with a declared
// parameter schema, and dispatches invocations with type-coerced arguments.
//
// Registration is explicit: the caller supplies the owner label, method
// name, and parameter schema instead of relying on runtime reflection.
package command

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrUnknownCommand is returned when a name resolves to nothing.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrDuplicateCommand is returned when a qualified name is registered twice.
	ErrDuplicateCommand = errors.New("duplicate command")
	// ErrMissingArgument is returned when a required parameter has no value.
	ErrMissingArgument = errors.New("missing argument")
	// ErrUnknownArgument is returned when a caller supplies an undeclared key.
	ErrUnknownArgument = errors.New("unknown argument")
	// ErrRegistryFrozen is returned when registering after traffic started.
	ErrRegistryFrozen = errors.New("command registry is frozen")
)

// Func is the callable behind a command. Arguments arrive keyed by declared
// parameter name, already coerced; the return value must be JSON-serializable.
type Func func(args map[string]any) (any, error)

// Param declares one command parameter. A nil Default marks it required.
type Param struct {
	Name    string
	Default any
}

// Descriptor is the immutable registry entry for one command.
type Descriptor struct {
	Name   string // qualified "owner.method"
	Params []Param
	fn     Func
}

// URL renders the GET invocation template listed by /cmds, e.g.
// "/cmd?name=doorBell.switchDoorBell&onoff=".
func (d *Descriptor) URL() string {
	u := "/cmd?name=" + d.Name
	for _, p := range d.Params {
		u += "&" + p.Name + "="
	}
	return u
}

func (d *Descriptor) param(name string) (Param, bool) {
	for _, p := range d.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// Registry holds commands in registration order. It is built once during
// startup; Freeze marks the end of registration, after which it is
// effectively read-only and safe for concurrent lookups without locking.
type Registry struct {
	mu     sync.Mutex
	byName map[string]*Descriptor
	order  []*Descriptor
	frozen bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*Descriptor),
	}
}

// Register adds a command under the qualified name "owner.method".
func (r *Registry) Register(owner, method string, params []Param, fn Func) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return ErrRegistryFrozen
	}
	name := owner + "." + method
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateCommand, name)
	}

	d := &Descriptor{Name: name, Params: params, fn: fn}
	r.byName[name] = d
	r.order = append(r.order, d)
	return nil
}

// Freeze ends the registration phase. Called by the application before any
// task or HTTP traffic starts.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// List returns all descriptors in registration order.
func (r *Registry) List() []*Descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Descriptor, len(r.order))
	copy(out, r.order)
	return out
}

// Resolve looks up a command by its qualified name.
func (r *Registry) Resolve(name string) (*Descriptor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	return d, nil
}

// Len returns the number of registered commands.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}
