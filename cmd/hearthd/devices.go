package main

import (
	"errors"
	"math/rand"
	"sync"

	"github.com/hearthd/hearthd/internal/store"
)

// doorBell is a simulated switchable device. Its state lives both in the
// struct and mirrored into the shared tree so GET /data shows it.
type doorBell struct {
	mu    sync.Mutex
	state string
	st    *store.Store
}

func newDoorBell(st *store.Store) *doorBell {
	b := &doorBell{state: "on", st: st}
	b.st.Update(func(data map[string]any) error {
		data["doorBell"] = b.state
		return nil
	})
	return b
}

func (b *doorBell) switchDoorBell(args map[string]any) (any, error) {
	var next string
	switch v := args["onoff"].(type) {
	case string:
		if v != "on" && v != "off" {
			return nil, errors.New("onoff must be 'on', 'off', 0 or 1")
		}
		next = v
	case int64:
		if v >= 1 {
			next = "on"
		} else {
			next = "off"
		}
	case float64:
		if v >= 1 {
			next = "on"
		} else {
			next = "off"
		}
	default:
		return nil, errors.New("onoff must be 'on', 'off', 0 or 1")
	}

	b.mu.Lock()
	b.state = next
	b.mu.Unlock()

	err := b.st.Update(func(data map[string]any) error {
		data["doorBell"] = next
		return nil
	})
	return next, err
}

func (b *doorBell) getCurrentState(map[string]any) (any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state, nil
}

// temperatureTask simulates a basement probe wandering around 18 degrees
// and tracks the day's extremes.
type temperatureTask struct {
	current float64
}

func (t *temperatureTask) Prepare(data map[string]any) error {
	t.current = 18.0
	data["basement"] = map[string]any{
		"temperature": t.current,
		"min":         t.current,
		"max":         t.current,
	}
	return nil
}

func (t *temperatureTask) Invoke(data map[string]any) error {
	t.current += (rand.Float64() - 0.5)

	basement, ok := data["basement"].(map[string]any)
	if !ok {
		return errors.New("basement subtree missing")
	}
	basement["temperature"] = t.current
	if min, ok := basement["min"].(float64); ok && t.current < min {
		basement["min"] = t.current
	}
	if max, ok := basement["max"].(float64); ok && t.current > max {
		basement["max"] = t.current
	}
	return nil
}

// rolloverTask resets the temperature extremes to the current reading.
type rolloverTask struct{}

func (rolloverTask) Prepare(map[string]any) error { return nil }

func (rolloverTask) Invoke(data map[string]any) error {
	basement, ok := data["basement"].(map[string]any)
	if !ok {
		return nil
	}
	basement["min"] = basement["temperature"]
	basement["max"] = basement["temperature"]
	return nil
}
