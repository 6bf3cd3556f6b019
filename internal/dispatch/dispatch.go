// Package dispatch fans authenticated frames out to business-logic
// subscribers, in process and in registration order.
package dispatch

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Handler receives one authenticated frame and the handle of the connection
// it arrived on. Handlers run synchronously on the connection's read loop
// and are expected to be non-blocking.
type Handler func(msg map[string]any, connID string)

// LifecycleFunc observes a connection becoming or ceasing to be the active
// session.
type LifecycleFunc func(connID string)

// Dispatcher holds subscriber lists. Lifecycle registration is multi-slot:
// registering never overwrites an earlier subscriber.
type Dispatcher struct {
	mu           sync.RWMutex
	handlers     []Handler
	onConnect    []LifecycleFunc
	onDisconnect []LifecycleFunc
}

func New() *Dispatcher {
	return &Dispatcher{}
}

// Subscribe appends a frame handler. May be called any number of times.
func (d *Dispatcher) Subscribe(h Handler) {
	if h == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = append(d.handlers, h)
}

func (d *Dispatcher) OnConnect(fn LifecycleFunc) {
	if fn == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onConnect = append(d.onConnect, fn)
}

func (d *Dispatcher) OnDisconnect(fn LifecycleFunc) {
	if fn == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onDisconnect = append(d.onDisconnect, fn)
}

// Dispatch invokes every handler in registration order. A panicking handler
// is recovered and logged; the remaining handlers still run.
func (d *Dispatcher) Dispatch(msg map[string]any, connID string) {
	d.mu.RLock()
	handlers := d.handlers
	d.mu.RUnlock()
	for _, h := range handlers {
		invoke(func() { h(msg, connID) }, connID, "handler")
	}
}

func (d *Dispatcher) NotifyConnect(connID string) {
	d.mu.RLock()
	subs := d.onConnect
	d.mu.RUnlock()
	for _, fn := range subs {
		invoke(func() { fn(connID) }, connID, "connect subscriber")
	}
}

func (d *Dispatcher) NotifyDisconnect(connID string) {
	d.mu.RLock()
	subs := d.onDisconnect
	d.mu.RUnlock()
	for _, fn := range subs {
		invoke(func() { fn(connID) }, connID, "disconnect subscriber")
	}
}

func invoke(fn func(), connID, kind string) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("conn", connID).Interface("panic", r).Msgf("dispatch: %s panicked", kind)
		}
	}()
	fn()
}
