package duel

import "sync"

// Signal is an event source a handler can subscribe to.
// The returned func removes the handler and is safe to call more than once.
type Signal interface {
	Subscribe(handler func()) (unsubscribe func())
}

// Emitter is a Signal that can be fired by its owner.
type Emitter struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[int]func()
}

// Subscribe registers handler to run on every Emit
func (e *Emitter) Subscribe(handler func()) func() {
	e.mu.Lock()
	if e.handlers == nil {
		e.handlers = make(map[int]func())
	}
	id := e.nextID
	e.nextID++
	e.handlers[id] = handler
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.handlers, id)
			e.mu.Unlock()
		})
	}
}

// Emit calls every subscribed handler. Handlers run outside the emitter's lock,
// so they may subscribe or unsubscribe.
func (e *Emitter) Emit() {
	e.mu.RLock()
	snapshot := make([]func(), 0, len(e.handlers))
	for _, h := range e.handlers {
		snapshot = append(snapshot, h)
	}
	e.mu.RUnlock()

	for _, h := range snapshot {
		h()
	}
}

// Listeners returns the number of subscribed handlers
func (e *Emitter) Listeners() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.handlers)
}
