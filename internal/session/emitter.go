package session

import "sync"

// subscription is one registered handler.
type subscription struct {
	handler Handler
	once    bool
}

// Emitter is a concurrency-safe event registry. Session implementations embed
// it to provide On and Once and call Emit from their event loop.
type Emitter struct {
	mu       sync.Mutex
	nextID   uint64
	handlers map[string]map[uint64]subscription
}

// NewEmitter creates an empty Emitter.
func NewEmitter() *Emitter {
	return &Emitter{
		handlers: make(map[string]map[uint64]subscription),
	}
}

// On subscribes h to event until the returned function is called.
func (e *Emitter) On(event string, h Handler) func() {
	return e.add(event, subscription{handler: h})
}

// Once subscribes h to the next occurrence of event.
func (e *Emitter) Once(event string, h Handler) func() {
	return e.add(event, subscription{handler: h, once: true})
}

func (e *Emitter) add(event string, sub subscription) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.handlers == nil {
		e.handlers = make(map[string]map[uint64]subscription)
	}
	if e.handlers[event] == nil {
		e.handlers[event] = make(map[uint64]subscription)
	}
	e.nextID++
	id := e.nextID
	e.handlers[event][id] = sub

	var once sync.Once
	return func() {
		once.Do(func() { e.remove(event, id) })
	}
}

func (e *Emitter) remove(event string, id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	subs := e.handlers[event]
	delete(subs, id)
	if len(subs) == 0 {
		delete(e.handlers, event)
	}
}

// Emit delivers ev to every current subscriber of ev.Method.
// One-shot subscriptions are removed before their handler runs, so a handler
// that re-subscribes does not receive the same event twice.
func (e *Emitter) Emit(ev Event) {
	e.mu.Lock()
	subs := e.handlers[ev.Method]
	handlers := make([]Handler, 0, len(subs))
	for id, sub := range subs {
		handlers = append(handlers, sub.handler)
		if sub.once {
			delete(subs, id)
		}
	}
	if len(subs) == 0 {
		delete(e.handlers, ev.Method)
	}
	e.mu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
}

// ListenerCount returns how many handlers are subscribed to event.
func (e *Emitter) ListenerCount(event string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.handlers[event])
}

// Events returns the names of all events that currently have subscribers.
func (e *Emitter) Events() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	names := make([]string, 0, len(e.handlers))
	for name := range e.handlers {
		names = append(names, name)
	}
	return names
}
