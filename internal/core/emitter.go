package core

import (
	"sync"
)

type (
	ListenerID uint64
	Handler    func(Event)
)

// Emitter is the listener-registration surface every SDK object exposes.
type Emitter interface {
	On(name EventName, fn Handler) ListenerID
	Off(id ListenerID)
}

type listener struct {
	id   ListenerID
	name EventName
	fn   Handler
}

// Listeners is a threadsafe Emitter implementation for SDK backends.
// Handlers run on the emitting goroutine, outside the lock, in registration order.
type Listeners struct {
	mu     sync.RWMutex
	nextID ListenerID
	list   []listener
}

func (l *Listeners) On(name EventName, fn Handler) ListenerID {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	l.list = append(l.list, listener{id: l.nextID, name: name, fn: fn})
	return l.nextID
}

func (l *Listeners) Off(id ListenerID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, ln := range l.list {
		if ln.id == id {
			l.list = append(l.list[:i:i], l.list[i+1:]...)
			return
		}
	}
}

// Emit delivers payload to every handler registered for name.
func (l *Listeners) Emit(name EventName, payload any) {
	l.mu.RLock()
	fns := make([]Handler, 0, len(l.list))
	for _, ln := range l.list {
		if ln.name == name {
			fns = append(fns, ln.fn)
		}
	}
	l.mu.RUnlock()

	evt := Event{Name: name, Payload: payload}
	for _, fn := range fns {
		fn(evt)
	}
}

// Count reports how many handlers are registered for name.
func (l *Listeners) Count(name EventName) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for _, ln := range l.list {
		if ln.name == name {
			n++
		}
	}
	return n
}

// Binding is the token returned by an attach. Release consumes it.
type Binding struct {
	mu      sync.Mutex
	emitter Emitter
	ids     []ListenerID
}

// Bind registers every handler in handlers on e and returns the token that undoes it.
func Bind(e Emitter, handlers map[EventName]Handler) *Binding {
	b := &Binding{emitter: e, ids: make([]ListenerID, 0, len(handlers))}
	for name, fn := range handlers {
		b.ids = append(b.ids, e.On(name, fn))
	}
	return b
}

// Release unregisters the handlers. Safe to call more than once and on nil.
func (b *Binding) Release() {
	if b == nil {
		return
	}
	b.mu.Lock()
	ids := b.ids
	b.ids = nil
	b.mu.Unlock()
	for _, id := range ids {
		b.emitter.Off(id)
	}
}
