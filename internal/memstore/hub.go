package memstore

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/nikolayk812/cartstate/internal/port"
)

// Hub is an in-process substrate shared by any number of handles, the way
// browser tabs of one origin share local storage.
type Hub struct {
	mu     sync.RWMutex
	values map[string]string
	subs   map[int]*subscription
	nextID int
}

type subscription struct {
	origin string
	key    string
	queue  *dispatcher
}

func NewHub() *Hub {
	return &Hub{
		values: map[string]string{},
		subs:   map[int]*subscription{},
	}
}

// Open returns a new handle with its own origin.
func (h *Hub) Open() *Handle {
	return &Handle{hub: h, origin: uuid.NewString()}
}

// Snapshot returns the raw stored value, for inspection in tests and tooling.
func (h *Hub) Snapshot(key string) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	v, ok := h.values[key]
	return v, ok
}

func (h *Hub) write(origin, key string, value *string) {
	change := port.Change{Key: key, Origin: origin}
	if value != nil {
		change.Value = *value
		change.Present = true
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if value == nil {
		delete(h.values, key)
	} else {
		h.values[key] = *value
	}

	// enqueued under the lock so every subscriber sees writes in commit order
	for _, s := range h.subs {
		if s.key == key && s.origin != origin {
			s.queue.push(change)
		}
	}
}

func (h *Hub) unsubscribe(id int) {
	h.mu.Lock()
	s, ok := h.subs[id]
	delete(h.subs, id)
	h.mu.Unlock()

	if ok {
		s.queue.stop()
	}
}

// Handle is one browsing context's view of the hub.
type Handle struct {
	hub    *Hub
	origin string
}

var _ port.Substrate = (*Handle)(nil)

func (h *Handle) Origin() string {
	return h.origin
}

func (h *Handle) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := h.hub.Snapshot(key)
	return v, ok, nil
}

func (h *Handle) Set(_ context.Context, key, value string) error {
	h.hub.write(h.origin, key, &value)
	return nil
}

func (h *Handle) Delete(_ context.Context, key string) error {
	h.hub.write(h.origin, key, nil)
	return nil
}

// Subscribe registers fn for changes to key made by other handles. Changes
// are delivered in write order on a goroutine owned by the subscription,
// until unsubscribe is called or ctx is done. A write carries the value held
// at delivery time, not at write time, so a late delivery never resurrects a
// value that was overwritten in the meantime.
func (h *Handle) Subscribe(ctx context.Context, key string, fn func(port.Change)) (func(), error) {
	queue := newDispatcher(func(c port.Change) {
		if c.Present {
			c.Value, c.Present = h.hub.Snapshot(c.Key)
		}
		fn(c)
	})

	h.hub.mu.Lock()
	id := h.hub.nextID
	h.hub.nextID++
	h.hub.subs[id] = &subscription{origin: h.origin, key: key, queue: queue}
	h.hub.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() { h.hub.unsubscribe(id) })
	}

	go func() {
		select {
		case <-ctx.Done():
			unsubscribe()
		case <-queue.done:
		}
	}()

	return unsubscribe, nil
}
