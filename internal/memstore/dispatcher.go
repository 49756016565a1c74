package memstore

import (
	"sync"
	"sync/atomic"

	"github.com/nikolayk812/cartstate/internal/port"
)

// dispatcher delivers changes to one callback in FIFO order without ever
// blocking the writer.
type dispatcher struct {
	fn func(port.Change)

	mu      sync.Mutex
	pending []port.Change

	wake    chan struct{}
	done    chan struct{}
	stopped chan struct{}

	stopOnce   sync.Once
	delivering atomic.Bool
}

func newDispatcher(fn func(port.Change)) *dispatcher {
	d := &dispatcher{
		fn:      fn,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *dispatcher) push(c port.Change) {
	d.mu.Lock()
	d.pending = append(d.pending, c)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// stop waits for an in-flight callback to return. Pending changes are dropped.
// While a callback is running stop returns at once, so the callback itself may
// unsubscribe; no further callback starts either way.
func (d *dispatcher) stop() {
	d.stopOnce.Do(func() { close(d.done) })
	if d.delivering.Load() {
		return
	}
	<-d.stopped
}

func (d *dispatcher) run() {
	defer close(d.stopped)

	for {
		select {
		case <-d.done:
			return
		case <-d.wake:
		}

		for {
			c, ok := d.next()
			if !ok {
				break
			}

			select {
			case <-d.done:
				return
			default:
			}

			d.delivering.Store(true)
			d.fn(c)
			d.delivering.Store(false)
		}
	}
}

func (d *dispatcher) next() (port.Change, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.pending) == 0 {
		return port.Change{}, false
	}
	c := d.pending[0]
	d.pending = d.pending[1:]
	return c, true
}
