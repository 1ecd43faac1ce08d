package observability

import (
	"sync"
	"sync/atomic"

	"github.com/hupe1980/agentgraph/core"
)

// DefaultBufferSize is the queue length used when NewAsyncObserver gets a non-positive size.
const DefaultBufferSize = 256

// AsyncObserver delivers events to another observer from a single background
// goroutine. Observe never blocks: when the queue is full the event is
// dropped and counted.
type AsyncObserver struct {
	next    core.Observer
	queue   chan core.Event
	done    chan struct{}
	dropped atomic.Uint64

	mu     sync.RWMutex
	closed bool
}

// NewAsyncObserver starts the delivery goroutine. Call Close to flush and stop it.
func NewAsyncObserver(next core.Observer, size int) *AsyncObserver {
	if size <= 0 {
		size = DefaultBufferSize
	}

	a := &AsyncObserver{
		next:  core.ObserverOrNoOp(next),
		queue: make(chan core.Event, size),
		done:  make(chan struct{}),
	}

	go a.loop()

	return a
}

func (a *AsyncObserver) loop() {
	defer close(a.done)

	for e := range a.queue {
		a.deliver(e)
	}
}

// deliver shields the loop from panicking observers.
func (a *AsyncObserver) deliver(e core.Event) {
	defer func() { _ = recover() }()

	a.next.Observe(e)
}

// Observe implements core.Observer.
func (a *AsyncObserver) Observe(e core.Event) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		a.dropped.Add(1)
		return
	}

	select {
	case a.queue <- e:
	default:
		a.dropped.Add(1)
	}
}

// Dropped returns the number of events discarded so far.
func (a *AsyncObserver) Dropped() uint64 { return a.dropped.Load() }

// Close stops accepting events, delivers everything queued and waits for
// the delivery goroutine to exit. It is safe to call more than once.
func (a *AsyncObserver) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	<-a.done
}
