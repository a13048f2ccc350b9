package transport

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var ErrClosed = errors.New("transport is closed")

var pendingMetric = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "prover",
	Subsystem: "transport",
	Name:      "pending_messages",
	Help:      "Number of messages queued and not yet received, per flow",
}, []string{"flow"})

// Queue is an unbounded FIFO. Send never blocks.
//
// A queue is consumed either through Recv, by any number of goroutines, or by a single goroutine
// polling TryRecv when Ready fires. The two must not be mixed on one queue.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool

	pending prometheus.Gauge

	notify chan struct{}
	done   chan struct{}

	pumpOnce sync.Once
	out      chan T
}

func NewQueue[T any](flow string) *Queue[T] {
	return &Queue[T]{
		pending: pendingMetric.WithLabelValues(flow),
		notify:  make(chan struct{}, 1),
		done:    make(chan struct{}),
		out:     make(chan T),
	}
}

func (q *Queue[T]) Send(item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	q.items = append(q.items, item)
	q.pending.Inc()
	q.signal()
	return nil
}

func (q *Queue[T]) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// TryRecv pops the oldest item without blocking. Once the queue is closed it returns ErrClosed.
// An item sent before TryRecv is called is always returned by it (or an earlier call).
func (q *Queue[T]) TryRecv() (T, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var zero T
	if q.closed {
		return zero, false, ErrClosed
	}
	item, ok := q.pop()
	return item, ok, nil
}

// Ready fires after a Send or Close. It may fire spuriously.
func (q *Queue[T]) Ready() <-chan struct{} {
	return q.notify
}

// Recv returns the delivery channel. It is closed once the queue is closed.
// Several goroutines may receive from it; each item is delivered to exactly one of them.
func (q *Queue[T]) Recv() <-chan T {
	q.pumpOnce.Do(func() { go q.pump() })
	return q.out
}

// Close stops the queue. Undelivered items are discarded. It is safe to call Close more than once.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.pending.Sub(float64(len(q.items)))
	q.items = nil
	close(q.done)
	q.signal()
}

// pop must be called with mu held.
func (q *Queue[T]) pop() (T, bool) {
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	item := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	q.pending.Dec()
	return item, true
}

func (q *Queue[T]) pump() {
	defer close(q.out)
	for {
		q.mu.Lock()
		item, ok := q.pop()
		q.mu.Unlock()
		if !ok {
			select {
			case <-q.notify:
				continue
			case <-q.done:
				return
			}
		}

		select {
		case q.out <- item:
		case <-q.done:
			return
		}
	}
}
