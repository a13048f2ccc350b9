// Package queue runs proving tasks one at a time and keeps their results for retrieval.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/pico-network/prover/logging"
	"github.com/pico-network/prover/shared"
	"github.com/pico-network/prover/store"
)

const (
	DefaultCacheSize  = 1024
	DefaultIntakeSize = 64
)

var ErrNotFound = errors.New("proof not found")

var (
	tasksMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "prover",
		Subsystem: "queue",
		Name:      "tasks_total",
		Help:      "Number of tasks processed by the queue by result",
	}, []string{"result"})

	lookupsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "prover",
		Subsystem: "queue",
		Name:      "lookups_total",
		Help:      "Number of proof lookups by the tier that answered them",
	}, []string{"tier"})

	pendingMetric = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "prover",
		Subsystem: "queue",
		Name:      "pending_tasks",
		Help:      "Number of tasks waiting to be proved",
	})
)

//go:generate mockgen -package mocks -destination mocks/queue.go . Prover,Store

type Prover interface {
	Prove(ctx context.Context, task shared.ProvingTask) ([]byte, error)
}

// Store is the durable tier. Lookups must not remove the proof and report a missing proof with
// store.ErrNotFound.
type Store interface {
	Upsert(ctx context.Context, key shared.TaskKey, proof []byte) error
	Lookup(ctx context.Context, key shared.TaskKey) ([]byte, error)
}

type Output struct {
	Proof []byte
}

type Queue struct {
	prover Prover
	store  Store
	intake chan shared.ProvingTask

	// guards get-and-remove on outputs
	mu      sync.Mutex
	outputs *lru.Cache

	cacheSize  int
	intakeSize int
}

type newQueueOptionFunc func(*Queue)

// WithCacheSize bounds the number of proofs kept in memory.
func WithCacheSize(size int) newQueueOptionFunc {
	return func(q *Queue) {
		q.cacheSize = size
	}
}

func WithIntakeSize(size int) newQueueOptionFunc {
	return func(q *Queue) {
		q.intakeSize = size
	}
}

func New(prover Prover, durable Store, opts ...newQueueOptionFunc) (*Queue, error) {
	q := &Queue{
		prover:     prover,
		store:      durable,
		cacheSize:  DefaultCacheSize,
		intakeSize: DefaultIntakeSize,
	}
	for _, opt := range opts {
		opt(q)
	}
	cache, err := lru.New(q.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating output cache: %w", err)
	}
	q.outputs = cache
	q.intake = make(chan shared.ProvingTask, q.intakeSize)
	return q, nil
}

// Submit enqueues a task. It blocks while the intake is full.
func (q *Queue) Submit(ctx context.Context, task shared.ProvingTask) error {
	select {
	case q.intake <- task:
		pendingMetric.Inc()
		logging.FromContext(ctx).Debug("task submitted", zap.Object("task", task.Key))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run proves submitted tasks one at a time until ctx is canceled.
func (q *Queue) Run(ctx context.Context) error {
	logger := logging.FromContext(ctx).Named("queue")
	logger.Info("proving queue started")
	for {
		select {
		case <-ctx.Done():
			logger.Info("proving queue stopped")
			return nil
		case task := <-q.intake:
			pendingMetric.Dec()
			q.process(logging.NewContext(ctx, logger), task)
		}
	}
}

func (q *Queue) process(ctx context.Context, task shared.ProvingTask) {
	logger := logging.FromContext(ctx).With(zap.Object("task", task.Key))
	proof, err := q.prover.Prove(ctx, task)
	if err != nil {
		tasksMetric.WithLabelValues("failed").Inc()
		logger.Error("failed to prove task", zap.Error(err))
		return
	}
	tasksMetric.WithLabelValues("proved").Inc()

	q.mu.Lock()
	if evicted := q.outputs.Add(task.Key, Output{Proof: proof}); evicted {
		logger.Debug("evicted the oldest proof from memory")
	}
	q.mu.Unlock()

	if err := q.store.Upsert(ctx, task.Key, proof); err != nil {
		logger.Warn("failed to persist proof", zap.Error(err))
		return
	}
	logger.Info("task proved", zap.Int("size", len(proof)))
}

// Lookup returns the proof of a task. A proof found in memory is handed out once and removed
// from memory; later lookups are served by the durable store.
func (q *Queue) Lookup(ctx context.Context, key shared.TaskKey) ([]byte, error) {
	q.mu.Lock()
	value, ok := q.outputs.Get(key)
	if ok {
		q.outputs.Remove(key)
	}
	q.mu.Unlock()
	if ok {
		lookupsMetric.WithLabelValues("memory").Inc()
		// SAFETY: only Output values are added.
		return value.(Output).Proof, nil
	}

	proof, err := q.store.Lookup(ctx, key)
	switch {
	case errors.Is(err, store.ErrNotFound):
		logging.FromContext(ctx).Debug("proof lookup missed", zap.Object("task", key))
		lookupsMetric.WithLabelValues("none").Inc()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	case err != nil:
		lookupsMetric.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("looking up proof of %s: %w", key, err)
	}
	lookupsMetric.WithLabelValues("store").Inc()
	return proof, nil
}
