package transport

import (
	"github.com/pico-network/prover/messages"
)

// InMemory binds the producer, the gateway and the workers of one pipeline run by in-memory queues.
//
// The worker side is split in three flows: pulls (an idle worker asks for work), tasks (the gateway
// dispatches chunks and merges, claimed by any one worker) and results.
type InMemory struct {
	producer *Queue[messages.Msg]
	pulls    *Queue[messages.Msg]
	tasks    *Queue[messages.Msg]
	results  *Queue[messages.Msg]
}

func NewInMemory() *InMemory {
	return &InMemory{
		producer: NewQueue[messages.Msg]("producer"),
		pulls:    NewQueue[messages.Msg]("pulls"),
		tasks:    NewQueue[messages.Msg]("tasks"),
		results:  NewQueue[messages.Msg]("results"),
	}
}

// Producer side.

func (m *InMemory) Emit(msg messages.Msg) error {
	return m.producer.Send(msg)
}

// Gateway side.

// NextProduced pops the next producer message without blocking. Every message emitted before the
// call is visible to it, so draining it before applying a worker message keeps the producer ahead.
func (m *InMemory) NextProduced() (messages.Msg, bool, error) {
	return m.producer.TryRecv()
}

// ProducedReady fires when a producer message may be available or the transport was closed.
func (m *InMemory) ProducedReady() <-chan struct{} {
	return m.producer.Ready()
}

func (m *InMemory) Pulls() <-chan messages.Msg {
	return m.pulls.Recv()
}

func (m *InMemory) Results() <-chan messages.Msg {
	return m.results.Recv()
}

func (m *InMemory) Dispatch(msg messages.Msg) error {
	return m.tasks.Send(msg)
}

// Worker side.

func (m *InMemory) Pull(msg messages.Msg) error {
	return m.pulls.Send(msg)
}

func (m *InMemory) Tasks() <-chan messages.Msg {
	return m.tasks.Recv()
}

func (m *InMemory) Respond(msg messages.Msg) error {
	return m.results.Send(msg)
}

// Close closes every flow. Receivers observe closed channels, NextProduced returns ErrClosed.
func (m *InMemory) Close() {
	m.producer.Close()
	m.pulls.Close()
	m.tasks.Close()
	m.results.Close()
}
