// Package messages defines the closed protocol exchanged by the producer, the gateway and the workers.
//
// Msg is sealed: only the types of this package implement it, so a type switch over them is the
// complete dispatch for every participant.
package messages

import (
	"fmt"

	"github.com/pico-network/prover/shared"
)

type Msg interface {
	fmt.Stringer
	isMsg()
}

// Route carries the peer identifiers of a routed message.
// They are unused in-process and kept for distributed deployments.
type Route struct {
	TaskID string
	Addr   string
}

// ChunkReady announces a new chunk. Producer -> gateway -> workers.
type ChunkReady struct {
	Route
	ChunkIndex shared.ChunkIndex
	Record     shared.Record
}

// ChunkProved carries the converted proof of a single chunk. Worker -> gateway.
type ChunkProved struct {
	Route
	ChunkIndex shared.ChunkIndex
	Proof      shared.IndexedProof
}

// MergeRequest asks a worker to combine two adjacent proofs. Gateway -> workers.
// FlagComplete is set on the one merge producing the root of the tree.
type MergeRequest struct {
	Route
	FlagComplete bool
	ChunkIndex   shared.ChunkIndex
	Proofs       [2]shared.IndexedProof
}

// MergeProved carries a combined proof. Worker -> gateway.
type MergeProved struct {
	Route
	ChunkIndex shared.ChunkIndex
	Proof      shared.IndexedProof
}

// CompressRequest asks a worker to finish a root proof that was not produced by a flagged merge,
// for example the proof of a single-chunk program. Gateway -> workers.
type CompressRequest struct {
	Route
	ChunkIndex shared.ChunkIndex
	Proof      shared.IndexedProof
}

// FinalProof carries the verified embed proof. Worker -> gateway.
type FinalProof struct {
	Proof shared.IndexedProof
}

// ProducerComplete is sent once after the last ChunkReady. Producer -> gateway.
type ProducerComplete struct{}

// TaskRequest is sent by an idle worker.
type TaskRequest struct{}

// Close announces that a worker stopped.
type Close struct {
	WorkerID string
}

// Exit terminates the receiver.
type Exit struct{}

func (ChunkReady) isMsg()       {}
func (ChunkProved) isMsg()      {}
func (MergeRequest) isMsg()     {}
func (MergeProved) isMsg()      {}
func (CompressRequest) isMsg()  {}
func (FinalProof) isMsg()       {}
func (ProducerComplete) isMsg() {}
func (TaskRequest) isMsg()      {}
func (Close) isMsg()            {}
func (Exit) isMsg()             {}

func (m ChunkReady) String() string {
	return fmt.Sprintf("chunk-ready(%d)", m.ChunkIndex)
}

func (m ChunkProved) String() string {
	return fmt.Sprintf("chunk-proved(%d, %v)", m.ChunkIndex, m.Proof)
}

func (m MergeRequest) String() string {
	return fmt.Sprintf("merge-request(%d, %v+%v, complete=%t)", m.ChunkIndex, m.Proofs[0], m.Proofs[1], m.FlagComplete)
}

func (m MergeProved) String() string {
	return fmt.Sprintf("merge-proved(%d, %v)", m.ChunkIndex, m.Proof)
}

func (m CompressRequest) String() string {
	return fmt.Sprintf("compress-request(%d, %v)", m.ChunkIndex, m.Proof)
}

func (m FinalProof) String() string {
	return fmt.Sprintf("final-proof(%v)", m.Proof)
}

func (ProducerComplete) String() string { return "producer-complete" }
func (TaskRequest) String() string      { return "task-request" }
func (m Close) String() string          { return "close(" + m.WorkerID + ")" }
func (Exit) String() string             { return "exit" }
