package shared

import (
	"encoding/hex"
	"errors"
	"fmt"

	"go.uber.org/zap/zapcore"
)

// ChunkIndex is the producer-assigned position of a chunk in the execution trace.
type ChunkIndex = uint64

var ErrNotAdjacent = errors.New("proofs are not adjacent")

// IndexedProof is an opaque proof covering the chunk range [StartChunk, EndChunk].
// The range is informational (tracing and adjacency checks); the proof tree is keyed by slot index only.
// Inner is never mutated once created, so copies of IndexedProof share it safely.
type IndexedProof struct {
	Inner      []byte
	StartChunk ChunkIndex
	EndChunk   ChunkIndex
}

func NewIndexedProof(inner []byte, start, end ChunkIndex) IndexedProof {
	return IndexedProof{Inner: inner, StartChunk: start, EndChunk: end}
}

func (p IndexedProof) String() string {
	return fmt.Sprintf("[%d..%d]", p.StartChunk, p.EndChunk)
}

// CheckAdjacent verifies that b directly follows a.
func CheckAdjacent(a, b IndexedProof) error {
	if a.EndChunk+1 != b.StartChunk {
		return fmt.Errorf("%w: %v and %v", ErrNotAdjacent, a, b)
	}
	return nil
}

// Record is a raw execution record of one chunk, as emitted by the producer.
type Record struct {
	Data   []byte
	IsLast bool
}

// TaskKey identifies a proving task.
type TaskKey struct {
	AppID  string
	TaskID string
}

func (k TaskKey) String() string {
	return k.AppID + "/" + k.TaskID
}

// implement zap.ObjectMarshaler interface.
func (k TaskKey) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("app_id", k.AppID)
	enc.AddString("task_id", k.TaskID)
	return nil
}

// ProvingTask carries everything needed to prove one program execution.
type ProvingTask struct {
	Key          TaskKey
	Program      []byte
	ProvingKey   []byte
	VerifyingKey []byte
	// Inputs is nil when the program takes no input.
	Inputs []byte
	UseGPU bool
}

// AppIDFromVerifyingKey derives the application id the same way for every caller.
func AppIDFromVerifyingKey(vk []byte) string {
	sum := Sum256(vk)
	return hex.EncodeToString(sum[:])
}
