// Package prooftree schedules the online pairwise reduction of chunk proofs.
//
// Proofs arrive in arbitrary order, keyed by slot index. A proved slot is paired with its nearest
// proved neighbor (the left one first), the neighbor slot is removed, and the surviving slot waits
// for the merged proof. The tree shrinks monotonically until a single slot remains.
package prooftree

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/btree"

	"github.com/pico-network/prover/shared"
)

var (
	ErrDuplicateNode = errors.New("proof node must be initialized once in tree")
	ErrUnknownNode   = errors.New("proof node is not initialized")
	ErrAlreadyProved = errors.New("proof node is already proved")
)

const degree = 32

// Pair is two proofs to be merged, in ascending range order.
type Pair [2]shared.IndexedProof

type slot struct {
	index  shared.ChunkIndex
	proved bool
	// proof is set when proved.
	proof shared.IndexedProof
	// partials are the inputs of the reduction in progress, kept for retries.
	partials []shared.IndexedProof
}

func (s *slot) status() string {
	if s.proved {
		return "proved"
	}
	return "in-progress"
}

// Tree is not safe for concurrent use; it is owned by the gateway goroutine.
type Tree struct {
	slots *btree.BTreeG[*slot]
}

func New() *Tree {
	return &Tree{
		slots: btree.NewG(degree, func(a, b *slot) bool { return a.index < b.index }),
	}
}

// Len returns the number of live slots.
func (t *Tree) Len() int {
	return t.slots.Len()
}

// InitNode registers an in-progress placeholder for a chunk.
func (t *Tree) InitNode(index shared.ChunkIndex) error {
	if _, ok := t.slots.Get(&slot{index: index}); ok {
		return fmt.Errorf("%w: %d", ErrDuplicateNode, index)
	}
	t.slots.ReplaceOrInsert(&slot{index: index})
	return nil
}

// SetProof stores the proof of a slot. If a neighbor slot is already proved, the two proofs are
// returned for merging instead: the neighbor is removed and the slot at index waits for the result.
func (t *Tree) SetProof(index shared.ChunkIndex, proof shared.IndexedProof) (Pair, bool, error) {
	current, ok := t.slots.Get(&slot{index: index})
	if !ok {
		return Pair{}, false, fmt.Errorf("%w: %d", ErrUnknownNode, index)
	}
	if current.proved {
		return Pair{}, false, fmt.Errorf("%w: %d", ErrAlreadyProved, index)
	}

	var (
		sibling *slot
		pair    Pair
	)
	if prev := t.prev(index); prev != nil && prev.proved {
		sibling = prev
		pair = Pair{prev.proof, proof}
	} else if next := t.next(index); next != nil && next.proved {
		sibling = next
		pair = Pair{proof, next.proof}
	}

	if sibling == nil {
		current.proved = true
		current.proof = proof
		current.partials = nil
		return Pair{}, false, nil
	}

	t.slots.Delete(sibling)
	current.partials = []shared.IndexedProof{pair[0], pair[1]}
	return pair, true, nil
}

// Root returns the proof of the only remaining slot, if it is proved.
func (t *Tree) Root() (shared.ChunkIndex, shared.IndexedProof, bool) {
	if t.slots.Len() != 1 {
		return 0, shared.IndexedProof{}, false
	}
	root, _ := t.slots.Min()
	if !root.proved {
		return 0, shared.IndexedProof{}, false
	}
	return root.index, root.proof, true
}

// TakeRoot moves the proved root back to in-progress, handing its proof to the caller.
func (t *Tree) TakeRoot() (shared.ChunkIndex, shared.IndexedProof, bool) {
	index, proof, ok := t.Root()
	if !ok {
		return 0, shared.IndexedProof{}, false
	}
	root, _ := t.slots.Get(&slot{index: index})
	root.proved = false
	root.proof = shared.IndexedProof{}
	root.partials = []shared.IndexedProof{proof}
	return index, proof, true
}

// prev returns the nearest slot strictly before index.
func (t *Tree) prev(index shared.ChunkIndex) (found *slot) {
	t.slots.DescendLessOrEqual(&slot{index: index}, func(s *slot) bool {
		if s.index == index {
			return true
		}
		found = s
		return false
	})
	return found
}

// next returns the nearest slot strictly after index.
func (t *Tree) next(index shared.ChunkIndex) (found *slot) {
	t.slots.AscendGreaterOrEqual(&slot{index: index}, func(s *slot) bool {
		if s.index == index {
			return true
		}
		found = s
		return false
	})
	return found
}

func (t *Tree) String() string {
	var sb strings.Builder
	sb.WriteString("=== Start of ProofTree ===\n")
	t.slots.Ascend(func(s *slot) bool {
		fmt.Fprintf(&sb, "\t%d: %s\n", s.index, s.status())
		return true
	})
	sb.WriteString("=== End of ProofTree ===")
	return sb.String()
}
