package gateway

import (
	"errors"
	"fmt"

	"github.com/pico-network/prover/messages"
	"github.com/pico-network/prover/prooftree"
	"github.com/pico-network/prover/shared"
)

// ErrProtocolViolation is returned for a message that is not valid in the current state.
// The protocol is closed, so this always indicates a bug in one of the participants.
var ErrProtocolViolation = errors.New("protocol violation")

// Handler applies protocol events to the proof tree.
type Handler struct {
	producerComplete bool
	tree             *prooftree.Tree
	finalProof       *shared.IndexedProof
}

func NewHandler() *Handler {
	return &Handler{tree: prooftree.New()}
}

// Complete reports whether the final proof was received.
func (h *Handler) Complete() bool {
	return h.finalProof != nil
}

func (h *Handler) FinalProof() (shared.IndexedProof, bool) {
	if h.finalProof == nil {
		return shared.IndexedProof{}, false
	}
	return *h.finalProof, true
}

// Process applies msg and returns the message to send in response, if any.
//
// A merge producing the root is flagged complete only once the producer finished, so that a late
// chunk cannot extend the tree past it. When the root ends up proved without such a merge (a
// single chunk, or the producer finished after the last merge) a CompressRequest is returned
// instead. Exit is returned once the final proof was received, or when the producer finished
// without emitting any chunk.
func (h *Handler) Process(msg messages.Msg) (messages.Msg, error) {
	if h.Complete() {
		return messages.Exit{}, nil
	}

	switch m := msg.(type) {
	case messages.ChunkReady:
		if h.producerComplete {
			return nil, fmt.Errorf("%w: %v after producer completed", ErrProtocolViolation, m)
		}
		if err := h.tree.InitNode(m.ChunkIndex); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrProtocolViolation, err)
		}
		return nil, nil
	case messages.ChunkProved:
		return h.setProof(m.Route, m.ChunkIndex, m.Proof)
	case messages.MergeProved:
		return h.setProof(m.Route, m.ChunkIndex, m.Proof)
	case messages.ProducerComplete:
		if h.producerComplete {
			return nil, fmt.Errorf("%w: duplicate %v", ErrProtocolViolation, m)
		}
		h.producerComplete = true
		if h.tree.Len() == 0 {
			return messages.Exit{}, nil
		}
		return h.completeRoot(messages.Route{}), nil
	case messages.FinalProof:
		proof := m.Proof
		h.finalProof = &proof
		return messages.Exit{}, nil
	default:
		return nil, fmt.Errorf("%w: unexpected %v", ErrProtocolViolation, msg)
	}
}

func (h *Handler) setProof(route messages.Route, index shared.ChunkIndex, proof shared.IndexedProof) (messages.Msg, error) {
	pair, ok, err := h.tree.SetProof(index, proof)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProtocolViolation, err)
	}
	if ok {
		return messages.MergeRequest{
			Route:        route,
			FlagComplete: h.producerComplete && h.tree.Len() == 1,
			ChunkIndex:   index,
			Proofs:       pair,
		}, nil
	}
	return h.completeRoot(route), nil
}

func (h *Handler) completeRoot(route messages.Route) messages.Msg {
	if !h.producerComplete {
		return nil
	}
	index, proof, ok := h.tree.TakeRoot()
	if !ok {
		return nil
	}
	return messages.CompressRequest{Route: route, ChunkIndex: index, Proof: proof}
}

// Tree returns a debug rendering of the proof tree.
func (h *Handler) Tree() string {
	return h.tree.String()
}
