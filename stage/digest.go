package stage

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/spacemeshos/merkle-tree"

	"github.com/pico-network/prover/shared"
)

const DefaultChunkSize = 1 << 10

var ErrMissingProvingKey = errors.New("proving key is missing")

const (
	tagChunk byte = iota + 1
	tagCombine
	tagRoot
	tagCompress
	tagEmbed
)

// digestSize is the length of every proof produced by Digest: key digest, tag, commitment.
const digestSize = 2*32 + 1

// Digest is a deterministic hash-based stand-in for a proving system.
// Every proof commits to the key it was produced with, so Verify catches key mismatches.
type Digest struct {
	chunkSize int
}

type DigestOption func(*Digest)

func WithChunkSize(size int) DigestOption {
	return func(d *Digest) {
		d.chunkSize = size
	}
}

func NewDigest(opts ...DigestOption) *Digest {
	d := &Digest{chunkSize: DefaultChunkSize}
	for _, opt := range opts {
		opt(d)
	}
	if d.chunkSize <= 0 {
		d.chunkSize = DefaultChunkSize
	}
	return d
}

// Setup derives the proving and verifying key of a program.
func (d *Digest) Setup(program []byte) (pk, vk []byte) {
	pkSum := shared.Sum256([]byte("pk"), program)
	vkSum := shared.Sum256([]byte("vk"), pkSum[:])
	return pkSum[:], vkSum[:]
}

// Emulate splits program||inputs into records of the configured chunk size.
func (d *Digest) Emulate(ctx context.Context, task shared.ProvingTask, emit func(shared.Record) error) error {
	trace := make([]byte, 0, len(task.Program)+len(task.Inputs))
	trace = append(trace, task.Program...)
	trace = append(trace, task.Inputs...)

	for start := 0; start < len(trace); start += d.chunkSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start + d.chunkSize
		if end > len(trace) {
			end = len(trace)
		}
		record := shared.Record{Data: trace[start:end], IsLast: end == len(trace)}
		if err := emit(record); err != nil {
			return err
		}
	}
	return nil
}

func (d *Digest) Stages(task shared.ProvingTask) (Stages, error) {
	if len(task.ProvingKey) == 0 {
		return nil, ErrMissingProvingKey
	}
	vk := shared.Sum256([]byte("vk"), task.ProvingKey)
	return &digestStages{key: vk[:]}, nil
}

// Render returns the digest of the embed proof.
func (d *Digest) Render(_ context.Context, embed shared.IndexedProof) ([]byte, error) {
	sum := shared.Sum256(embed.Inner)
	return sum[:], nil
}

type digestStages struct {
	key []byte
}

func (s *digestStages) seal(tag byte, commitment [32]byte) []byte {
	out := make([]byte, 0, digestSize)
	out = append(out, s.key...)
	out = append(out, tag)
	return append(out, commitment[:]...)
}

func (s *digestStages) open(p shared.IndexedProof, tags ...byte) ([]byte, error) {
	if len(p.Inner) != digestSize {
		return nil, fmt.Errorf("malformed proof %v: %d bytes", p, len(p.Inner))
	}
	if !bytes.Equal(p.Inner[:32], s.key) {
		return nil, fmt.Errorf("proof %v was produced with a different key", p)
	}
	for _, tag := range tags {
		if p.Inner[32] == tag {
			return p.Inner[33:], nil
		}
	}
	return nil, fmt.Errorf("unexpected proof kind %d of %v", p.Inner[32], p)
}

// Convert commits to the record with a merkle root over its 32-byte words.
func (s *digestStages) Convert(index shared.ChunkIndex, record shared.Record) (shared.IndexedProof, error) {
	tree, err := merkle.NewTreeBuilder().Build()
	if err != nil {
		return shared.IndexedProof{}, fmt.Errorf("failed to initialize merkle tree: %w", err)
	}
	if err := tree.AddLeaf(leaf(index, nil)); err != nil {
		return shared.IndexedProof{}, err
	}
	for start := 0; start < len(record.Data); start += 32 {
		end := start + 32
		if end > len(record.Data) {
			end = len(record.Data)
		}
		if err := tree.AddLeaf(leaf(index, record.Data[start:end])); err != nil {
			return shared.IndexedProof{}, err
		}
	}
	var root [32]byte
	copy(root[:], tree.Root())
	return shared.NewIndexedProof(s.seal(tagChunk, root), index, index), nil
}

func leaf(index shared.ChunkIndex, data []byte) []byte {
	var prefix [8]byte
	for i := range prefix {
		prefix[i] = byte(index >> (8 * i))
	}
	sum := shared.Sum256(prefix[:], data)
	return sum[:]
}

func (s *digestStages) Combine(a, b shared.IndexedProof, flagComplete bool) (shared.IndexedProof, error) {
	if err := shared.CheckAdjacent(a, b); err != nil {
		return shared.IndexedProof{}, err
	}
	left, err := s.open(a, tagChunk, tagCombine)
	if err != nil {
		return shared.IndexedProof{}, err
	}
	right, err := s.open(b, tagChunk, tagCombine)
	if err != nil {
		return shared.IndexedProof{}, err
	}
	tag := tagCombine
	if flagComplete {
		tag = tagRoot
	}
	return shared.NewIndexedProof(s.seal(tag, shared.Sum256([]byte{tag}, left, right)), a.StartChunk, b.EndChunk), nil
}

// Compress accepts a root merge or, for single-chunk programs, a chunk proof.
func (s *digestStages) Compress(p shared.IndexedProof) (shared.IndexedProof, error) {
	body, err := s.open(p, tagRoot, tagChunk)
	if err != nil {
		return shared.IndexedProof{}, err
	}
	return shared.NewIndexedProof(s.seal(tagCompress, shared.Sum256([]byte{tagCompress}, body)), p.StartChunk, p.EndChunk), nil
}

func (s *digestStages) Embed(p shared.IndexedProof) (shared.IndexedProof, error) {
	body, err := s.open(p, tagCompress)
	if err != nil {
		return shared.IndexedProof{}, err
	}
	return shared.NewIndexedProof(s.seal(tagEmbed, shared.Sum256([]byte{tagEmbed}, body)), p.StartChunk, p.EndChunk), nil
}

func (s *digestStages) Verify(p shared.IndexedProof, verifyingKey []byte) error {
	if !bytes.Equal(s.key, verifyingKey) {
		return fmt.Errorf("%w: verifying key does not match proving key", ErrVerificationFailed)
	}
	if _, err := s.open(p, tagEmbed); err != nil {
		return fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}
	return nil
}
