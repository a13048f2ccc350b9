package shared

import (
	"bytes"
	"fmt"

	"github.com/minio/sha256-simd"
	"github.com/spacemeshos/go-scale"
)

// MaxProofSize bounds the scale-encoded inner proof.
const MaxProofSize = 1 << 30

// Sum256 is the hash used for every digest in this module.
func Sum256(data ...[]byte) [sha256.Size]byte {
	hasher := sha256.New()
	for _, d := range data {
		hasher.Write(d)
	}
	var out [sha256.Size]byte
	hasher.Sum(out[:0])
	return out
}

// Scale encoding is implemented by hand to bound the proof size.
func (p *IndexedProof) EncodeScale(enc *scale.Encoder) (total int, err error) {
	{
		n, err := scale.EncodeByteSliceWithLimit(enc, p.Inner, MaxProofSize)
		if err != nil {
			return total, fmt.Errorf("EncodeByteSliceWithLimit failed: %w", err)
		}
		total += n
	}
	{
		n, err := scale.EncodeCompact64(enc, p.StartChunk)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeCompact64(enc, p.EndChunk)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (p *IndexedProof) DecodeScale(dec *scale.Decoder) (total int, err error) {
	{
		field, n, err := scale.DecodeByteSliceWithLimit(dec, MaxProofSize)
		if err != nil {
			return total, fmt.Errorf("DecodeByteSliceWithLimit failed: %w", err)
		}
		total += n
		p.Inner = field
	}
	{
		field, n, err := scale.DecodeCompact64(dec)
		if err != nil {
			return total, err
		}
		total += n
		p.StartChunk = field
	}
	{
		field, n, err := scale.DecodeCompact64(dec)
		if err != nil {
			return total, err
		}
		total += n
		p.EndChunk = field
	}
	return total, nil
}

// Encode returns the scale encoding of the proof.
func (p IndexedProof) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := p.EncodeScale(scale.NewEncoder(&buf)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeIndexedProof(data []byte) (IndexedProof, error) {
	var p IndexedProof
	if _, err := p.DecodeScale(scale.NewDecoder(bytes.NewReader(data))); err != nil {
		return IndexedProof{}, fmt.Errorf("decoding indexed proof: %w", err)
	}
	return p, nil
}
