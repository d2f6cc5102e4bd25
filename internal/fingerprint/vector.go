// Package fingerprint encodes molecular structure strings into fixed-length
// circular fingerprints and provides the binary vector type shared by every
// stage of the pipeline.
//
// Kekulé six-membered carbon and nitrogen rings are perceived as aromatic.
// Other Kekulé rings, such as pyrrole or furan written with explicit double
// bonds, keep their localized bonds and encode differently from their
// lowercase aromatic spelling.
package fingerprint

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
)

const (
	DefaultNumBits = 2048
	DefaultRadius  = 2
)

// Vector is an immutable fixed-length bit vector.
type Vector struct {
	bits *bitset.BitSet
	n    int
}

// NewVector returns an all-zero vector of length n with the given bits set.
// Indices outside [0,n) are rejected.
func NewVector(n int, on ...int) (Vector, error) {
	if n <= 0 {
		return Vector{}, fmt.Errorf("vector length must be positive, got %d", n)
	}
	b := bitset.New(uint(n))
	for _, i := range on {
		if i < 0 || i >= n {
			return Vector{}, fmt.Errorf("bit %d out of range [0,%d)", i, n)
		}
		b.Set(uint(i))
	}
	return Vector{bits: b, n: n}, nil
}

// FromBinary builds a vector from values that must each be exactly 0 or 1.
func FromBinary(vals []float64) (Vector, error) {
	if len(vals) == 0 {
		return Vector{}, fmt.Errorf("empty fingerprint row")
	}
	b := bitset.New(uint(len(vals)))
	for i, v := range vals {
		switch v {
		case 0:
		case 1:
			b.Set(uint(i))
		default:
			return Vector{}, fmt.Errorf("bit %d has non-binary value %v", i, v)
		}
	}
	return Vector{bits: b, n: len(vals)}, nil
}

// Binarize sets every position whose probability exceeds threshold.
func Binarize(probs []float64, threshold float64) Vector {
	b := bitset.New(uint(len(probs)))
	for i, p := range probs {
		if p > threshold {
			b.Set(uint(i))
		}
	}
	return Vector{bits: b, n: len(probs)}
}

func (v Vector) Len() int { return v.n }

func (v Vector) Test(i int) bool {
	if v.bits == nil || i < 0 || i >= v.n {
		return false
	}
	return v.bits.Test(uint(i))
}

// Count returns the number of set bits.
func (v Vector) Count() int {
	if v.bits == nil {
		return 0
	}
	return int(v.bits.Count())
}

// OnBits lists the set positions in ascending order.
func (v Vector) OnBits() []int {
	if v.bits == nil {
		return nil
	}
	out := make([]int, 0, v.bits.Count())
	for i, ok := v.bits.NextSet(0); ok; i, ok = v.bits.NextSet(i + 1) {
		out = append(out, int(i))
	}
	return out
}

// Floats returns a fresh 0/1 slice of length Len.
func (v Vector) Floats() []float64 {
	out := make([]float64, v.n)
	for _, i := range v.OnBits() {
		out[i] = 1
	}
	return out
}

func (v Vector) Equal(o Vector) bool {
	if v.n != o.n {
		return false
	}
	if v.bits == nil || o.bits == nil {
		return v.Count() == 0 && o.Count() == 0
	}
	return v.bits.Equal(o.bits)
}

func (v Vector) String() string {
	return fmt.Sprintf("Fingerprint{bits=%d, on=%d}", v.n, v.Count())
}

// Tanimoto returns |a∧b| / |a∨b|, or 0 when neither vector has a bit set.
func Tanimoto(a, b Vector) float64 {
	if a.bits == nil || b.bits == nil {
		return 0
	}
	union := a.bits.UnionCardinality(b.bits)
	if union == 0 {
		return 0
	}
	return float64(a.bits.IntersectionCardinality(b.bits)) / float64(union)
}

// Clone returns an independent copy.
func (v Vector) Clone() Vector {
	if v.bits == nil {
		return Vector{n: v.n}
	}
	return Vector{bits: v.bits.Clone(), n: v.n}
}
