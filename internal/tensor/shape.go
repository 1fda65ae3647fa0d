package tensor

import "fmt"

// Shape represents the dimensions of an array.
type Shape []int

// NumElements returns the total number of elements in the array.
func (s Shape) NumElements() int {
	if len(s) == 0 {
		return 1 // Scalar has 1 element
	}
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate checks if the shape is valid (all dimensions > 0).
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim <= 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be > 0)", i, dim)
		}
	}
	return nil
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// Ints returns the shape as a plain int slice, the form stored in metadata.
func (s Shape) Ints() []int {
	return []int(s.Clone())
}

// ComputeStrides calculates row-major strides for the shape.
// Strides define memory layout: stride[i] = product of all dimensions after i.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	if len(s) == 0 {
		return strides
	}

	strides[len(s)-1] = 1
	for i := len(s) - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * s[i+1]
	}
	return strides
}

// BlockCounts returns how many blocks of shape block tile each dimension of
// dims. Every dimension of dims must be a positive multiple of the matching
// block dimension.
func BlockCounts(dims, block Shape) ([]int, error) {
	if len(dims) != len(block) {
		return nil, fmt.Errorf("block rank %d does not match data rank %d", len(block), len(dims))
	}
	counts := make([]int, len(dims))
	for i := range dims {
		if block[i] <= 0 {
			return nil, fmt.Errorf("invalid block dimension at index %d: %d (must be > 0)", i, block[i])
		}
		if dims[i]%block[i] != 0 {
			return nil, fmt.Errorf("data dimension %d (%d) is not a multiple of block dimension %d", i, dims[i], block[i])
		}
		counts[i] = dims[i] / block[i]
	}
	return counts, nil
}

// RadixStrides returns the exclusive product scan of counts: stride[0] = 1,
// stride[i] = counts[0] * ... * counts[i-1]. Dimension 0 is the least
// significant digit of an ordinal built from these strides.
func RadixStrides(counts []int) []int {
	strides := make([]int, len(counts))
	acc := 1
	for i, c := range counts {
		strides[i] = acc
		acc *= c
	}
	return strides
}

// UnravelOrdinal splits ordinal into per-dimension block coordinates using
// RadixStrides(counts), recovering the most significant dimension (the last
// one) first.
func UnravelOrdinal(ordinal int, counts []int) []int {
	strides := RadixStrides(counts)
	coord := make([]int, len(counts))
	for i := len(counts) - 1; i >= 0; i-- {
		coord[i] = ordinal / strides[i]
		ordinal %= strides[i]
	}
	return coord
}

// RavelCoord is the inverse of UnravelOrdinal.
func RavelCoord(coord, counts []int) int {
	strides := RadixStrides(counts)
	ordinal := 0
	for i, c := range coord {
		ordinal += c * strides[i]
	}
	return ordinal
}
