// Package lazy holds values derived on first use and discarded when the
// configuration they were derived from changes.
package lazy

// Cell holds a value of type T that is either unset or valid. The zero value
// is an unset cell.
//
// Cell is not safe for concurrent use; loader stages are used from one
// goroutine at a time and cloned for parallel work.
type Cell[T any] struct {
	value T
	valid bool
}

// Get returns the cached value, computing and storing it first if the cell
// is unset. A failed compute leaves the cell unset.
func (c *Cell[T]) Get(compute func() (T, error)) (T, error) {
	if c.valid {
		return c.value, nil
	}
	v, err := compute()
	if err != nil {
		var zero T
		return zero, err
	}
	c.value, c.valid = v, true
	return v, nil
}

// Peek returns the cached value and whether it is valid without computing.
func (c *Cell[T]) Peek() (T, bool) {
	return c.value, c.valid
}

// Set stores v and marks the cell valid.
func (c *Cell[T]) Set(v T) {
	c.value, c.valid = v, true
}

// Reset marks the cell unset.
func (c *Cell[T]) Reset() {
	var zero T
	c.value, c.valid = zero, false
}

// Valid reports whether the cell holds a value.
func (c *Cell[T]) Valid() bool {
	return c.valid
}
