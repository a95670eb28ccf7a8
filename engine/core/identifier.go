package core

import "fmt"

// IdentifierTable hands out small integer ids for owners and reuses freed
// slots first. The id is the owner's index in the table.
type IdentifierTable[T any] struct {
	owners []T
	used   []bool
	count  int
}

func NewIdentifierTable[T any](capacity int) *IdentifierTable[T] {
	return &IdentifierTable[T]{
		owners: make([]T, 0, capacity),
		used:   make([]bool, 0, capacity),
	}
}

func (t *IdentifierTable[T]) Acquire(owner T) uint32 {
	length := uint32(len(t.owners))
	for i := uint32(0); i < length; i++ {
		// Existing free spot. Take it.
		if !t.used[i] {
			t.owners[i] = owner
			t.used[i] = true
			t.count++
			return i
		}
	}

	// If here, no existing free slots. Need a new id, so push one.
	t.owners = append(t.owners, owner)
	t.used = append(t.used, true)
	t.count++
	return length
}

func (t *IdentifierTable[T]) Release(id uint32) error {
	if id >= uint32(len(t.owners)) {
		return fmt.Errorf("identifier release: id '%d' out of range (max=%d). Nothing was done", id, len(t.owners))
	}
	if !t.used[id] {
		return fmt.Errorf("identifier release: id '%d' is not in use. Nothing was done", id)
	}

	// Just zero out the entry, making it available for use.
	var zero T
	t.owners[id] = zero
	t.used[id] = false
	t.count--
	return nil
}

func (t *IdentifierTable[T]) Get(id uint32) (T, bool) {
	if id >= uint32(len(t.owners)) || !t.used[id] {
		var zero T
		return zero, false
	}
	return t.owners[id], true
}

// Each visits every live owner in id order. Returning false stops the walk.
func (t *IdentifierTable[T]) Each(fn func(id uint32, owner T) bool) {
	for i := range t.owners {
		if !t.used[i] {
			continue
		}
		if !fn(uint32(i), t.owners[i]) {
			return
		}
	}
}

func (t *IdentifierTable[T]) Len() int {
	return t.count
}
