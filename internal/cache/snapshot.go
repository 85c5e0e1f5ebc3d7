package cache

import "slices"

// Snapshot is an immutable, ordered copy of one entity collection.
type Snapshot[T any] struct {
	items []T
}

// NewSnapshot copies items so later changes to the caller's slice are not visible.
func NewSnapshot[T any](items []T) Snapshot[T] {
	return Snapshot[T]{items: slices.Clone(items)}
}

func (s Snapshot[T]) Len() int { return len(s.items) }

func (s Snapshot[T]) Empty() bool { return len(s.items) == 0 }

// Items returns a copy of the records.
func (s Snapshot[T]) Items() []T {
	if len(s.items) == 0 {
		return []T{}
	}
	return slices.Clone(s.items)
}
