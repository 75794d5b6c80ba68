// Package observable provides an ordered list that reports every mutation as
// a single structured change event.
package observable

import (
	"errors"
	"fmt"

	"pkt.systems/cellpad/internal/signal"
)

// ErrOutOfRange indicates an index outside the list bounds.
var ErrOutOfRange = errors.New("index out of range")

// ChangeKind identifies the mutation reported by a Change.
type ChangeKind string

const (
	// ChangeAdd reports values inserted at NewIndex.
	ChangeAdd ChangeKind = "add"
	// ChangeRemove reports values removed from OldIndex.
	ChangeRemove ChangeKind = "remove"
	// ChangeMove reports one value moved from OldIndex to NewIndex.
	ChangeMove ChangeKind = "move"
	// ChangeReplace reports a batch of OldValues at OldIndex replaced by
	// NewValues at NewIndex. Clear and Assign are reported this way.
	ChangeReplace ChangeKind = "replace"
	// ChangeSet reports a single value replaced in place.
	ChangeSet ChangeKind = "set"
)

// Change describes one mutation. OldValues/NewValues hold the affected
// values; for Add and Remove they hold exactly one value.
type Change[T any] struct {
	Kind      ChangeKind
	OldIndex  int
	OldValues []T
	NewIndex  int
	NewValues []T
}

// Delta is the change in list length implied by the event.
func (c Change[T]) Delta() int {
	return len(c.NewValues) - len(c.OldValues)
}

// IndexError reports an out-of-range index for an operation.
type IndexError struct {
	Op    string
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("%s: index %d out of range for length %d", e.Op, e.Index, e.Len)
}

func (e *IndexError) Unwrap() error {
	return ErrOutOfRange
}

// List is an ordered sequence of T. Every mutating call emits exactly one
// Change on Changed; failed calls emit nothing and leave the list unchanged.
// Negative indices address from the end: -1 is the last position.
type List[T any] struct {
	items   []T
	equal   func(a, b T) bool
	changed signal.Signal[Change[T]]
}

// NewList returns an empty list. equal is used by Remove and IndexOf.
func NewList[T any](equal func(a, b T) bool, items ...T) *List[T] {
	return &List[T]{items: append([]T(nil), items...), equal: equal}
}

// NewComparableList returns a list that compares values with ==.
func NewComparableList[T comparable](items ...T) *List[T] {
	return NewList(func(a, b T) bool { return a == b }, items...)
}

// Changed returns the change signal.
func (l *List[T]) Changed() *signal.Signal[Change[T]] {
	return &l.changed
}

// Len returns the number of values.
func (l *List[T]) Len() int {
	return len(l.items)
}

// Get returns the value at index.
func (l *List[T]) Get(index int) (T, error) {
	var zero T
	i, err := l.resolve("get", index, len(l.items)-1)
	if err != nil {
		return zero, err
	}
	return l.items[i], nil
}

// At returns the value at index, or the zero value when out of range.
func (l *List[T]) At(index int) T {
	v, _ := l.Get(index)
	return v
}

// Values returns a copy of the list contents.
func (l *List[T]) Values() []T {
	return append([]T(nil), l.items...)
}

// IndexOf returns the first index whose value equals v, or -1.
func (l *List[T]) IndexOf(v T) int {
	if l.equal == nil {
		return -1
	}
	for i, item := range l.items {
		if l.equal(item, v) {
			return i
		}
	}
	return -1
}

// Add appends v and returns its index.
func (l *List[T]) Add(v T) int {
	l.items = append(l.items, v)
	index := len(l.items) - 1
	l.changed.Emit(Change[T]{Kind: ChangeAdd, OldIndex: -1, NewIndex: index, NewValues: []T{v}})
	return index
}

// Insert places v at index, shifting later values. Valid indices are
// [0, Len()]; negative indices count from the end.
func (l *List[T]) Insert(index int, v T) error {
	i, err := l.resolve("insert", index, len(l.items))
	if err != nil {
		return err
	}
	l.items = append(l.items, v)
	copy(l.items[i+1:], l.items[i:])
	l.items[i] = v
	l.changed.Emit(Change[T]{Kind: ChangeAdd, OldIndex: -1, NewIndex: i, NewValues: []T{v}})
	return nil
}

// RemoveAt removes and returns the value at index.
func (l *List[T]) RemoveAt(index int) (T, error) {
	var zero T
	i, err := l.resolve("remove", index, len(l.items)-1)
	if err != nil {
		return zero, err
	}
	v := l.items[i]
	l.items = append(l.items[:i], l.items[i+1:]...)
	l.changed.Emit(Change[T]{Kind: ChangeRemove, OldIndex: i, OldValues: []T{v}, NewIndex: -1})
	return v, nil
}

// Remove removes the first value equal to v. It reports whether a value was
// removed; nothing is emitted when v is absent.
func (l *List[T]) Remove(v T) bool {
	i := l.IndexOf(v)
	if i < 0 {
		return false
	}
	_, _ = l.RemoveAt(i)
	return true
}

// Move relocates the value at from so that it ends up at to.
func (l *List[T]) Move(from, to int) error {
	last := len(l.items) - 1
	f, err := l.resolve("move", from, last)
	if err != nil {
		return err
	}
	t, err := l.resolve("move", to, last)
	if err != nil {
		return err
	}
	v := l.items[f]
	if f < t {
		copy(l.items[f:t], l.items[f+1:t+1])
	} else if f > t {
		copy(l.items[t+1:f+1], l.items[t:f])
	}
	l.items[t] = v
	l.changed.Emit(Change[T]{Kind: ChangeMove, OldIndex: f, OldValues: []T{v}, NewIndex: t, NewValues: []T{v}})
	return nil
}

// Set replaces the value at index and returns the previous value.
func (l *List[T]) Set(index int, v T) (T, error) {
	var zero T
	i, err := l.resolve("set", index, len(l.items)-1)
	if err != nil {
		return zero, err
	}
	old := l.items[i]
	l.items[i] = v
	l.changed.Emit(Change[T]{Kind: ChangeSet, OldIndex: i, OldValues: []T{old}, NewIndex: i, NewValues: []T{v}})
	return old, nil
}

// Replace removes count values starting at index and inserts vs in their
// place, reporting a single ChangeReplace.
func (l *List[T]) Replace(index, count int, vs ...T) ([]T, error) {
	i, err := l.resolve("replace", index, len(l.items))
	if err != nil {
		return nil, err
	}
	if count < 0 || i+count > len(l.items) {
		return nil, &IndexError{Op: "replace", Index: i + count, Len: len(l.items)}
	}
	old := append([]T(nil), l.items[i:i+count]...)
	tail := append([]T(nil), l.items[i+count:]...)
	l.items = append(append(l.items[:i], vs...), tail...)
	l.changed.Emit(Change[T]{
		Kind:      ChangeReplace,
		OldIndex:  i,
		OldValues: old,
		NewIndex:  i,
		NewValues: append([]T(nil), vs...),
	})
	return old, nil
}

// Assign replaces the whole contents with vs.
func (l *List[T]) Assign(vs ...T) []T {
	old, _ := l.Replace(0, len(l.items), vs...)
	return old
}

// Clear removes every value in one batched ChangeReplace carrying the old
// contents. It returns the removed values.
func (l *List[T]) Clear() []T {
	return l.Assign()
}

// resolve maps a possibly negative index into [0, max].
func (l *List[T]) resolve(op string, index, max int) (int, error) {
	i := index
	if i < 0 {
		i += len(l.items)
	}
	if i < 0 || i > max {
		return 0, &IndexError{Op: op, Index: index, Len: len(l.items)}
	}
	return i, nil
}
