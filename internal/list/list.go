// Package list provides the intrusive doubly-linked list primitive the
// run-queue levels, wait-queues and the timer queue are built on. The heap
// free list is not: internal/mem keeps its own offset-based links inside
// the heap region. A Node is meant to live as
// a field inside the struct it links — a Thread, a Timer, a condvar
// waiter — not as a separately allocated element, so insertion and removal
// never allocate.
package list

// Node is one link in a List. Its zero value is a detached node.
type Node[T any] struct {
	next, prev *Node[T]
	owner      *List[T]
	Value      T
}

// Linked reports whether n is currently a member of some List.
func (n *Node[T]) Linked() bool {
	return n.owner != nil
}

// List is a circular doubly-linked list with a sentinel node, matching
// the donor kernel's list.h: O(1) PushFront/PushBack/Remove/Front, and an
// iteration helper that tolerates the visited node removing itself.
type List[T any] struct {
	root Node[T]
}

// New returns an initialized, empty list.
func New[T any]() *List[T] {
	l := &List[T]{}
	l.Init()
	return l
}

// Init resets l to the empty state. Needed when a List is embedded by
// value (e.g. as a field of a larger struct) rather than constructed
// with New.
func (l *List[T]) Init() {
	l.root.next = &l.root
	l.root.prev = &l.root
	l.root.owner = l
}

// Empty reports whether the list has no elements.
func (l *List[T]) Empty() bool {
	return l.root.next == &l.root
}

func (l *List[T]) insertAfter(at, n *Node[T]) {
	if n.owner != nil {
		panic("list: node already linked")
	}
	n.prev = at
	n.next = at.next
	at.next.prev = n
	at.next = n
	n.owner = l
}

// PushFront links n as the new first element.
func (l *List[T]) PushFront(n *Node[T]) {
	l.insertAfter(&l.root, n)
}

// PushBack links n as the new last element.
func (l *List[T]) PushBack(n *Node[T]) {
	l.insertAfter(l.root.prev, n)
}

// InsertBefore links n immediately before mark, which must already be a
// member of l.
func (l *List[T]) InsertBefore(mark, n *Node[T]) {
	if mark.owner != l {
		panic("list: mark not a member of this list")
	}
	l.insertAfter(mark.prev, n)
}

// Remove unlinks n from l. It is a no-op if n is already detached, and
// panics if n is linked into a different list.
func (l *List[T]) Remove(n *Node[T]) {
	if n.owner == nil {
		return
	}
	if n.owner != l {
		panic("list: node belongs to a different list")
	}
	n.prev.next = n.next
	n.next.prev = n.prev
	n.next = nil
	n.prev = nil
	n.owner = nil
}

// Front returns the first element, or nil if the list is empty.
func (l *List[T]) Front() *Node[T] {
	if l.Empty() {
		return nil
	}
	return l.root.next
}

// Back returns the last element, or nil if the list is empty.
func (l *List[T]) Back() *Node[T] {
	if l.Empty() {
		return nil
	}
	return l.root.prev
}

// PopFront removes and returns the first element, or nil if empty.
func (l *List[T]) PopFront() *Node[T] {
	n := l.Front()
	if n != nil {
		l.Remove(n)
	}
	return n
}

// Next returns the element following n, or nil if n is the last element.
func (l *List[T]) Next(n *Node[T]) *Node[T] {
	if n.next == &l.root {
		return nil
	}
	return n.next
}

// Each calls f once per element in order, capturing the successor before
// invoking f so that f may remove its own node from l, which broadcast-style
// wakeups rely on.
func (l *List[T]) Each(f func(n *Node[T])) {
	for n := l.Front(); n != nil; {
		next := l.Next(n)
		f(n)
		n = next
	}
}
