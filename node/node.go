// Package node implements the building block of a linked binary min-heap:
// a tree where every node owns its children and keeps a non-owning
// reference back to its parent.
//
// All nodes live inside a Tree arena and are addressed by Handle values.
// A handle held by a child for its parent never keeps the parent alive;
// an owning edge released by a parent tears down the whole subtree under
// it. Handles into a released subtree are dead, every operation on them
// fails with ErrDeadNode even if the storage slot has been reused since.
package node

import (
	"errors"
	"slices"

	"github.com/negrel/assert"
	"github.com/samber/lo"
	"golang.org/x/exp/constraints"
)

var ErrDeadNode = errors.New("node has been released")
var ErrNotChild = errors.New("node is not a direct child of parent")
var ErrAlreadyAttached = errors.New("node already has a parent")
var ErrCycle = errors.New("link would make a node its own ancestor")

// Handle is the stable address of a node inside a Tree.
//
// The zero Handle never resolves.
type Handle struct {
	index int32
	gen   uint32
}

// live slots always carry gen >= 1, so the zero Handle doubles as the
// "no parent" marker.
type slot[T constraints.Ordered] struct {
	value    T
	parent   Handle
	children []Handle
	gen      uint32
	live     bool
}

// Tree is an arena owning a forest of nodes.
//
// Methods are not safe for concurrent use; callers that share a Tree
// between goroutines must serialize access themselves.
type Tree[T constraints.Ordered] struct {
	slots []slot[T]
	free  []int32
	live  int
}

func New[T constraints.Ordered]() *Tree[T] {
	return &Tree[T]{}
}

// NewRoot creates a node with no parent and no children.
func (t *Tree[T]) NewRoot(v T) Handle {
	return t.alloc(v, Handle{})
}

// AttachNewChild creates a node holding v and appends it to parent's
// children. Both sides of the relation are established before the call
// returns.
func (t *Tree[T]) AttachNewChild(parent Handle, v T) (Handle, error) {
	if _, err := t.resolve(parent); err != nil {
		return Handle{}, err
	}

	c := t.alloc(v, parent)

	// alloc may have grown the slot array, re-index instead of keeping a
	// *slot across it
	t.slots[parent.index].children = append(t.slots[parent.index].children, c)
	return c, nil
}

// Link establishes the parent/child relation between two existing nodes:
// child's parent reference is set to parent and child is appended to
// parent's children.
//
// A node that already has a parent cannot be linked again, Link fails with
// ErrAlreadyAttached instead of leaving a stale entry behind in the old
// parent. Linking a node above or onto itself fails with ErrCycle. Nothing
// is mutated on any error.
func (t *Tree[T]) Link(parent, child Handle) error {
	ps, err := t.resolve(parent)
	if err != nil {
		return err
	}
	cs, err := t.resolve(child)
	if err != nil {
		return err
	}

	if cs.parent != (Handle{}) {
		return ErrAlreadyAttached
	}
	if child == parent || t.isAncestor(child, parent) {
		return ErrCycle
	}

	cs.parent = parent
	ps.children = append(ps.children, child)
	return nil
}

// Swap exchanges the values of a parent and one of its direct children.
//
// Only the two payloads move. Every edge, every child ordering and both
// handles stay exactly as they were, so a caller holding a handle keeps
// pointing at the same position of the tree. This is the primitive
// sift-up and sift-down are built from. Fails with ErrNotChild, leaving
// both values untouched, when child is not directly under parent.
func (t *Tree[T]) Swap(parent, child Handle) error {
	ps, err := t.resolve(parent)
	if err != nil {
		return err
	}
	cs, err := t.resolve(child)
	if err != nil {
		return err
	}

	if cs.parent != parent {
		return ErrNotChild
	}
	assert.True(slices.Contains(ps.children, child))

	ps.value, cs.value = cs.value, ps.value
	return nil
}

// Value returns the value currently stored in the node.
func (t *Tree[T]) Value(h Handle) (T, error) {
	s, err := t.resolve(h)
	if err != nil {
		var zero T
		return zero, err
	}
	return s.value, nil
}

// SetValue overwrites the value stored in the node. Like Swap it touches
// the payload only.
func (t *Tree[T]) SetValue(h Handle, v T) error {
	s, err := t.resolve(h)
	if err != nil {
		return err
	}
	s.value = v
	return nil
}

// ChildValues returns the values of the direct children in stored order,
// empty for a leaf.
func (t *Tree[T]) ChildValues(h Handle) ([]T, error) {
	s, err := t.resolve(h)
	if err != nil {
		return nil, err
	}

	// children of a live node are live by the ownership invariant
	return lo.Map(s.children, func(c Handle, _ int) T {
		return t.slots[c.index].value
	}), nil
}

// Children returns the handles of the direct children in stored order.
func (t *Tree[T]) Children(h Handle) ([]Handle, error) {
	s, err := t.resolve(h)
	if err != nil {
		return nil, err
	}
	return slices.Clone(s.children), nil
}

// Parent returns the node's parent handle, false for a root.
func (t *Tree[T]) Parent(h Handle) (Handle, bool, error) {
	s, err := t.resolve(h)
	if err != nil {
		return Handle{}, false, err
	}
	if s.parent == (Handle{}) {
		return Handle{}, false, nil
	}
	return s.parent, true, nil
}

// Release detaches the node from its parent and frees it together with
// every node below it. All handles into the released subtree become dead
// immediately.
func (t *Tree[T]) Release(h Handle) error {
	s, err := t.resolve(h)
	if err != nil {
		return err
	}

	if s.parent != (Handle{}) {
		ps := &t.slots[s.parent.index]
		i := slices.Index(ps.children, h)
		assert.GreaterOrEqual(i, 0)
		ps.children = slices.Delete(ps.children, i, i+1)
	}

	t.freeSubtree(h)
	return nil
}

// Len returns the number of live nodes in the arena.
func (t *Tree[T]) Len() int {
	return t.live
}

func (t *Tree[T]) alloc(v T, parent Handle) Handle {
	t.live++

	if n := len(t.free); n > 0 {
		idx := t.free[n-1]
		t.free = t.free[:n-1]

		s := &t.slots[idx]
		assert.False(s.live)
		s.live = true
		s.value = v
		s.parent = parent
		return Handle{index: idx, gen: s.gen}
	}

	t.slots = append(t.slots, slot[T]{value: v, parent: parent, gen: 1, live: true})
	return Handle{index: int32(len(t.slots) - 1), gen: 1}
}

func (t *Tree[T]) resolve(h Handle) (*slot[T], error) {
	if h.index < 0 || int(h.index) >= len(t.slots) {
		return nil, ErrDeadNode
	}

	s := &t.slots[h.index]
	if !s.live || s.gen != h.gen {
		return nil, ErrDeadNode
	}
	return s, nil
}

// isAncestor reports whether a is a proper ancestor of b.
func (t *Tree[T]) isAncestor(a, b Handle) bool {
	for cur := t.slots[b.index].parent; cur != (Handle{}); cur = t.slots[cur.index].parent {
		if cur == a {
			return true
		}
	}
	return false
}

func (t *Tree[T]) freeSubtree(h Handle) {
	s := &t.slots[h.index]
	for _, c := range s.children {
		t.freeSubtree(c)
	}

	var zero T
	s.live = false
	// dead handles must stay dead across slot reuse
	s.gen++
	s.value = zero
	s.parent = Handle{}
	s.children = s.children[:0]

	t.free = append(t.free, h.index)
	t.live--
}
