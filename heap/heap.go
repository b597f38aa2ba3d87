// Package heap provides an implementation of a binary heap kept as a
// linked tree of nodes instead of a flat array.
// A binary heap (binary min-heap) is a tree with the property that each
// node is the minimum-valued node in its subtree.
//
// Order is maintained by exchanging values between parents and children,
// never by re-linking edges, so node positions stay valid across any
// number of heap operations.
package heap

import (
	"errors"
	"math/bits"

	"github.com/rs/zerolog"
	"github.com/trim21/errgo"
	"golang.org/x/exp/constraints"

	"minheap/node"
)

var ErrEmpty = errors.New("heap is empty")

// Heap implements a binary min-heap over a node.Tree. Values fill the
// complete binary shape: position 1 is the root, position n sits under
// position n/2.
type Heap[T constraints.Ordered] struct {
	tree *node.Tree[T]
	root node.Handle
	size int
	log  zerolog.Logger
}

// New returns a new empty heap.
func New[T constraints.Ordered]() *Heap[T] {
	return NewWithLogger[T](zerolog.Nop())
}

// NewWithLogger returns a new empty heap tracing its operations to log.
func NewWithLogger[T constraints.Ordered](log zerolog.Logger) *Heap[T] {
	return &Heap[T]{tree: node.New[T](), log: log}
}

// FromSlice returns a new heap filled with data.
func FromSlice[T constraints.Ordered](data []T) *Heap[T] {
	h := New[T]()
	for _, v := range data {
		h.Push(v)
	}
	return h
}

// Push pushes the given element onto the heap.
func (h *Heap[T]) Push(v T) {
	h.log.Trace().Msgf("push %v", v)

	h.size++
	if h.size == 1 {
		h.root = h.tree.NewRoot(v)
		return
	}

	parent := h.nodeAt(h.size / 2)
	c, err := h.tree.AttachNewChild(parent, v)
	h.must(err)
	h.siftUp(c)
}

// Pop removes and returns the minimum element from the heap.
func (h *Heap[T]) Pop() (T, error) {
	if h.size == 0 {
		var zero T
		return zero, ErrEmpty
	}

	top := h.value(h.root)
	h.log.Trace().Msgf("pop %v", top)

	if h.size == 1 {
		h.must(h.tree.Release(h.root))
		h.root = node.Handle{}
		h.size = 0
		return top, nil
	}

	// move the tail value to the root, drop the tail node, restore order
	// leaf-ward
	last := h.nodeAt(h.size)
	tail := h.value(last)
	h.must(h.tree.Release(last))
	h.size--

	h.must(h.tree.SetValue(h.root, tail))
	h.siftDown(h.root)

	return top, nil
}

// Peek returns the minimum element from the heap without removing it.
func (h *Heap[T]) Peek() (T, error) {
	if h.size == 0 {
		var zero T
		return zero, ErrEmpty
	}
	return h.value(h.root), nil
}

// Len returns the number of elements in the heap.
func (h *Heap[T]) Len() int {
	return h.size
}

// nodeAt walks from the root to the node at the 1-based position pos of
// the complete binary shape. The bits of pos below its leading one spell
// out the path: 0 goes left, 1 goes right.
func (h *Heap[T]) nodeAt(pos int) node.Handle {
	cur := h.root
	for shift := bits.Len(uint(pos)) - 2; shift >= 0; shift-- {
		children, err := h.tree.Children(cur)
		h.must(err)
		cur = children[pos>>shift&1]
	}
	return cur
}

// siftUp swaps the value at c with its parent's while it is the smaller
// of the two. The value travels root-ward, c keeps naming the same tree
// position throughout.
func (h *Heap[T]) siftUp(c node.Handle) {
	for {
		p, ok, err := h.tree.Parent(c)
		h.must(err)
		if !ok || !(h.value(c) < h.value(p)) {
			break
		}

		h.must(h.tree.Swap(p, c))
		c = p
	}
}

// siftDown swaps the value at p with its smaller child's while that child
// is smaller, pushing the value leaf-ward.
func (h *Heap[T]) siftDown(p node.Handle) {
	for {
		children, err := h.tree.Children(p)
		h.must(err)
		if len(children) == 0 {
			break
		}

		// find the smallest child
		j := children[0]
		if len(children) == 2 && h.value(children[1]) < h.value(children[0]) {
			j = children[1]
		}

		if !(h.value(j) < h.value(p)) {
			break
		}

		h.must(h.tree.Swap(p, j))
		p = j
	}
}

func (h *Heap[T]) value(n node.Handle) T {
	v, err := h.tree.Value(n)
	h.must(err)
	return v
}

// must guards calls into the node layer that can only fail if the heap's
// shape bookkeeping is wrong.
func (h *Heap[T]) must(err error) {
	if err != nil {
		panic(errgo.Wrap(err, "binary heap shape corrupted"))
	}
}
