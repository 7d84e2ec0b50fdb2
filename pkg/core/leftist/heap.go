// Package leftist implements a height-biased leftist tree: a meldable
// min-heap with O(log n) push, pop and meld.
//
// Nodes live in an arena addressed by int32 index rather than behind
// pointers. Every node is owned by exactly one parent (or is the root), and
// slots released by Pop are recycled through a free list.
package leftist

import "errors"

// ErrEmptyHeap is returned by Pop on a heap with no elements.
var ErrEmptyHeap = errors.New("heap is empty")

const none int32 = -1

type node[T any] struct {
	value T
	left  int32
	right int32
	// npl is the null path length: the shortest distance to a missing
	// child, counting the node itself. A missing node has npl 0.
	npl int32
}

// Heap is a min-heap ordered by less. The zero value is not usable; create
// heaps with New. A Heap is not safe for concurrent use.
type Heap[T any] struct {
	less  func(a, b T) bool
	nodes []node[T]
	free  []int32
	root  int32
	size  int
}

// New returns an empty heap ordered by less.
func New[T any](less func(a, b T) bool) *Heap[T] {
	return &Heap[T]{less: less, root: none}
}

// Len returns the number of elements in the heap.
func (h *Heap[T]) Len() int {
	return h.size
}

// IsEmpty reports whether the heap has no elements.
func (h *Heap[T]) IsEmpty() bool {
	return h.size == 0
}

// Push adds value by melding a one-node tree into the heap.
func (h *Heap[T]) Push(value T) {
	idx := h.alloc(value)
	h.root = h.merge(h.root, idx)
	h.size++
}

// Top returns the minimum element without removing it. The boolean is false
// when the heap is empty.
func (h *Heap[T]) Top() (T, bool) {
	if h.root == none {
		var zero T
		return zero, false
	}
	return h.nodes[h.root].value, true
}

// Pop removes and returns the minimum element. The remaining heap is the
// meld of the old root's subtrees.
func (h *Heap[T]) Pop() (T, error) {
	if h.root == none {
		var zero T
		return zero, ErrEmptyHeap
	}

	old := h.root
	value := h.nodes[old].value
	left, right := h.nodes[old].left, h.nodes[old].right

	h.release(old)
	h.root = h.merge(left, right)
	h.size--
	return value, nil
}

// Meld moves every element of other into h and leaves other empty.
//
// The smaller arena is appended to the larger one, so the copy costs
// O(min(n, m)); the merge itself only walks the two right spines.
func (h *Heap[T]) Meld(other *Heap[T]) {
	if other == nil || other == h || other.size == 0 {
		return
	}

	if len(other.nodes) > len(h.nodes) {
		h.nodes, other.nodes = other.nodes, h.nodes
		h.free, other.free = other.free, h.free
		h.root, other.root = other.root, h.root
		h.size, other.size = other.size, h.size
	}

	otherRoot := none
	if other.size > 0 {
		offset := int32(len(h.nodes))
		for _, n := range other.nodes {
			if n.left != none {
				n.left += offset
			}
			if n.right != none {
				n.right += offset
			}
			h.nodes = append(h.nodes, n)
		}
		for _, slot := range other.free {
			h.free = append(h.free, slot+offset)
		}
		otherRoot = other.root + offset
	}

	h.root = h.merge(h.root, otherRoot)
	h.size += other.size

	other.nodes = nil
	other.free = nil
	other.root = none
	other.size = 0
}

// merge joins the trees rooted at a and b and returns the new root.
func (h *Heap[T]) merge(a, b int32) int32 {
	if b == none {
		return a
	}
	if a == none {
		return b
	}
	if h.less(h.nodes[b].value, h.nodes[a].value) {
		a, b = b, a
	}

	merged := h.merge(h.nodes[a].right, b)

	n := &h.nodes[a]
	n.right = merged
	if n.left == none {
		n.left, n.right = n.right, none
	} else if h.npl(n.left) < h.npl(n.right) {
		n.left, n.right = n.right, n.left
	}
	n.npl = 1 + h.npl(n.right)
	return a
}

func (h *Heap[T]) npl(i int32) int32 {
	if i == none {
		return 0
	}
	return h.nodes[i].npl
}

func (h *Heap[T]) alloc(value T) int32 {
	n := node[T]{value: value, left: none, right: none, npl: 1}
	if last := len(h.free) - 1; last >= 0 {
		idx := h.free[last]
		h.free = h.free[:last]
		h.nodes[idx] = n
		return idx
	}
	h.nodes = append(h.nodes, n)
	return int32(len(h.nodes) - 1)
}

func (h *Heap[T]) release(i int32) {
	h.nodes[i] = node[T]{left: none, right: none}
	h.free = append(h.free, i)
}
