// Package huffman builds Huffman trees and code tables from byte
// frequencies and packs input into MSB-first bitstreams.
package huffman

import (
	"errors"

	"github.com/TheEntropyCollective/huffpool/pkg/core/leftist"
)

var (
	// ErrNoSymbols is returned when building a tree from an empty table.
	ErrNoSymbols = errors.New("frequency table has no symbols")

	// ErrCodeTooLong is returned when a leaf sits deeper than MaxCodeLength.
	ErrCodeTooLong = errors.New("code length exceeds 64 bits")
)

// MaxCodeLength is the longest code a Code can hold.
const MaxCodeLength = 64

const noChild int32 = -1

// treeNode is a leaf when both children are noChild.
type treeNode struct {
	weight uint64
	symbol byte
	left   int32
	right  int32
}

func (n treeNode) isLeaf() bool {
	return n.left == noChild && n.right == noChild
}

// Tree is a Huffman tree stored as an arena. Internal nodes own both of
// their children; the tree is built once per job and discarded after its
// code table is extracted.
type Tree struct {
	nodes []treeNode
	root  int32
}

// Weight returns the total frequency at the root.
func (t *Tree) Weight() uint64 {
	return t.nodes[t.root].weight
}

// Leaves returns the number of distinct symbols in the tree.
func (t *Tree) Leaves() int {
	leaves := 0
	for _, n := range t.nodes {
		if n.isLeaf() {
			leaves++
		}
	}
	return leaves
}

// heapEntry is what the builder keeps in the priority queue: a subtree's
// weight and its root index in the arena.
type heapEntry struct {
	weight uint64
	index  int32
}

// BuildTree seeds a leftist heap with one leaf per symbol present in freq,
// then repeatedly pops the two lightest subtrees and pushes their parent.
// The first subtree popped becomes the left child.
//
// A table with a single symbol yields a one-leaf tree.
func BuildTree(freq *FrequencyTable) (*Tree, error) {
	distinct := freq.Distinct()
	if distinct == 0 {
		return nil, ErrNoSymbols
	}

	tree := &Tree{nodes: make([]treeNode, 0, 2*distinct-1)}
	heap := leftist.New(func(a, b heapEntry) bool { return a.weight < b.weight })

	for symbol, count := range freq {
		if count == 0 {
			continue
		}
		tree.nodes = append(tree.nodes, treeNode{
			weight: count,
			symbol: byte(symbol),
			left:   noChild,
			right:  noChild,
		})
		heap.Push(heapEntry{weight: count, index: int32(len(tree.nodes) - 1)})
	}

	for heap.Len() > 1 {
		first, err := heap.Pop()
		if err != nil {
			return nil, err
		}
		second, err := heap.Pop()
		if err != nil {
			return nil, err
		}

		tree.nodes = append(tree.nodes, treeNode{
			weight: first.weight + second.weight,
			left:   first.index,
			right:  second.index,
		})
		heap.Push(heapEntry{
			weight: first.weight + second.weight,
			index:  int32(len(tree.nodes) - 1),
		})
	}

	root, err := heap.Pop()
	if err != nil {
		return nil, err
	}
	tree.root = root.index
	return tree, nil
}
