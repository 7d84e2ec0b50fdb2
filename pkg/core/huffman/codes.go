package huffman

import (
	"fmt"
	"strings"
)

// Code is a variable-length bit string. The Len low-order bits of Bits hold
// the code, most significant bit first.
type Code struct {
	Bits uint64
	Len  uint8
}

// String renders the code as a string of '0' and '1'.
func (c Code) String() string {
	var sb strings.Builder
	sb.Grow(int(c.Len))
	for i := int(c.Len) - 1; i >= 0; i-- {
		if c.Bits>>uint(i)&1 == 1 {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// isPrefixOf reports whether c is a prefix of other.
func (c Code) isPrefixOf(other Code) bool {
	if c.Len > other.Len {
		return false
	}
	return other.Bits>>(other.Len-c.Len) == c.Bits
}

// CodeTable maps each byte value to its code. Symbols that do not occur
// have a zero-length code.
type CodeTable [256]Code

// BuildCodeTable walks the tree depth first, appending 0 for each left edge
// and 1 for each right edge. The symbol of a one-leaf tree gets the code "0".
func BuildCodeTable(tree *Tree) (*CodeTable, error) {
	if tree == nil || len(tree.nodes) == 0 {
		return nil, ErrNoSymbols
	}

	table := &CodeTable{}

	root := tree.nodes[tree.root]
	if root.isLeaf() {
		table[root.symbol] = Code{Bits: 0, Len: 1}
		return table, nil
	}

	type frame struct {
		index int32
		code  Code
	}
	stack := []frame{{index: tree.root}}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n := tree.nodes[f.index]
		if n.isLeaf() {
			table[n.symbol] = f.code
			continue
		}
		if f.code.Len == MaxCodeLength {
			return nil, fmt.Errorf("%w: subtree of weight %d", ErrCodeTooLong, n.weight)
		}

		next := f.code.Len + 1
		stack = append(stack,
			frame{index: n.right, code: Code{Bits: f.code.Bits<<1 | 1, Len: next}},
			frame{index: n.left, code: Code{Bits: f.code.Bits << 1, Len: next}},
		)
	}

	return table, nil
}

// Symbols returns the number of symbols with a code.
func (t *CodeTable) Symbols() int {
	n := 0
	for _, c := range t {
		if c.Len > 0 {
			n++
		}
	}
	return n
}

// Lookup returns the code for symbol and whether it has one.
func (t *CodeTable) Lookup(symbol byte) (Code, bool) {
	c := t[symbol]
	return c, c.Len > 0
}

// EncodedBits returns the exact bit length of an input with the given
// frequencies once encoded with t.
func (t *CodeTable) EncodedBits(freq *FrequencyTable) (uint64, error) {
	var bits uint64
	for symbol, count := range freq {
		if count == 0 {
			continue
		}
		c := t[symbol]
		if c.Len == 0 {
			return 0, fmt.Errorf("%w: 0x%02x", ErrUnknownSymbol, symbol)
		}
		bits += count * uint64(c.Len)
	}
	return bits, nil
}

// Validate checks that the table is non-empty, that every code fits its
// length and that no code is a prefix of another.
func (t *CodeTable) Validate() error {
	var symbols []int
	for symbol, c := range t {
		if c.Len == 0 {
			continue
		}
		if c.Len > MaxCodeLength {
			return fmt.Errorf("%w: symbol 0x%02x has length %d", ErrCodeTooLong, symbol, c.Len)
		}
		if c.Len < MaxCodeLength && c.Bits>>c.Len != 0 {
			return fmt.Errorf("code for symbol 0x%02x has bits beyond its length %d", symbol, c.Len)
		}
		symbols = append(symbols, symbol)
	}
	if len(symbols) == 0 {
		return ErrNoSymbols
	}

	for i, a := range symbols {
		for _, b := range symbols[i+1:] {
			if t[a].isPrefixOf(t[b]) || t[b].isPrefixOf(t[a]) {
				return fmt.Errorf("code %s for 0x%02x and code %s for 0x%02x are not prefix-free",
					t[a], a, t[b], b)
			}
		}
	}
	return nil
}
