package huffman

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/icza/bitio"
)

// ErrCorruptStream is returned when a bitstream does not decode cleanly.
var ErrCorruptStream = errors.New("corrupt bitstream")

// decodeNode is an interior node of the decoding trie when symbol < 0.
type decodeNode struct {
	children [2]int32
	symbol   int16
}

// Decode reverses PackRange and Concat. It needs the code table and the exact
// bit length, neither of which the raw bitstream carries.
func Decode(codes *CodeTable, stream Bitstream) ([]byte, error) {
	if err := codes.Validate(); err != nil {
		return nil, err
	}
	if uint64(len(stream.Data)) < (stream.Bits+7)/8 {
		return nil, fmt.Errorf("%w: %d bytes cannot hold %d bits", ErrCorruptStream, len(stream.Data), stream.Bits)
	}

	trie := []decodeNode{{children: [2]int32{noChild, noChild}, symbol: -1}}
	for symbol, c := range codes {
		if c.Len == 0 {
			continue
		}
		at := int32(0)
		for i := int(c.Len) - 1; i >= 0; i-- {
			bit := c.Bits >> uint(i) & 1
			next := trie[at].children[bit]
			if next == noChild {
				trie = append(trie, decodeNode{children: [2]int32{noChild, noChild}, symbol: -1})
				next = int32(len(trie) - 1)
				trie[at].children[bit] = next
			}
			at = next
		}
		trie[at].symbol = int16(symbol)
	}

	r := bitio.NewReader(bytes.NewReader(stream.Data))
	out := make([]byte, 0, stream.Bits/2)

	at := int32(0)
	for i := uint64(0); i < stream.Bits; i++ {
		bit, err := r.ReadBool()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptStream, err)
		}
		idx := 0
		if bit {
			idx = 1
		}
		at = trie[at].children[idx]
		if at == noChild {
			return nil, fmt.Errorf("%w: no code matches at bit %d", ErrCorruptStream, i)
		}
		if s := trie[at].symbol; s >= 0 {
			out = append(out, byte(s))
			at = 0
		}
	}

	if at != 0 {
		return nil, fmt.Errorf("%w: stream ends inside a code", ErrCorruptStream)
	}
	return out, nil
}
