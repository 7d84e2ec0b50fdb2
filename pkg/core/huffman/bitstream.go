package huffman

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/icza/bitio"
)

// ErrUnknownSymbol is returned when input contains a byte with no code.
var ErrUnknownSymbol = errors.New("symbol has no code")

// Bitstream is a packed sequence of Bits bits, most significant bit of each
// byte first. Bits past Bits in the final byte are zero.
type Bitstream struct {
	Data []byte
	Bits uint64
}

// Padding returns the number of zero bits that fill out the final byte.
func (b Bitstream) Padding() uint8 {
	if rem := b.Bits % 8; rem != 0 {
		return uint8(8 - rem)
	}
	return 0
}

// PackRange encodes data with codes. Bit i of the result lands in bit
// 7-i%8 of byte i/8.
func PackRange(data []byte, codes *CodeTable) (Bitstream, error) {
	var buf bytes.Buffer
	w := bitio.NewWriter(&buf)

	var bits uint64
	for _, b := range data {
		c := codes[b]
		if c.Len == 0 {
			return Bitstream{}, fmt.Errorf("%w: 0x%02x", ErrUnknownSymbol, b)
		}
		if err := w.WriteBits(c.Bits, c.Len); err != nil {
			return Bitstream{}, fmt.Errorf("failed to pack symbol: %w", err)
		}
		bits += uint64(c.Len)
	}

	if err := w.Close(); err != nil {
		return Bitstream{}, fmt.Errorf("failed to flush bitstream: %w", err)
	}
	return Bitstream{Data: buf.Bytes(), Bits: bits}, nil
}

// Concat joins parts at bit granularity: each part continues exactly where
// the previous one ended, so padding appears only at the end of the result.
func Concat(parts ...Bitstream) (Bitstream, error) {
	var total uint64
	for _, p := range parts {
		total += p.Bits
	}

	var buf bytes.Buffer
	buf.Grow(int((total + 7) / 8))
	w := bitio.NewWriter(&buf)

	for i, p := range parts {
		full := p.Bits / 8
		if uint64(len(p.Data)) < (p.Bits+7)/8 {
			return Bitstream{}, fmt.Errorf("part %d: %d bytes cannot hold %d bits", i, len(p.Data), p.Bits)
		}
		if _, err := w.Write(p.Data[:full]); err != nil {
			return Bitstream{}, fmt.Errorf("part %d: %w", i, err)
		}
		if rem := uint8(p.Bits % 8); rem != 0 {
			last := uint64(p.Data[full] >> (8 - rem))
			if err := w.WriteBits(last, rem); err != nil {
				return Bitstream{}, fmt.Errorf("part %d: %w", i, err)
			}
		}
	}

	if err := w.Close(); err != nil {
		return Bitstream{}, fmt.Errorf("failed to flush bitstream: %w", err)
	}
	return Bitstream{Data: buf.Bytes(), Bits: total}, nil
}
