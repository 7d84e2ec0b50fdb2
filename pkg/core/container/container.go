// Package container defines the self-describing archive format: the code
// table, exact bit length and original length stored around the packed
// bitstream, followed by a SHA3-256 digest of the original input.
//
// Layout, big-endian:
//
//	magic "HPZ1" | version u8 | symbol_count u16 |
//	symbol_count x { symbol u8, code_len u8, code_bits u64 } |
//	bit_length u64 | original_length u64 | payload | sha3-256 [32]byte
package container

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/sha3"

	"github.com/TheEntropyCollective/huffpool/pkg/core/huffman"
)

const (
	// Version is the only format version Read accepts.
	Version uint8 = 1

	// DigestSize is the length of the trailing SHA3-256 digest.
	DigestSize = 32

	entrySize = 1 + 1 + 8
	maxBits   = 1 << 62
)

// Magic opens every archive.
var Magic = [4]byte{'H', 'P', 'Z', '1'}

var (
	ErrBadMagic           = errors.New("not a huffpool archive")
	ErrUnsupportedVersion = errors.New("unsupported archive version")
	ErrChecksumMismatch   = errors.New("archive checksum mismatch")
)

// Digest is the SHA3-256 hash of an original input.
type Digest [DigestSize]byte

// Sum returns the digest of data.
func Sum(data []byte) Digest {
	return Digest(sha3.Sum256(data))
}

// Archive is a decoded container.
type Archive struct {
	Codes          huffman.CodeTable
	Stream         huffman.Bitstream
	OriginalLength uint64
	Digest         Digest
}

// HeaderSize returns the number of bytes Write emits before the payload
// for a table with the given number of symbols.
func HeaderSize(symbols int) int {
	return len(Magic) + 1 + 2 + symbols*entrySize + 8 + 8
}

// Write serializes codes, stream and the original input's length and
// digest to w.
func Write(w io.Writer, codes *huffman.CodeTable, stream huffman.Bitstream, originalLength uint64, digest Digest) error {
	payloadLen := (stream.Bits + 7) / 8
	if uint64(len(stream.Data)) < payloadLen {
		return fmt.Errorf("bitstream holds %d bytes, %d bits need %d", len(stream.Data), stream.Bits, payloadLen)
	}

	bw := bufio.NewWriter(w)

	bw.Write(Magic[:])
	bw.WriteByte(Version)

	var scratch [8]byte
	binary.BigEndian.PutUint16(scratch[:2], uint16(codes.Symbols()))
	bw.Write(scratch[:2])

	for symbol, c := range codes {
		if c.Len == 0 {
			continue
		}
		bw.WriteByte(byte(symbol))
		bw.WriteByte(c.Len)
		binary.BigEndian.PutUint64(scratch[:], c.Bits)
		bw.Write(scratch[:])
	}

	binary.BigEndian.PutUint64(scratch[:], stream.Bits)
	bw.Write(scratch[:])
	binary.BigEndian.PutUint64(scratch[:], originalLength)
	bw.Write(scratch[:])

	bw.Write(stream.Data[:payloadLen])
	bw.Write(digest[:])

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write archive: %w", err)
	}
	return nil
}

// Read parses an archive from r. It validates the header and the code
// table but does not decode the payload; call Decode for that.
func Read(r io.Reader) (*Archive, error) {
	br := bufio.NewReader(r)

	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return nil, fmt.Errorf("failed to read magic: %w", err)
	}
	if magic != Magic {
		return nil, ErrBadMagic
	}

	version, err := br.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("failed to read version: %w", err)
	}
	if version != Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	var scratch [8]byte
	if _, err := io.ReadFull(br, scratch[:2]); err != nil {
		return nil, fmt.Errorf("failed to read symbol count: %w", err)
	}
	symbols := int(binary.BigEndian.Uint16(scratch[:2]))
	if symbols > 256 {
		return nil, fmt.Errorf("invalid symbol count %d", symbols)
	}

	archive := &Archive{}
	var entry [entrySize]byte
	for i := 0; i < symbols; i++ {
		if _, err := io.ReadFull(br, entry[:]); err != nil {
			return nil, fmt.Errorf("failed to read code entry %d: %w", i, err)
		}
		symbol := entry[0]
		if archive.Codes[symbol].Len != 0 {
			return nil, fmt.Errorf("duplicate code entry for symbol 0x%02x", symbol)
		}
		archive.Codes[symbol] = huffman.Code{
			Len:  entry[1],
			Bits: binary.BigEndian.Uint64(entry[2:]),
		}
	}
	// An empty input is stored with no code table.
	if symbols > 0 {
		if err := archive.Codes.Validate(); err != nil {
			return nil, fmt.Errorf("invalid code table: %w", err)
		}
	}

	if _, err := io.ReadFull(br, scratch[:]); err != nil {
		return nil, fmt.Errorf("failed to read bit length: %w", err)
	}
	archive.Stream.Bits = binary.BigEndian.Uint64(scratch[:])
	if archive.Stream.Bits > maxBits {
		return nil, fmt.Errorf("bit length %d out of range", archive.Stream.Bits)
	}
	if symbols == 0 && archive.Stream.Bits != 0 {
		return nil, fmt.Errorf("archive has %d payload bits but no code table", archive.Stream.Bits)
	}

	if _, err := io.ReadFull(br, scratch[:]); err != nil {
		return nil, fmt.Errorf("failed to read original length: %w", err)
	}
	archive.OriginalLength = binary.BigEndian.Uint64(scratch[:])

	// Read the payload incrementally so a forged bit length cannot force a
	// huge allocation up front.
	payloadLen := int64((archive.Stream.Bits + 7) / 8)
	var payload bytes.Buffer
	n, err := io.CopyN(&payload, br, payloadLen)
	if err != nil {
		return nil, fmt.Errorf("failed to read payload (%d of %d bytes): %w", n, payloadLen, err)
	}
	archive.Stream.Data = payload.Bytes()

	if _, err := io.ReadFull(br, archive.Digest[:]); err != nil {
		return nil, fmt.Errorf("failed to read digest: %w", err)
	}

	return archive, nil
}

// Decode recovers the original input and checks it against the stored
// length and digest.
func (a *Archive) Decode() ([]byte, error) {
	data := []byte{}
	if a.Stream.Bits > 0 {
		decoded, err := huffman.Decode(&a.Codes, a.Stream)
		if err != nil {
			return nil, err
		}
		data = decoded
	}
	if uint64(len(data)) != a.OriginalLength {
		return nil, fmt.Errorf("%w: decoded %d bytes, expected %d", ErrChecksumMismatch, len(data), a.OriginalLength)
	}
	if Sum(data) != a.Digest {
		return nil, ErrChecksumMismatch
	}
	return data, nil
}
