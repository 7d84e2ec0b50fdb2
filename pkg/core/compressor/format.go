package compressor

import (
	"fmt"
	"io"

	"github.com/TheEntropyCollective/huffpool/pkg/core/container"
)

// Format selects how a result is serialized.
type Format string

const (
	// FormatRaw emits only the packed bitstream. The output carries no code
	// table and no bit length, so it cannot be decoded on its own.
	FormatRaw Format = "raw"

	// FormatContainer wraps the bitstream in a self-describing archive.
	FormatContainer Format = "container"
)

// ParseFormat converts a string to a Format. An empty string means raw.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatRaw:
		return FormatRaw, nil
	case FormatContainer:
		return FormatContainer, nil
	default:
		return "", fmt.Errorf("unknown output format %q (expected raw or container)", s)
	}
}

// OutputSize returns the number of bytes WriteResult emits for r.
func (r *Result) OutputSize(format Format) int64 {
	payload := int64((r.Stream.Bits + 7) / 8)
	if format == FormatContainer {
		return int64(container.HeaderSize(r.Codes.Symbols())) + payload + container.DigestSize
	}
	return payload
}

// WriteResult serializes r to w in the given format.
func WriteResult(w io.Writer, r *Result, format Format) error {
	switch format {
	case "", FormatRaw:
		payload := r.Stream.Data[:(r.Stream.Bits+7)/8]
		if _, err := w.Write(payload); err != nil {
			return fmt.Errorf("failed to write bitstream: %w", err)
		}
		return nil
	case FormatContainer:
		return container.Write(w, r.Codes, r.Stream, uint64(r.InputLength), r.Digest)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
