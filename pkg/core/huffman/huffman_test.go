package huffman

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildCodes(t *testing.T, input []byte) (*FrequencyTable, *CodeTable) {
	t.Helper()
	var freq FrequencyTable
	freq.Count(input)

	tree, err := BuildTree(&freq)
	require.NoError(t, err)
	codes, err := BuildCodeTable(tree)
	require.NoError(t, err)
	require.NoError(t, codes.Validate())
	return &freq, codes
}

func TestFrequencyTable(t *testing.T) {
	var a, b FrequencyTable
	a.Count([]byte("aaab"))
	b.Count([]byte("bcc"))

	a.Add(&b)
	assert.Equal(t, uint64(3), a['a'])
	assert.Equal(t, uint64(2), a['b'])
	assert.Equal(t, uint64(2), a['c'])
	assert.Equal(t, uint64(7), a.Total())
	assert.Equal(t, 3, a.Distinct())
}

func TestBuildTreeEmpty(t *testing.T) {
	var freq FrequencyTable
	_, err := BuildTree(&freq)
	assert.ErrorIs(t, err, ErrNoSymbols)
}

func TestThreeSymbolScenario(t *testing.T) {
	input := []byte("aaaabbbcc")
	freq, codes := buildCodes(t, input)

	tree, err := BuildTree(freq)
	require.NoError(t, err)
	assert.Equal(t, 3, tree.Leaves())
	assert.Equal(t, uint64(9), tree.Weight())

	assert.Equal(t, uint8(1), codes['a'].Len)
	assert.Equal(t, uint8(2), codes['b'].Len)
	assert.Equal(t, uint8(2), codes['c'].Len)
	assert.Equal(t, 3, codes.Symbols())

	// c (2) and b (3) are popped first and become the left and right
	// children of a node of weight 5, which then pairs with a (4).
	assert.Equal(t, "0", codes['a'].String())
	assert.Equal(t, "10", codes['c'].String())
	assert.Equal(t, "11", codes['b'].String())

	bits, err := codes.EncodedBits(freq)
	require.NoError(t, err)
	assert.Equal(t, uint64(4*1+3*2+2*2), bits)

	stream, err := PackRange(input, codes)
	require.NoError(t, err)
	assert.Equal(t, uint64(14), stream.Bits)
	require.Len(t, stream.Data, 2)
	// 0000 111111 1010 + two zero padding bits
	assert.Equal(t, []byte{0x0F, 0xE8}, stream.Data)
	assert.Equal(t, uint8(2), stream.Padding())
}

func TestSingleSymbolGetsOneBitCode(t *testing.T) {
	input := []byte("zzzz")
	_, codes := buildCodes(t, input)

	code, ok := codes.Lookup('z')
	require.True(t, ok)
	assert.Equal(t, "0", code.String())

	stream, err := PackRange(input, codes)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), stream.Bits)
	assert.Equal(t, []byte{0x00}, stream.Data)

	decoded, err := Decode(codes, stream)
	require.NoError(t, err)
	assert.Equal(t, input, decoded)
}

func TestPackRangeUnknownSymbol(t *testing.T) {
	_, codes := buildCodes(t, []byte("abc"))
	_, err := PackRange([]byte("abd"), codes)
	assert.ErrorIs(t, err, ErrUnknownSymbol)
}

// A strictly more frequent symbol never gets a longer code. Equal
// frequencies may legitimately differ in length.
func TestCodesAreOptimalAndPrefixFree(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for round := 0; round < 30; round++ {
		input := make([]byte, 1+rng.Intn(5000))
		alphabet := 1 + rng.Intn(256)
		for i := range input {
			// Skewed distribution so code lengths vary.
			input[i] = byte(rng.Intn(1+rng.Intn(alphabet)) % alphabet)
		}

		freq, codes := buildCodes(t, input)

		for a := 0; a < 256; a++ {
			for b := 0; b < 256; b++ {
				if freq[a] == 0 || freq[b] == 0 {
					continue
				}
				if freq[a] > freq[b] && codes[a].Len > codes[b].Len {
					t.Fatalf("symbol %d (freq %d) has longer code than symbol %d (freq %d)",
						a, freq[a], b, freq[b])
				}
			}
		}
	}
}

func TestValidateRejectsPrefixes(t *testing.T) {
	var codes CodeTable
	codes['a'] = Code{Bits: 0b0, Len: 1}
	codes['b'] = Code{Bits: 0b01, Len: 2}
	assert.Error(t, codes.Validate())

	var empty CodeTable
	assert.ErrorIs(t, empty.Validate(), ErrNoSymbols)

	var overflow CodeTable
	overflow['x'] = Code{Bits: 0b111, Len: 2}
	assert.Error(t, overflow.Validate())
}

func TestCodeString(t *testing.T) {
	assert.Equal(t, "", Code{}.String())
	assert.Equal(t, "0010", Code{Bits: 0b0010, Len: 4}.String())
	assert.Equal(t, "1", Code{Bits: 1, Len: 1}.String())
}

// Concatenation keeps bit continuity across parts whose length is not a
// multiple of eight.
func TestConcatStitchesAtBitLevel(t *testing.T) {
	input := []byte("aaaabbbccabcabcbbbaaac")
	_, codes := buildCodes(t, input)

	whole, err := PackRange(input, codes)
	require.NoError(t, err)

	for split1 := 0; split1 <= len(input); split1++ {
		for split2 := split1; split2 <= len(input); split2 += 3 {
			parts := make([]Bitstream, 0, 3)
			for _, r := range [][2]int{{0, split1}, {split1, split2}, {split2, len(input)}} {
				p, err := PackRange(input[r[0]:r[1]], codes)
				require.NoError(t, err)
				parts = append(parts, p)
			}

			joined, err := Concat(parts...)
			require.NoError(t, err)
			require.Equal(t, whole.Bits, joined.Bits)
			require.True(t, bytes.Equal(whole.Data, joined.Data),
				"split at %d/%d: %x != %x", split1, split2, joined.Data, whole.Data)
		}
	}
}

func TestConcatRejectsShortData(t *testing.T) {
	_, err := Concat(Bitstream{Data: []byte{0xFF}, Bits: 9})
	assert.Error(t, err)
}

func TestDecodeRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	input := make([]byte, 10000)
	for i := range input {
		v := int(rng.NormFloat64()*20 + 128)
		if v < 0 {
			v = 0
		} else if v > 255 {
			v = 255
		}
		input[i] = byte(v)
	}

	_, codes := buildCodes(t, input)
	stream, err := PackRange(input, codes)
	require.NoError(t, err)

	decoded, err := Decode(codes, stream)
	require.NoError(t, err)
	assert.Equal(t, input, decoded)
}

func TestDecodeCorruptStream(t *testing.T) {
	_, codes := buildCodes(t, []byte("aaaabbbcc"))

	// Ends after "1", inside the codes for b and c.
	_, err := Decode(codes, Bitstream{Data: []byte{0x80}, Bits: 1})
	assert.True(t, errors.Is(err, ErrCorruptStream))

	_, err = Decode(codes, Bitstream{Data: nil, Bits: 8})
	assert.ErrorIs(t, err, ErrCorruptStream)
}

func BenchmarkPackRange(b *testing.B) {
	input := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 2000)
	var freq FrequencyTable
	freq.Count(input)
	tree, _ := BuildTree(&freq)
	codes, _ := BuildCodeTable(tree)

	b.SetBytes(int64(len(input)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := PackRange(input, codes); err != nil {
			b.Fatal(err)
		}
	}
}
