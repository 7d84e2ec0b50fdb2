package compressor

import (
	"bytes"
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheEntropyCollective/huffpool/pkg/common/logging"
	"github.com/TheEntropyCollective/huffpool/pkg/common/workers"
	"github.com/TheEntropyCollective/huffpool/pkg/core/container"
	"github.com/TheEntropyCollective/huffpool/pkg/core/huffman"
)

func newTestCompressor(t *testing.T, n int, opts ...Option) *Compressor {
	t.Helper()
	opts = append([]Option{WithLogger(logging.NewNopLogger())}, opts...)
	c := New(Config{Workers: n}, opts...)
	t.Cleanup(func() { c.Close() })
	return c
}

func randomText(seed int64, n int) []byte {
	rng := rand.New(rand.NewSource(seed))
	alphabet := []byte("etaoinshrdlu cmfwypvbgkqjxz\n.,")
	out := make([]byte, n)
	for i := range out {
		// Bias toward the front of the alphabet.
		out[i] = alphabet[rng.Intn(1+rng.Intn(len(alphabet)))]
	}
	return out
}

func TestPartitionCoversInput(t *testing.T) {
	for length := 0; length <= 40; length++ {
		maxK := length
		if maxK < 1 {
			maxK = 1
		}
		for k := 1; k <= maxK+3; k++ {
			ranges := Partition(length, k)
			require.Len(t, ranges, k)

			next := 0
			for i, r := range ranges {
				if r.Start != next {
					t.Fatalf("L=%d K=%d: range %d starts at %d, want %d", length, k, i, r.Start, next)
				}
				if r.End < r.Start {
					t.Fatalf("L=%d K=%d: range %d is negative", length, k, i)
				}
				next = r.End
			}
			if next != length {
				t.Fatalf("L=%d K=%d: ranges end at %d", length, k, next)
			}
		}
	}
}

func TestPartitionClampsArguments(t *testing.T) {
	assert.Equal(t, []Range{{0, 10}}, Partition(10, 0))
	assert.Equal(t, []Range{{0, 0}}, Partition(-5, 1))
	assert.Equal(t, []Range{{0, 3}, {3, 6}, {6, 10}}, Partition(10, 3))
	assert.Equal(t, 4, Partition(10, 3)[2].Len())
}

func TestCountFrequenciesIndependentOfWorkers(t *testing.T) {
	input := randomText(1, 12345)
	ctx := context.Background()

	single := newTestCompressor(t, 1)
	want, err := single.CountFrequencies(ctx, input)
	require.NoError(t, err)

	for _, n := range []int{2, 3, 7, 16} {
		c := newTestCompressor(t, n)
		got, err := c.CountFrequencies(ctx, input)
		require.NoError(t, err)
		assert.Equal(t, *want, *got, "workers=%d", n)
	}
}

// The stitched output must not depend on where range boundaries fall.
func TestEncodeIndependentOfWorkers(t *testing.T) {
	ctx := context.Background()
	input := randomText(2, 9999)

	reference, err := newTestCompressor(t, 1).Compress(ctx, input)
	require.NoError(t, err)

	for _, n := range []int{2, 5, 8, 13, 64} {
		result, err := newTestCompressor(t, n).Compress(ctx, input)
		require.NoError(t, err)
		assert.Equal(t, reference.Stream.Bits, result.Stream.Bits, "workers=%d", n)
		assert.True(t, bytes.Equal(reference.Stream.Data, result.Stream.Data), "workers=%d", n)
		assert.Equal(t, n, result.Workers)
	}
}

func TestCompressRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newTestCompressor(t, 8)

	for _, input := range [][]byte{
		[]byte("aaaabbbcc"),
		[]byte("zzzz"),
		[]byte("a"),
		randomText(3, 100003),
	} {
		result, err := c.Compress(ctx, input)
		require.NoError(t, err)

		bits, err := result.Codes.EncodedBits(&result.Frequencies)
		require.NoError(t, err)
		assert.Equal(t, bits, result.Stream.Bits)

		decoded, err := huffman.Decode(result.Codes, result.Stream)
		require.NoError(t, err)
		assert.Equal(t, input, decoded)
	}
}

func TestCompressThreeSymbolScenario(t *testing.T) {
	c := newTestCompressor(t, 1)
	out, result, err := c.CompressBytes(context.Background(), []byte("aaaabbbcc"), FormatRaw)
	require.NoError(t, err)

	assert.Equal(t, uint8(1), result.Codes['a'].Len)
	assert.Equal(t, uint8(2), result.Codes['b'].Len)
	assert.Equal(t, uint8(2), result.Codes['c'].Len)
	assert.Equal(t, []byte{0x0F, 0xE8}, out)
	assert.Equal(t, int64(2), result.OutputSize(FormatRaw))
}

func TestCompressEmptyInput(t *testing.T) {
	c := newTestCompressor(t, 4)

	out, result, err := c.CompressBytes(context.Background(), nil, FormatRaw)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, uint64(0), result.Stream.Bits)

	out, _, err = c.CompressBytes(context.Background(), []byte{}, FormatContainer)
	require.NoError(t, err)
	archive, err := container.Read(bytes.NewReader(out))
	require.NoError(t, err)
	decoded, err := archive.Decode()
	require.NoError(t, err)
	assert.Empty(t, decoded)
}

func TestCompressContainerFormat(t *testing.T) {
	input := randomText(4, 5000)
	c := newTestCompressor(t, 6)

	out, result, err := c.CompressBytes(context.Background(), input, FormatContainer)
	require.NoError(t, err)
	assert.Equal(t, result.OutputSize(FormatContainer), int64(len(out)))

	archive, err := container.Read(bytes.NewReader(out))
	require.NoError(t, err)
	decoded, err := archive.Decode()
	require.NoError(t, err)
	assert.Equal(t, input, decoded)
}

func TestCompressFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "input.txt")
	out := filepath.Join(dir, "input.txt.huff")
	input := randomText(5, 4096)
	require.NoError(t, os.WriteFile(in, input, 0644))

	c := newTestCompressor(t, 3)
	result, err := c.CompressFile(context.Background(), in, out, FormatContainer)
	require.NoError(t, err)

	for _, stage := range Stages {
		_, ok := result.Stages[stage]
		assert.True(t, ok, "missing stage %s", stage)
	}

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()

	archive, err := container.Read(f)
	require.NoError(t, err)
	decoded, err := archive.Decode()
	require.NoError(t, err)
	assert.Equal(t, input, decoded)
}

func TestCompressFileErrors(t *testing.T) {
	c := newTestCompressor(t, 2)
	dir := t.TempDir()

	_, err := c.CompressFile(context.Background(), filepath.Join(dir, "missing"), filepath.Join(dir, "out"), FormatRaw)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "failed to read input")

	in := filepath.Join(dir, "in")
	require.NoError(t, os.WriteFile(in, []byte("data"), 0644))
	_, err = c.CompressFile(context.Background(), in, filepath.Join(dir, "no", "such", "dir"), FormatRaw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create output")
}

func TestStageTimers(t *testing.T) {
	var mu sync.Mutex
	var order []Stage
	global := TimerFunc(func(stage Stage, _ time.Duration) {
		mu.Lock()
		order = append(order, stage)
		mu.Unlock()
	})
	perJob := NewRecordingTimer()

	c := newTestCompressor(t, 2, WithTimer(global))
	ctx := ContextWithTimer(context.Background(), perJob)

	result, err := c.Compress(ctx, []byte("hello timers"))
	require.NoError(t, err)

	assert.Equal(t, []Stage{StageCountFrequencies, StageBuildCode, StageEncode}, order)
	assert.Len(t, perJob.Stages(), 3)
	assert.Len(t, result.Stages, 3)
	assert.GreaterOrEqual(t, perJob.Total(), time.Duration(0))
}

func TestMultiTimerSkipsNil(t *testing.T) {
	rec := NewRecordingTimer()
	MultiTimer{nil, NopTimer{}, rec}.ObserveStage(StageEncode, time.Millisecond)
	assert.Equal(t, time.Millisecond, rec.Stages()[StageEncode])
}

func TestSharedPoolOutlivesCompressor(t *testing.T) {
	pool := workers.NewPool(workers.Config{WorkerCount: 2, Logger: logging.NewNopLogger()})
	defer pool.Shutdown()

	c := New(Config{}, WithPool(pool), WithLogger(logging.NewNopLogger()))
	assert.Equal(t, 2, c.Workers())

	_, err := c.Compress(context.Background(), []byte("shared"))
	require.NoError(t, err)
	require.NoError(t, c.Close())

	// The pool still accepts work after the compressor is closed.
	f, err := workers.Submit(pool, func(ctx context.Context) (int, error) { return 1, nil })
	require.NoError(t, err)
	v, err := f.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestCompressAfterClose(t *testing.T) {
	c := New(Config{Workers: 2}, WithLogger(logging.NewNopLogger()))
	require.NoError(t, c.Close())

	_, err := c.Compress(context.Background(), []byte("closed"))
	assert.ErrorIs(t, err, workers.ErrPoolClosed)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatRaw, f)

	f, err = ParseFormat("container")
	require.NoError(t, err)
	assert.Equal(t, FormatContainer, f)

	_, err = ParseFormat("zip")
	assert.Error(t, err)
}

func BenchmarkCompress(b *testing.B) {
	input := randomText(6, 1<<20)
	c := New(Config{}, WithLogger(logging.NewNopLogger()), WithTimer(NopTimer{}))
	defer c.Close()

	b.SetBytes(int64(len(input)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := c.Compress(context.Background(), input); err != nil {
			b.Fatal(err)
		}
	}
}
