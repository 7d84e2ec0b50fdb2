// Package compressor orchestrates a compression job: it splits the input
// into one range per worker, counts frequencies in parallel, builds the
// Huffman code and encodes the ranges in parallel, stitching their
// bitstreams back together in range order.
package compressor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/TheEntropyCollective/huffpool/pkg/common/logging"
	"github.com/TheEntropyCollective/huffpool/pkg/common/workers"
	"github.com/TheEntropyCollective/huffpool/pkg/core/container"
	"github.com/TheEntropyCollective/huffpool/pkg/core/huffman"
)

// Config controls the compressor and the pool it creates.
type Config struct {
	// Workers is both the pool size and the number of input ranges.
	// Zero means runtime.NumCPU().
	Workers int

	// QueueCapacity bounds the pool's task queue. Zero means
	// workers.DefaultQueueCapacity.
	QueueCapacity int

	// ShutdownTimeout is passed through to the pool.
	ShutdownTimeout time.Duration
}

// Option customizes a Compressor.
type Option func(*Compressor)

// WithTimer sets the timer that observes every job's stages.
func WithTimer(timer StageTimer) Option {
	return func(c *Compressor) {
		c.timer = timer
	}
}

// WithLogger sets the compressor's logger.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Compressor) {
		c.logger = logger
	}
}

// WithPool makes the compressor run on an existing pool. The pool stays
// owned by the caller and Close does not shut it down.
func WithPool(pool *workers.Pool) Option {
	return func(c *Compressor) {
		c.pool = pool
	}
}

// Result is the outcome of one compression job.
type Result struct {
	Frequencies huffman.FrequencyTable
	Codes       *huffman.CodeTable
	Stream      huffman.Bitstream
	InputLength int
	Digest      container.Digest
	Workers     int
	Stages      map[Stage]time.Duration
}

// Compressor runs compression jobs on a worker pool. It is safe for
// concurrent use; concurrent jobs share the pool.
type Compressor struct {
	config   Config
	pool     *workers.Pool
	ownsPool bool
	timer    StageTimer
	logger   *logging.Logger
}

// New creates a Compressor. Unless WithPool is given it starts its own pool,
// which Close shuts down.
func New(config Config, opts ...Option) *Compressor {
	c := &Compressor{config: config}
	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = logging.GetGlobalLogger().WithComponent("compressor")
	}
	if c.timer == nil {
		c.timer = LogTimer{Logger: c.logger}
	}
	if c.pool == nil {
		c.pool = workers.NewPool(workers.Config{
			WorkerCount:     config.Workers,
			QueueCapacity:   config.QueueCapacity,
			ShutdownTimeout: config.ShutdownTimeout,
			Logger:          c.logger.WithComponent("workers"),
		})
		c.ownsPool = true
	}
	if c.config.Workers <= 0 {
		c.config.Workers = c.pool.WorkerCount()
	}

	return c
}

// Workers returns the number of ranges each job is split into.
func (c *Compressor) Workers() int {
	return c.config.Workers
}

// PoolStats exposes the underlying pool's counters.
func (c *Compressor) PoolStats() workers.PoolStats {
	return c.pool.Stats()
}

// Close shuts down the pool if the compressor created it.
func (c *Compressor) Close() error {
	if c.ownsPool {
		return c.pool.Shutdown()
	}
	return nil
}

// CountFrequencies tallies input in parallel, one task per range, and sums
// the partial tables.
func (c *Compressor) CountFrequencies(ctx context.Context, input []byte) (*huffman.FrequencyTable, error) {
	ranges := Partition(len(input), c.config.Workers)

	partials, err := workers.Map(ctx, c.pool, ranges,
		func(ctx context.Context, _ int, r Range) (huffman.FrequencyTable, error) {
			var table huffman.FrequencyTable
			table.Count(input[r.Start:r.End])
			return table, nil
		})
	if err != nil {
		return nil, fmt.Errorf("frequency count failed: %w", err)
	}

	total := &huffman.FrequencyTable{}
	for i := range partials {
		total.Add(&partials[i])
	}
	return total, nil
}

// Encode packs each range in parallel and joins the range bitstreams in
// range order at bit granularity.
func (c *Compressor) Encode(ctx context.Context, input []byte, codes *huffman.CodeTable) (huffman.Bitstream, error) {
	ranges := Partition(len(input), c.config.Workers)

	parts, err := workers.Map(ctx, c.pool, ranges,
		func(ctx context.Context, _ int, r Range) (huffman.Bitstream, error) {
			return huffman.PackRange(input[r.Start:r.End], codes)
		})
	if err != nil {
		return huffman.Bitstream{}, fmt.Errorf("encode failed: %w", err)
	}

	stream, err := huffman.Concat(parts...)
	if err != nil {
		return huffman.Bitstream{}, fmt.Errorf("failed to join range bitstreams: %w", err)
	}
	return stream, nil
}

// Compress runs the count, build and encode stages over an in-memory input.
// An empty input yields an empty result.
func (c *Compressor) Compress(ctx context.Context, input []byte) (*Result, error) {
	rec := NewRecordingTimer()
	result, err := c.compress(ctx, input, c.jobTimer(ctx, rec))
	if err != nil {
		return nil, err
	}
	result.Stages = rec.Stages()
	return result, nil
}

// CompressFile reads inputPath, compresses it and writes the result to
// outputPath in the given format.
func (c *Compressor) CompressFile(ctx context.Context, inputPath, outputPath string, format Format) (*Result, error) {
	rec := NewRecordingTimer()
	timer := c.jobTimer(ctx, rec)

	start := time.Now()
	input, err := os.ReadFile(inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read input %s: %w", inputPath, err)
	}
	timer.ObserveStage(StageReadInput, time.Since(start))

	result, err := c.compress(ctx, input, timer)
	if err != nil {
		return nil, err
	}

	start = time.Now()
	if err := writeFile(outputPath, result, format); err != nil {
		return nil, err
	}
	timer.ObserveStage(StageWriteOutput, time.Since(start))

	result.Stages = rec.Stages()
	return result, nil
}

// CompressBytes compresses input and returns the serialized output.
func (c *Compressor) CompressBytes(ctx context.Context, input []byte, format Format) ([]byte, *Result, error) {
	result, err := c.Compress(ctx, input)
	if err != nil {
		return nil, nil, err
	}

	var buf bytes.Buffer
	buf.Grow(int(result.OutputSize(format)))
	if err := WriteResult(&buf, result, format); err != nil {
		return nil, nil, err
	}
	return buf.Bytes(), result, nil
}

func (c *Compressor) compress(ctx context.Context, input []byte, timer StageTimer) (*Result, error) {
	result := &Result{
		InputLength: len(input),
		Digest:      container.Sum(input),
		Workers:     c.config.Workers,
		Codes:       &huffman.CodeTable{},
	}
	if len(input) == 0 {
		return result, nil
	}

	start := time.Now()
	freq, err := c.CountFrequencies(ctx, input)
	if err != nil {
		return nil, err
	}
	result.Frequencies = *freq
	timer.ObserveStage(StageCountFrequencies, time.Since(start))

	start = time.Now()
	tree, err := huffman.BuildTree(freq)
	if err != nil {
		return nil, fmt.Errorf("failed to build huffman tree: %w", err)
	}
	codes, err := huffman.BuildCodeTable(tree)
	if err != nil {
		return nil, fmt.Errorf("failed to build code table: %w", err)
	}
	result.Codes = codes
	timer.ObserveStage(StageBuildCode, time.Since(start))

	start = time.Now()
	stream, err := c.Encode(ctx, input, codes)
	if err != nil {
		return nil, err
	}
	result.Stream = stream
	timer.ObserveStage(StageEncode, time.Since(start))

	c.logger.Info("Compression finished", map[string]interface{}{
		"input_bytes": len(input),
		"output_bits": stream.Bits,
		"symbols":     codes.Symbols(),
		"workers":     c.config.Workers,
	})
	return result, nil
}

// jobTimer combines the compressor's timer, the job's recorder and any
// timer carried by ctx.
func (c *Compressor) jobTimer(ctx context.Context, rec *RecordingTimer) StageTimer {
	timers := MultiTimer{c.timer, rec}
	if t := timerFromContext(ctx); t != nil {
		timers = append(timers, t)
	}
	return timers
}

func writeFile(path string, result *Result, format Format) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close output %s: %w", path, cerr)
		}
	}()

	if err := WriteResult(f, result, format); err != nil {
		return fmt.Errorf("failed to write output %s: %w", path, err)
	}
	return nil
}
