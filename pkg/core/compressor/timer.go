package compressor

import (
	"context"
	"sync"
	"time"

	"github.com/TheEntropyCollective/huffpool/pkg/common/logging"
)

// Stage identifies one step of a compression job. Stages run strictly in
// the order listed.
type Stage string

const (
	StageReadInput        Stage = "read_input"
	StageCountFrequencies Stage = "count_frequencies"
	StageBuildCode        Stage = "build_code"
	StageEncode           Stage = "encode"
	StageWriteOutput      Stage = "write_output"
)

// Stages lists every stage in execution order.
var Stages = []Stage{
	StageReadInput,
	StageCountFrequencies,
	StageBuildCode,
	StageEncode,
	StageWriteOutput,
}

// StageTimer receives the wall-clock duration of each completed stage.
// Implementations must be safe for concurrent use.
type StageTimer interface {
	ObserveStage(stage Stage, elapsed time.Duration)
}

// TimerFunc adapts a function to StageTimer.
type TimerFunc func(stage Stage, elapsed time.Duration)

func (f TimerFunc) ObserveStage(stage Stage, elapsed time.Duration) {
	f(stage, elapsed)
}

// NopTimer discards every observation.
type NopTimer struct{}

func (NopTimer) ObserveStage(Stage, time.Duration) {}

// LogTimer writes each observation to a logger at debug level.
type LogTimer struct {
	Logger *logging.Logger
}

func (t LogTimer) ObserveStage(stage Stage, elapsed time.Duration) {
	t.Logger.Debug("Stage finished", map[string]interface{}{
		"stage":       string(stage),
		"duration_ms": elapsed.Milliseconds(),
	})
}

// RecordingTimer keeps the most recent duration of every stage.
type RecordingTimer struct {
	mu     sync.Mutex
	stages map[Stage]time.Duration
}

// NewRecordingTimer creates an empty RecordingTimer.
func NewRecordingTimer() *RecordingTimer {
	return &RecordingTimer{stages: make(map[Stage]time.Duration)}
}

func (t *RecordingTimer) ObserveStage(stage Stage, elapsed time.Duration) {
	t.mu.Lock()
	t.stages[stage] = elapsed
	t.mu.Unlock()
}

// Stages returns a copy of the recorded durations.
func (t *RecordingTimer) Stages() map[Stage]time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[Stage]time.Duration, len(t.stages))
	for stage, d := range t.stages {
		out[stage] = d
	}
	return out
}

// Total returns the sum of all recorded durations.
func (t *RecordingTimer) Total() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	var total time.Duration
	for _, d := range t.stages {
		total += d
	}
	return total
}

// MultiTimer fans each observation out to several timers.
type MultiTimer []StageTimer

func (m MultiTimer) ObserveStage(stage Stage, elapsed time.Duration) {
	for _, t := range m {
		if t != nil {
			t.ObserveStage(stage, elapsed)
		}
	}
}

type timerKey struct{}

// ContextWithTimer attaches a per-job timer to ctx. Compress reports to it
// in addition to the compressor's own timer, which lets a caller follow a
// single job's stages.
func ContextWithTimer(ctx context.Context, timer StageTimer) context.Context {
	return context.WithValue(ctx, timerKey{}, timer)
}

func timerFromContext(ctx context.Context) StageTimer {
	if t, ok := ctx.Value(timerKey{}).(StageTimer); ok {
		return t
	}
	return nil
}
