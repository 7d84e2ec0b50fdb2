package workers

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/TheEntropyCollective/huffpool/pkg/common/logging"
)

var (
	// ErrPoolClosed is returned by Submit after Shutdown and delivered to
	// the futures of queued tasks that never ran.
	ErrPoolClosed = errors.New("worker pool is shut down")

	// ErrTaskPanicked wraps the value recovered from a panicking task.
	ErrTaskPanicked = errors.New("task panicked")

	// ErrNilTask is returned when Submit is handed a nil function.
	ErrNilTask = errors.New("task function is nil")
)

// ProgressReporter is called when a task completes
type ProgressReporter func(completed, total int64)

// Config holds configuration for the worker pool
type Config struct {
	// WorkerCount is the number of workers to spawn
	// If 0, defaults to runtime.NumCPU()
	WorkerCount int

	// QueueCapacity bounds the number of submitted but not yet started tasks.
	// If 0, defaults to DefaultQueueCapacity
	QueueCapacity int

	// ShutdownTimeout is how long Shutdown waits for in-flight tasks before
	// cancelling the context handed to them
	ShutdownTimeout time.Duration

	// ProgressReporter is called when tasks complete (optional)
	ProgressReporter ProgressReporter

	// Logger receives recovered task failures (optional)
	Logger *logging.Logger
}

// workItem is the type-erased unit the queue carries. run executes the task
// and resolves its future; abandon resolves the future without running it.
type workItem struct {
	id      string
	run     func(ctx context.Context) error
	abandon func(err error)
}

// Pool is a fixed set of workers pulling tasks from a BoundedQueue.
//
// Workers are started by NewPool and live until Shutdown. Each worker
// repeatedly tries to pop a task; when the queue is empty it sleeps on a
// condition variable until a task is submitted or the pool stops, so idle
// workers never spin.
//
// A task that returns an error or panics is logged and counted but never
// takes its worker down; the failure is delivered through the task's Future.
type Pool struct {
	config Config
	queue  *BoundedQueue[workItem]
	logger *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// idle workers wait on cond; mu also orders running against the wait
	mu      sync.Mutex
	cond    *sync.Cond
	running atomic.Bool

	shutdownOnce sync.Once
	abandoned    int64

	// Statistics
	seq       uint64
	submitted int64
	completed int64
	failed    int64
}

// PoolStats holds statistics about pool performance
type PoolStats struct {
	WorkerCount int
	Submitted   int64
	Completed   int64
	Failed      int64
	Abandoned   int64
	Pending     int
}

// NewPool creates a worker pool and starts its workers immediately.
func NewPool(config Config) *Pool {
	if config.WorkerCount <= 0 {
		config.WorkerCount = runtime.NumCPU()
	}
	if config.QueueCapacity <= 0 {
		config.QueueCapacity = DefaultQueueCapacity
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 30 * time.Second
	}

	logger := config.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger().WithComponent("workers")
	}

	ctx, cancel := context.WithCancel(context.Background())

	p := &Pool{
		config: config,
		queue:  NewBoundedQueue[workItem](config.QueueCapacity),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
	p.cond = sync.NewCond(&p.mu)
	p.running.Store(true)

	for i := 0; i < config.WorkerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	return p
}

// WorkerCount returns the number of workers the pool was started with.
func (p *Pool) WorkerCount() int {
	return p.config.WorkerCount
}

// Submit wraps fn as a task, enqueues it (blocking while the queue is full)
// and returns the Future through which the caller obtains its result.
//
// Submit is a function rather than a method because Go methods cannot
// introduce type parameters.
func Submit[T any](p *Pool, fn func(ctx context.Context) (T, error)) (*Future[T], error) {
	if fn == nil {
		return nil, ErrNilTask
	}

	id := fmt.Sprintf("task-%d", atomic.AddUint64(&p.seq, 1))
	future := newFuture[T](id)

	item := workItem{
		id: id,
		run: func(ctx context.Context) error {
			value, err := fn(ctx)
			future.resolve(value, err)
			return err
		},
		abandon: func(err error) {
			var zero T
			future.resolve(zero, err)
		},
	}

	if err := p.enqueue(item); err != nil {
		return nil, err
	}
	return future, nil
}

// SubmitFunc submits side-effect-only work.
func SubmitFunc(p *Pool, fn func(ctx context.Context) error) (*Future[struct{}], error) {
	if fn == nil {
		return nil, ErrNilTask
	}
	return Submit(p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
}

func (p *Pool) enqueue(item workItem) error {
	if !p.running.Load() {
		return ErrPoolClosed
	}

	// Counted before the push so a fast worker never reports more
	// completions than submissions.
	atomic.AddInt64(&p.submitted, 1)
	if err := p.queue.Push(item); err != nil {
		atomic.AddInt64(&p.submitted, -1)
		if errors.Is(err, ErrQueueClosed) {
			return ErrPoolClosed
		}
		return err
	}

	p.mu.Lock()
	p.cond.Signal()
	p.mu.Unlock()
	return nil
}

// Shutdown stops the pool.
//
// It clears the running flag, wakes every idle worker and waits for
// in-flight tasks to finish. If they do not finish within ShutdownTimeout
// the context passed to them is cancelled and Shutdown keeps waiting; a
// running task is never interrupted. Tasks still queued when the workers
// exit are not run: their futures resolve with ErrPoolClosed.
//
// Shutdown is idempotent.
func (p *Pool) Shutdown() error {
	p.shutdownOnce.Do(func() {
		p.mu.Lock()
		p.running.Store(false)
		p.cond.Broadcast()
		p.mu.Unlock()

		p.queue.Close()

		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(p.config.ShutdownTimeout):
			p.logger.Warn("Shutdown timeout reached, cancelling in-flight tasks", map[string]interface{}{
				"timeout": p.config.ShutdownTimeout.String(),
			})
			p.cancel()
			<-done
		}
		p.cancel()

		for _, item := range p.queue.Drain() {
			item.abandon(ErrPoolClosed)
			atomic.AddInt64(&p.abandoned, 1)
		}
	})
	return nil
}

// Stats returns current pool statistics
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		WorkerCount: p.config.WorkerCount,
		Submitted:   atomic.LoadInt64(&p.submitted),
		Completed:   atomic.LoadInt64(&p.completed),
		Failed:      atomic.LoadInt64(&p.failed),
		Abandoned:   atomic.LoadInt64(&p.abandoned),
		Pending:     p.queue.Len(),
	}
}

// worker is the main worker goroutine
func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for p.running.Load() {
		item, ok := p.queue.TryPop()
		if !ok {
			p.waitForWork()
			continue
		}
		p.execute(id, item)
	}
}

// waitForWork parks the worker until a task is queued or the pool stops.
// Submitters signal while holding mu, so a submission between the empty
// check and Wait cannot be missed.
func (p *Pool) waitForWork() {
	p.mu.Lock()
	for p.running.Load() && p.queue.IsEmpty() {
		p.cond.Wait()
	}
	p.mu.Unlock()
}

// execute runs one task at the worker boundary, converting panics into
// errors so the worker survives.
func (p *Pool) execute(workerID int, item workItem) {
	start := time.Now()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: %v", ErrTaskPanicked, r)
				item.abandon(err)
			}
		}()
		return item.run(p.ctx)
	}()

	if err != nil {
		atomic.AddInt64(&p.failed, 1)
		p.logger.Error("Task failed", map[string]interface{}{
			"task_id":  item.id,
			"worker":   workerID,
			"error":    err.Error(),
			"duration": time.Since(start).String(),
		})
	}
	completed := atomic.AddInt64(&p.completed, 1)

	if p.config.ProgressReporter != nil {
		p.config.ProgressReporter(completed, atomic.LoadInt64(&p.submitted))
	}
}
