// Package workers provides the bounded task queue and worker pool that
// parallelize huffpool's frequency counting and encoding stages.
//
// # Building Blocks
//
//   - BoundedQueue: a FIFO with a hard capacity. Push blocks while the queue
//     is full, WaitAndPop blocks while it is empty, TryPop never blocks. The
//     full check, the wait and the append happen under one lock.
//   - Pool: a fixed number of workers started by NewPool. Workers pull tasks
//     with TryPop and sleep on a condition variable while the queue is empty.
//   - Future: the handle returned by Submit. Get blocks until the task
//     resolves with its value, its error, a recovered panic, or
//     ErrPoolClosed if the pool shut down before running it.
//   - AwaitAll and Map: fan-out/fan-in helpers that return results in
//     submission order.
//
// # Failure Isolation
//
// A task that returns an error or panics is recovered at the worker
// boundary, logged through the pool's logger, counted in Stats().Failed and
// delivered to its Future. The worker then continues with the next task, so
// one failing task never reduces the pool's capacity.
//
// # Shutdown
//
// Shutdown stops new dequeues, waits for in-flight tasks, and resolves the
// futures of tasks that were still queued with ErrPoolClosed. Running tasks
// are never interrupted; after ShutdownTimeout their context is cancelled so
// cooperative tasks can return early.
//
// # Usage
//
//	pool := workers.NewPool(workers.Config{WorkerCount: 4, QueueCapacity: 100})
//	defer pool.Shutdown()
//
//	future, err := workers.Submit(pool, func(ctx context.Context) (int, error) {
//		return 42, nil
//	})
//	if err != nil {
//		return err
//	}
//	value, err := future.Get(ctx)
package workers
