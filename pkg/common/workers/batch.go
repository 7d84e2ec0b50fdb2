package workers

import (
	"context"
	"fmt"
)

// AwaitAll waits for every future and returns their values in submission
// order, regardless of the order in which workers completed them.
//
// Error Handling:
//   - Every future is waited for, so no task is left running unobserved
//   - The first failure in submission order is returned, wrapped with its index
//   - Context cancellation stops waiting and returns ctx.Err()
func AwaitAll[T any](ctx context.Context, futures []*Future[T]) ([]T, error) {
	results := make([]T, len(futures))
	errs := make([]error, len(futures))

	for i, future := range futures {
		value, err := future.Get(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			errs[i] = err
			continue
		}
		results[i] = value
	}

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("task %d: %w", i, err)
		}
	}

	return results, nil
}

// Map submits fn once per input and collects the outputs in input order.
//
// This is the fan-out/fan-in shape the compressor uses for both frequency
// counting and encoding: each input is an independent range, results are
// re-sequenced by index rather than completion order.
//
// Usage Example:
//
//	tables, err := workers.Map(ctx, pool, ranges,
//		func(ctx context.Context, i int, r Range) (huffman.FrequencyTable, error) {
//			var t huffman.FrequencyTable
//			t.Count(input[r.Start:r.End])
//			return t, nil
//		})
func Map[In, Out any](ctx context.Context, p *Pool, inputs []In, fn func(ctx context.Context, index int, input In) (Out, error)) ([]Out, error) {
	futures := make([]*Future[Out], 0, len(inputs))

	for i, input := range inputs {
		index, in := i, input
		future, err := Submit(p, func(ctx context.Context) (Out, error) {
			return fn(ctx, index, in)
		})
		if err != nil {
			// Let already submitted tasks finish before reporting.
			_, _ = AwaitAll(ctx, futures)
			return nil, fmt.Errorf("failed to submit task %d: %w", i, err)
		}
		futures = append(futures, future)
	}

	return AwaitAll(ctx, futures)
}
