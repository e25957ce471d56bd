package auth

import "context"

// Step is one stage of a resolution pipeline.
type Step[T any] func(ctx context.Context) (T, error)

// Then chains two steps. next runs only when first succeeded and receives
// its result; the first error aborts the pipeline.
func Then[A, B any](first func(context.Context) (A, error), next func(context.Context, A) (B, error)) Step[B] {
	return func(ctx context.Context) (B, error) {
		a, err := first(ctx)
		if err != nil {
			var zero B
			return zero, err
		}
		return next(ctx, a)
	}
}
