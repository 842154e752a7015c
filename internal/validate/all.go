package validate

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// ValidateAll checks paths with at most jobs files open at once. Results keep
// the order of paths. The error is non-nil only when ctx is canceled; results
// of files not reached are left zero.
func (c *Checker) ValidateAll(ctx context.Context, paths []string, jobs int) ([]Result, error) {
	if jobs < 1 {
		jobs = 1
	}
	results := make([]Result, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, p := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = c.Validate(gctx, p)
			return nil
		})
	}
	return results, g.Wait()
}
