package control

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/vietddude/shell/internal/core/domain"
	"github.com/vietddude/shell/internal/loading/lazy"
	"github.com/vietddude/shell/internal/loading/retry"
	"golang.org/x/sync/errgroup"
)

// ProbeResult is the outcome of one probe load cycle.
type ProbeResult struct {
	Remote   string
	Attempts int
	Elapsed  time.Duration
	Err      error
}

// Probe runs one full load cycle per remote concurrently, outside of any
// session. Results are in the order of remotes. A failed remote never stops
// the others.
func Probe(ctx context.Context, remotes []domain.RemoteDescriptor) []ProbeResult {
	results := make([]ProbeResult, len(remotes))

	g, ctx := errgroup.WithContext(ctx)
	for i, desc := range remotes {
		g.Go(func() error {
			var failed atomic.Int32
			start := time.Now()

			f := lazy.New(desc, lazy.WithRetryOptions(
				retry.WithOnAttempt(func(int, error) { failed.Add(1) }),
			))
			defer f.Abandon()
			_, err := f.Wait(ctx)

			attempts := int(failed.Load())
			if err == nil {
				attempts++
			}
			results[i] = ProbeResult{
				Remote:   desc.Name,
				Attempts: attempts,
				Elapsed:  time.Since(start),
				Err:      err,
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
