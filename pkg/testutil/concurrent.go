// Package testutil holds helpers shared by package-level tests.
package testutil

import (
	"errors"
	"sync"
	"sync/atomic"

	dErrors "companion/pkg/domain-errors"
	"companion/pkg/platform/sentinel"
)

// ConcurrentResult tracks outcomes of concurrent test operations.
type ConcurrentResult struct {
	Successes    int32
	Errors       int32
	Conflicts    int32
	NotFounds    int32
	Insufficient int32
}

// Total returns the total number of operations executed.
func (r *ConcurrentResult) Total() int32 {
	return r.Successes + r.Errors + r.Conflicts + r.NotFounds + r.Insufficient
}

// RunConcurrent executes fn in parallel goroutines and buckets each outcome as
// success, conflict, not_found, insufficient_credits, or generic error.
func RunConcurrent(goroutines int, fn func(idx int) error) *ConcurrentResult {
	var wg sync.WaitGroup
	var successes, errs, conflicts, notFounds, insufficient atomic.Int32

	// Release all goroutines together to maximise contention.
	start := make(chan struct{})
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			<-start
			err := fn(idx)
			switch {
			case err == nil:
				successes.Add(1)
			case dErrors.HasCode(err, dErrors.CodeInsufficientCredits):
				insufficient.Add(1)
			case errors.Is(err, sentinel.ErrConflict), dErrors.HasCode(err, dErrors.CodeConflict):
				conflicts.Add(1)
			case errors.Is(err, sentinel.ErrNotFound):
				notFounds.Add(1)
			default:
				errs.Add(1)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	return &ConcurrentResult{
		Successes:    successes.Load(),
		Errors:       errs.Load(),
		Conflicts:    conflicts.Load(),
		NotFounds:    notFounds.Load(),
		Insufficient: insufficient.Load(),
	}
}
