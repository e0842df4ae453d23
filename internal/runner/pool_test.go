package runner_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalnine/qrscale/internal/runner"
)

func TestPool(t *testing.T) {
	var count atomic.Int32
	jobs := make([]runner.Job, 10)
	for i := range jobs {
		jobs[i] = func(context.Context) error {
			count.Add(1)
			return nil
		}
	}
	errs := runner.RunPool(context.Background(), 3, jobs)
	assert.Empty(t, errs)
	assert.EqualValues(t, 10, count.Load())
}

func TestPoolWithErrors(t *testing.T) {
	jobs := []runner.Job{
		func(context.Context) error { return nil },
		func(context.Context) error { return fmt.Errorf("fail") },
		func(context.Context) error { return nil },
	}
	errs := runner.RunPool(context.Background(), 2, jobs)
	assert.Len(t, errs, 1)
}

func TestPoolBoundsConcurrency(t *testing.T) {
	var running, peak atomic.Int32
	jobs := make([]runner.Job, 20)
	for i := range jobs {
		jobs[i] = func(context.Context) error {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			running.Add(-1)
			return nil
		}
	}
	runner.RunPool(context.Background(), 4, jobs)
	assert.LessOrEqual(t, peak.Load(), int32(4))
}

func TestPoolStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var count atomic.Int32
	jobs := make([]runner.Job, 10)
	for i := range jobs {
		jobs[i] = func(context.Context) error {
			if count.Add(1) == 2 {
				cancel()
			}
			return nil
		}
	}
	errs := runner.RunPool(ctx, 1, jobs)
	require.NotEmpty(t, errs)
	assert.ErrorIs(t, errs[len(errs)-1], context.Canceled)
	assert.EqualValues(t, 2, count.Load())
}
