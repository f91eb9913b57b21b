package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDriverTicksImmediatelyAndSurvivesErrors(t *testing.T) {
	var runs atomic.Int64
	job := Job{
		Name:     "flaky",
		Interval: 10 * time.Millisecond,
		Run: func(context.Context) error {
			if runs.Add(1)%2 == 0 {
				return errors.New("transient")
			}
			return nil
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	require.NoError(t, New(nil, job).Start(ctx))

	// The first tick fires at startup, later ones on the ticker; errors
	// never stop the loop.
	assert.GreaterOrEqual(t, runs.Load(), int64(3))
}

func TestDriverStopsAllLoopsOnCancel(t *testing.T) {
	var a, b atomic.Int64
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = New(nil,
			Job{Name: "a", Interval: time.Hour, Run: func(context.Context) error { a.Add(1); return nil }},
			Job{Name: "b", Interval: time.Hour, Run: func(context.Context) error { b.Add(1); return nil }},
		).Start(ctx)
	}()

	// Both jobs get their immediate startup tick, then idle on long timers.
	assert.Eventually(t, func() bool {
		return a.Load() == 1 && b.Load() == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("driver did not exit after cancellation")
	}
}
