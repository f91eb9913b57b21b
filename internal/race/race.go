// Package race resolves contention between several asynchronous listeners
// attached to the same outbound message. All listeners run concurrently;
// the first to produce a genuine event wins, its handler runs exactly once,
// and every sibling observes a cooperative cancellation flag.
//
// Cancellation is cooperative rather than preemptive because the underlying
// event wait (a gateway subscription) cannot always be interrupted; a losing
// listener's result is discarded when it eventually resolves.
package race

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"
)

// ErrListenTimeout is returned by a listener whose own deadline expired
// without an event. The resolver maps it to the entry's fallback.
var ErrListenTimeout = errors.New("race: listener timed out")

// Entry is one candidate listener/handler pair competing in a race.
// Listen blocks until an event arrives, its own timeout expires
// (ErrListenTimeout) or the context is cancelled. Handle converts the
// winning event into the race result. Fallback is returned when this entry
// wins with a timeout, or resolves after a sibling already won.
type Entry[T any] struct {
	Listen   func(ctx context.Context) (*discordgo.InteractionCreate, error)
	Handle   func(*discordgo.InteractionCreate) T
	Fallback T

	cancelled atomic.Bool
}

// Cancelled reports whether a sibling entry won the race.
// A resolving listener checks this flag instead of being torn down.
func (e *Entry[T]) Cancelled() bool {
	return e.cancelled.Load()
}

type completion struct {
	index   int
	payload *discordgo.InteractionCreate
	err     error
}

// Resolve runs all entries concurrently and returns a single result.
//
// Winner selection is a single compare-and-swap carrying the winner's
// index: the first listener to resolve claims the win and immediately sets
// every sibling's cancellation flag. The receive loop honors only the
// claimed index's completion, so a near-simultaneous sibling that publishes
// first can never be handled in the winner's place. A winner that resolved
// with a listener error (including ErrListenTimeout) yields its fallback
// instead of invoking its handler.
func Resolve[T any](ctx context.Context, entries []*Entry[T]) T {
	var zero T
	if len(entries) == 0 {
		return zero
	}

	// Buffered so every listener can publish without blocking; each entry
	// sends exactly one completion.
	done := make(chan completion, len(entries))
	var winner atomic.Int32
	winner.Store(-1)

	for i, entry := range entries {
		go func(i int, entry *Entry[T]) {
			payload, err := entry.Listen(ctx)
			if !entry.Cancelled() && winner.CompareAndSwap(-1, int32(i)) {
				for j, sibling := range entries {
					if j != i {
						sibling.cancelled.Store(true)
					}
				}
			}
			done <- completion{index: i, payload: payload, err: err}
		}(i, entry)
	}

	// Every published completion has a decided winner behind it: its sender
	// either claimed the win or lost the CAS to a sibling that had already
	// claimed it.
	for received := 0; received < len(entries); received++ {
		select {
		case <-ctx.Done():
			return entries[0].Fallback
		case c := <-done:
			if int32(c.index) != winner.Load() {
				// A sibling claimed the win; keep waiting for its completion.
				continue
			}
			won := entries[c.index]
			if c.err != nil {
				return won.Fallback
			}
			return won.Handle(c.payload)
		}
	}

	return entries[0].Fallback
}
