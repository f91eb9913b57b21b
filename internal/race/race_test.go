package race

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
)

func event(customID string) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{ID: customID}}
}

func TestResolveSingleWinner(t *testing.T) {
	handled := 0

	fast := &Entry[string]{
		Listen: func(context.Context) (*discordgo.InteractionCreate, error) {
			return event("fast"), nil
		},
		Handle: func(*discordgo.InteractionCreate) string {
			handled++
			return "fast won"
		},
		Fallback: "fast fallback",
	}
	slow := &Entry[string]{
		Listen: func(ctx context.Context) (*discordgo.InteractionCreate, error) {
			// Resolves well after the sibling; its result must be discarded.
			time.Sleep(20 * time.Millisecond)
			return event("slow"), nil
		},
		Handle: func(*discordgo.InteractionCreate) string {
			handled++
			return "slow won"
		},
		Fallback: "slow fallback",
	}

	got := Resolve(context.Background(), []*Entry[string]{fast, slow})

	assert.Equal(t, "fast won", got)
	assert.Equal(t, 1, handled, "exactly one handler runs")
	assert.True(t, slow.Cancelled())
	assert.False(t, fast.Cancelled())
}

func TestResolveTimeoutYieldsFallback(t *testing.T) {
	entry := &Entry[int]{
		Listen: func(context.Context) (*discordgo.InteractionCreate, error) {
			return nil, ErrListenTimeout
		},
		Handle: func(*discordgo.InteractionCreate) int {
			t.Fatal("handler must not run on timeout")
			return 0
		},
		Fallback: 42,
	}

	assert.Equal(t, 42, Resolve(context.Background(), []*Entry[int]{entry}))
}

func TestResolveContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	blocked := &Entry[string]{
		Listen: func(ctx context.Context) (*discordgo.InteractionCreate, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
		Handle:   func(*discordgo.InteractionCreate) string { return "event" },
		Fallback: "gave up",
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	assert.Equal(t, "gave up", Resolve(ctx, []*Entry[string]{blocked}))
}

func TestResolveNoEntries(t *testing.T) {
	assert.Zero(t, Resolve[string](context.Background(), nil))
}

func TestResolveSimultaneousResolutions(t *testing.T) {
	// All listeners resolve at once, repeatedly: exactly one handler runs
	// per race, and the result always belongs to the one entry left
	// uncancelled.
	for round := 0; round < 50; round++ {
		var handled atomic.Int32
		start := make(chan struct{})

		entries := make([]*Entry[int], 8)
		for i := range entries {
			i := i
			entries[i] = &Entry[int]{
				Listen: func(context.Context) (*discordgo.InteractionCreate, error) {
					<-start
					return event("e"), nil
				},
				Handle: func(*discordgo.InteractionCreate) int {
					handled.Add(1)
					return i
				},
				Fallback: -1,
			}
		}

		done := make(chan int, 1)
		go func() { done <- Resolve(context.Background(), entries) }()
		close(start)
		got := <-done

		assert.Equal(t, int32(1), handled.Load())
		assert.GreaterOrEqual(t, got, 0)
		assert.False(t, entries[got].Cancelled(), "the result must come from the uncancelled entry")
	}
}
