package host

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"

	"github.com/easelkit/easel/internal/race"
)

func componentPress(customID string) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Type: discordgo.InteractionMessageComponent,
			Data: discordgo.MessageComponentInteractionData{CustomID: customID},
		},
	}
}

// fakeWaiter resolves the listener whose match accepts the scripted press;
// every other listener waits out a short timeout, like a real component
// wait with no event.
type fakeWaiter struct {
	press string
}

func (f *fakeWaiter) AwaitComponent(ctx context.Context, _ string, match func(*discordgo.InteractionCreate) bool, _ time.Duration) (*discordgo.InteractionCreate, error) {
	if f.press != "" {
		if ic := componentPress(f.press); match(ic) {
			return ic, nil
		}
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(10 * time.Millisecond):
		return nil, race.ErrListenTimeout
	}
}

func TestDecision(t *testing.T) {
	tests := []struct {
		name     string
		press    string
		want     bool
		wantAcks int
	}{
		{"yes button confirms", confirmCustomID, true, 1},
		{"no button declines", cancelCustomID, false, 1},
		{"no press times out to decline", "", false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acks := 0
			got := decision(
				context.Background(),
				&fakeWaiter{press: tt.press},
				"msg-1",
				func(*discordgo.InteractionCreate) { acks++ },
				50*time.Millisecond,
			)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantAcks, acks, "only a real press is acknowledged")
		})
	}
}

func TestDecisionMatchersDistinguishButtons(t *testing.T) {
	yes := componentPress(confirmCustomID)
	assert.True(t, matchesCustomID(confirmCustomID)(yes))
	assert.False(t, matchesCustomID(cancelCustomID)(yes))
}
