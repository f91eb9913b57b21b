package host

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/easelkit/easel/internal/race"
)

const (
	confirmCustomID = "confirm"
	cancelCustomID  = "cancel"

	// confirmWindow bounds how long a prompt waits for a button press
	// before resolving to "no".
	confirmWindow = 30 * time.Second
)

// componentWaiter is the interaction-wait surface the decision race runs
// over. *Host implements it via AwaitComponent.
type componentWaiter interface {
	AwaitComponent(ctx context.Context, messageID string, match func(*discordgo.InteractionCreate) bool, timeout time.Duration) (*discordgo.InteractionCreate, error)
}

// ConfirmPrompt posts a yes/no button prompt and blocks until one button is
// pressed or the window passes. Timeouts and cancellation resolve to false;
// a prompt never errors after the message is out.
func (h *Host) ConfirmPrompt(ctx context.Context, channelID, question string) (bool, error) {
	msg, err := h.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content: question,
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.Button{Label: "Yes", Style: discordgo.PrimaryButton, CustomID: confirmCustomID},
					discordgo.Button{Label: "No", Style: discordgo.SecondaryButton, CustomID: cancelCustomID},
				},
			},
		},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("send confirm prompt: %w", err)
	}
	return decision(ctx, h, msg.ID, h.acknowledge, confirmWindow), nil
}

// decision races one listener per button on the prompt message: whichever
// press arrives first wins, the sibling wait is cancelled cooperatively,
// and a timeout on the winning listener falls back to false.
func decision(ctx context.Context, w componentWaiter, messageID string, ack func(*discordgo.InteractionCreate), timeout time.Duration) bool {
	entry := func(customID string, result bool) *race.Entry[bool] {
		return &race.Entry[bool]{
			Listen: func(ctx context.Context) (*discordgo.InteractionCreate, error) {
				return w.AwaitComponent(ctx, messageID, matchesCustomID(customID), timeout)
			},
			Handle: func(ic *discordgo.InteractionCreate) bool {
				ack(ic)
				return result
			},
			Fallback: false,
		}
	}
	return race.Resolve(ctx, []*race.Entry[bool]{
		entry(confirmCustomID, true),
		entry(cancelCustomID, false),
	})
}

func matchesCustomID(id string) func(*discordgo.InteractionCreate) bool {
	return func(ic *discordgo.InteractionCreate) bool {
		return ic.MessageComponentData().CustomID == id
	}
}

// acknowledge closes the interaction without posting a visible reply; the
// command's own follow-up message carries the outcome.
func (h *Host) acknowledge(ic *discordgo.InteractionCreate) {
	err := h.session.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	})
	if err != nil {
		log.Printf("[Host] acknowledging component interaction: %v", err)
	}
}
