// Package host builds and runs one isolated bot runtime per guild
// assignment: a dedicated Discord gateway session carrying the shared
// command set bound to that guild's prefix and presentation options.
//
// A Host owns its session exclusively. Superseded hosts must be stopped
// before their replacement starts, so a worker never holds two live
// connections for the same instance.
package host

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/easelkit/easel/internal/collector"
	"github.com/easelkit/easel/internal/commands"
	"github.com/easelkit/easel/internal/race"
)

// Presentation is the per-guild presentation configuration a host is
// constructed against. Changing any field requires a new host.
type Presentation struct {
	Prefix  string
	BotName string
	Invite  string
}

// Hooks are caller-supplied lifecycle callbacks.
type Hooks struct {
	// Ready fires when the gateway session reports ready.
	Ready func()
}

// Factory creates hosts sharing one update collector.
type Factory struct {
	marks *collector.Collector
}

// NewFactory creates a host factory. All hosts it creates feed marks into
// the given collector.
func NewFactory(marks *collector.Collector) *Factory {
	return &Factory{marks: marks}
}

// Create builds an inert host for the given bot token and presentation.
// The returned host does not connect until Start is called.
func (f *Factory) Create(token string, p Presentation, hooks Hooks) (*Host, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentGuilds | discordgo.IntentGuildMessages | discordgo.IntentMessageContent

	h := &Host{session: session, presentation: p}

	confirm := func(channelID, question string) bool {
		ctx, cancel := context.WithTimeout(context.Background(), confirmWindow)
		defer cancel()
		ok, err := h.ConfirmPrompt(ctx, channelID, question)
		if err != nil {
			log.Printf("[Host] confirm prompt in channel %s: %v", channelID, err)
			return false
		}
		return ok
	}
	registry := commands.NewRegistry(
		func() string { return p.Prefix },
		commands.DefaultSet(f.marks, func() string { return p.Invite }, confirm),
	)
	session.AddHandler(registry.Handler())

	if hooks.Ready != nil {
		session.AddHandler(func(_ *discordgo.Session, _ *discordgo.Ready) {
			hooks.Ready()
		})
	}

	return h, nil
}

// Host is one running bot runtime: a gateway connection plus the shared
// command surface bound to a single guild's options.
type Host struct {
	session      *discordgo.Session
	presentation Presentation
}

// Presentation returns the options this host was built against.
func (h *Host) Presentation() Presentation {
	return h.presentation
}

// Start opens the gateway connection.
func (h *Host) Start() error {
	if err := h.session.Open(); err != nil {
		return fmt.Errorf("open gateway connection: %w", err)
	}
	return nil
}

// Stop releases the gateway connection. Safe to call on a host whose Start
// never completed; closing an unopened session is a no-op.
func (h *Host) Stop() error {
	if err := h.session.Close(); err != nil {
		return fmt.Errorf("close gateway connection: %w", err)
	}
	return nil
}

// BotUserID returns the connected bot identity's user id, or "" before the
// session is ready.
func (h *Host) BotUserID() string {
	if h.session.State != nil && h.session.State.User != nil {
		return h.session.State.User.ID
	}
	return ""
}

// MessagesBefore pages channel history backward from beforeID (or from the
// newest message when beforeID is empty). Messages come back newest first.
func (h *Host) MessagesBefore(ctx context.Context, channelID string, limit int, beforeID string) ([]*discordgo.Message, error) {
	return h.session.ChannelMessages(channelID, limit, beforeID, "", "", discordgo.WithContext(ctx))
}

// SendMessage posts a plain text message.
func (h *Host) SendMessage(ctx context.Context, channelID, content string) (*discordgo.Message, error) {
	return h.session.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx))
}

// EditMessage replaces a message's text content.
func (h *Host) EditMessage(ctx context.Context, channelID, messageID, content string) error {
	_, err := h.session.ChannelMessageEdit(channelID, messageID, content, discordgo.WithContext(ctx))
	return err
}

// SetNickname changes the bot's own nickname in the guild.
func (h *Host) SetNickname(ctx context.Context, guildID, nick string) error {
	return h.session.GuildMemberNickname(guildID, "@me", nick, discordgo.WithContext(ctx))
}

// SetStatus sets the bot's presence status text.
func (h *Host) SetStatus(text string) error {
	return h.session.UpdateGameStatus(0, text)
}

// AwaitComponent waits for the next component interaction on the given
// message that satisfies match (nil matches everything). Returns
// race.ErrListenTimeout when the wait deadline passes, which the race
// resolver maps to the entry's fallback.
func (h *Host) AwaitComponent(ctx context.Context, messageID string, match func(*discordgo.InteractionCreate) bool, timeout time.Duration) (*discordgo.InteractionCreate, error) {
	events := make(chan *discordgo.InteractionCreate, 1)
	remove := h.session.AddHandler(func(_ *discordgo.Session, ic *discordgo.InteractionCreate) {
		if ic.Type != discordgo.InteractionMessageComponent {
			return
		}
		if ic.Message == nil || ic.Message.ID != messageID {
			return
		}
		if match != nil && !match(ic) {
			return
		}
		select {
		case events <- ic:
		default:
		}
	})
	defer remove()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ic := <-events:
		return ic, nil
	case <-timer.C:
		return nil, race.ErrListenTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
