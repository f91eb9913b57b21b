// Package commands holds the shared prefix-command set every runtime host
// imports wholesale. The surface is deliberately thin: argument handling is
// a simple whitespace split, and each command replies in the channel it was
// invoked from.
package commands

import (
	"fmt"
	"log"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/easelkit/easel/internal/collector"
)

// Command is one named entry in the shared command set.
type Command struct {
	Name string
	Help string
	Run  func(s *discordgo.Session, m *discordgo.MessageCreate, args []string)
}

// Registry binds the shared command set to one host through an injected
// prefix resolver, so a prefix change in the guild options takes effect
// with the host rebuild that delivered it.
type Registry struct {
	resolvePrefix func() string
	commands      map[string]Command
}

// NewRegistry creates a registry over the given prefix resolver and set.
func NewRegistry(resolvePrefix func() string, set []Command) *Registry {
	commands := make(map[string]Command, len(set))
	for _, cmd := range set {
		commands[cmd.Name] = cmd
	}
	return &Registry{resolvePrefix: resolvePrefix, commands: commands}
}

// Handler returns the message-create handler to attach to a session.
func (r *Registry) Handler() func(s *discordgo.Session, m *discordgo.MessageCreate) {
	return func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil || m.Author.Bot {
			return
		}
		prefix := r.resolvePrefix()
		if prefix == "" || !strings.HasPrefix(m.Content, prefix) {
			return
		}
		fields := strings.Fields(strings.TrimPrefix(m.Content, prefix))
		if len(fields) == 0 {
			return
		}
		cmd, ok := r.commands[strings.ToLower(fields[0])]
		if !ok {
			return
		}
		cmd.Run(s, m, fields[1:])
	}
}

// DefaultSet builds the command set shared by every host. Marks raised by
// commands land in the injected collector and are applied by the flags
// driver on its next tick. confirm posts an interactive yes/no prompt in
// the given channel and blocks until it resolves.
func DefaultSet(marks *collector.Collector, invite func() string, confirm func(channelID, question string) bool) []Command {
	return []Command{
		{
			Name: "about",
			Help: "What this bot does",
			Run: func(s *discordgo.Session, m *discordgo.MessageCreate, _ []string) {
				reply(s, m, "I keep the lobbies board up to date. Start sketching and you'll show up!")
			},
		},
		{
			Name: "invite",
			Help: "Link to join the game",
			Run: func(s *discordgo.Session, m *discordgo.MessageCreate, _ []string) {
				reply(s, m, "Join here: "+invite())
			},
		},
		{
			Name: "nick",
			Help: "Queue a bot nickname change",
			Run: func(s *discordgo.Session, m *discordgo.MessageCreate, args []string) {
				if len(args) == 0 {
					reply(s, m, "Usage: nick <new name>")
					return
				}
				name := strings.Join(args, " ")
				if !confirm(m.ChannelID, fmt.Sprintf("Change my nickname to **%s**?", name)) {
					reply(s, m, "Okay, leaving the nickname as it is.")
					return
				}
				marks.Add(collector.Mark{
					GuildID: m.GuildID,
					UserID:  m.Author.ID,
					Reason:  collector.ReasonNickname,
					Value:   name,
				})
				reply(s, m, "Got it — nickname will update shortly.")
			},
		},
	}
}

func reply(s *discordgo.Session, m *discordgo.MessageCreate, content string) {
	if s == nil {
		return
	}
	if _, err := s.ChannelMessageSend(m.ChannelID, content); err != nil {
		log.Printf("[Commands] failed to reply in channel %s: %v", m.ChannelID, err)
	}
}
