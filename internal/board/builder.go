// Package board renders the live lobby presence board and reconciles it
// into a Discord channel.
//
// Rendering (builder.go) is a pure function of the presence snapshot so it
// can be tested without any I/O; synchronization (sync.go) owns the channel
// side effects.
package board

import (
	"fmt"
	"strings"

	"github.com/easelkit/easel/pkg/backend"
)

// joinBaseURL is the public join endpoint lobby join refs resolve against.
const joinBaseURL = "https://play.easel.gg/l/"

// RestrictionClosed marks a private lobby that accepts no bot-assisted joins.
const RestrictionClosed = "closed"

var medals = []string{"🥇", "🥈", "🥉"}

// palette of decorative lobby markers. A lobby keeps the same marker across
// ticks because the choice is derived from its stable id.
var palette = []string{"🎨", "🖌️", "🖍️", "✏️", "🖼️"}

// Header renders the first line(s) of the board. The event line only
// appears while the backend reports an active event.
func Header(invite string, event *backend.Event) string {
	var b strings.Builder
	b.WriteString("🎨 **Who's on the easel?**\n")
	if event != nil {
		fmt.Fprintf(&b, "🎉 **%s** is live — event drops until <t:%d:R>\n", event.Name, event.EndsAt.Unix())
	}
	fmt.Fprintf(&b, "Join the fun: %s", invite)
	return b.String()
}

// JoinLink derives the public join link for a lobby join ref.
func JoinLink(joinRef string) string {
	return joinBaseURL + joinRef
}

// Blocks renders one self-contained content block per lobby, in snapshot
// order. A lobby with no players known to this guild renders as an empty
// string; the board deliberately only surfaces lobbies relevant to the
// guild, and the synchronizer filters empty blocks out.
func Blocks(lobbies []backend.Lobby, directory map[string]backend.Member, guildID string) []string {
	blocks := make([]string, 0, len(lobbies))
	for _, lobby := range lobbies {
		blocks = append(blocks, lobbyBlock(lobby, directory, guildID))
	}
	return blocks
}

// ranked is a player annotated with its medal label, computed across all
// participants of the lobby regardless of directory membership.
type ranked struct {
	backend.Player
	medal string
}

func lobbyBlock(lobby backend.Lobby, directory map[string]backend.Member, guildID string) string {
	players := rankPlayers(lobby.Players)

	var known, unknown []ranked
	for _, p := range players {
		member, ok := directory[p.Login]
		if ok && member.ConnectedTo(guildID) {
			p.Name = member.DisplayName
			known = append(known, p)
		} else {
			unknown = append(unknown, p)
		}
	}
	if len(known) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s **%s** %s\n", marker(lobby.ID), lobbyTitle(lobby), visibility(lobby, guildID))
	b.WriteString("```\n")
	for _, p := range known {
		name := p.Name
		if p.Drawing {
			name += " ✏️"
		}
		fmt.Fprintf(&b, "%-2s %-20s %5d\n", p.medal, truncateName(name, 20), p.Score)
	}
	b.WriteString("```")
	if len(unknown) > 0 {
		// Unknown participants influence the ranking but render without
		// medals; the board celebrates this guild's own members.
		parts := make([]string, 0, len(unknown))
		for _, p := range unknown {
			parts = append(parts, fmt.Sprintf("%s (%d)", p.Name, p.Score))
		}
		b.WriteString("\nAlso sketching: " + strings.Join(parts, ", "))
	}
	return b.String()
}

// rankPlayers orders players by descending score (stable, so ties keep
// snapshot order) and attaches medal labels to the top three.
func rankPlayers(players []backend.Player) []ranked {
	out := make([]ranked, len(players))
	for i, p := range players {
		out[i] = ranked{Player: p}
	}
	// Insertion sort keeps equal scores in snapshot order.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Score > out[j-1].Score; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	for i := range out {
		if i < len(medals) {
			out[i].medal = medals[i]
		}
	}
	return out
}

func lobbyTitle(lobby backend.Lobby) string {
	if lobby.Description != "" {
		return lobby.Description
	}
	return "Lobby"
}

// visibility renders the join affordance. Public lobbies expose a direct
// join link; private lobbies render one of four textual states depending on
// how the restriction tag compares to this guild.
func visibility(lobby backend.Lobby, guildID string) string {
	if !lobby.Private {
		return fmt.Sprintf("— [join](%s)", JoinLink(lobby.JoinRef))
	}
	// The empty restriction is checked before the guild id so an empty
	// guild id can never read as "unlocked".
	switch lobby.Restriction {
	case RestrictionClosed:
		return "🔒 private — closed"
	case "":
		return "🔓 private — unrestricted"
	case guildID:
		return "🗝️ private — unlocked for this server"
	default:
		return "🔒 private — restricted to another server"
	}
}

// marker picks the lobby's decorative marker from the palette. Summing the
// rune values of the stable id keeps the marker constant across ticks
// without storing any state.
func marker(lobbyID string) string {
	sum := 0
	for _, r := range lobbyID {
		sum += int(r)
	}
	return palette[sum%len(palette)]
}

func truncateName(name string, max int) string {
	runes := []rune(name)
	if len(runes) <= max {
		return name
	}
	return string(runes[:max-1]) + "…"
}
