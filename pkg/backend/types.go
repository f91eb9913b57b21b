// Package backend provides a typed client for the game backend's HTTP API.
// The backend owns all authoritative state: instance allocation, guild
// assignments, lobby presence and the member directory. Workers consume this
// surface and hold no durable state of their own beyond their current lease.
//
// Two conditions are part of the normal protocol rather than failures and
// are surfaced as sentinel errors: ErrLeaseConflict (another worker took the
// instance over) and ErrNotFound (the requested record does not exist yet).
package backend

import "time"

// InstanceDetails is the backend's authoritative record for one bot
// identity slot. Returned by ClaimInstance on every successful claim.
type InstanceDetails struct {
	ID       string `json:"id"`
	BotToken string `json:"botToken"`
	BotLogin string `json:"botLogin"`
}

// GuildOptions is the presentation configuration a claimed instance is
// currently pointed at. Fetched fresh on every lease renewal and compared
// against the previous fetch to detect drift.
type GuildOptions struct {
	GuildID   string `json:"guildId"`
	Name      string `json:"name"`
	Prefix    string `json:"prefix"`
	ChannelID string `json:"channelId,omitempty"`
	BotName   string `json:"botName,omitempty"`
	Invite    string `json:"invite"`
}

// Equal reports whether two option sets are identical field by field.
// Any difference forces a full runtime host rebuild, because a host is
// constructed once against a single option set.
func (o GuildOptions) Equal(other GuildOptions) bool {
	return o == other
}

// ClaimRequest carries the parameters of a claim or renewal call.
// PreviousToken is empty on a first claim; on renewal the backend rejects
// the call with a conflict when PreviousToken no longer matches its record.
type ClaimRequest struct {
	WorkerID      string `json:"workerId"`
	InstanceID    string `json:"instanceId"`
	ClaimToken    string `json:"claimToken"`
	PreviousToken string `json:"previousToken,omitempty"`
}

// Lobby is one active drawing lobby in the presence snapshot.
type Lobby struct {
	ID          string   `json:"id"`
	Description string   `json:"description,omitempty"`
	Private     bool     `json:"private"`
	Restriction string   `json:"restriction,omitempty"`
	JoinRef     string   `json:"joinRef"`
	Players     []Player `json:"players"`
}

// Player is one participant inside a lobby. Login links the player to the
// member directory; players without a directory entry are still rendered,
// just without guild affiliation.
type Player struct {
	Login   string `json:"login"`
	Name    string `json:"name"`
	Score   int    `json:"score"`
	Drawing bool   `json:"drawing"`
}

// Member is a directory record for a player known to the backend,
// including the guilds that player is connected to.
type Member struct {
	Login       string   `json:"login"`
	DisplayName string   `json:"displayName"`
	Guilds      []string `json:"guilds"`
}

// ConnectedTo reports whether the member is connected to the given guild.
func (m Member) ConnectedTo(guildID string) bool {
	for _, g := range m.Guilds {
		if g == guildID {
			return true
		}
	}
	return false
}

// Event is a currently running backend event (themed drops, boosts).
// Surfaced in the board header while active.
type Event struct {
	Name   string    `json:"name"`
	EndsAt time.Time `json:"endsAt"`
}

// LobbyLink pairs a lobby with the join link derived for one guild.
// Pushed back to the backend so other surfaces can reuse the links.
type LobbyLink struct {
	LobbyID string `json:"lobbyId"`
	Link    string `json:"link"`
}
