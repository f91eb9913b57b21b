package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/easelkit/easel/internal/board"
	"github.com/easelkit/easel/internal/collector"
	"github.com/easelkit/easel/internal/lease"
	"github.com/easelkit/easel/internal/metrics"
	"github.com/easelkit/easel/pkg/backend"
)

// PresenceAPI is the slice of the backend surface the presence jobs need.
type PresenceAPI interface {
	GetCurrentLobbies(ctx context.Context) ([]backend.Lobby, error)
	GetMembersByLogin(ctx context.Context, logins []string) (map[string]backend.Member, error)
	GetCurrentEvent(ctx context.Context) (backend.Event, error)
	SetGuildLobbyLinks(ctx context.Context, guildID string, links []backend.LobbyLink) error
}

// BoardJob drives the full presence chain on every tick: reclaim the
// lease, resolve the assignment (rebuilding the host on drift), fetch the
// snapshot, render it and synchronize the board. It also queues a status
// mark summarizing the snapshot whenever the summary changes; the flags
// driver applies it.
func BoardJob(mgr *lease.Manager, api PresenceAPI, marks *collector.Collector, met *metrics.Metrics, interval time.Duration) Job {
	lastStatus := ""
	return Job{
		Name:     "board",
		Interval: interval,
		Run: func(ctx context.Context) error {
			if _, err := mgr.Reclaim(ctx); err != nil {
				met.SetLeaseHeld(false)
				if backend.IsLeaseConflict(err) {
					met.RecordClaimConflict()
				}
				return fmt.Errorf("reclaim: %w", err)
			}
			met.SetLeaseHeld(true)

			asn, err := mgr.EnsureAssignment(ctx)
			if err != nil {
				return err
			}

			lobbies, err := api.GetCurrentLobbies(ctx)
			if err != nil {
				return fmt.Errorf("fetch lobbies: %w", err)
			}

			if status := statusText(lobbies); status != lastStatus {
				marks.Add(collector.Mark{
					GuildID: asn.Options.GuildID,
					Reason:  collector.ReasonStatus,
					Value:   status,
				})
				lastStatus = status
			}

			if asn.Options.ChannelID == "" {
				// Guild has no presence channel configured; the status
				// line still tracks the snapshot.
				return nil
			}

			directory, err := api.GetMembersByLogin(ctx, playerLogins(lobbies))
			if err != nil {
				return fmt.Errorf("fetch member directory: %w", err)
			}

			var event *backend.Event
			if ev, err := api.GetCurrentEvent(ctx); err == nil {
				event = &ev
			} else if !backend.IsNotFound(err) {
				// The board still renders without the event line.
				log.Printf("[Board] fetching current event: %v", err)
			}

			selfID := asn.Host.BotUserID()
			if selfID == "" {
				return fmt.Errorf("host session not ready yet")
			}

			header := board.Header(asn.Options.Invite, event)
			blocks := board.Blocks(lobbies, directory, asn.Options.GuildID)

			applied, err := board.NewSynchronizer(asn.Host).Sync(ctx, asn.Options.ChannelID, selfID, header, blocks)
			if err != nil {
				return fmt.Errorf("synchronize board: %w", err)
			}
			met.RecordBoard(applied.Edited, applied.Created, applied.Blanked, applied.Deferred)
			return nil
		},
	}
}

// LobbyLinksJob pushes the derived join-link list for the assigned guild
// back to the backend, where other surfaces reuse it.
func LobbyLinksJob(mgr *lease.Manager, api PresenceAPI, interval time.Duration) Job {
	return Job{
		Name:     "lobbylinks",
		Interval: interval,
		Run: func(ctx context.Context) error {
			asn, ok := mgr.Assignment()
			if !ok {
				return lease.ErrUnassigned
			}

			lobbies, err := api.GetCurrentLobbies(ctx)
			if err != nil {
				return fmt.Errorf("fetch lobbies: %w", err)
			}

			links := make([]backend.LobbyLink, 0, len(lobbies))
			for _, lobby := range lobbies {
				if lobby.Private {
					continue
				}
				links = append(links, backend.LobbyLink{
					LobbyID: lobby.ID,
					Link:    board.JoinLink(lobby.JoinRef),
				})
			}

			if err := api.SetGuildLobbyLinks(ctx, asn.Options.GuildID, links); err != nil {
				return fmt.Errorf("push lobby links: %w", err)
			}
			return nil
		},
	}
}

// FlagsJob drains the update collector and applies the queued member
// updates through the host. Each mark is best effort; a failed one is
// logged and dropped rather than requeued.
func FlagsJob(mgr *lease.Manager, marks *collector.Collector, interval time.Duration) Job {
	return Job{
		Name:     "flags",
		Interval: interval,
		Run: func(ctx context.Context) error {
			asn, ok := mgr.Assignment()
			if !ok {
				return lease.ErrUnassigned
			}

			for _, mark := range marks.Drain() {
				var err error
				switch mark.Reason {
				case collector.ReasonNickname:
					err = asn.Host.SetNickname(ctx, mark.GuildID, mark.Value)
				case collector.ReasonStatus:
					err = asn.Host.SetStatus(mark.Value)
				default:
					log.Printf("[Flags] unknown mark reason %q for user %s", mark.Reason, mark.UserID)
					continue
				}
				if err != nil {
					log.Printf("[Flags] applying %s update in guild %s: %v", mark.Reason, mark.GuildID, err)
				}
			}
			return nil
		},
	}
}

// statusText summarizes the presence snapshot for the bot's status line.
func statusText(lobbies []backend.Lobby) string {
	players := 0
	for _, lobby := range lobbies {
		players += len(lobby.Players)
	}
	if players == 0 {
		return "an empty easel"
	}
	return fmt.Sprintf("%d sketching in %d lobbies", players, len(lobbies))
}

// playerLogins collects the deduplicated logins across all lobbies.
func playerLogins(lobbies []backend.Lobby) []string {
	seen := make(map[string]struct{})
	var logins []string
	for _, lobby := range lobbies {
		for _, p := range lobby.Players {
			if p.Login == "" {
				continue
			}
			if _, ok := seen[p.Login]; ok {
				continue
			}
			seen[p.Login] = struct{}{}
			logins = append(logins, p.Login)
		}
	}
	return logins
}
