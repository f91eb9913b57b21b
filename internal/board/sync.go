package board

import (
	"context"
	"errors"
	"fmt"
	"log"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
)

const (
	// MessageCharLimit is the hard per-message content ceiling. Lengths are
	// counted in bytes, which is conservative against Discord's
	// 2000-character limit.
	MessageCharLimit = 2000

	// historyPageSize is the channel history paging batch size.
	historyPageSize = 100

	blockSeparator = "\n\n"

	// placeholder overwrites surplus board messages when content shrinks.
	// Messages are never deleted so ordering and anchors stay stable.
	placeholder = "_ _"

	// emptyBoard is rendered when no lobby block survives filtering; the
	// board must never go blank.
	emptyBoard = "🪧 Nobody is on the easel right now. Start a lobby and it will show up here!"
)

// Channel is the narrow messaging surface the synchronizer needs.
// *host.Host implements it against the Discord API.
type Channel interface {
	MessagesBefore(ctx context.Context, channelID string, limit int, beforeID string) ([]*discordgo.Message, error)
	SendMessage(ctx context.Context, channelID, content string) (*discordgo.Message, error)
	EditMessage(ctx context.Context, channelID, messageID, content string) error
}

// Applied summarizes the channel mutations one Sync issued. A run over
// unchanged content reports all zeros.
type Applied struct {
	Edited   int
	Created  int
	Blanked  int
	Deferred int
}

// Synchronizer reconciles rendered board content against a channel.
// It is stateless between runs; every Sync rediscovers its own prior
// messages, which is what makes concurrent drivers safe.
type Synchronizer struct {
	ch Channel
}

// NewSynchronizer creates a synchronizer over the given channel surface.
func NewSynchronizer(ch Channel) *Synchronizer {
	return &Synchronizer{ch: ch}
}

// Sync brings the channel's board messages in line with header + blocks.
//
// Prior messages are paired positionally with the packed message units:
// differing content is edited, missing messages are created, surplus prior
// messages are overwritten with a neutral placeholder. Byte-identical
// content issues no call at all. A rate-limited write is logged and
// deferred to the next run; any other write error aborts the run.
func (s *Synchronizer) Sync(ctx context.Context, channelID, selfID, header string, blocks []string) (Applied, error) {
	var applied Applied

	prior, err := s.discoverOwnMessages(ctx, channelID, selfID)
	if err != nil {
		return applied, err
	}

	units := PackUnits(header, blocks)

	for i, unit := range units {
		if i < len(prior) {
			if prior[i].Content == unit {
				continue
			}
			if deferred, err := s.edit(ctx, channelID, prior[i].ID, unit); err != nil {
				return applied, err
			} else if deferred {
				applied.Deferred++
				continue
			}
			applied.Edited++
			continue
		}
		if _, err := s.ch.SendMessage(ctx, channelID, unit); err != nil {
			return applied, fmt.Errorf("create board message: %w", err)
		}
		applied.Created++
	}

	for i := len(units); i < len(prior); i++ {
		if prior[i].Content == placeholder {
			continue
		}
		if deferred, err := s.edit(ctx, channelID, prior[i].ID, placeholder); err != nil {
			return applied, err
		} else if deferred {
			applied.Deferred++
			continue
		}
		applied.Blanked++
	}

	return applied, nil
}

// edit updates one message. Rate limiting is the only error treated as
// non-fatal: the message keeps its stale content and will still differ on
// the next run, which retries it naturally.
func (s *Synchronizer) edit(ctx context.Context, channelID, messageID, content string) (deferred bool, err error) {
	if err := s.ch.EditMessage(ctx, channelID, messageID, content); err != nil {
		var rateLimit *discordgo.RateLimitError
		if errors.As(err, &rateLimit) {
			log.Printf("[Board] rate limited editing message %s (retry after %s), deferring to next run", messageID, rateLimit.RetryAfter)
			return true, nil
		}
		return false, fmt.Errorf("edit board message %s: %w", messageID, err)
	}
	return false, nil
}

// discoverOwnMessages pages backward through channel history, newest first,
// collecting the contiguous run of messages authored by selfID. The scan
// stops at the first foreign author: the bot posts its board without gaps,
// so everything older cannot be board content. Returned oldest first so
// positions line up with packed unit order.
func (s *Synchronizer) discoverOwnMessages(ctx context.Context, channelID, selfID string) ([]*discordgo.Message, error) {
	var own []*discordgo.Message
	before := ""

	for {
		page, err := s.ch.MessagesBefore(ctx, channelID, historyPageSize, before)
		if err != nil {
			return nil, fmt.Errorf("page channel history: %w", err)
		}
		if len(page) == 0 {
			break
		}
		foreign := false
		for _, msg := range page {
			if msg.Author == nil || msg.Author.ID != selfID {
				foreign = true
				break
			}
			own = append(own, msg)
		}
		if foreign || len(page) < historyPageSize {
			break
		}
		before = page[len(page)-1].ID
	}

	// Oldest first.
	for i, j := 0, len(own)-1; i < j; i, j = i+1, j-1 {
		own[i], own[j] = own[j], own[i]
	}
	return own, nil
}

// PackUnits greedily packs the header and blocks into message units no
// longer than MessageCharLimit. Empty blocks are dropped; an empty result
// is replaced by the fixed empty-board block so the board never renders
// blank. A single oversized block is truncated to the limit.
func PackUnits(header string, blocks []string) []string {
	nonEmpty := make([]string, 0, len(blocks))
	for _, block := range blocks {
		if block != "" {
			nonEmpty = append(nonEmpty, block)
		}
	}
	if len(nonEmpty) == 0 {
		nonEmpty = []string{emptyBoard}
	}

	var units []string
	buf := truncateUTF8(header, MessageCharLimit)
	for _, block := range nonEmpty {
		block = truncateUTF8(block, MessageCharLimit)
		if buf == "" {
			buf = block
			continue
		}
		if len(buf)+len(blockSeparator)+len(block) > MessageCharLimit {
			units = append(units, buf)
			buf = block
			continue
		}
		buf += blockSeparator + block
	}
	if buf != "" {
		units = append(units, buf)
	}
	return units
}

// truncateUTF8 cuts s to at most limit bytes without splitting a rune.
func truncateUTF8(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
