package usecase

import (
	"context"
	"fmt"
	"log"
	netmail "net/mail"
	"strings"
	"time"

	maildomain "mailbridge/internal/mail/domain"
)

// Synchronize runs one sync cycle. Concurrent calls for the same mailbox wait for the running
// cycle and then run their own, each under its caller's context.
func (u *mailUsecase) Synchronize(ctx context.Context) (*SyncResult, error) {
	if err := u.syncSlot.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer u.syncSlot.Release(1)
	return u.synchronize(ctx)
}

func (u *mailUsecase) synchronize(ctx context.Context) (*SyncResult, error) {
	cursor, hasCursor, err := u.store.LatestCursor(ctx)
	if err != nil {
		log.Printf("[Sync] Could not read cursor, using fallback window: %v", err)
		hasCursor = false
	}

	messages, err := u.fetchFeed(ctx, cursor, hasCursor)
	if err != nil {
		return nil, err
	}

	result := &SyncResult{Added: []*maildomain.InboundMessage{}}
	var highest uint64

	for _, msg := range messages {
		if msg == nil {
			continue
		}
		if msg.Cursor > highest {
			highest = msg.Cursor
		}
		if strings.TrimSpace(msg.From) == "" {
			continue
		}
		if u.mailbox.IsSelf(msg.From) {
			continue
		}

		inbound := u.toInbound(msg)
		created, err := u.store.InsertInboundIfAbsent(ctx, inbound)
		if err != nil {
			log.Printf("[Sync] Failed to persist message %s: %v", msg.ID, err)
			continue
		}
		if created {
			result.Added = append(result.Added, inbound)
		}
	}
	result.AddedCount = len(result.Added)

	if highest > 0 && (!hasCursor || highest > cursor) {
		if err := u.store.AppendCursorIfAbsent(ctx, highest); err != nil {
			log.Printf("[Sync] Failed to append cursor %d: %v", highest, err)
		}
	}

	log.Printf("[Sync] Cycle for %s: fetched %d, added %d", u.mailbox.Address, len(messages), result.AddedCount)

	if u.notifier != nil && result.AddedCount > 0 {
		if err := u.notifier.NotifyNewMessages(ctx, result.Added); err != nil {
			log.Printf("[Sync] Failed to notify new messages: %v", err)
		}
	}

	return result, nil
}

// fetchFeed reads from the cursor when there is one and falls back to the recent window.
// Only a failing recent-window fetch fails the cycle.
func (u *mailUsecase) fetchFeed(ctx context.Context, cursor uint64, hasCursor bool) ([]*maildomain.FeedMessage, error) {
	if hasCursor {
		messages, err := u.feed.FetchSince(ctx, cursor)
		if err == nil {
			return messages, nil
		}
		log.Printf("[Sync] %v: fetch since cursor %d: %v; falling back to last %s", maildomain.ErrFeed, cursor, err, u.options.FallbackWindow)
	}

	messages, err := u.feed.FetchRecentWindow(ctx, u.options.FallbackWindow)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", maildomain.ErrFallback, err)
	}
	return messages, nil
}

func (u *mailUsecase) toInbound(msg *maildomain.FeedMessage) *maildomain.InboundMessage {
	now := u.now()
	recipient := strings.TrimSpace(msg.To)
	if recipient == "" {
		recipient = u.mailbox.Address
	}
	return &maildomain.InboundMessage{
		ID:         msg.ID,
		ThreadID:   msg.ThreadID,
		Sender:     msg.From,
		Recipient:  recipient,
		Subject:    msg.Subject,
		ReceivedAt: resolveTimestamp(msg.Date, now),
		Snippet:    msg.Snippet,
		CreatedAt:  now,
	}
}

// resolveTimestamp parses an RFC 5322 or RFC 3339 date; anything else resolves to now.
func resolveTimestamp(raw string, now time.Time) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return now
	}
	if t, err := netmail.ParseDate(raw); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t
	}
	return now
}
