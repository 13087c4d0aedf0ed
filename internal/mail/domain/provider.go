package domain

import (
	"context"
	"time"
)

// MailTransport sends a single message through an external provider.
type MailTransport interface {
	Send(ctx context.Context, to, subject, body string, attachments []Attachment) error
}

// ChangeFeed reads new inbound messages from the remote mailbox.
type ChangeFeed interface {
	// FetchSince returns messages observed after cursor.
	FetchSince(ctx context.Context, cursor uint64) ([]*FeedMessage, error)
	// FetchRecentWindow returns a bounded snapshot of messages received within lookback.
	FetchRecentWindow(ctx context.Context, lookback time.Duration) ([]*FeedMessage, error)
}

// MailboxWatcher registers provider push notifications for the mailbox.
type MailboxWatcher interface {
	Watch(ctx context.Context, topicName string) (uint64, error)
}
