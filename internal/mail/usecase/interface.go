package usecase

import (
	"context"
	"io"
	"time"

	maildomain "mailbridge/internal/mail/domain"
)

// MailUsecase defines the interface for mail use cases
type MailUsecase interface {
	// Send delivers one message and records it in both stores
	Send(ctx context.Context, req SendRequest) (*maildomain.SentMessage, error)
	// DispatchBulk sends one message per valid row; row failures are collected, never returned
	DispatchBulk(ctx context.Context, rows [][]string, sharedSubject, sharedBody string) (*BulkResult, error)
	// Synchronize imports new inbound mail and advances the feed cursor
	Synchronize(ctx context.Context) (*SyncResult, error)
	ListSent(ctx context.Context, limit, offset int) ([]*maildomain.SentMessage, int64, error)
	ListInbound(ctx context.Context, limit, offset int) ([]*maildomain.InboundMessage, int64, error)
	OpenSentAttachment(ctx context.Context, id string) (*maildomain.SentMessage, io.ReadCloser, error)
	WatchMailbox(ctx context.Context) (uint64, error)
	SetNotifier(n Notifier)
	SetAttachmentArchive(a AttachmentArchive)
	SetWatcher(w maildomain.MailboxWatcher, topicName string)
}

// Notifier is told about messages added by a sync cycle
type Notifier interface {
	NotifyNewMessages(ctx context.Context, msgs []*maildomain.InboundMessage) error
}

// AttachmentArchive keeps a copy of sent attachments
type AttachmentArchive interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// Options holds the tunables of the sync engine
type Options struct {
	// FallbackWindow is the lookback used when the cursor is missing or the cursor fetch fails
	FallbackWindow time.Duration
}

// SendRequest is a single outbound message
type SendRequest struct {
	To         string
	Subject    string
	Body       string
	Attachment *maildomain.Attachment
}

// SyncResult is the outcome of one sync cycle
type SyncResult struct {
	AddedCount int                           `json:"added_count"`
	Added      []*maildomain.InboundMessage `json:"messages"`
}

// BulkResult is the outcome of a bulk dispatch
type BulkResult struct {
	Attempted        int      `json:"attempted"`
	FailedRecipients []string `json:"failed_recipients"`
}
