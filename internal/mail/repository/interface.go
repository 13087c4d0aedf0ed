package repository

import (
	"context"

	maildomain "mailbridge/internal/mail/domain"
)

// RecordStore is one of the two independent stores behind the dual write.
// Every insert must be safe to repeat.
type RecordStore interface {
	// InsertSent stores a sent record; repeating the same ID is a no-op.
	InsertSent(ctx context.Context, msg *maildomain.SentMessage) error
	// InsertInboundIfAbsent stores msg unless its ID exists. Returns true when a record was created.
	InsertInboundIfAbsent(ctx context.Context, msg *maildomain.InboundMessage) (bool, error)
	// LatestCursor returns the highest appended cursor; ok is false when none exists.
	LatestCursor(ctx context.Context) (value uint64, ok bool, err error)
	// AppendCursorIfAbsent appends value unless it already exists.
	AppendCursorIfAbsent(ctx context.Context, value uint64) error
}

// MailQueryRepository serves read paths from the relational store.
type MailQueryRepository interface {
	FindSentByID(ctx context.Context, id string) (*maildomain.SentMessage, error)
	ListSent(ctx context.Context, limit, offset int) ([]*maildomain.SentMessage, int64, error)
	ListInbound(ctx context.Context, limit, offset int) ([]*maildomain.InboundMessage, int64, error)
}

// RelationalRepository is the relational store: a RecordStore that also serves queries.
type RelationalRepository interface {
	RecordStore
	MailQueryRepository
}

// DualWriteStore writes every record to both stores.
type DualWriteStore interface {
	InsertSentRecord(ctx context.Context, msg *maildomain.SentMessage) error
	InsertInboundIfAbsent(ctx context.Context, msg *maildomain.InboundMessage) (bool, error)
	LatestCursor(ctx context.Context) (uint64, bool, error)
	AppendCursorIfAbsent(ctx context.Context, value uint64) error
}
