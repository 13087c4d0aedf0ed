package usecase

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	maildomain "mailbridge/internal/mail/domain"
	"mailbridge/internal/mail/repository"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

const defaultFallbackWindow = 7 * 24 * time.Hour

// mailUsecase implements MailUsecase interface
type mailUsecase struct {
	store     repository.DualWriteStore
	queries   repository.MailQueryRepository
	transport maildomain.MailTransport
	feed      maildomain.ChangeFeed
	mailbox   maildomain.Mailbox
	options   Options

	notifier   Notifier
	archive    AttachmentArchive
	watcher    maildomain.MailboxWatcher
	watchTopic string

	// syncSlot admits one sync cycle at a time for this mailbox
	syncSlot *semaphore.Weighted
	now      func() time.Time
}

// NewMailUsecase creates a new instance of mailUsecase
func NewMailUsecase(store repository.DualWriteStore, queries repository.MailQueryRepository, transport maildomain.MailTransport, feed maildomain.ChangeFeed, mailbox maildomain.Mailbox, options Options) MailUsecase {
	if options.FallbackWindow <= 0 {
		options.FallbackWindow = defaultFallbackWindow
	}
	return &mailUsecase{
		store:     store,
		queries:   queries,
		transport: transport,
		feed:      feed,
		mailbox:   mailbox,
		options:   options,
		syncSlot:  semaphore.NewWeighted(1),
		now:       time.Now,
	}
}

// SetNotifier allows wiring the new-mail notifier after creation
func (u *mailUsecase) SetNotifier(n Notifier) {
	u.notifier = n
}

// SetAttachmentArchive allows wiring the attachment archive after creation
func (u *mailUsecase) SetAttachmentArchive(a AttachmentArchive) {
	u.archive = a
}

// SetWatcher allows wiring provider push notifications after creation
func (u *mailUsecase) SetWatcher(w maildomain.MailboxWatcher, topicName string) {
	u.watcher = w
	u.watchTopic = topicName
}

func (u *mailUsecase) Send(ctx context.Context, req SendRequest) (*maildomain.SentMessage, error) {
	to := strings.TrimSpace(req.To)
	if to == "" {
		return nil, fmt.Errorf("%w: recipient is required", maildomain.ErrValidation)
	}

	var attachments []maildomain.Attachment
	attachmentName := ""
	if req.Attachment != nil {
		attachments = append(attachments, *req.Attachment)
		attachmentName = req.Attachment.Filename
	}

	if err := u.transport.Send(ctx, to, req.Subject, req.Body, attachments); err != nil {
		return nil, fmt.Errorf("%w: %v", maildomain.ErrTransport, err)
	}

	record := u.newSentRecord(to, req.Subject, req.Body, attachmentName)
	if err := u.store.InsertSentRecord(ctx, record); err != nil {
		log.Printf("[Send] Sent to %s but failed to record %s: %v", to, record.ID, err)
		return record, err
	}

	if u.archive != nil && req.Attachment != nil {
		key := ArchiveKey(record.ID, attachmentName)
		if err := u.archive.Put(ctx, key, req.Attachment.ContentType, req.Attachment.Data); err != nil {
			log.Printf("[Send] Failed to archive attachment %s: %v", key, err)
		}
	}

	return record, nil
}

func (u *mailUsecase) newSentRecord(to, subject, body, attachmentName string) *maildomain.SentMessage {
	return &maildomain.SentMessage{
		ID:             uuid.New().String(),
		Sender:         u.mailbox.Address,
		Recipient:      to,
		Subject:        subject,
		Body:           body,
		AttachmentName: attachmentName,
		SentAt:         u.now(),
	}
}

// ArchiveKey is the object key of a sent message's attachment
func ArchiveKey(sentID, filename string) string {
	return fmt.Sprintf("sent/%s/%s", sentID, filename)
}

func (u *mailUsecase) ListSent(ctx context.Context, limit, offset int) ([]*maildomain.SentMessage, int64, error) {
	return u.queries.ListSent(ctx, limit, offset)
}

func (u *mailUsecase) ListInbound(ctx context.Context, limit, offset int) ([]*maildomain.InboundMessage, int64, error) {
	return u.queries.ListInbound(ctx, limit, offset)
}

func (u *mailUsecase) OpenSentAttachment(ctx context.Context, id string) (*maildomain.SentMessage, io.ReadCloser, error) {
	record, err := u.queries.FindSentByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if record == nil || record.AttachmentName == "" || u.archive == nil {
		return nil, nil, maildomain.ErrNotFound
	}

	body, err := u.archive.Get(ctx, ArchiveKey(record.ID, record.AttachmentName))
	if err != nil {
		return nil, nil, err
	}
	return record, body, nil
}

func (u *mailUsecase) WatchMailbox(ctx context.Context) (uint64, error) {
	if u.watcher == nil || u.watchTopic == "" {
		return 0, maildomain.ErrWatchUnsupported
	}
	return u.watcher.Watch(ctx, u.watchTopic)
}
