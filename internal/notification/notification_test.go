package notification

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	maildomain "mailbridge/internal/mail/domain"
	"mailbridge/internal/mail/usecase"
	"mailbridge/pkg/fcm"
)

type stubUsecase struct {
	usecase.MailUsecase
	mu    sync.Mutex
	syncs int
	err   error
}

func (s *stubUsecase) Synchronize(ctx context.Context) (*usecase.SyncResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncs++
	if s.err != nil {
		return nil, s.err
	}
	return &usecase.SyncResult{}, nil
}

func payload(t *testing.T, address string, historyID uint64) []byte {
	t.Helper()
	data, err := json.Marshal(GmailNotification{EmailAddress: address, HistoryID: historyID})
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestHandlePayloadSkipsStaleHistory(t *testing.T) {
	uc := &stubUsecase{}
	s := newService(nil, "projects/p/topics/mail", "Me@Example.com", uc)
	ctx := context.Background()

	if !s.handlePayload(ctx, payload(t, "me@example.com", 10)) {
		t.Fatal("expected first notification to trigger sync")
	}
	if s.handlePayload(ctx, payload(t, "me@example.com", 10)) {
		t.Fatal("expected duplicate historyId to be skipped")
	}
	if s.handlePayload(ctx, payload(t, "me@example.com", 9)) {
		t.Fatal("expected older historyId to be skipped")
	}
	if !s.handlePayload(ctx, payload(t, "ME@example.com", 11)) {
		t.Fatal("expected newer historyId to trigger sync")
	}
	if uc.syncs != 2 {
		t.Fatalf("expected 2 syncs, got %d", uc.syncs)
	}
}

func TestHandlePayloadIgnoresOtherMailboxesAndGarbage(t *testing.T) {
	uc := &stubUsecase{}
	s := newService(nil, "mail", "me@example.com", uc)
	ctx := context.Background()

	if s.handlePayload(ctx, payload(t, "other@example.com", 5)) {
		t.Fatal("expected foreign mailbox to be ignored")
	}
	if s.handlePayload(ctx, []byte("not json")) {
		t.Fatal("expected malformed payload to be ignored")
	}
	if uc.syncs != 0 {
		t.Fatalf("expected no syncs, got %d", uc.syncs)
	}
}

func TestHandlePayloadSyncFailureStillAdvances(t *testing.T) {
	uc := &stubUsecase{err: errors.New("boom")}
	s := newService(nil, "mail", "me@example.com", uc)
	ctx := context.Background()

	s.handlePayload(ctx, payload(t, "me@example.com", 3))
	if s.handlePayload(ctx, payload(t, "me@example.com", 3)) {
		t.Fatal("expected redelivery of a handled historyId to be skipped")
	}
}

func TestTopicID(t *testing.T) {
	if got := topicID("projects/p/topics/mail"); got != "mail" {
		t.Fatalf("got %q", got)
	}
	if got := topicID("mail"); got != "mail" {
		t.Fatalf("got %q", got)
	}
}

type recordingSender struct {
	topic string
	sent  []fcm.NotificationData
}

func (r *recordingSender) SendToTopic(ctx context.Context, topic string, n fcm.NotificationData) error {
	r.topic = topic
	r.sent = append(r.sent, n)
	return nil
}

func TestMailNotifier(t *testing.T) {
	sender := &recordingSender{}
	n := NewMailNotifier(sender, "inbox")
	ctx := context.Background()

	if err := n.NotifyNewMessages(ctx, nil); err != nil {
		t.Fatal(err)
	}
	if len(sender.sent) != 0 {
		t.Fatal("expected nothing sent for an empty batch")
	}

	msgs := []*maildomain.InboundMessage{
		{ID: "a", Sender: "x@example.com", Subject: "first"},
		{ID: "b", Sender: "y@example.com", Subject: ""},
	}
	if err := n.NotifyNewMessages(ctx, msgs); err != nil {
		t.Fatal(err)
	}
	if sender.topic != "inbox" || len(sender.sent) != 1 {
		t.Fatalf("unexpected sends: %+v", sender)
	}
	got := sender.sent[0]
	if got.Title != "2 new messages" || got.Body != "(no subject)" {
		t.Fatalf("unexpected notification: %+v", got)
	}
	if got.Data["count"] != "2" || got.Data["message_id"] != "b" {
		t.Fatalf("unexpected data: %+v", got.Data)
	}

	single := buildNotification(msgs[:1])
	if single.Title != "New message from x@example.com" || single.Body != "first" {
		t.Fatalf("unexpected single notification: %+v", single)
	}
}
