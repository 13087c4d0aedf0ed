package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	maildomain "mailbridge/internal/mail/domain"
)

// memoryStore is an in-memory DualWriteStore and MailQueryRepository
type memoryStore struct {
	mu       sync.Mutex
	sent     map[string]*maildomain.SentMessage
	inbound  map[string]*maildomain.InboundMessage
	cursors  []uint64
	inserted int

	sentErr    func(*maildomain.SentMessage) error
	inboundErr func(*maildomain.InboundMessage) error
	cursorErr  error
	appendErr  error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		sent:    make(map[string]*maildomain.SentMessage),
		inbound: make(map[string]*maildomain.InboundMessage),
	}
}

func (s *memoryStore) InsertSentRecord(ctx context.Context, msg *maildomain.SentMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sentErr != nil {
		if err := s.sentErr(msg); err != nil {
			return err
		}
	}
	s.sent[msg.ID] = msg
	return nil
}

func (s *memoryStore) InsertInboundIfAbsent(ctx context.Context, msg *maildomain.InboundMessage) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inboundErr != nil {
		if err := s.inboundErr(msg); err != nil {
			return false, err
		}
	}
	if _, ok := s.inbound[msg.ID]; ok {
		return false, nil
	}
	s.inbound[msg.ID] = msg
	s.inserted++
	return true, nil
}

func (s *memoryStore) LatestCursor(ctx context.Context) (uint64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursorErr != nil {
		return 0, false, s.cursorErr
	}
	if len(s.cursors) == 0 {
		return 0, false, nil
	}
	var max uint64
	for _, c := range s.cursors {
		if c > max {
			max = c
		}
	}
	return max, true, nil
}

func (s *memoryStore) AppendCursorIfAbsent(ctx context.Context, value uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	for _, c := range s.cursors {
		if c == value {
			return nil
		}
	}
	s.cursors = append(s.cursors, value)
	return nil
}

func (s *memoryStore) FindSentByID(ctx context.Context, id string) (*maildomain.SentMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent[id], nil
}

func (s *memoryStore) ListSent(ctx context.Context, limit, offset int) ([]*maildomain.SentMessage, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]*maildomain.SentMessage, 0, len(s.sent))
	for _, m := range s.sent {
		items = append(items, m)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].SentAt.After(items[j].SentAt) })
	return page(items, limit, offset), int64(len(items)), nil
}

func (s *memoryStore) ListInbound(ctx context.Context, limit, offset int) ([]*maildomain.InboundMessage, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]*maildomain.InboundMessage, 0, len(s.inbound))
	for _, m := range s.inbound {
		items = append(items, m)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ReceivedAt.After(items[j].ReceivedAt) })
	return page(items, limit, offset), int64(len(items)), nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

type sentMail struct {
	To          string
	Subject     string
	Body        string
	Attachments []maildomain.Attachment
}

type fakeTransport struct {
	mu     sync.Mutex
	sent   []sentMail
	failTo map[string]bool
}

func (t *fakeTransport) Send(ctx context.Context, to, subject, body string, attachments []maildomain.Attachment) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failTo[to] {
		return errors.New("mailbox unavailable")
	}
	t.sent = append(t.sent, sentMail{To: to, Subject: subject, Body: body, Attachments: attachments})
	return nil
}

type fakeFeed struct {
	mu          sync.Mutex
	since       []*maildomain.FeedMessage
	sinceErr    error
	window      []*maildomain.FeedMessage
	windowErr   error
	sinceCalls  []uint64
	windowCalls []time.Duration

	// gate, when set, blocks every fetch until it is closed
	gate chan struct{}
}

func (f *fakeFeed) FetchSince(ctx context.Context, cursor uint64) ([]*maildomain.FeedMessage, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sinceCalls = append(f.sinceCalls, cursor)
	if f.sinceErr != nil {
		return nil, f.sinceErr
	}
	var out []*maildomain.FeedMessage
	for _, m := range f.since {
		if m.Cursor > cursor {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeFeed) FetchRecentWindow(ctx context.Context, lookback time.Duration) ([]*maildomain.FeedMessage, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.windowCalls = append(f.windowCalls, lookback)
	if f.windowErr != nil {
		return nil, f.windowErr
	}
	return f.window, nil
}

func (f *fakeFeed) wait(ctx context.Context) error {
	if f.gate != nil {
		<-f.gate
	}
	return ctx.Err()
}

type memoryArchive struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func (a *memoryArchive) Put(ctx context.Context, key, contentType string, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.putErr != nil {
		return a.putErr
	}
	if a.objects == nil {
		a.objects = make(map[string][]byte)
	}
	a.objects[key] = data
	return nil
}

func (a *memoryArchive) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	data, ok := a.objects[key]
	if !ok {
		return nil, maildomain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type recordingNotifier struct {
	batches [][]*maildomain.InboundMessage
}

func (n *recordingNotifier) NotifyNewMessages(ctx context.Context, msgs []*maildomain.InboundMessage) error {
	n.batches = append(n.batches, msgs)
	return nil
}

type fakeWatcher struct {
	topic string
}

func (w *fakeWatcher) Watch(ctx context.Context, topicName string) (uint64, error) {
	w.topic = topicName
	return 4242, nil
}

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	uc        *mailUsecase
	store     *memoryStore
	transport *fakeTransport
	feed      *fakeFeed
}

func newFixture() *fixture {
	store := newMemoryStore()
	transport := &fakeTransport{failTo: map[string]bool{}}
	feed := &fakeFeed{}
	uc := NewMailUsecase(store, store, transport, feed, maildomain.NewMailbox("Me@Example.com", "Me"), Options{}).(*mailUsecase)
	uc.now = func() time.Time { return fixedNow }
	return &fixture{uc: uc, store: store, transport: transport, feed: feed}
}
