package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	maildomain "mailbridge/internal/mail/domain"

	"github.com/emersion/go-message/mail"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

type fakeGmail struct {
	mu        sync.Mutex
	historyQ  []string
	listQ     []string
	sentRaw   string
	watchReq  gmail.WatchRequest
	stopCalls int
}

func (f *fakeGmail) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.URL.Path == "/gmail/v1/users/me/history":
		f.historyQ = append(f.historyQ, r.URL.RawQuery)
		if r.URL.Query().Get("startHistoryId") == "1" {
			http.Error(w, `{"error":{"code":404,"message":"Requested entity was not found."}}`, http.StatusNotFound)
			return
		}
		if r.URL.Query().Get("startHistoryId") == "40" {
			io.WriteString(w, `{"history":[{"messagesAdded":[{"message":{"id":"m1"}},{"message":{"id":"broken"}},{"message":{"id":"m2"}}]}],"historyId":"50"}`)
			return
		}
		if r.URL.Query().Get("pageToken") == "" {
			io.WriteString(w, `{"history":[{"messagesAdded":[{"message":{"id":"m1"}},{"message":{"id":"m2"}}]}],"nextPageToken":"p2","historyId":"30"}`)
			return
		}
		io.WriteString(w, `{"history":[{"messagesAdded":[{"message":{"id":"m2"}},{"message":{"id":"gone"}}]}],"historyId":"30"}`)
	case r.URL.Path == "/gmail/v1/users/me/messages":
		f.listQ = append(f.listQ, r.URL.Query().Get("q"))
		io.WriteString(w, `{"messages":[{"id":"m2"},{"id":"m1"}]}`)
	case r.URL.Path == "/gmail/v1/users/me/messages/broken":
		http.Error(w, `{"error":{"code":500,"message":"Backend Error"}}`, http.StatusInternalServerError)
	case r.URL.Path == "/gmail/v1/users/me/messages/gone":
		http.Error(w, `{"error":{"code":404,"message":"Not Found"}}`, http.StatusNotFound)
	case strings.HasPrefix(r.URL.Path, "/gmail/v1/users/me/messages/m"):
		id := strings.TrimPrefix(r.URL.Path, "/gmail/v1/users/me/messages/")
		history := map[string]string{"m1": "21", "m2": "25"}[id]
		io.WriteString(w, `{"id":"`+id+`","threadId":"t-`+id+`","historyId":"`+history+`","snippet":"Hi &amp; bye",`+
			`"payload":{"headers":[{"name":"From","value":"Ann <ann@example.com>"},{"name":"Subject","value":"About `+id+`"},{"name":"Date","value":"Tue, 1 Jul 2003 10:52:37 +0200"}]}}`)
	case r.URL.Path == "/gmail/v1/users/me/messages/send":
		var msg gmail.Message
		json.NewDecoder(r.Body).Decode(&msg)
		f.sentRaw = msg.Raw
		io.WriteString(w, `{"id":"sent"}`)
	case r.URL.Path == "/gmail/v1/users/me/stop":
		f.stopCalls++
		w.WriteHeader(http.StatusNoContent)
	case r.URL.Path == "/gmail/v1/users/me/watch":
		json.NewDecoder(r.Body).Decode(&f.watchReq)
		io.WriteString(w, `{"historyId":"777","expiration":"1700000000000"}`)
	case r.URL.Path == "/gmail/v1/users/me/profile":
		io.WriteString(w, `{"emailAddress":"me@example.com"}`)
	default:
		http.NotFound(w, r)
	}
}

func newTestService(t *testing.T) (*Service, *fakeGmail) {
	t.Helper()
	fake := &fakeGmail{}
	ts := httptest.NewServer(fake)
	t.Cleanup(ts.Close)

	srv, err := gmail.NewService(context.Background(),
		option.WithEndpoint(ts.URL+"/"),
		option.WithHTTPClient(ts.Client()))
	if err != nil {
		t.Fatal(err)
	}
	return newService(srv, Config{PageSize: 50, FetchConcurrency: 2}), fake
}

func TestFetchSincePagesAndDedupes(t *testing.T) {
	s, fake := newTestService(t)

	msgs, err := s.FetchSince(context.Background(), 20)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || msgs[0].ID != "m1" || msgs[1].ID != "m2" {
		t.Fatalf("unexpected messages %+v", msgs)
	}
	if msgs[0].Cursor != 21 || msgs[1].Cursor != 25 {
		t.Fatalf("unexpected cursors %d %d", msgs[0].Cursor, msgs[1].Cursor)
	}
	if msgs[0].From != "Ann <ann@example.com>" || msgs[0].Snippet != "Hi & bye" || msgs[0].ThreadID != "t-m1" {
		t.Fatalf("unexpected conversion %+v", msgs[0])
	}
	if len(fake.historyQ) != 2 || !strings.Contains(fake.historyQ[0], "startHistoryId=20") {
		t.Fatalf("unexpected history calls %v", fake.historyQ)
	}
}

func TestFetchSinceExpiredHistory(t *testing.T) {
	s, _ := newTestService(t)
	if _, err := s.FetchSince(context.Background(), 1); err == nil {
		t.Fatal("expected an error for an expired history id")
	}
}

func TestFetchSinceFailsWhenAMessageCannotBeRead(t *testing.T) {
	s, _ := newTestService(t)

	msgs, err := s.FetchSince(context.Background(), 40)
	if err == nil {
		t.Fatalf("expected an error, got %d messages", len(msgs))
	}
	if !strings.Contains(err.Error(), "broken") {
		t.Fatalf("error should name the failed message: %v", err)
	}
}

func TestFetchRecentWindow(t *testing.T) {
	s, fake := newTestService(t)

	msgs, err := s.FetchRecentWindow(context.Background(), 24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || msgs[0].ID != "m2" {
		t.Fatalf("expected list order to be kept, got %+v", msgs)
	}
	if len(fake.listQ) != 1 || !strings.HasPrefix(fake.listQ[0], "in:inbox after:") {
		t.Fatalf("unexpected query %v", fake.listQ)
	}
}

func TestSendEncodesRawMessage(t *testing.T) {
	s, fake := newTestService(t)
	s.SetFrom(&mail.Address{Name: "Me", Address: "me@example.com"})

	err := s.Send(context.Background(), "ann@example.com", "Hello", "<b>hi</b>", []maildomain.Attachment{
		{Filename: "a.txt", ContentType: "text/plain", Data: []byte("attached")},
	})
	if err != nil {
		t.Fatal(err)
	}

	raw, err := base64.URLEncoding.DecodeString(fake.sentRaw)
	if err != nil {
		t.Fatalf("raw is not url-safe base64: %v", err)
	}
	mr, err := mail.CreateReader(strings.NewReader(string(raw)))
	if err != nil {
		t.Fatal(err)
	}
	subject, _ := mr.Header.Subject()
	from, _ := mr.Header.AddressList("From")
	if subject != "Hello" || len(from) != 1 || from[0].Address != "me@example.com" {
		t.Fatalf("unexpected headers subject=%q from=%v", subject, from)
	}
}

func TestWatchAndProfile(t *testing.T) {
	s, fake := newTestService(t)
	ctx := context.Background()

	id, err := s.Watch(ctx, "projects/p/topics/mail")
	if err != nil || id != 777 {
		t.Fatalf("Watch = %d, %v", id, err)
	}
	if fake.stopCalls != 1 || fake.watchReq.TopicName != "projects/p/topics/mail" {
		t.Fatalf("unexpected watch calls: stop=%d req=%+v", fake.stopCalls, fake.watchReq)
	}

	addr, err := s.ProfileAddress(ctx)
	if err != nil || addr != "me@example.com" {
		t.Fatalf("ProfileAddress = %q, %v", addr, err)
	}
}

func TestNewServiceClampsSettings(t *testing.T) {
	s := newService(nil, Config{PageSize: 10000})
	if s.pageSize != 500 || s.concurrency != 10 {
		t.Fatalf("got pageSize=%d concurrency=%d", s.pageSize, s.concurrency)
	}
	s = newService(nil, Config{})
	if s.pageSize != 100 {
		t.Fatalf("expected default page size, got %d", s.pageSize)
	}
}

func TestConvertGmailMessageWithoutPayload(t *testing.T) {
	got := convertGmailMessage(&gmail.Message{Id: "x", HistoryId: 3})
	if got.ID != "x" || got.From != "" || got.Cursor != 3 {
		t.Fatalf("unexpected %+v", got)
	}
}
