package imap

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log"
	"math"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	maildomain "mailbridge/internal/mail/domain"
	"mailbridge/pkg/mailmsg"

	goimap "github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

// Config holds the IMAP account and the tunables of the feed
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	UseTLS   bool
	Mailbox  string
	PageSize int
	Timeout  time.Duration
}

// Service is an IMAP change feed. The cursor is the message UID in the selected mailbox.
type Service struct {
	cfg Config

	mu          sync.Mutex
	uidValidity uint32
}

func NewService(cfg Config) *Service {
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &Service{cfg: cfg}
}

func (s *Service) connect(ctx context.Context) (*client.Client, error) {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	dialer := &net.Dialer{Timeout: 10 * time.Second}

	var conn net.Conn
	var err error
	if s.cfg.UseTLS {
		tlsDialer := &tls.Dialer{NetDialer: dialer, Config: &tls.Config{ServerName: s.cfg.Host}}
		conn, err = tlsDialer.DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to connect to %s: %w", addr, err)
	}

	c, err := client.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("unable to start IMAP session: %w", err)
	}
	c.Timeout = s.cfg.Timeout

	if err := c.Login(s.cfg.Username, s.cfg.Password); err != nil {
		c.Logout()
		return nil, fmt.Errorf("unable to login: %w", err)
	}
	return c, nil
}

// FetchSince returns messages whose UID is greater than uid
func (s *Service) FetchSince(ctx context.Context, uid uint64) ([]*maildomain.FeedMessage, error) {
	c, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer c.Logout()

	status, err := c.Select(s.cfg.Mailbox, true)
	if err != nil {
		return nil, fmt.Errorf("unable to select %s: %w", s.cfg.Mailbox, err)
	}
	if err := checkCursor(status, uid, s.observeValidity(status)); err != nil {
		return nil, err
	}

	uidSet := new(goimap.SeqSet)
	uidSet.AddRange(uint32(uid)+1, 0)
	criteria := goimap.NewSearchCriteria()
	criteria.Uid = uidSet

	uids, err := c.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("unable to search since uid %d: %w", uid, err)
	}

	// "n:*" always matches the highest UID, even when it is below n
	newer := uids[:0]
	for _, u := range uids {
		if uint64(u) > uid {
			newer = append(newer, u)
		}
	}
	return s.fetch(c, newer)
}

// FetchRecentWindow returns the newest messages received within lookback, at most one page
func (s *Service) FetchRecentWindow(ctx context.Context, lookback time.Duration) ([]*maildomain.FeedMessage, error) {
	c, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer c.Logout()

	status, err := c.Select(s.cfg.Mailbox, true)
	if err != nil {
		return nil, fmt.Errorf("unable to select %s: %w", s.cfg.Mailbox, err)
	}
	s.observeValidity(status)

	criteria := goimap.NewSearchCriteria()
	criteria.Since = time.Now().Add(-lookback)

	uids, err := c.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("unable to search recent messages: %w", err)
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	if len(uids) > s.cfg.PageSize {
		uids = uids[len(uids)-s.cfg.PageSize:]
	}
	return s.fetch(c, uids)
}

// observeValidity records the mailbox UIDVALIDITY and returns the value seen before it
func (s *Service) observeValidity(status *goimap.MailboxStatus) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	previous := s.uidValidity
	if status != nil && status.UidValidity != 0 {
		s.uidValidity = status.UidValidity
	}
	return previous
}

// checkCursor rejects a UID cursor the selected mailbox cannot have issued.
// After a UID reset the server's UIDNEXT drops to or below the stored cursor.
func checkCursor(status *goimap.MailboxStatus, uid uint64, previousValidity uint32) error {
	if uid >= math.MaxUint32 {
		return fmt.Errorf("cursor %d is outside the IMAP UID range", uid)
	}
	if status == nil {
		return nil
	}
	if previousValidity != 0 && status.UidValidity != 0 && status.UidValidity != previousValidity {
		return fmt.Errorf("UIDVALIDITY of %s changed from %d to %d", status.Name, previousValidity, status.UidValidity)
	}
	if status.UidNext != 0 && uint64(status.UidNext) <= uid {
		return fmt.Errorf("cursor %d is not below UIDNEXT %d of %s", uid, status.UidNext, status.Name)
	}
	return nil
}

func (s *Service) fetch(c *client.Client, uids []uint32) ([]*maildomain.FeedMessage, error) {
	if len(uids) == 0 {
		return []*maildomain.FeedMessage{}, nil
	}

	seqSet := new(goimap.SeqSet)
	seqSet.AddNum(uids...)

	section := &goimap.BodySectionName{Peek: true}
	items := []goimap.FetchItem{goimap.FetchUid, goimap.FetchEnvelope, section.FetchItem()}

	messages := make(chan *goimap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqSet, items, messages)
	}()

	var result []*maildomain.FeedMessage
	for msg := range messages {
		if msg == nil || msg.Envelope == nil {
			continue
		}
		result = append(result, convertIMAPMessage(msg, section))
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("unable to fetch messages: %w", err)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Cursor < result[j].Cursor })
	return result, nil
}

func convertIMAPMessage(msg *goimap.Message, section *goimap.BodySectionName) *maildomain.FeedMessage {
	env := msg.Envelope

	id := strings.TrimSpace(env.MessageId)
	if id == "" {
		id = fmt.Sprintf("uid:%d", msg.Uid)
	}
	threadID := strings.TrimSpace(env.InReplyTo)
	if threadID == "" {
		threadID = id
	}

	date := ""
	if !env.Date.IsZero() {
		date = env.Date.Format(time.RFC1123Z)
	}

	snippet := ""
	if literal := msg.GetBody(section); literal != nil {
		raw, err := io.ReadAll(literal)
		if err == nil {
			snippet, err = mailmsg.SnippetFromMessage(bytes.NewReader(raw))
		}
		if err != nil {
			log.Printf("[IMAP] Could not read body of uid %d: %v", msg.Uid, err)
		}
	}

	return &maildomain.FeedMessage{
		ID:       id,
		ThreadID: threadID,
		From:     formatAddressList(env.From),
		To:       formatAddressList(env.To),
		Subject:  env.Subject,
		Date:     date,
		Snippet:  snippet,
		Cursor:   uint64(msg.Uid),
	}
}

func formatAddressList(addrs []*goimap.Address) string {
	parts := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		if addr == nil {
			continue
		}
		email := addr.Address()
		if addr.PersonalName != "" {
			parts = append(parts, fmt.Sprintf("%s <%s>", addr.PersonalName, email))
		} else {
			parts = append(parts, email)
		}
	}
	return strings.Join(parts, ", ")
}
