package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"html"
	"log"
	"net/http"
	"time"

	maildomain "mailbridge/internal/mail/domain"
	"mailbridge/pkg/mailmsg"

	"github.com/emersion/go-message/mail"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const user = "me"

// Config holds the OAuth client and the tunables of the Gmail adapter
type Config struct {
	ClientID         string
	ClientSecret     string
	RefreshToken     string
	PageSize         int
	FetchConcurrency int
}

// Service is the Gmail transport and change feed for one mailbox.
// The feed cursor is the Gmail historyId.
type Service struct {
	srv         *gmail.Service
	from        *mail.Address
	pageSize    int64
	concurrency int
}

// NewService creates a Gmail service authorized by the mailbox's refresh token
func NewService(ctx context.Context, cfg Config) (*Service, error) {
	oauthConfig := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gmail.GmailModifyScope},
	}
	token := &oauth2.Token{
		RefreshToken: cfg.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       time.Now(),
	}
	client := oauth2.NewClient(ctx, oauthConfig.TokenSource(ctx, token))

	srv, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}
	return newService(srv, cfg), nil
}

func newService(srv *gmail.Service, cfg Config) *Service {
	pageSize := int64(cfg.PageSize)
	if pageSize <= 0 {
		pageSize = 100
	}
	if pageSize > 500 {
		pageSize = 500 // Gmail API maximum
	}
	concurrency := cfg.FetchConcurrency
	if concurrency <= 0 {
		concurrency = 10
	}
	return &Service{
		srv:         srv,
		pageSize:    pageSize,
		concurrency: concurrency,
	}
}

// SetFrom sets the From address of outbound mail
func (s *Service) SetFrom(from *mail.Address) {
	s.from = from
}

// ProfileAddress returns the address of the authorized mailbox
func (s *Service) ProfileAddress(ctx context.Context) (string, error) {
	profile, err := s.srv.Users.GetProfile(user).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to get profile: %w", err)
	}
	return profile.EmailAddress, nil
}

// Send sends an email with optional attachments
func (s *Service) Send(ctx context.Context, to, subject, body string, attachments []maildomain.Attachment) error {
	raw, err := mailmsg.Compose(s.from, to, subject, body, attachments)
	if err != nil {
		return err
	}

	msg := &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString(raw),
	}
	if _, err := s.srv.Users.Messages.Send(user, msg).Context(ctx).Do(); err != nil {
		return fmt.Errorf("unable to send message: %w", err)
	}
	return nil
}

// FetchSince returns inbox messages added after historyID.
// An expired historyID makes the history call fail with 404.
func (s *Service) FetchSince(ctx context.Context, historyID uint64) ([]*maildomain.FeedMessage, error) {
	var ids []string
	seen := make(map[string]struct{})
	pageToken := ""

	for {
		call := s.srv.Users.History.List(user).
			StartHistoryId(historyID).
			HistoryTypes("messageAdded").
			LabelId("INBOX").
			MaxResults(s.pageSize).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("unable to list history since %d: %w", historyID, err)
		}

		for _, h := range resp.History {
			for _, added := range h.MessagesAdded {
				if added.Message == nil {
					continue
				}
				if _, dup := seen[added.Message.Id]; dup {
					continue
				}
				seen[added.Message.Id] = struct{}{}
				ids = append(ids, added.Message.Id)
			}
		}

		pageToken = resp.NextPageToken
		if pageToken == "" {
			break
		}
	}

	return s.getMessages(ctx, ids)
}

// FetchRecentWindow returns up to one page of inbox messages received within lookback
func (s *Service) FetchRecentWindow(ctx context.Context, lookback time.Duration) ([]*maildomain.FeedMessage, error) {
	q := fmt.Sprintf("in:inbox after:%d", time.Now().Add(-lookback).Unix())
	resp, err := s.srv.Users.Messages.List(user).Q(q).MaxResults(s.pageSize).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to list recent messages: %w", err)
	}

	ids := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		ids = append(ids, m.Id)
	}
	return s.getMessages(ctx, ids)
}

// getMessages fetches metadata for ids in parallel and keeps the feed order.
// Messages deleted since they were listed are skipped; any other failure fails the whole fetch
// so the cursor is never advanced past a message that was not read.
func (s *Service) getMessages(ctx context.Context, ids []string) ([]*maildomain.FeedMessage, error) {
	fetched := make([]*maildomain.FeedMessage, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			msg, err := s.srv.Users.Messages.Get(user, id).
				Format("metadata").
				MetadataHeaders("From", "To", "Subject", "Date").
				Context(gctx).
				Do()
			if err != nil {
				if isNotFound(err) {
					log.Printf("[Gmail] Skipping deleted message %s", id)
					return nil
				}
				return fmt.Errorf("unable to get message %s: %w", id, err)
			}
			fetched[i] = convertGmailMessage(msg)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	messages := make([]*maildomain.FeedMessage, 0, len(fetched))
	for _, m := range fetched {
		if m != nil {
			messages = append(messages, m)
		}
	}
	return messages, nil
}

// Watch sets up push notifications for the inbox and returns the current historyId
func (s *Service) Watch(ctx context.Context, topicName string) (uint64, error) {
	// Only one watch per mailbox is allowed; clear any previous one first
	_ = s.srv.Users.Stop(user).Context(ctx).Do()

	req := &gmail.WatchRequest{
		TopicName: topicName,
		LabelIds:  []string{"INBOX"},
	}

	log.Printf("[Gmail] Starting watch on topic: %s", topicName)
	resp, err := s.srv.Users.Watch(user, req).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("unable to watch mailbox: %w", err)
	}
	log.Printf("[Gmail] Watch started. Expiration: %d, HistoryId: %d", resp.Expiration, resp.HistoryId)

	return resp.HistoryId, nil
}

func convertGmailMessage(msg *gmail.Message) *maildomain.FeedMessage {
	var headers []*gmail.MessagePartHeader
	if msg.Payload != nil {
		headers = msg.Payload.Headers
	}
	return &maildomain.FeedMessage{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		From:     getHeader(headers, "From"),
		To:       getHeader(headers, "To"),
		Subject:  getHeader(headers, "Subject"),
		Date:     getHeader(headers, "Date"),
		Snippet:  mailmsg.Snippet(html.UnescapeString(msg.Snippet), false),
		Cursor:   msg.HistoryId,
	}
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}

func getHeader(headers []*gmail.MessagePartHeader, name string) string {
	for _, header := range headers {
		if header.Name == name {
			return header.Value
		}
	}
	return ""
}
