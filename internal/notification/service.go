package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"mailbridge/internal/mail/usecase"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

type GmailNotification struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    uint64 `json:"historyId"`
}

// Service listens for Gmail push notifications and triggers a sync cycle for each new one
type Service struct {
	pubsubClient *pubsub.Client
	mailUsecase  usecase.MailUsecase
	mailbox      string
	topicName    string
	subName      string

	mu            sync.Mutex
	lastHistoryID uint64
}

func NewService(ctx context.Context, projectID, topicName, credentialsFile, mailbox string, mailUsecase usecase.MailUsecase) (*Service, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}

	return newService(client, topicName, mailbox, mailUsecase), nil
}

func newService(client *pubsub.Client, topicName, mailbox string, mailUsecase usecase.MailUsecase) *Service {
	return &Service{
		pubsubClient: client,
		mailUsecase:  mailUsecase,
		mailbox:      strings.ToLower(mailbox),
		topicName:    topicName,
		subName:      topicID(topicName) + "-sub", // Convention: topic-sub
	}
}

func (s *Service) Start(ctx context.Context) {
	log.Printf("[PubSub] Starting notification service with topic: %s, subscription: %s", s.topicName, s.subName)

	sub := s.pubsubClient.Subscription(s.subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		log.Printf("[PubSub] Error checking subscription existence: %v", err)
		return
	}

	if !exists {
		topic := s.pubsubClient.Topic(topicID(s.topicName))
		topicExists, err := topic.Exists(ctx)
		if err != nil {
			log.Printf("[PubSub] Error checking topic existence: %v", err)
			return
		}
		if !topicExists {
			log.Printf("[PubSub] Topic does not exist, cannot create subscription")
			return
		}

		sub, err = s.pubsubClient.CreateSubscription(ctx, s.subName, pubsub.SubscriptionConfig{
			Topic:       topic,
			AckDeadline: 30 * time.Second,
		})
		if err != nil {
			log.Printf("[PubSub] Failed to create subscription: %v", err)
			return
		}
		log.Printf("[PubSub] Created subscription: %s", s.subName)
	}

	log.Printf("[PubSub] Listening for messages on subscription: %s", s.subName)
	err = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		s.handlePayload(ctx, msg.Data)
		msg.Ack()
	})
	if err != nil {
		log.Printf("[PubSub] Error receiving messages: %v", err)
	}
}

func (s *Service) Close() error {
	return s.pubsubClient.Close()
}

// topicID returns the short id of a topic name that may be fully qualified
func topicID(topicName string) string {
	if i := strings.LastIndex(topicName, "/"); i >= 0 {
		return topicName[i+1:]
	}
	return topicName
}

// handlePayload returns true when the notification triggered a sync cycle
func (s *Service) handlePayload(ctx context.Context, data []byte) bool {
	var notification GmailNotification
	if err := json.Unmarshal(data, &notification); err != nil {
		log.Printf("[PubSub] Failed to unmarshal notification: %v", err)
		return false
	}

	if !strings.EqualFold(notification.EmailAddress, s.mailbox) {
		log.Printf("[PubSub] Ignoring notification for %s", notification.EmailAddress)
		return false
	}

	s.mu.Lock()
	if notification.HistoryID <= s.lastHistoryID {
		last := s.lastHistoryID
		s.mu.Unlock()
		log.Printf("[PubSub] Skipping duplicate notification (historyId %d <= last %d)", notification.HistoryID, last)
		return false
	}
	s.lastHistoryID = notification.HistoryID
	s.mu.Unlock()

	result, err := s.mailUsecase.Synchronize(ctx)
	if err != nil {
		log.Printf("[PubSub] Sync after notification failed: %v", err)
		return true
	}
	log.Printf("[PubSub] Sync after historyId %d added %d messages", notification.HistoryID, result.AddedCount)
	return true
}
