package notification

import (
	"context"
	"fmt"
	"strconv"

	maildomain "mailbridge/internal/mail/domain"
	"mailbridge/pkg/fcm"
)

// TopicSender is the part of the FCM client the notifier needs
type TopicSender interface {
	SendToTopic(ctx context.Context, topic string, notification fcm.NotificationData) error
}

// MailNotifier pushes a summary of newly synced messages to an FCM topic
type MailNotifier struct {
	sender TopicSender
	topic  string
}

func NewMailNotifier(sender TopicSender, topic string) *MailNotifier {
	return &MailNotifier{sender: sender, topic: topic}
}

func (n *MailNotifier) NotifyNewMessages(ctx context.Context, msgs []*maildomain.InboundMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	return n.sender.SendToTopic(ctx, n.topic, buildNotification(msgs))
}

func buildNotification(msgs []*maildomain.InboundMessage) fcm.NotificationData {
	latest := msgs[len(msgs)-1]

	title := fmt.Sprintf("%d new messages", len(msgs))
	if len(msgs) == 1 {
		title = "New message from " + latest.Sender
	}

	body := latest.Subject
	if len(body) > 100 {
		body = body[:97] + "..."
	}
	if body == "" {
		body = "(no subject)"
	}

	return fcm.NotificationData{
		Title: title,
		Body:  body,
		Data: map[string]string{
			"type":       "mail_sync",
			"count":      strconv.Itoa(len(msgs)),
			"message_id": latest.ID,
		},
	}
}
