package domain

import "time"

// SentMessage is the record of one successful outbound send.
// The same record is written to the relational and the document store under the same ID.
type SentMessage struct {
	ID             string    `json:"id" gorm:"primaryKey" firestore:"id"`
	Sender         string    `json:"sender" gorm:"not null" firestore:"sender"`
	Recipient      string    `json:"recipient" gorm:"index;not null" firestore:"recipient"`
	Subject        string    `json:"subject" firestore:"subject"`
	Body           string    `json:"body" firestore:"body"`
	AttachmentName string    `json:"attachment_name,omitempty" firestore:"attachment_name,omitempty"`
	SentAt         time.Time `json:"sent_at" gorm:"index" firestore:"sent_at"`
}

// InboundMessage is a message imported from the remote mailbox.
// ID is the provider-assigned message id and the natural primary key.
type InboundMessage struct {
	ID         string    `json:"id" gorm:"primaryKey" firestore:"id"`
	ThreadID   string    `json:"thread_id" gorm:"index" firestore:"thread_id"`
	Sender     string    `json:"sender" firestore:"sender"`
	Recipient  string    `json:"recipient" firestore:"recipient"`
	Subject    string    `json:"subject" firestore:"subject"`
	ReceivedAt time.Time `json:"received_at" gorm:"index" firestore:"received_at"`
	Snippet    string    `json:"snippet" firestore:"snippet"`
	CreatedAt  time.Time `json:"created_at" firestore:"created_at"`
}

// SyncCursor is one appended feed position. The latest position is the maximum Value.
type SyncCursor struct {
	Value     uint64    `json:"value" gorm:"primaryKey;autoIncrement:false"`
	CreatedAt time.Time `json:"created_at"`
}

// FeedMessage is a message as returned by a remote change feed.
// Date is the raw header value; Cursor is the feed position the message was observed at (0 if unknown).
type FeedMessage struct {
	ID       string
	ThreadID string
	From     string
	To       string
	Subject  string
	Date     string
	Snippet  string
	Cursor   uint64
}

// Attachment is a binary part sent along with an outbound message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}
