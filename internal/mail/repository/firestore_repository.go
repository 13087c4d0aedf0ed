package repository

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	maildomain "mailbridge/internal/mail/domain"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	sentCollection    = "sent_messages"
	inboundCollection = "inbound_messages"
	cursorCollection  = "sync_cursors"
)

// cursorDocument stores the cursor as int64; Firestore has no unsigned integers.
type cursorDocument struct {
	Value     int64     `firestore:"value"`
	CreatedAt time.Time `firestore:"created_at"`
}

// firestoreMailRepository is the document half of the dual write
type firestoreMailRepository struct {
	client *firestore.Client
}

// NewFirestoreMailRepository creates a document store backed by Cloud Firestore
func NewFirestoreMailRepository(client *firestore.Client) RecordStore {
	return &firestoreMailRepository{client: client}
}

// create writes a new document and reports false when the document already exists
func (r *firestoreMailRepository) create(ctx context.Context, collection, id string, data interface{}) (bool, error) {
	_, err := r.client.Collection(collection).Doc(id).Create(ctx, data)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *firestoreMailRepository) InsertSent(ctx context.Context, msg *maildomain.SentMessage) error {
	_, err := r.create(ctx, sentCollection, msg.ID, msg)
	return err
}

func (r *firestoreMailRepository) InsertInboundIfAbsent(ctx context.Context, msg *maildomain.InboundMessage) (bool, error) {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	return r.create(ctx, inboundCollection, msg.ID, msg)
}

func (r *firestoreMailRepository) LatestCursor(ctx context.Context) (uint64, bool, error) {
	iter := r.client.Collection(cursorCollection).OrderBy("value", firestore.Desc).Limit(1).Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if err == iterator.Done {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	var doc cursorDocument
	if err := snap.DataTo(&doc); err != nil {
		return 0, false, err
	}
	if doc.Value < 0 {
		return 0, false, fmt.Errorf("stored cursor %d is negative", doc.Value)
	}
	return uint64(doc.Value), true, nil
}

func (r *firestoreMailRepository) AppendCursorIfAbsent(ctx context.Context, value uint64) error {
	if value > math.MaxInt64 {
		return fmt.Errorf("cursor %d does not fit a Firestore integer", value)
	}
	doc := cursorDocument{Value: int64(value), CreatedAt: time.Now()}
	_, err := r.create(ctx, cursorCollection, strconv.FormatUint(value, 10), doc)
	return err
}
