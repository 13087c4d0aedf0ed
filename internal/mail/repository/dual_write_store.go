package repository

import (
	"context"
	"errors"
	"fmt"
	"log"

	maildomain "mailbridge/internal/mail/domain"
)

// dualWriteStore sends every write to the relational and the document store.
// Both writes are always attempted and each is retried on its own; a failure in one
// store is never unwound in the other.
type dualWriteStore struct {
	relational RecordStore
	document   RecordStore
	attempts   int
}

// NewDualWriteStore creates a DualWriteStore. attempts is the number of tries per store write.
func NewDualWriteStore(relational, document RecordStore, attempts int) DualWriteStore {
	if attempts < 1 {
		attempts = 1
	}
	return &dualWriteStore{
		relational: relational,
		document:   document,
		attempts:   attempts,
	}
}

func (s *dualWriteStore) InsertSentRecord(ctx context.Context, msg *maildomain.SentMessage) error {
	relErr := s.retry(ctx, func() error { return s.relational.InsertSent(ctx, msg) })
	docErr := s.retry(ctx, func() error { return s.document.InsertSent(ctx, msg) })
	return persistenceError("sent "+msg.ID, relErr, docErr)
}

func (s *dualWriteStore) InsertInboundIfAbsent(ctx context.Context, msg *maildomain.InboundMessage) (bool, error) {
	var relCreated, docCreated bool
	relErr := s.retry(ctx, func() (err error) {
		relCreated, err = s.relational.InsertInboundIfAbsent(ctx, msg)
		return err
	})
	docErr := s.retry(ctx, func() (err error) {
		docCreated, err = s.document.InsertInboundIfAbsent(ctx, msg)
		return err
	})
	if err := persistenceError("inbound "+msg.ID, relErr, docErr); err != nil {
		return false, err
	}
	return relCreated || docCreated, nil
}

// LatestCursor returns the maximum cursor across both stores. One unreadable store is tolerated.
func (s *dualWriteStore) LatestCursor(ctx context.Context) (uint64, bool, error) {
	relValue, relOK, relErr := s.relational.LatestCursor(ctx)
	if relErr != nil {
		log.Printf("[Store] Relational cursor read failed: %v", relErr)
	}
	docValue, docOK, docErr := s.document.LatestCursor(ctx)
	if docErr != nil {
		log.Printf("[Store] Document cursor read failed: %v", docErr)
	}
	if relErr != nil && docErr != nil {
		return 0, false, persistenceError("cursor read", relErr, docErr)
	}

	value, ok := relValue, relOK && relErr == nil
	if docOK && docErr == nil && (!ok || docValue > value) {
		value, ok = docValue, true
	}
	return value, ok, nil
}

func (s *dualWriteStore) AppendCursorIfAbsent(ctx context.Context, value uint64) error {
	relErr := s.retry(ctx, func() error { return s.relational.AppendCursorIfAbsent(ctx, value) })
	docErr := s.retry(ctx, func() error { return s.document.AppendCursorIfAbsent(ctx, value) })
	return persistenceError(fmt.Sprintf("cursor %d", value), relErr, docErr)
}

func (s *dualWriteStore) retry(ctx context.Context, op func() error) error {
	var err error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
	}
	return err
}

func persistenceError(what string, relErr, docErr error) error {
	if relErr == nil && docErr == nil {
		return nil
	}
	var errs []error
	if relErr != nil {
		errs = append(errs, fmt.Errorf("relational store: %w", relErr))
	}
	if docErr != nil {
		errs = append(errs, fmt.Errorf("document store: %w", docErr))
	}
	return fmt.Errorf("%w: %s: %w", maildomain.ErrPersistence, what, errors.Join(errs...))
}
