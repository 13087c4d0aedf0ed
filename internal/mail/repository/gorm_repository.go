package repository

import (
	"context"
	"errors"
	"time"

	maildomain "mailbridge/internal/mail/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// gormMailRepository is the relational half of the dual write and the read side for listings.
type gormMailRepository struct {
	db *gorm.DB
}

// NewGormMailRepository creates a relational store backed by GORM
func NewGormMailRepository(db *gorm.DB) RelationalRepository {
	return &gormMailRepository{db: db}
}

// AutoMigrate creates the mail tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&maildomain.SentMessage{}, &maildomain.InboundMessage{}, &maildomain.SyncCursor{})
}

func (r *gormMailRepository) InsertSent(ctx context.Context, msg *maildomain.SentMessage) error {
	// INSERT ... ON CONFLICT (id) DO NOTHING keeps retries duplicate-free
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(msg).Error
}

func (r *gormMailRepository) InsertInboundIfAbsent(ctx context.Context, msg *maildomain.InboundMessage) (bool, error) {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(msg)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *gormMailRepository) LatestCursor(ctx context.Context) (uint64, bool, error) {
	var cursor maildomain.SyncCursor
	err := r.db.WithContext(ctx).Order("value DESC").First(&cursor).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return cursor.Value, true, nil
}

func (r *gormMailRepository) AppendCursorIfAbsent(ctx context.Context, value uint64) error {
	cursor := &maildomain.SyncCursor{Value: value, CreatedAt: time.Now()}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(cursor).Error
}

func (r *gormMailRepository) FindSentByID(ctx context.Context, id string) (*maildomain.SentMessage, error) {
	var msg maildomain.SentMessage
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

func (r *gormMailRepository) ListSent(ctx context.Context, limit, offset int) ([]*maildomain.SentMessage, int64, error) {
	var msgs []*maildomain.SentMessage
	var total int64

	query := r.db.WithContext(ctx).Model(&maildomain.SentMessage{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("sent_at DESC").Limit(limit).Offset(offset).Find(&msgs).Error
	return msgs, total, err
}

func (r *gormMailRepository) ListInbound(ctx context.Context, limit, offset int) ([]*maildomain.InboundMessage, int64, error) {
	var msgs []*maildomain.InboundMessage
	var total int64

	query := r.db.WithContext(ctx).Model(&maildomain.InboundMessage{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("received_at DESC").Limit(limit).Offset(offset).Find(&msgs).Error
	return msgs, total, err
}
