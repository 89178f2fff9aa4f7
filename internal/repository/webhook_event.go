package repository

import (
	"checkout-reconciler/internal/model"
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
)

// ErrDuplicateEvent is returned by Record when the event id is already logged.
var ErrDuplicateEvent = errors.New("payment event already processed")

type PaymentEventRepository interface {
	Exists(ctx context.Context, eventID string) (bool, error)
	// Record appends the event id. The unique key on event_id makes a second
	// insert fail with ErrDuplicateEvent, even under concurrent delivery.
	Record(ctx context.Context, tx *gorm.DB, eventID, eventType, orderID string) error
}

type paymentEventRepoImpl struct {
	db *gorm.DB
}

func NewPaymentEventRepository(db *gorm.DB) PaymentEventRepository {
	return &paymentEventRepoImpl{db: db}
}

func (r *paymentEventRepoImpl) Exists(ctx context.Context, eventID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.ProcessedPaymentEvent{}).
		Where("event_id = ?", eventID).
		Count(&count).Error

	return count > 0, err
}

func (r *paymentEventRepoImpl) Record(ctx context.Context, tx *gorm.DB, eventID, eventType, orderID string) error {
	if tx == nil {
		tx = r.db
	}
	err := tx.WithContext(ctx).Create(&model.ProcessedPaymentEvent{
		EventID:     eventID,
		EventType:   eventType,
		OrderID:     orderID,
		ProcessedAt: time.Now().UTC(),
	}).Error
	if isDuplicateKey(err) {
		return ErrDuplicateEvent
	}
	return err
}

func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// drivers opened without TranslateError
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "duplicate key value")
}
