package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/omprakash24d/DriveRight-sub001/internal/domain"
)

// TransactionLedger persists one record per payment attempt. Terminal status
// transitions go through TransitionStatus so concurrent reconcilers agree on
// a single winner without multi-row transactions.
type TransactionLedger struct{ db *gorm.DB }

func NewTransactionLedger(db *gorm.DB) *TransactionLedger {
	return &TransactionLedger{db: db}
}

func (r *TransactionLedger) Migrate() error {
	return r.db.AutoMigrate(&domain.Transaction{})
}

func (r *TransactionLedger) Create(ctx context.Context, t *domain.Transaction) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = domain.TxPending
	}
	if t.Type == "" {
		t.Type = domain.TxPayment
	}
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *TransactionLedger) ByID(ctx context.Context, id string) (*domain.Transaction, error) {
	var t domain.Transaction
	if err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TransactionLedger) ByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*domain.Transaction, error) {
	var t domain.Transaction
	err := r.db.WithContext(ctx).First(&t, "gateway_order_id = ?", gatewayOrderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", domain.ErrTransactionNotFound, gatewayOrderID)
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TransactionLedger) ByBookingID(ctx context.Context, bookingID string) ([]domain.Transaction, error) {
	var out []domain.Transaction
	err := r.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

// TransitionStatus moves a transaction from an expected current status to a
// new one in a single conditional UPDATE. The returned bool reports whether
// this caller won the transition; a false with nil error means another
// writer got there first and the caller must re-read and skip side effects.
func (r *TransactionLedger) TransitionStatus(ctx context.Context, id string, from, to domain.TxStatus, fields map[string]any) (bool, error) {
	updates := map[string]any{"status": to}
	for k, v := range fields {
		updates[k] = v
	}
	res := r.db.WithContext(ctx).Model(&domain.Transaction{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkNotified claims the notification send, again conditionally so two
// racing reconcilers cannot both claim it. The claimant sends the email;
// everyone else backs off.
func (r *TransactionLedger) MarkNotified(ctx context.Context, id string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.Transaction{}).
		Where("id = ? AND notified_at IS NULL", id).
		Update("notified_at", at)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ClearNotified releases a claim whose send did not go out. Only the caller
// that won MarkNotified may call this, so a plain update is race-free.
func (r *TransactionLedger) ClearNotified(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&domain.Transaction{}).
		Where("id = ?", id).
		Update("notified_at", nil).Error
}
