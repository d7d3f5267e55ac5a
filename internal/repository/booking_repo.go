package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/omprakash24d/DriveRight-sub001/internal/domain"
)

type BookingRepo struct{ db *gorm.DB }

func NewBookingRepo(db *gorm.DB) *BookingRepo {
	return &BookingRepo{db: db}
}

func (r *BookingRepo) Migrate() error {
	return r.db.AutoMigrate(&domain.Booking{})
}

func (r *BookingRepo) Create(ctx context.Context, b *domain.Booking) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.BookingDate.IsZero() {
		b.BookingDate = time.Now().UTC()
	}
	if b.Status == "" {
		b.Status = domain.BookingPending
	}
	if b.PaymentStatus == "" {
		b.PaymentStatus = domain.PaymentPending
	}
	return r.db.WithContext(ctx).Create(b).Error
}

func (r *BookingRepo) ByID(ctx context.Context, id string) (*domain.Booking, error) {
	var b domain.Booking
	if err := r.db.WithContext(ctx).First(&b, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BookingRepo) SetGateway(ctx context.Context, id, gateway string) error {
	return r.db.WithContext(ctx).Model(&domain.Booking{}).
		Where("id = ?", id).
		Update("payment_gateway", gateway).Error
}

// SetPaymentResult applies the reconciler's verdict. Only the reconciler
// calls this, and only after it won the transaction's status transition.
func (r *BookingRepo) SetPaymentResult(ctx context.Context, id string, st domain.BookingStatus, ps domain.PaymentStatus) error {
	return r.db.WithContext(ctx).Model(&domain.Booking{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": st, "payment_status": ps}).Error
}

func (r *BookingRepo) List(ctx context.Context, page, size int, email string, status domain.BookingStatus) ([]domain.Booking, int64, error) {
	if size <= 0 {
		size = 20
	}
	if page < 0 {
		page = 0
	}
	qb := r.db.WithContext(ctx).Model(&domain.Booking{})
	if email != "" {
		qb = qb.Where("customer_email = ?", email)
	}
	if status != "" {
		qb = qb.Where("status = ?", status)
	}
	var total int64
	if err := qb.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []domain.Booking
	if err := qb.Order("created_at DESC").Limit(size).Offset(page * size).Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
