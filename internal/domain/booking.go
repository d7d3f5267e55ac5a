package domain

import "time"

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
	BookingRefunded  BookingStatus = "refunded"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// Booking is one customer order attempt. It is written before any gateway
// call so a record exists even when the gateway errors out; a booking with
// no transaction is manual-cleanup debt, a gateway charge with no booking
// would not be.
type Booking struct {
	ID          string      `gorm:"primaryKey"`
	ServiceID   string      `gorm:"index;not null"`
	ServiceType ServiceType `gorm:"type:varchar(20)"`

	CustomerName  string
	CustomerEmail string `gorm:"index"`
	CustomerPhone string

	BookingDate   time.Time
	ScheduledDate *time.Time

	Status         BookingStatus `gorm:"index;type:varchar(20);default:pending"`
	PaymentStatus  PaymentStatus `gorm:"index;type:varchar(20);default:pending"`
	PaymentGateway string        `gorm:"type:varchar(30)"`
	Notes          string

	CreatedAt time.Time
	UpdatedAt time.Time
}
