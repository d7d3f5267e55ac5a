package domain

import (
	"time"

	"gorm.io/datatypes"
)

type TxStatus string

const (
	TxPending   TxStatus = "pending"
	TxSuccess   TxStatus = "success"
	TxFailed    TxStatus = "failed"
	TxCancelled TxStatus = "cancelled"
)

// Terminal reports whether the status may never change again.
func (s TxStatus) Terminal() bool {
	return s == TxSuccess || s == TxFailed || s == TxCancelled
}

type TxType string

const (
	TxPayment       TxType = "payment"
	TxRefund        TxType = "refund"
	TxPartialRefund TxType = "partial_refund"
)

// Transaction is one payment attempt against a booking. A booking accrues a
// new transaction per retry. GatewayOrderID is the only field of an inbound
// callback that may be trusted: everything else is re-fetched from the
// gateway during reconciliation.
type Transaction struct {
	ID            string      `gorm:"primaryKey"`
	BookingID     string      `gorm:"index;not null"`
	ServiceID     string      `gorm:"index"`
	ServiceType   ServiceType `gorm:"type:varchar(20)"`
	CustomerEmail string      `gorm:"index"`

	Type     TxType `gorm:"type:varchar(20);default:payment"`
	Amount   int64  // minor units (paisa)
	Currency string `gorm:"type:varchar(3)"`

	Status         TxStatus `gorm:"index;type:varchar(20);default:pending"`
	PaymentGateway string   `gorm:"type:varchar(30);index:idx_gw_order,unique"`
	// Gateway's own order identifier; unique per gateway, join key for
	// callbacks and verify calls.
	GatewayOrderID   string `gorm:"index:idx_gw_order,unique;index"`
	GatewayPaymentID string
	PaymentMethod    string

	CustomerIP string
	UserAgent  string
	Extra      datatypes.JSON

	// Set once the confirmation notification has actually been handed to the
	// broker, so a crash between persist and notify resends instead of
	// skipping.
	NotifiedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}
