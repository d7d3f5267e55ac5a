package events

import (
	"encoding/json"
	"fmt"
)

// Routing keys on the payment exchange.
const (
	RKEmailRequested = "notify.email"

	RKPaymentPaid      = "payment.paid"
	RKPaymentFailed    = "payment.failed"
	RKBookingConfirmed = "booking.confirmed"
)

// Email template names the notification worker knows how to render.
const (
	TplBookingConfirmation = "booking_confirmation"
	TplPaymentFailed       = "payment_failed"
)

// EmailRequested asks the notification worker to render and send one
// templated email. Fields are flat strings so the admin templates stay dumb.
type EmailRequested struct {
	Template  string            `json:"template"`
	Recipient string            `json:"recipient"`
	Fields    map[string]string `json:"fields"`
}

type PaymentPaid struct {
	BookingID      string `json:"booking_id"`
	TransactionID  string `json:"transaction_id"`
	GatewayOrderID string `json:"gateway_order_id"`
	Amount         int64  `json:"amount"` // minor units
	Currency       string `json:"currency"`
	Method         string `json:"method"`
}

type PaymentFailed struct {
	BookingID      string `json:"booking_id"`
	TransactionID  string `json:"transaction_id"`
	GatewayOrderID string `json:"gateway_order_id"`
	Reason         string `json:"reason,omitempty"`
}

type BookingConfirmed struct {
	BookingID string `json:"booking_id"`
}

func MustUnmarshal[T any](b []byte) (T, error) {
	var t T
	if err := json.Unmarshal(b, &t); err != nil {
		var zero T
		return zero, fmt.Errorf("decode payload failed: %w", err)
	}
	return t, nil
}
