package worker

import (
	"encoding/json"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omprakash24d/DriveRight-sub001/internal/events"
)

type recordedMail struct {
	recipient string
	subject   string
	body      string
}

type recordingNotifier struct {
	mails []recordedMail
	err   error
}

func (n *recordingNotifier) Notify(recipient, subject, body string) error {
	if n.err != nil {
		return n.err
	}
	n.mails = append(n.mails, recordedMail{recipient, subject, body})
	return nil
}

func delivery(t *testing.T, key string, payload any) amqp.Delivery {
	t.Helper()
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	return amqp.Delivery{RoutingKey: key, Body: b}
}

func TestHandleEmailRequested(t *testing.T) {
	n := &recordingNotifier{}
	c := New(nil, n, "")

	err := c.handleDelivery(delivery(t, events.RKEmailRequested, events.EmailRequested{
		Template:  events.TplBookingConfirmation,
		Recipient: "asha@example.com",
		Fields: map[string]string{
			"name": "Asha", "booking_id": "bk-1", "amount": "500.00", "currency": "INR",
		},
	}))
	require.NoError(t, err)
	require.Len(t, n.mails, 1)
	assert.Equal(t, "asha@example.com", n.mails[0].recipient)
	assert.Contains(t, n.mails[0].body, "bk-1")
}

func TestHandleEmailRequestedRejectsBadPayload(t *testing.T) {
	n := &recordingNotifier{}
	c := New(nil, n, "")

	err := c.handleDelivery(amqp.Delivery{RoutingKey: events.RKEmailRequested, Body: []byte("not json")})
	require.Error(t, err)

	err = c.handleDelivery(delivery(t, events.RKEmailRequested, events.EmailRequested{
		Template: events.TplBookingConfirmation,
	}))
	require.Error(t, err, "missing recipient must be rejected so the message dead-letters")

	err = c.handleDelivery(delivery(t, events.RKEmailRequested, events.EmailRequested{
		Template: "typo_template", Recipient: "asha@example.com",
	}))
	require.Error(t, err)
	assert.Empty(t, n.mails)
}

func TestHandlePaymentFailedAlertsAdmin(t *testing.T) {
	n := &recordingNotifier{}
	c := New(nil, n, "ops@driveright.test")

	err := c.handleDelivery(delivery(t, events.RKPaymentFailed, events.PaymentFailed{
		BookingID: "bk-1", TransactionID: "tx-1", Reason: "card declined",
	}))
	require.NoError(t, err)
	require.Len(t, n.mails, 1)
	assert.Equal(t, "ops@driveright.test", n.mails[0].recipient)
	assert.Contains(t, n.mails[0].body, "card declined")
}

func TestHandlePaymentFailedWithoutAdminInbox(t *testing.T) {
	n := &recordingNotifier{}
	c := New(nil, n, "")

	err := c.handleDelivery(delivery(t, events.RKPaymentFailed, events.PaymentFailed{
		BookingID: "bk-1", TransactionID: "tx-1",
	}))
	require.NoError(t, err)
	assert.Empty(t, n.mails, "customers never get failure mail; without an admin inbox nothing is sent")
}

func TestHandleDomainEventsAndUnknownKeys(t *testing.T) {
	n := &recordingNotifier{}
	c := New(nil, n, "")

	require.NoError(t, c.handleDelivery(delivery(t, events.RKPaymentPaid, events.PaymentPaid{BookingID: "bk-1", Amount: 50000, Currency: "inr"})))
	require.NoError(t, c.handleDelivery(delivery(t, events.RKBookingConfirmed, events.BookingConfirmed{BookingID: "bk-1"})))
	require.NoError(t, c.handleDelivery(amqp.Delivery{RoutingKey: "audit.something", Body: []byte("{}")}))
	assert.Empty(t, n.mails)
}
