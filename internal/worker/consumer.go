package worker

import (
	"context"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"

	"github.com/omprakash24d/DriveRight-sub001/internal/events"
	"github.com/omprakash24d/DriveRight-sub001/internal/notifier"
	"github.com/omprakash24d/DriveRight-sub001/pkg/mq"
)

// Consumer drains the notification queue: templated email requests get
// rendered and delivered, domain events become operator log lines. Failed
// deliveries are redelivered once via Nack and then dead-lettered by the DLX
// the queue was declared with.
type Consumer struct {
	cons     *mq.Consumer
	notifier notifier.Notifier
	// optional: payment failures alert this inbox; customers get nothing
	adminEmail string
}

func New(cons *mq.Consumer, n notifier.Notifier, adminEmail string) *Consumer {
	return &Consumer{cons: cons, notifier: n, adminEmail: adminEmail}
}

func (c *Consumer) Run(ctx context.Context) error {
	msgs, err := c.cons.Deliveries(ctx)
	if err != nil {
		return fmt.Errorf("consume failed: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return nil
			}
			if err := c.handleDelivery(d); err != nil {
				log.WithError(err).WithField("routing_key", d.RoutingKey).
					Warn("notification handling failed; nack")
				_ = d.Nack(false, !d.Redelivered)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *Consumer) handleDelivery(d amqp.Delivery) error {
	switch d.RoutingKey {
	case events.RKEmailRequested:
		ev, err := events.MustUnmarshal[events.EmailRequested](d.Body)
		if err != nil {
			return err
		}
		if ev.Recipient == "" {
			return fmt.Errorf("email request without recipient")
		}
		subject, body, err := notifier.Render(ev.Template, ev.Fields)
		if err != nil {
			return err
		}
		return c.notifier.Notify(ev.Recipient, subject, body)

	case events.RKPaymentPaid:
		ev, err := events.MustUnmarshal[events.PaymentPaid](d.Body)
		if err != nil {
			return err
		}
		log.WithFields(log.Fields{
			"booking_id": ev.BookingID, "amount": ev.Amount,
			"currency": strings.ToUpper(ev.Currency), "method": ev.Method,
		}).Info("payment paid")

	case events.RKPaymentFailed:
		ev, err := events.MustUnmarshal[events.PaymentFailed](d.Body)
		if err != nil {
			return err
		}
		log.WithFields(log.Fields{
			"booking_id": ev.BookingID, "transaction_id": ev.TransactionID, "reason": ev.Reason,
		}).Warn("payment failed")
		if c.adminEmail != "" {
			subject, body, err := notifier.Render(events.TplPaymentFailed, map[string]string{
				"booking_id":     ev.BookingID,
				"transaction_id": ev.TransactionID,
				"reason":         ev.Reason,
			})
			if err != nil {
				return err
			}
			return c.notifier.Notify(c.adminEmail, subject, body)
		}

	case events.RKBookingConfirmed:
		ev, err := events.MustUnmarshal[events.BookingConfirmed](d.Body)
		if err != nil {
			return err
		}
		log.WithField("booking_id", ev.BookingID).Info("booking confirmed")

	default:
		log.WithField("routing_key", d.RoutingKey).Debug("skip unknown key")
	}
	return nil
}
