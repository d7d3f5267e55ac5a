package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/omprakash24d/DriveRight-sub001/internal/domain"
	"github.com/omprakash24d/DriveRight-sub001/internal/events"
	"github.com/omprakash24d/DriveRight-sub001/internal/gateway"
	"github.com/omprakash24d/DriveRight-sub001/internal/metrics"
	"github.com/omprakash24d/DriveRight-sub001/internal/notify"
)

// EventPublisher is the slice of mq.Publisher the reconciler needs.
type EventPublisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

type ReconcileResult struct {
	State         gateway.State   `json:"state"`
	BookingID     string          `json:"bookingId"`
	TransactionID string          `json:"transactionId"`
	TxStatus      domain.TxStatus `json:"status"`
}

// Reconciler settles a transaction against gateway ground truth. Webhooks and
// client verify calls both land here; neither path ever trusts the payload or
// query-string status it arrived with.
type Reconciler struct {
	bookings BookingStore
	ledger   Ledger
	gateways *gateway.Registry
	notifier notify.Gateway
	events   EventPublisher
}

func NewReconciler(bookings BookingStore, ledger Ledger, gateways *gateway.Registry, notifier notify.Gateway, ev EventPublisher) *Reconciler {
	return &Reconciler{bookings: bookings, ledger: ledger, gateways: gateways, notifier: notifier, events: ev}
}

// Reconcile re-queries the gateway for the transaction behind gatewayOrderID
// and applies the result exactly once.
//
// Terminal transactions short-circuit without a gateway call; that is the
// idempotency boundary for webhook redeliveries and verify re-invocations.
// Successful transactions still get their side effects healed on replay: a
// booking write that was lost is re-applied, and a confirmation email that
// never made it out (crash between persist and notify) is resent, with the
// notified-at stamp as the send claim.
//
// A gateway error during the status check is never mapped to a failed
// payment; the transaction stays pending and the error is retryable.
func (r *Reconciler) Reconcile(ctx context.Context, gatewayOrderID string) (*ReconcileResult, error) {
	tx, err := r.ledger.ByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		if errors.Is(err, domain.ErrTransactionNotFound) {
			metrics.Reconciliations.WithLabelValues("not_found").Inc()
			log.WithFields(log.Fields{
				"gateway_order_id": gatewayOrderID, "security": true,
			}).Warn("reconcile for unknown gateway order id; possible forged or stale callback")
		}
		return nil, err
	}

	if tx.Status.Terminal() {
		if tx.Status == domain.TxSuccess {
			// replay path: heal a booking write or notification that did not
			// land the first time
			r.repairBooking(ctx, tx)
			if tx.NotifiedAt == nil {
				r.sendConfirmation(ctx, tx)
			}
		}
		return r.cached(tx), nil
	}

	adapter, ok := r.gateways.Get(tx.PaymentGateway)
	if !ok {
		return nil, fmt.Errorf("%w: no adapter registered for %q", domain.ErrVerificationFailed, tx.PaymentGateway)
	}

	st, err := adapter.CheckStatus(ctx, gatewayOrderID)
	if err != nil {
		// transient by definition: a network blip must not fail a possibly
		// successful payment
		metrics.Reconciliations.WithLabelValues("error").Inc()
		log.WithError(err).WithFields(log.Fields{
			"transaction_id": tx.ID, "gateway": tx.PaymentGateway,
		}).Warn("gateway status check failed; transaction left pending")
		return nil, fmt.Errorf("%w: %v", domain.ErrVerificationFailed, err)
	}

	switch st.State {
	case gateway.StateCompleted:
		return r.settleSuccess(ctx, tx, st)
	case gateway.StateFailed:
		return r.settleFailure(ctx, tx, st)
	default:
		metrics.Reconciliations.WithLabelValues("pending").Inc()
		return &ReconcileResult{
			State: gateway.StatePending, BookingID: tx.BookingID,
			TransactionID: tx.ID, TxStatus: domain.TxPending,
		}, nil
	}
}

func (r *Reconciler) settleSuccess(ctx context.Context, tx *domain.Transaction, st *gateway.StatusResult) (*ReconcileResult, error) {
	won, err := r.ledger.TransitionStatus(ctx, tx.ID, domain.TxPending, domain.TxSuccess, map[string]any{
		"amount":             st.AmountMinor,
		"payment_method":     st.Method,
		"gateway_payment_id": st.GatewayPaymentID,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: persist success: %v", domain.ErrVerificationFailed, err)
	}
	if !won {
		// a concurrent reconcile got here first; adopt its verdict
		fresh, ferr := r.ledger.ByGatewayOrderID(ctx, tx.GatewayOrderID)
		if ferr != nil {
			return nil, ferr
		}
		return r.cached(fresh), nil
	}

	tx.Status = domain.TxSuccess
	tx.Amount = st.AmountMinor
	tx.PaymentMethod = st.Method

	if err := r.bookings.SetPaymentResult(ctx, tx.BookingID, domain.BookingConfirmed, domain.PaymentPaid); err != nil {
		log.WithError(err).WithField("booking_id", tx.BookingID).
			Error("booking confirm write failed after transaction success")
	}

	r.publish(ctx, events.RKPaymentPaid, events.PaymentPaid{
		BookingID: tx.BookingID, TransactionID: tx.ID, GatewayOrderID: tx.GatewayOrderID,
		Amount: st.AmountMinor, Currency: tx.Currency, Method: st.Method,
	})
	r.publish(ctx, events.RKBookingConfirmed, events.BookingConfirmed{BookingID: tx.BookingID})
	r.sendConfirmation(ctx, tx)

	metrics.Reconciliations.WithLabelValues("success").Inc()
	log.WithFields(log.Fields{
		"booking_id": tx.BookingID, "transaction_id": tx.ID, "amount_minor": st.AmountMinor,
	}).Info("payment confirmed")

	return &ReconcileResult{
		State: gateway.StateCompleted, BookingID: tx.BookingID,
		TransactionID: tx.ID, TxStatus: domain.TxSuccess,
	}, nil
}

func (r *Reconciler) settleFailure(ctx context.Context, tx *domain.Transaction, st *gateway.StatusResult) (*ReconcileResult, error) {
	won, err := r.ledger.TransitionStatus(ctx, tx.ID, domain.TxPending, domain.TxFailed, map[string]any{
		"gateway_payment_id": st.GatewayPaymentID,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: persist failure: %v", domain.ErrVerificationFailed, err)
	}
	if !won {
		fresh, ferr := r.ledger.ByGatewayOrderID(ctx, tx.GatewayOrderID)
		if ferr != nil {
			return nil, ferr
		}
		return r.cached(fresh), nil
	}

	// booking stays pending so the customer can retry with a fresh attempt
	if err := r.bookings.SetPaymentResult(ctx, tx.BookingID, domain.BookingPending, domain.PaymentFailed); err != nil {
		log.WithError(err).WithField("booking_id", tx.BookingID).
			Error("booking payment-failed write failed")
	}

	r.publish(ctx, events.RKPaymentFailed, events.PaymentFailed{
		BookingID: tx.BookingID, TransactionID: tx.ID, GatewayOrderID: tx.GatewayOrderID,
	})

	metrics.Reconciliations.WithLabelValues("failed").Inc()
	return &ReconcileResult{
		State: gateway.StateFailed, BookingID: tx.BookingID,
		TransactionID: tx.ID, TxStatus: domain.TxFailed,
	}, nil
}

// repairBooking re-applies the success verdict to a booking that missed it
// (a failed write after the transaction settled). The write is idempotent,
// so it only runs when the booking still disagrees with the ledger.
func (r *Reconciler) repairBooking(ctx context.Context, tx *domain.Transaction) {
	booking, err := r.bookings.ByID(ctx, tx.BookingID)
	if err != nil {
		log.WithError(err).WithField("booking_id", tx.BookingID).
			Error("cannot load booking for repair check")
		return
	}
	if booking.Status == domain.BookingConfirmed && booking.PaymentStatus == domain.PaymentPaid {
		return
	}
	if err := r.bookings.SetPaymentResult(ctx, tx.BookingID, domain.BookingConfirmed, domain.PaymentPaid); err != nil {
		log.WithError(err).WithField("booking_id", tx.BookingID).
			Error("booking repair write failed")
		return
	}
	log.WithFields(log.Fields{"booking_id": tx.BookingID, "transaction_id": tx.ID}).
		Warn("booking lagged its settled transaction; confirmed on replay")
}

// sendConfirmation emails the customer exactly once. The notified-at stamp is
// the claim: whoever wins it sends, everyone else backs off, and a claim
// whose send fails is released so a later reconcile retries. A stale
// NotifiedAt read is only ever a hint to call this.
func (r *Reconciler) sendConfirmation(ctx context.Context, tx *domain.Transaction) {
	won, err := r.ledger.MarkNotified(ctx, tx.ID, time.Now().UTC())
	if err != nil {
		log.WithError(err).WithField("transaction_id", tx.ID).Warn("notified-at stamp failed")
		return
	}
	if !won {
		return
	}
	release := func() {
		if err := r.ledger.ClearNotified(ctx, tx.ID); err != nil {
			log.WithError(err).WithField("transaction_id", tx.ID).
				Error("could not release notification claim; email may never send")
		}
	}

	booking, err := r.bookings.ByID(ctx, tx.BookingID)
	if err != nil {
		log.WithError(err).WithField("booking_id", tx.BookingID).
			Error("cannot load booking for confirmation email")
		release()
		return
	}
	fields := map[string]string{
		"name":       booking.CustomerName,
		"booking_id": booking.ID,
		"service_id": booking.ServiceID,
		"amount":     fmt.Sprintf("%.2f", float64(tx.Amount)/100),
		"currency":   tx.Currency,
		"method":     tx.PaymentMethod,
	}
	if booking.ScheduledDate != nil {
		fields["scheduled_date"] = booking.ScheduledDate.Format("2006-01-02 15:04")
	}
	if err := r.notifier.Send(ctx, events.TplBookingConfirmation, booking.CustomerEmail, fields); err != nil {
		metrics.NotificationsPublished.WithLabelValues(events.TplBookingConfirmation, "error").Inc()
		log.WithError(err).WithField("booking_id", booking.ID).
			Error("confirmation email publish failed; will retry on next reconcile")
		release()
		return
	}
	metrics.NotificationsPublished.WithLabelValues(events.TplBookingConfirmation, "ok").Inc()
}

func (r *Reconciler) publish(ctx context.Context, key string, v any) {
	if r.events == nil {
		return
	}
	if err := r.events.PublishJSON(ctx, key, v); err != nil {
		log.WithError(err).WithField("routing_key", key).Warn("event publish failed")
	}
}

func (r *Reconciler) cached(tx *domain.Transaction) *ReconcileResult {
	res := &ReconcileResult{BookingID: tx.BookingID, TransactionID: tx.ID, TxStatus: tx.Status}
	switch tx.Status {
	case domain.TxSuccess:
		res.State = gateway.StateCompleted
	case domain.TxFailed, domain.TxCancelled:
		res.State = gateway.StateFailed
	default:
		res.State = gateway.StatePending
	}
	return res
}
