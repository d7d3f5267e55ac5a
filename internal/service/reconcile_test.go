package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omprakash24d/DriveRight-sub001/internal/domain"
	"github.com/omprakash24d/DriveRight-sub001/internal/events"
	"github.com/omprakash24d/DriveRight-sub001/internal/gateway"
)

type reconcileFixture struct {
	reconciler *Reconciler
	bookings   *fakeBookings
	ledger     *fakeLedger
	adapter    *fakeAdapter
	notifier   *fakeNotifier
	events     *fakeEvents
}

func newReconcileFixture(t *testing.T) *reconcileFixture {
	t.Helper()
	f := &reconcileFixture{
		bookings: newFakeBookings(),
		ledger:   newFakeLedger(),
		adapter:  &fakeAdapter{name: "fakepay", available: true},
		notifier: &fakeNotifier{},
		events:   &fakeEvents{},
	}
	reg := gateway.NewRegistry("fakepay", f.adapter)
	f.reconciler = NewReconciler(f.bookings, f.ledger, reg, f.notifier, f.events)
	return f
}

func (f *reconcileFixture) seedPending(t *testing.T, gwOrderID string) *domain.Transaction {
	t.Helper()
	b := &domain.Booking{
		CustomerName:   "Asha Kumari",
		CustomerEmail:  "asha@example.com",
		ServiceID:      "svc-lmv",
		PaymentGateway: "fakepay",
	}
	require.NoError(t, f.bookings.Create(context.Background(), b))
	tx := &domain.Transaction{
		BookingID:      b.ID,
		CustomerEmail:  "asha@example.com",
		Amount:         50000,
		Currency:       "INR",
		PaymentGateway: "fakepay",
		GatewayOrderID: gwOrderID,
	}
	require.NoError(t, f.ledger.Create(context.Background(), tx))
	return tx
}

func TestReconcileSuccess(t *testing.T) {
	f := newReconcileFixture(t)
	tx := f.seedPending(t, "gw-1")
	f.adapter.statusResult = &gateway.StatusResult{
		State: gateway.StateCompleted, AmountMinor: 50000, Method: "upi", GatewayPaymentID: "pay-1",
	}

	res, err := f.reconciler.Reconcile(context.Background(), "gw-1")
	require.NoError(t, err)
	assert.Equal(t, gateway.StateCompleted, res.State)
	assert.Equal(t, domain.TxSuccess, res.TxStatus)
	assert.Equal(t, tx.BookingID, res.BookingID)

	b, _ := f.bookings.ByID(context.Background(), tx.BookingID)
	assert.Equal(t, domain.BookingConfirmed, b.Status)
	assert.Equal(t, domain.PaymentPaid, b.PaymentStatus)

	// amount round-trips: 50000 paisa back to ₹500.00 in the email
	require.Equal(t, 1, f.notifier.count())
	assert.Equal(t, events.TplBookingConfirmation, f.notifier.sent[0].template)
	assert.Equal(t, "asha@example.com", f.notifier.sent[0].recipient)
	assert.Equal(t, "500.00", f.notifier.sent[0].fields["amount"])

	stored, _ := f.ledger.ByGatewayOrderID(context.Background(), "gw-1")
	assert.NotNil(t, stored.NotifiedAt)
	assert.Contains(t, f.events.keys, events.RKPaymentPaid)
	assert.Contains(t, f.events.keys, events.RKBookingConfirmed)
}

func TestReconcileIdempotent(t *testing.T) {
	f := newReconcileFixture(t)
	f.seedPending(t, "gw-1")
	f.adapter.statusResult = &gateway.StatusResult{State: gateway.StateCompleted, AmountMinor: 50000, Method: "upi"}

	_, err := f.reconciler.Reconcile(context.Background(), "gw-1")
	require.NoError(t, err)

	// second and third runs: cached verdict, no gateway call, no new email
	for i := 0; i < 2; i++ {
		res, err := f.reconciler.Reconcile(context.Background(), "gw-1")
		require.NoError(t, err)
		assert.Equal(t, gateway.StateCompleted, res.State)
	}
	assert.Equal(t, 1, f.adapter.statusCalls)
	assert.Equal(t, 1, f.notifier.count())
}

func TestReconcilePendingLeavesEverythingAlone(t *testing.T) {
	f := newReconcileFixture(t)
	tx := f.seedPending(t, "gw-1")
	f.adapter.statusResult = &gateway.StatusResult{State: gateway.StatePending}

	res, err := f.reconciler.Reconcile(context.Background(), "gw-1")
	require.NoError(t, err, "still-pending is a result, not an error")
	assert.Equal(t, gateway.StatePending, res.State)

	stored, _ := f.ledger.ByGatewayOrderID(context.Background(), "gw-1")
	assert.Equal(t, domain.TxPending, stored.Status)
	b, _ := f.bookings.ByID(context.Background(), tx.BookingID)
	assert.Equal(t, domain.BookingPending, b.Status)
	assert.Equal(t, domain.PaymentPending, b.PaymentStatus)
	assert.Equal(t, 0, f.notifier.count())
}

func TestReconcileFailureKeepsBookingRetryable(t *testing.T) {
	f := newReconcileFixture(t)
	tx := f.seedPending(t, "gw-1")
	f.adapter.statusResult = &gateway.StatusResult{State: gateway.StateFailed, GatewayPaymentID: "pay-1"}

	res, err := f.reconciler.Reconcile(context.Background(), "gw-1")
	require.NoError(t, err)
	assert.Equal(t, gateway.StateFailed, res.State)

	stored, _ := f.ledger.ByGatewayOrderID(context.Background(), "gw-1")
	assert.Equal(t, domain.TxFailed, stored.Status)

	// payment failed but the booking stays pending for a retry
	b, _ := f.bookings.ByID(context.Background(), tx.BookingID)
	assert.Equal(t, domain.BookingPending, b.Status)
	assert.Equal(t, domain.PaymentFailed, b.PaymentStatus)
	assert.Equal(t, 0, f.notifier.count())
	assert.Contains(t, f.events.keys, events.RKPaymentFailed)
}

func TestReconcileUnknownOrder(t *testing.T) {
	f := newReconcileFixture(t)
	_, err := f.reconciler.Reconcile(context.Background(), "gw-forged")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
	assert.Equal(t, 0, f.adapter.statusCalls)
}

func TestReconcileGatewayErrorIsRetryable(t *testing.T) {
	f := newReconcileFixture(t)
	f.seedPending(t, "gw-1")
	f.adapter.statusErr = errors.New("connection reset by peer")

	_, err := f.reconciler.Reconcile(context.Background(), "gw-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrVerificationFailed)

	// a transient error must never fail a possibly-successful payment
	stored, _ := f.ledger.ByGatewayOrderID(context.Background(), "gw-1")
	assert.Equal(t, domain.TxPending, stored.Status)

	// and the next attempt can still succeed
	f.adapter.statusErr = nil
	f.adapter.statusResult = &gateway.StatusResult{State: gateway.StateCompleted, AmountMinor: 50000}
	res, err := f.reconciler.Reconcile(context.Background(), "gw-1")
	require.NoError(t, err)
	assert.Equal(t, gateway.StateCompleted, res.State)
}

func TestReconcileConcurrentDuplicates(t *testing.T) {
	f := newReconcileFixture(t)
	f.seedPending(t, "gw-1")
	f.adapter.statusResult = &gateway.StatusResult{State: gateway.StateCompleted, AmountMinor: 50000, Method: "upi"}

	const callers = 2
	var wg sync.WaitGroup
	results := make([]*ReconcileResult, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.reconciler.Reconcile(context.Background(), "gw-1")
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, gateway.StateCompleted, results[i].State, "both callers see the same terminal view")
		assert.Equal(t, domain.TxSuccess, results[i].TxStatus)
	}
	assert.Equal(t, 1, f.notifier.count(), "exactly one notification despite duplicate triggers")
}

func TestReconcileSingleSendWithReplayMidFlight(t *testing.T) {
	f := newReconcileFixture(t)
	f.seedPending(t, "gw-1")
	f.adapter.statusResult = &gateway.StatusResult{State: gateway.StateCompleted, AmountMinor: 50000, Method: "upi"}

	inFlight := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	f.notifier.onSend = func() {
		once.Do(func() {
			close(inFlight)
			<-release
		})
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := f.reconciler.Reconcile(context.Background(), "gw-1")
		assert.NoError(t, err)
	}()
	<-inFlight

	// a webhook redelivery lands after the transaction settled but while the
	// winner's email is still in flight; the send claim keeps it quiet
	res, err := f.reconciler.Reconcile(context.Background(), "gw-1")
	require.NoError(t, err)
	assert.Equal(t, gateway.StateCompleted, res.State)

	close(release)
	<-done
	assert.Equal(t, 1, f.notifier.count(), "exactly one email even with a replay mid-send")
}

func TestReconcileRepairsLaggingBooking(t *testing.T) {
	f := newReconcileFixture(t)
	tx := f.seedPending(t, "gw-1")

	// the ledger settled and the email went out, but the booking write was
	// lost before landing
	won, err := f.ledger.TransitionStatus(context.Background(), tx.ID, domain.TxPending, domain.TxSuccess, nil)
	require.NoError(t, err)
	require.True(t, won)
	_, err = f.ledger.MarkNotified(context.Background(), tx.ID, time.Now())
	require.NoError(t, err)

	res, err := f.reconciler.Reconcile(context.Background(), "gw-1")
	require.NoError(t, err)
	assert.Equal(t, gateway.StateCompleted, res.State)
	assert.Equal(t, 0, f.adapter.statusCalls, "replay settles from the ledger, not the gateway")

	b, _ := f.bookings.ByID(context.Background(), tx.BookingID)
	assert.Equal(t, domain.BookingConfirmed, b.Status)
	assert.Equal(t, domain.PaymentPaid, b.PaymentStatus)
	assert.Equal(t, 0, f.notifier.count(), "repair never re-sends a sent email")
}

func TestReconcileResendsIfNotifyMissed(t *testing.T) {
	f := newReconcileFixture(t)
	f.seedPending(t, "gw-1")
	f.adapter.statusResult = &gateway.StatusResult{State: gateway.StateCompleted, AmountMinor: 50000}

	// first run: broker down, email never handed over
	f.notifier.err = errors.New("broker unavailable")
	res, err := f.reconciler.Reconcile(context.Background(), "gw-1")
	require.NoError(t, err, "a notification failure never fails reconciliation")
	assert.Equal(t, gateway.StateCompleted, res.State)
	stored, _ := f.ledger.ByGatewayOrderID(context.Background(), "gw-1")
	require.Nil(t, stored.NotifiedAt)

	// replayed reconcile after the broker recovers: resend without re-calling
	// the gateway
	f.notifier.err = nil
	_, err = f.reconciler.Reconcile(context.Background(), "gw-1")
	require.NoError(t, err)
	assert.Equal(t, 1, f.adapter.statusCalls)
	assert.Equal(t, 1, f.notifier.count())
	stored, _ = f.ledger.ByGatewayOrderID(context.Background(), "gw-1")
	assert.WithinDuration(t, time.Now(), *stored.NotifiedAt, 5*time.Second)

	// and a further replay does not double-send
	_, err = f.reconciler.Reconcile(context.Background(), "gw-1")
	require.NoError(t, err)
	assert.Equal(t, 1, f.notifier.count())
}
