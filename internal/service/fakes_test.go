package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/omprakash24d/DriveRight-sub001/internal/domain"
	"github.com/omprakash24d/DriveRight-sub001/internal/gateway"
)

type fakeCatalog struct {
	services map[string]*domain.Service
}

func (f *fakeCatalog) ByID(_ context.Context, id string, typ domain.ServiceType) (*domain.Service, error) {
	s, ok := f.services[id]
	if !ok || s.Type != typ {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrServiceNotFound, typ, id)
	}
	return s, nil
}

type fakeBookings struct {
	mu       sync.Mutex
	bookings map[string]*domain.Booking
	seq      int
}

func newFakeBookings() *fakeBookings {
	return &fakeBookings{bookings: map[string]*domain.Booking{}}
}

func (f *fakeBookings) Create(_ context.Context, b *domain.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	if b.ID == "" {
		b.ID = fmt.Sprintf("bk-%d", f.seq)
	}
	if b.Status == "" {
		b.Status = domain.BookingPending
	}
	if b.PaymentStatus == "" {
		b.PaymentStatus = domain.PaymentPending
	}
	cp := *b
	f.bookings[b.ID] = &cp
	return nil
}

func (f *fakeBookings) ByID(_ context.Context, id string) (*domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return nil, fmt.Errorf("booking %s not found", id)
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBookings) SetGateway(_ context.Context, id, gw string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.bookings[id]; ok {
		b.PaymentGateway = gw
	}
	return nil
}

func (f *fakeBookings) SetPaymentResult(_ context.Context, id string, st domain.BookingStatus, ps domain.PaymentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return fmt.Errorf("booking %s not found", id)
	}
	b.Status = st
	b.PaymentStatus = ps
	return nil
}

type fakeLedger struct {
	mu  sync.Mutex
	txs map[string]*domain.Transaction
	seq int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{txs: map[string]*domain.Transaction{}}
}

func (f *fakeLedger) Create(_ context.Context, t *domain.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	if t.ID == "" {
		t.ID = fmt.Sprintf("tx-%d", f.seq)
	}
	if t.Status == "" {
		t.Status = domain.TxPending
	}
	cp := *t
	f.txs[t.ID] = &cp
	return nil
}

func (f *fakeLedger) ByGatewayOrderID(_ context.Context, gwID string) (*domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.txs {
		if t.GatewayOrderID == gwID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrTransactionNotFound, gwID)
}

func (f *fakeLedger) ByBookingID(_ context.Context, bookingID string) ([]domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Transaction
	for _, t := range f.txs {
		if t.BookingID == bookingID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeLedger) TransitionStatus(_ context.Context, id string, from, to domain.TxStatus, fields map[string]any) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.txs[id]
	if !ok || t.Status != from {
		return false, nil
	}
	t.Status = to
	if v, ok := fields["amount"]; ok {
		t.Amount = v.(int64)
	}
	if v, ok := fields["payment_method"]; ok {
		t.PaymentMethod = v.(string)
	}
	if v, ok := fields["gateway_payment_id"]; ok {
		t.GatewayPaymentID = v.(string)
	}
	return true, nil
}

func (f *fakeLedger) MarkNotified(_ context.Context, id string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.txs[id]
	if !ok || t.NotifiedAt != nil {
		return false, nil
	}
	t.NotifiedAt = &at
	return true, nil
}

func (f *fakeLedger) ClearNotified(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.txs[id]; ok {
		t.NotifiedAt = nil
	}
	return nil
}

type fakeAdapter struct {
	name      string
	available bool

	mu            sync.Mutex
	initiateErr   error
	initiated     []gateway.InitiateRequest
	statusResult  *gateway.StatusResult
	statusErr     error
	statusCalls   int
	nextOrderID   string
	checkoutURL   string
	lastReference string
}

func (f *fakeAdapter) Name() string    { return f.name }
func (f *fakeAdapter) Available() bool { return f.available }

func (f *fakeAdapter) Initiate(_ context.Context, req gateway.InitiateRequest) (*gateway.InitiateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.initiateErr != nil {
		return nil, f.initiateErr
	}
	f.initiated = append(f.initiated, req)
	f.lastReference = req.MerchantReference
	return &gateway.InitiateResult{CheckoutURL: f.checkoutURL, GatewayOrderID: f.nextOrderID}, nil
}

func (f *fakeAdapter) CheckStatus(_ context.Context, _ string) (*gateway.StatusResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls = 1 + f.statusCalls
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return f.statusResult, nil
}

type sentMail struct {
	template  string
	recipient string
	fields    map[string]string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
	// optional, runs before each send completes, outside the lock
	onSend func()
}

func (f *fakeNotifier) Send(_ context.Context, template, recipient string, fields map[string]string) error {
	if f.onSend != nil {
		f.onSend()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{template: template, recipient: recipient, fields: fields})
	return nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeEvents struct {
	mu   sync.Mutex
	keys []string
}

func (f *fakeEvents) PublishJSON(_ context.Context, key string, _ any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	return nil
}
