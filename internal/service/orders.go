package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/omprakash24d/DriveRight-sub001/internal/domain"
	"github.com/omprakash24d/DriveRight-sub001/internal/gateway"
	"github.com/omprakash24d/DriveRight-sub001/internal/metrics"
	"github.com/omprakash24d/DriveRight-sub001/internal/repository"
)

// Persistence contracts, satisfied by the gorm repositories and by fakes in
// tests. Adapters are likewise injected so no test touches process state.

type ServiceCatalog interface {
	ByID(ctx context.Context, id string, typ domain.ServiceType) (*domain.Service, error)
}

type BookingStore interface {
	Create(ctx context.Context, b *domain.Booking) error
	ByID(ctx context.Context, id string) (*domain.Booking, error)
	SetGateway(ctx context.Context, id, gateway string) error
	SetPaymentResult(ctx context.Context, id string, st domain.BookingStatus, ps domain.PaymentStatus) error
}

type Ledger interface {
	Create(ctx context.Context, t *domain.Transaction) error
	ByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*domain.Transaction, error)
	ByBookingID(ctx context.Context, bookingID string) ([]domain.Transaction, error)
	TransitionStatus(ctx context.Context, id string, from, to domain.TxStatus, fields map[string]any) (bool, error)
	MarkNotified(ctx context.Context, id string, at time.Time) (bool, error)
	ClearNotified(ctx context.Context, id string) error
}

type CreateOrderInput struct {
	ServiceID   string
	ServiceType string

	CustomerName  string
	CustomerEmail string
	CustomerPhone string

	ScheduledDate *time.Time
	Notes         string
	PromoCode     string
	Gateway       string

	CustomerIP string
	UserAgent  string
}

type CreateOrderResult struct {
	CheckoutURL    string `json:"checkoutUrl"`
	BookingID      string `json:"bookingId"`
	TransactionID  string `json:"transactionId"`
	GatewayOrderID string `json:"gatewayOrderId"`
}

// Orders creates bookings and initiates payment with the chosen gateway.
type Orders struct {
	catalog  ServiceCatalog
	bookings BookingStore
	ledger   Ledger
	gateways *gateway.Registry
	baseURL  string
}

func NewOrders(catalog ServiceCatalog, bookings BookingStore, ledger Ledger, gateways *gateway.Registry, baseURL string) *Orders {
	return &Orders{catalog: catalog, bookings: bookings, ledger: ledger, gateways: gateways, baseURL: strings.TrimRight(baseURL, "/")}
}

// Create implements the order pipeline: resolve and price the service,
// persist the booking, initiate payment, persist the pending transaction.
// The booking write always happens before the gateway is contacted; a
// booking with no transaction is recoverable, a charge with no booking is
// not. A gateway failure leaves the booking pending for a retry and is
// surfaced with its taxonomy code.
func (o *Orders) Create(ctx context.Context, in CreateOrderInput) (*CreateOrderResult, error) {
	typ, err := o.validate(&in)
	if err != nil {
		return nil, err
	}

	svc, err := o.catalog.ByID(ctx, in.ServiceID, typ)
	if err != nil {
		return nil, err
	}
	if !svc.Active {
		return nil, fmt.Errorf("%w: %s", domain.ErrServiceInactive, svc.ID)
	}

	taxes, err := repository.Taxes(svc)
	if err != nil {
		log.WithError(err).WithField("service_id", svc.ID).Error("service has undecodable tax components")
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidPricing, svc.ID)
	}
	finalPrice := svc.FinalPrice(taxes, time.Now())
	if finalPrice <= 0 {
		// data bug in the catalog, not user error
		log.WithFields(log.Fields{"service_id": svc.ID, "final_price": finalPrice}).
			Error("service resolved to a non-positive price")
		return nil, fmt.Errorf("%w: %s priced at %.2f", domain.ErrInvalidPricing, svc.ID, finalPrice)
	}

	notes := in.Notes
	if in.PromoCode != "" {
		// Recorded for the admin trail but never applied: discounting without
		// an auditable adjustment record is worse than no discount.
		notes = strings.TrimSpace(notes + "\npromo_code=" + in.PromoCode + " (recorded, not applied)")
	}

	booking := &domain.Booking{
		ServiceID:     svc.ID,
		ServiceType:   svc.Type,
		CustomerName:  in.CustomerName,
		CustomerEmail: in.CustomerEmail,
		CustomerPhone: in.CustomerPhone,
		ScheduledDate: in.ScheduledDate,
		Notes:         notes,
	}
	if err := o.bookings.Create(ctx, booking); err != nil {
		return nil, fmt.Errorf("persist booking: %w", err)
	}

	adapter, err := o.gateways.Select(in.Gateway)
	if err != nil {
		metrics.OrdersCreated.WithLabelValues(in.Gateway, "gateway_unavailable").Inc()
		return nil, err
	}

	merchantRef := uuid.NewString()
	amountMinor := int64(math.Round(finalPrice * 100))

	init, err := adapter.Initiate(ctx, gateway.InitiateRequest{
		AmountMinor:       amountMinor,
		Currency:          svc.Currency,
		CustomerName:      in.CustomerName,
		CustomerEmail:     in.CustomerEmail,
		CustomerPhone:     in.CustomerPhone,
		RedirectURL:       o.baseURL + "/payments/return?ref=" + merchantRef,
		MerchantReference: merchantRef,
	})
	if err != nil {
		// booking stays pending/pending: it is a legitimate retryable attempt
		metrics.GatewayInitiations.WithLabelValues(adapter.Name(), "error").Inc()
		log.WithError(err).WithFields(log.Fields{
			"booking_id": booking.ID, "gateway": adapter.Name(),
		}).Warn("gateway initiate failed")
		return nil, err
	}
	metrics.GatewayInitiations.WithLabelValues(adapter.Name(), "ok").Inc()

	tx := &domain.Transaction{
		BookingID:      booking.ID,
		ServiceID:      svc.ID,
		ServiceType:    svc.Type,
		CustomerEmail:  in.CustomerEmail,
		Amount:         amountMinor,
		Currency:       svc.Currency,
		PaymentGateway: adapter.Name(),
		GatewayOrderID: init.GatewayOrderID,
		CustomerIP:     in.CustomerIP,
		UserAgent:      in.UserAgent,
		Extra:          []byte(fmt.Sprintf(`{"merchant_reference":%q}`, merchantRef)),
	}
	if err := o.ledger.Create(ctx, tx); err != nil {
		// the gateway already accepted; this must be loud, the gateway order
		// id is in the logs for manual reconciliation
		log.WithError(err).WithFields(log.Fields{
			"booking_id": booking.ID, "gateway_order_id": init.GatewayOrderID,
		}).Error("transaction persist failed after gateway accepted initiate")
		return nil, fmt.Errorf("persist transaction: %w", err)
	}

	// record which gateway this attempt went through
	if err := o.bookings.SetGateway(ctx, booking.ID, adapter.Name()); err != nil {
		log.WithError(err).WithField("booking_id", booking.ID).Warn("could not record gateway on booking")
	}

	metrics.OrdersCreated.WithLabelValues(adapter.Name(), "ok").Inc()
	log.WithFields(log.Fields{
		"booking_id": booking.ID, "transaction_id": tx.ID,
		"gateway": adapter.Name(), "amount_minor": amountMinor,
	}).Info("order created, awaiting payment")

	return &CreateOrderResult{
		CheckoutURL:    init.CheckoutURL,
		BookingID:      booking.ID,
		TransactionID:  tx.ID,
		GatewayOrderID: init.GatewayOrderID,
	}, nil
}

func (o *Orders) Booking(ctx context.Context, id string) (*domain.Booking, []domain.Transaction, error) {
	b, err := o.bookings.ByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	txs, err := o.ledger.ByBookingID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return b, txs, nil
}

func (o *Orders) validate(in *CreateOrderInput) (domain.ServiceType, error) {
	in.CustomerName = strings.TrimSpace(in.CustomerName)
	in.CustomerEmail = strings.TrimSpace(strings.ToLower(in.CustomerEmail))
	in.CustomerPhone = strings.TrimSpace(in.CustomerPhone)

	if in.ServiceID == "" {
		return "", fmt.Errorf("%w: serviceId is required", domain.ErrValidationFailed)
	}
	typ, ok := domain.ParseServiceType(in.ServiceType)
	if !ok {
		return "", fmt.Errorf("%w: unknown serviceType %q", domain.ErrValidationFailed, in.ServiceType)
	}
	if in.CustomerName == "" || in.CustomerPhone == "" {
		return "", fmt.Errorf("%w: customer name and phone are required", domain.ErrValidationFailed)
	}
	if !strings.Contains(in.CustomerEmail, "@") {
		return "", fmt.Errorf("%w: invalid customer email", domain.ErrValidationFailed)
	}
	if in.Gateway != "" {
		if _, ok := o.gateways.Get(in.Gateway); !ok {
			return "", fmt.Errorf("%w: unknown gateway %q", domain.ErrValidationFailed, in.Gateway)
		}
	}
	return typ, nil
}
