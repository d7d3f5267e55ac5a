package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/omprakash24d/DriveRight-sub001/internal/domain"
)

// State is the gateway-agnostic view of a payment's progress.
type State string

const (
	StatePending   State = "PENDING"
	StateCompleted State = "COMPLETED"
	StateFailed    State = "FAILED"
)

// ErrProtocol marks a response that came back 2xx-shaped but could not be
// decoded. That is an integration bug, not a gateway decision, and must not
// be retried automatically or confused with an explicit rejection.
var ErrProtocol = errors.New("gateway_protocol")

type InitiateRequest struct {
	// Minor currency units (paisa). Major-to-minor conversion is the order
	// service's job; adapters take the amount as-is.
	AmountMinor   int64
	Currency      string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	// Where the gateway sends the customer after checkout. Built before the
	// gateway is contacted, so it may only embed the merchant reference.
	RedirectURL string
	// Merchant-generated globally unique reference for this attempt.
	MerchantReference string
}

type InitiateResult struct {
	CheckoutURL    string
	GatewayOrderID string
	Raw            json.RawMessage
}

type StatusResult struct {
	State            State
	AmountMinor      int64
	Method           string
	GatewayPaymentID string
	Raw              json.RawMessage
}

// Adapter is the contract both aggregators satisfy. Credential checks happen
// at construction; an unconfigured adapter stays registered and reports
// Available() == false so selection surfaces a 503 instead of a downstream
// mystery.
type Adapter interface {
	Name() string
	Available() bool
	Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error)
	CheckStatus(ctx context.Context, gatewayOrderID string) (*StatusResult, error)
}

// Registry resolves an adapter by name, falling back to the configured
// default when the request leaves the choice open.
type Registry struct {
	adapters    map[string]Adapter
	defaultName string
}

func NewRegistry(defaultName string, adapters ...Adapter) *Registry {
	m := make(map[string]Adapter, len(adapters))
	for _, a := range adapters {
		m[a.Name()] = a
	}
	return &Registry{adapters: m, defaultName: defaultName}
}

func (r *Registry) Select(name string) (Adapter, error) {
	if name == "" {
		name = r.defaultName
	}
	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown gateway %q", domain.ErrValidationFailed, name)
	}
	if !a.Available() {
		return nil, fmt.Errorf("%w: %s is not configured", domain.ErrGatewayUnavailable, name)
	}
	return a, nil
}

func (r *Registry) Get(name string) (Adapter, bool) {
	a, ok := r.adapters[name]
	return a, ok
}
