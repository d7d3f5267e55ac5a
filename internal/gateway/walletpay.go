package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/omise/omise-go"
	"github.com/omise/omise-go/operations"
	log "github.com/sirupsen/logrus"

	"github.com/omprakash24d/DriveRight-sub001/internal/domain"
)

// Walletpay is the wallet-style aggregator, driven through its vendor SDK.
// The SDK manages its own session, so there is no token cache here. The
// merchant reference is generated by the caller before the gateway is ever
// contacted; the gateway's charge id becomes the reconciliation join key.
type Walletpay struct {
	client     *omise.Client
	sourceType string
	available  bool
}

func NewWalletpay(publicKey, secretKey string) *Walletpay {
	w := &Walletpay{sourceType: "truemoney"}
	if publicKey == "" || secretKey == "" {
		log.Warn("walletpay credentials missing; adapter registered as unavailable")
		return w
	}
	client, err := omise.NewClient(publicKey, secretKey)
	if err != nil {
		log.WithError(err).Warn("walletpay client rejected credentials; adapter unavailable")
		return w
	}
	client.SetDebug(false)
	w.client = client
	w.available = true
	return w
}

func (w *Walletpay) Name() string    { return "walletpay" }
func (w *Walletpay) Available() bool { return w.available }

func (w *Walletpay) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	if !w.available {
		return nil, fmt.Errorf("%w: walletpay credentials missing", domain.ErrGatewayUnavailable)
	}
	if req.MerchantReference == "" {
		return nil, fmt.Errorf("%w: merchant reference required before initiating walletpay", domain.ErrValidationFailed)
	}

	src := &omise.Source{}
	if err := w.client.Do(src, &operations.CreateSource{
		Type:     w.sourceType,
		Amount:   req.AmountMinor,
		Currency: req.Currency,
	}); err != nil {
		return nil, walletpayErr("create source", err)
	}

	ch := &omise.Charge{}
	if err := w.client.Do(ch, &operations.CreateCharge{
		Amount:    req.AmountMinor,
		Currency:  req.Currency,
		Source:    src.ID,
		ReturnURI: req.RedirectURL,
		Metadata: map[string]any{
			"reference":      req.MerchantReference,
			"customer_email": req.CustomerEmail,
		},
	}); err != nil {
		return nil, walletpayErr("create charge", err)
	}
	if ch.AuthorizeURI == "" {
		return nil, fmt.Errorf("%w: charge %s has no authorize URI", ErrProtocol, ch.ID)
	}

	raw, _ := json.Marshal(ch)
	return &InitiateResult{CheckoutURL: ch.AuthorizeURI, GatewayOrderID: ch.ID, Raw: raw}, nil
}

func (w *Walletpay) CheckStatus(ctx context.Context, gatewayOrderID string) (*StatusResult, error) {
	if !w.available {
		return nil, fmt.Errorf("%w: walletpay credentials missing", domain.ErrGatewayUnavailable)
	}
	ch := &omise.Charge{}
	if err := w.client.Do(ch, &operations.RetrieveCharge{ChargeID: gatewayOrderID}); err != nil {
		return nil, walletpayErr("retrieve charge", err)
	}
	return chargeStatus(ch), nil
}

// ResolveWebhookEvent authenticates an inbound webhook the way the vendor
// recommends: fetch the event by id from the gateway and use only the
// retrieved data, never the posted body. Returns the charge id to reconcile.
func (w *Walletpay) ResolveWebhookEvent(ctx context.Context, eventID string) (string, error) {
	if !w.available {
		return "", fmt.Errorf("%w: walletpay credentials missing", domain.ErrGatewayUnavailable)
	}
	ev := &omise.Event{}
	if err := w.client.Do(ev, &operations.RetrieveEvent{EventID: eventID}); err != nil {
		return "", walletpayErr("retrieve event", err)
	}

	// ev.Data is untyped; round-trip through JSON to get a Charge.
	raw, err := json.Marshal(ev.Data)
	if err != nil {
		return "", fmt.Errorf("%w: encode event data: %v", ErrProtocol, err)
	}
	var ch omise.Charge
	if err := json.Unmarshal(raw, &ch); err != nil {
		return "", fmt.Errorf("%w: decode event charge: %v", ErrProtocol, err)
	}
	if ch.ID == "" {
		return "", fmt.Errorf("%w: event %s carries no charge", ErrProtocol, eventID)
	}
	return ch.ID, nil
}

func chargeStatus(ch *omise.Charge) *StatusResult {
	raw, _ := json.Marshal(ch)
	res := &StatusResult{
		AmountMinor:      ch.Amount,
		GatewayPaymentID: ch.ID,
		Raw:              raw,
	}
	if ch.Source != nil && ch.Source.Type != "" {
		res.Method = ch.Source.Type
	} else {
		res.Method = "card"
	}
	switch string(ch.Status) {
	case "successful":
		res.State = StateCompleted
	case "failed", "expired", "reversed":
		res.State = StateFailed
	default:
		// pending / awaiting authorize: the webhook or a later poll decides
		res.State = StatePending
	}
	return res
}

func walletpayErr(op string, err error) error {
	var oe *omise.Error
	if errors.As(err, &oe) {
		return fmt.Errorf("%w: %s: %s (%s)", domain.ErrGatewayRejected, op, oe.Message, oe.Code)
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrGatewayUnavailable, op, err)
}
