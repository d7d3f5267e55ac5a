package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/omprakash24d/DriveRight-sub001/internal/domain"
)

// tokenExpiryMargin refreshes the cached auth token this long before the
// gateway would reject it.
const tokenExpiryMargin = 60 * time.Second

type CardlinkConfig struct {
	BaseURL       string
	Key           string
	Secret        string
	WebhookSecret string
	Timeout       time.Duration
}

// Cardlink talks to the card/UPI aggregator's REST API. Auth is a long-lived
// bearer token fetched once and cached until close to expiry. All amounts on
// the wire are minor units (paisa).
type Cardlink struct {
	cfg       CardlinkConfig
	rc        *resty.Client
	cb        *gobreaker.CircuitBreaker
	available bool

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

func NewCardlink(cfg CardlinkConfig) *Cardlink {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	c := &Cardlink{
		cfg:       cfg,
		available: cfg.Key != "" && cfg.Secret != "",
	}
	if !c.available {
		log.Warn("cardlink credentials missing; adapter registered as unavailable")
	}
	c.rc = resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")
	c.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "cardlink",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 3 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(log.Fields{"circuit": name, "from": from.String(), "to": to.String()}).
				Info("circuit breaker state changed")
		},
	})
	return c
}

func (c *Cardlink) Name() string    { return "cardlink" }
func (c *Cardlink) Available() bool { return c.available }

type cardlinkError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type cardlinkToken struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expiresIn"` // seconds
}

type cardlinkOrder struct {
	OrderID    string `json:"orderId"`
	PaymentURL string `json:"paymentUrl"`
	Status     string `json:"status"`
	Amount     int64  `json:"amount"`
	Method     string `json:"method"`
	PaymentID  string `json:"paymentId"`
}

// authToken returns a valid bearer token, reusing the cached one until it is
// within the expiry margin.
func (c *Cardlink) authToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Until(c.tokenExp) > tokenExpiryMargin {
		return c.token, nil
	}

	body, err := c.do(ctx, func() (*resty.Response, error) {
		return c.rc.R().SetContext(ctx).
			SetBody(map[string]string{"key": c.cfg.Key, "secret": c.cfg.Secret}).
			Post("/v1/auth/token")
	})
	if err != nil {
		return "", err
	}
	var tok cardlinkToken
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", fmt.Errorf("%w: decode token response: %v", ErrProtocol, err)
	}
	if tok.Token == "" {
		return "", fmt.Errorf("%w: empty token in auth response", ErrProtocol)
	}
	c.token = tok.Token
	c.tokenExp = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	return c.token, nil
}

// do runs one HTTP call through the breaker and normalizes the three failure
// shapes: transport error, explicit gateway rejection, and non-JSON body.
func (c *Cardlink) do(ctx context.Context, call func() (*resty.Response, error)) (json.RawMessage, error) {
	out, err := c.cb.Execute(func() (any, error) {
		resp, err := call()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
		}
		if resp.IsError() {
			var ge cardlinkError
			if jerr := json.Unmarshal(resp.Body(), &ge); jerr != nil || ge.Message == "" {
				return nil, fmt.Errorf("%w: HTTP %d with undecodable body", ErrProtocol, resp.StatusCode())
			}
			// the gateway's own message passes through verbatim
			return nil, fmt.Errorf("%w: %s (%s)", domain.ErrGatewayRejected, ge.Message, ge.Code)
		}
		return json.RawMessage(resp.Body()), nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: circuit open", domain.ErrGatewayUnavailable)
		}
		return nil, err
	}
	return out.(json.RawMessage), nil
}

func (c *Cardlink) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	if !c.available {
		return nil, fmt.Errorf("%w: cardlink credentials missing", domain.ErrGatewayUnavailable)
	}
	tok, err := c.authToken(ctx)
	if err != nil {
		return nil, err
	}
	body, err := c.do(ctx, func() (*resty.Response, error) {
		return c.rc.R().SetContext(ctx).
			SetAuthToken(tok).
			SetBody(map[string]any{
				"amount":    req.AmountMinor,
				"currency":  req.Currency,
				"reference": req.MerchantReference,
				"returnUrl": req.RedirectURL,
				"customer": map[string]string{
					"name":  req.CustomerName,
					"email": req.CustomerEmail,
					"phone": req.CustomerPhone,
				},
			}).
			Post("/v1/orders")
	})
	if err != nil {
		return nil, err
	}
	var ord cardlinkOrder
	if err := json.Unmarshal(body, &ord); err != nil {
		return nil, fmt.Errorf("%w: decode order response: %v", ErrProtocol, err)
	}
	if ord.OrderID == "" || ord.PaymentURL == "" {
		return nil, fmt.Errorf("%w: order response missing orderId/paymentUrl", ErrProtocol)
	}
	return &InitiateResult{CheckoutURL: ord.PaymentURL, GatewayOrderID: ord.OrderID, Raw: body}, nil
}

func (c *Cardlink) CheckStatus(ctx context.Context, gatewayOrderID string) (*StatusResult, error) {
	if !c.available {
		return nil, fmt.Errorf("%w: cardlink credentials missing", domain.ErrGatewayUnavailable)
	}
	tok, err := c.authToken(ctx)
	if err != nil {
		return nil, err
	}
	body, err := c.do(ctx, func() (*resty.Response, error) {
		return c.rc.R().SetContext(ctx).
			SetAuthToken(tok).
			Get("/v1/orders/" + gatewayOrderID)
	})
	if err != nil {
		return nil, err
	}
	var ord cardlinkOrder
	if err := json.Unmarshal(body, &ord); err != nil {
		return nil, fmt.Errorf("%w: decode status response: %v", ErrProtocol, err)
	}
	st, err := cardlinkState(ord.Status)
	if err != nil {
		return nil, err
	}
	return &StatusResult{
		State:            st,
		AmountMinor:      ord.Amount,
		Method:           ord.Method,
		GatewayPaymentID: ord.PaymentID,
		Raw:              body,
	}, nil
}

func cardlinkState(s string) (State, error) {
	switch s {
	case "CREATED", "ACTIVE":
		return StatePending, nil
	case "PAID":
		return StateCompleted, nil
	case "FAILED", "EXPIRED":
		return StateFailed, nil
	}
	return "", fmt.Errorf("%w: unknown order status %q", ErrProtocol, s)
}

// VerifyWebhookSignature checks the HMAC-SHA256 hex signature the aggregator
// sends over the raw webhook body.
func (c *Cardlink) VerifyWebhookSignature(body []byte, signature string) bool {
	if c.cfg.WebhookSecret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(c.cfg.WebhookSecret))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(signature))
}
