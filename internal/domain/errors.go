package domain

import "errors"

// Stable machine-readable failures. HTTP handlers map these with errors.Is;
// wrap with fmt.Errorf("%w: ...") to attach detail without losing the code.
var (
	ErrServiceNotFound = errors.New("service_not_found")
	ErrServiceInactive = errors.New("service_inactive")
	// A catalog entry priced at zero or below is a data bug, not user input.
	ErrInvalidPricing   = errors.New("invalid_pricing")
	ErrValidationFailed = errors.New("validation_failed")

	// Gateway credentials absent or breaker open; surfaces as 503.
	ErrGatewayUnavailable = errors.New("gateway_unavailable")
	// The gateway's API said no; its message is wrapped verbatim. 502.
	ErrGatewayRejected = errors.New("gateway_rejected")

	// Callback or verify for an unknown gateway order id. Security-relevant.
	ErrTransactionNotFound = errors.New("transaction_not_found")
	// Transient failure while re-querying the gateway. Never terminal: the
	// transaction stays pending and a later retry decides.
	ErrVerificationFailed = errors.New("verification_failed")
)

// ErrorCode extracts the stable code for a taxonomy error, or "internal".
func ErrorCode(err error) string {
	for _, e := range []error{
		ErrServiceNotFound, ErrServiceInactive, ErrInvalidPricing,
		ErrValidationFailed, ErrGatewayUnavailable, ErrGatewayRejected,
		ErrTransactionNotFound, ErrVerificationFailed,
	} {
		if errors.Is(err, e) {
			return e.Error()
		}
	}
	return "internal"
}
