package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/omprakash24d/DriveRight-sub001/internal/domain"
	"github.com/omprakash24d/DriveRight-sub001/internal/gateway"
	"github.com/omprakash24d/DriveRight-sub001/internal/service"
)

// WebhookHandler terminates the two gateways' callback formats. Payloads are
// hints: each path authenticates the delivery its gateway's way, extracts the
// gateway order id, and hands off to the same Reconcile the verify endpoint
// uses. After authentication the response is 200 no matter the payment
// outcome, since gateways treat anything else as "retry me".
type WebhookHandler struct {
	reconciler *service.Reconciler
	cardlink   *gateway.Cardlink
	walletpay  *gateway.Walletpay
}

func NewWebhookHandler(r *service.Reconciler, cl *gateway.Cardlink, wp *gateway.Walletpay) *WebhookHandler {
	return &WebhookHandler{reconciler: r, cardlink: cl, walletpay: wp}
}

// POST /payments/webhook/:gateway
func (h *WebhookHandler) Handle(c *gin.Context) {
	switch c.Param("gateway") {
	case "cardlink":
		h.handleCardlink(c)
	case "walletpay":
		h.handleWalletpay(c)
	default:
		c.JSON(http.StatusNotFound, gin.H{"code": "unknown_gateway"})
	}
}

type cardlinkWebhook struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"` // hint only, never trusted
}

func (h *WebhookHandler) handleCardlink(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}
	if !h.cardlink.VerifyWebhookSignature(body, c.GetHeader("X-Cardlink-Signature")) {
		log.WithField("security", true).Warn("cardlink webhook with bad signature rejected")
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	var wh cardlinkWebhook
	if err := json.Unmarshal(body, &wh); err != nil || wh.OrderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": "malformed_payload"})
		return
	}
	h.reconcileAndAck(c, wh.OrderID)
}

type walletpayWebhook struct {
	ID string `json:"id"` // event id; the charge is re-fetched from the gateway
}

func (h *WebhookHandler) handleWalletpay(c *gin.Context) {
	var wh walletpayWebhook
	if err := c.ShouldBindJSON(&wh); err != nil || wh.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": "malformed_payload"})
		return
	}
	orderID, err := h.walletpay.ResolveWebhookEvent(c.Request.Context(), wh.ID)
	if err != nil {
		// cannot prove the event is real without the gateway confirming it
		log.WithError(err).WithField("event_id", wh.ID).Warn("walletpay event verification failed")
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	h.reconcileAndAck(c, orderID)
}

// reconcileAndAck runs reconciliation and acknowledges the delivery. Unknown
// order ids are flagged for audit but still acked (a 4xx/5xx would only buy a
// retry storm for a callback that can never succeed); transient verification
// errors ack with a pending state so the gateway's own retry schedule, or the
// customer's verify call, finishes the job later.
func (h *WebhookHandler) reconcileAndAck(c *gin.Context, gatewayOrderID string) {
	res, err := h.reconciler.Reconcile(c.Request.Context(), gatewayOrderID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"state": res.State})
	case errors.Is(err, domain.ErrTransactionNotFound):
		log.WithFields(log.Fields{
			"gateway_order_id": gatewayOrderID, "audit": true,
		}).Warn("webhook for unknown transaction acked for manual audit")
		c.JSON(http.StatusOK, gin.H{"state": "UNKNOWN"})
	default:
		log.WithError(err).WithField("gateway_order_id", gatewayOrderID).
			Warn("webhook reconcile failed; acking with pending state")
		c.JSON(http.StatusOK, gin.H{"state": "PENDING"})
	}
}
