package httpx

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/omprakash24d/DriveRight-sub001/internal/domain"
	"github.com/omprakash24d/DriveRight-sub001/internal/gateway"
	"github.com/omprakash24d/DriveRight-sub001/internal/repository"
	"github.com/omprakash24d/DriveRight-sub001/internal/service"
)

type OrderHandler struct {
	orders   *service.Orders
	bookings *repository.BookingRepo
}

func NewOrderHandler(orders *service.Orders, bookings *repository.BookingRepo) *OrderHandler {
	return &OrderHandler{orders: orders, bookings: bookings}
}

type customerInfo struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required"`
	Phone string `json:"phone" binding:"required"`
}

type createOrderBody struct {
	ServiceID     string       `json:"serviceId" binding:"required"`
	ServiceType   string       `json:"serviceType" binding:"required"`
	CustomerInfo  customerInfo `json:"customerInfo" binding:"required"`
	ScheduledDate *time.Time   `json:"scheduledDate"`
	Notes         string       `json:"notes"`
	PromoCode     string       `json:"promoCode"`
	Gateway       string       `json:"gateway"`
}

// POST /v1/orders
func (h *OrderHandler) Create(c *gin.Context) {
	var body createOrderBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": domain.ErrValidationFailed.Error(), "error": err.Error()})
		return
	}
	res, err := h.orders.Create(c.Request.Context(), service.CreateOrderInput{
		ServiceID:     body.ServiceID,
		ServiceType:   body.ServiceType,
		CustomerName:  body.CustomerInfo.Name,
		CustomerEmail: body.CustomerInfo.Email,
		CustomerPhone: body.CustomerInfo.Phone,
		ScheduledDate: body.ScheduledDate,
		Notes:         body.Notes,
		PromoCode:     body.PromoCode,
		Gateway:       body.Gateway,
		CustomerIP:    c.ClientIP(),
		UserAgent:     c.Request.UserAgent(),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// GET /v1/orders/:id
func (h *OrderHandler) Get(c *gin.Context) {
	b, txs, err := h.orders.Booking(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": "booking_not_found"})
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": b, "transactions": txs})
}

// GET /v1/orders?page=1&page_size=20&status=pending&email=...
// Customers see their own bookings; ADMIN may filter by any email.
func (h *OrderHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}

	role, _ := c.Get("role")
	email, _ := c.Get("email")
	filterEmail, _ := email.(string)
	if role == "ADMIN" {
		if q := c.Query("email"); q != "" {
			filterEmail = q
		} else {
			filterEmail = ""
		}
	}

	list, total, err := h.bookings.List(c.Request.Context(), page-1, size, filterEmail, domain.BookingStatus(c.Query("status")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": list, "total": total})
}

type PaymentHandler struct {
	reconciler *service.Reconciler
}

func NewPaymentHandler(r *service.Reconciler) *PaymentHandler {
	return &PaymentHandler{reconciler: r}
}

type verifyBody struct {
	GatewayOrderID string `json:"gatewayOrderId" binding:"required"`
}

// POST /v1/payments/verify is the client-side half of reconciliation, called
// after the gateway redirects the customer back. Safe to call repeatedly.
func (h *PaymentHandler) Verify(c *gin.Context) {
	var body verifyBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": domain.ErrValidationFailed.Error(), "error": err.Error()})
		return
	}
	res, err := h.reconciler.Reconcile(c.Request.Context(), body.GatewayOrderID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /payments/return is the landing page after gateway checkout. The final
// verdict always comes from verify/webhook, never from this redirect.
func ReturnPage(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, `
	  <html><body>
		<h3>Thanks! We are confirming your payment.</h3>
		<p>reference: %s</p>
		<p>This page does not decide the outcome; your booking is confirmed
		once the payment is verified with the gateway. You will receive an
		email shortly.</p>
	  </body></html>
	`, c.Query("ref"))
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrServiceNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrServiceInactive),
		errors.Is(err, domain.ErrInvalidPricing),
		errors.Is(err, domain.ErrValidationFailed):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrGatewayUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrGatewayRejected), errors.Is(err, gateway.ErrProtocol):
		status = http.StatusBadGateway
	case errors.Is(err, domain.ErrTransactionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrVerificationFailed):
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"code": domain.ErrorCode(err), "error": err.Error()})
}
