package httpx

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/omprakash24d/DriveRight-sub001/internal/metrics"
	"github.com/omprakash24d/DriveRight-sub001/pkg/auth"
)

// NewRouter assembles the public HTTP surface. Customer endpoints sit behind
// JWT auth; webhooks authenticate per-gateway inside the handler instead.
func NewRouter(verifier *auth.Verifier, oh *OrderHandler, ph *PaymentHandler, wh *WebhookHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), metrics.Middleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/payments/return", ReturnPage)
	r.POST("/payments/webhook/:gateway", wh.Handle)

	v1 := r.Group("/v1")
	secured := v1.Group("")
	secured.Use(JWTAuth(verifier))
	{
		secured.POST("/orders", oh.Create)
		secured.GET("/orders", oh.List)
		secured.GET("/orders/:id", oh.Get)
		secured.POST("/payments/verify", ph.Verify)
	}

	return r
}
