package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/omprakash24d/DriveRight-sub001/internal/gateway"
	"github.com/omprakash24d/DriveRight-sub001/internal/notify"
	"github.com/omprakash24d/DriveRight-sub001/internal/repository"
	"github.com/omprakash24d/DriveRight-sub001/internal/service"
	httpx "github.com/omprakash24d/DriveRight-sub001/internal/transport/http"
	"github.com/omprakash24d/DriveRight-sub001/pkg/auth"
	"github.com/omprakash24d/DriveRight-sub001/pkg/config"
	"github.com/omprakash24d/DriveRight-sub001/pkg/db"
	"github.com/omprakash24d/DriveRight-sub001/pkg/mq"
	"github.com/omprakash24d/DriveRight-sub001/pkg/obs"
)

func must[T any](v T, err error) T {
	if err != nil {
		log.Fatal(err)
	}
	return v
}

func main() {
	log.SetFormatter(&log.JSONFormatter{})
	_ = godotenv.Load()

	cfg := must(config.Load())

	shutdownTracer := obs.InitTracer("booking-service")
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracer(ctx)
	}()

	// DB + repos
	gdb := db.Open(cfg.PGBookingDSN)
	services := repository.NewServiceRepo(gdb)
	bookings := repository.NewBookingRepo(gdb)
	ledger := repository.NewTransactionLedger(gdb)
	must(0, services.Migrate())
	must(0, bookings.Migrate())
	must(0, ledger.Migrate())

	// MQ publisher for notification + domain events
	pub := must(mq.NewPublisher(cfg.RabbitURL, cfg.PaymentExchange))
	defer pub.Close()

	// Gateway adapters: constructed once, injected everywhere. A missing
	// credential set keeps the adapter registered but unavailable (503).
	timeout := time.Duration(cfg.GatewayTimeoutSec) * time.Second
	cardlink := gateway.NewCardlink(gateway.CardlinkConfig{
		BaseURL:       cfg.CardlinkBaseURL,
		Key:           cfg.CardlinkKey,
		Secret:        cfg.CardlinkSecret,
		WebhookSecret: cfg.CardlinkWebhookSecret,
		Timeout:       timeout,
	})
	walletpay := gateway.NewWalletpay(cfg.WalletpayPublicKey, cfg.WalletpaySecretKey)
	registry := gateway.NewRegistry(cfg.DefaultGateway, cardlink, walletpay)

	orders := service.NewOrders(services, bookings, ledger, registry, cfg.BaseURL)
	reconciler := service.NewReconciler(bookings, ledger, registry, notify.NewPublisher(pub), pub)

	verifier := auth.NewVerifier(cfg.JWTSecret)
	router := httpx.NewRouter(
		verifier,
		httpx.NewOrderHandler(orders, bookings),
		httpx.NewPaymentHandler(reconciler),
		httpx.NewWebhookHandler(reconciler, cardlink, walletpay),
	)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("booking service listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	log.Info("booking service stopped")
}
