package config

import (
	"github.com/kelseyhightower/envconfig"
)

type App struct {
	// DB
	PGBookingDSN string `envconfig:"PG_BOOKING_DSN" required:"true"`
	// HTTP
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`
	BaseURL  string `envconfig:"BASE_URL" default:"http://localhost:8080"`
	// JWT
	JWTSecret    string `envconfig:"JWT_SECRET" required:"true"`
	JWTExpireMin int    `envconfig:"JWT_EXPIRE_MIN" default:"60"`

	// RabbitMQ
	RabbitURL       string `envconfig:"RABBIT_URL" required:"true"`
	PaymentExchange string `envconfig:"PAYMENT_EXCHANGE" default:"payment.exchange"`

	// Gateway selection: "cardlink" or "walletpay"
	DefaultGateway string `envconfig:"DEFAULT_GATEWAY" default:"cardlink"`
	// Timeout applied to outbound gateway calls (seconds)
	GatewayTimeoutSec int `envconfig:"GATEWAY_TIMEOUT_SEC" default:"15"`

	// Cardlink (card/UPI aggregator)
	CardlinkBaseURL       string `envconfig:"CARDLINK_BASE_URL" default:"https://api.cardlink.in"`
	CardlinkKey           string `envconfig:"CARDLINK_KEY"`
	CardlinkSecret        string `envconfig:"CARDLINK_SECRET"`
	CardlinkWebhookSecret string `envconfig:"CARDLINK_WEBHOOK_SECRET"`

	// Walletpay (wallet aggregator, hosted checkout)
	WalletpayPublicKey string `envconfig:"WALLETPAY_PUBLIC_KEY"`
	WalletpaySecretKey string `envconfig:"WALLETPAY_SECRET_KEY"`
}

type Worker struct {
	RabbitURL       string `envconfig:"RABBIT_URL" required:"true"`
	PaymentExchange string `envconfig:"PAYMENT_EXCHANGE" default:"payment.exchange"`
	NotifyQueue     string `envconfig:"NOTIFY_QUEUE" default:"notification.q"`
	NotifyBindings  string `envconfig:"NOTIFY_BINDINGS" default:"notify.#,payment.*,booking.*"`
	NotifyDLX       string `envconfig:"NOTIFY_DLX" default:"notification.dlx"`
	NotifyDLQ       string `envconfig:"NOTIFY_DLQ" default:"notification.q.dlq"`
	Prefetch        int    `envconfig:"NOTIFY_PREFETCH" default:"16"`
	AdminEmail      string `envconfig:"ADMIN_ALERT_EMAIL"`

	// SMTP; when host is empty the worker logs to console instead
	SMTPHost string `envconfig:"SMTP_HOST"`
	SMTPPort int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPUser string `envconfig:"SMTP_USER"`
	SMTPPass string `envconfig:"SMTP_PASS"`
	SMTPFrom string `envconfig:"SMTP_FROM" default:"noreply@driveright.in"`
}

func Load() (App, error) {
	var c App
	err := envconfig.Process("", &c)
	return c, err
}

func LoadWorker() (Worker, error) {
	var c Worker
	err := envconfig.Process("", &c)
	return c, err
}
