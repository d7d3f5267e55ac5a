package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/omprakash24d/DriveRight-sub001/internal/notifier"
	"github.com/omprakash24d/DriveRight-sub001/internal/worker"
	"github.com/omprakash24d/DriveRight-sub001/pkg/config"
	"github.com/omprakash24d/DriveRight-sub001/pkg/mq"
)

func parseCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func main() {
	log.SetFormatter(&log.JSONFormatter{})
	_ = godotenv.Load()

	cfg, err := config.LoadWorker()
	if err != nil {
		log.Fatal(err)
	}

	var n notifier.Notifier
	if cfg.SMTPHost != "" {
		n = notifier.NewSMTP(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom)
	} else {
		log.Warn("SMTP not configured; notifications go to the console")
		n = notifier.NewConsole()
	}

	var cons *mq.Consumer
	for {
		cons, err = mq.NewConsumer(cfg.RabbitURL, cfg.PaymentExchange, cfg.NotifyQueue, parseCSV(cfg.NotifyBindings), mq.ConsumerOpts{
			Prefetch: cfg.Prefetch,
			DLXName:  cfg.NotifyDLX,
			DLXQueue: cfg.NotifyDLQ,
		})
		if err == nil {
			break
		}
		log.WithError(err).Warn("rabbitmq connect failed; retry in 2s")
		time.Sleep(2 * time.Second)
	}
	defer cons.Close()

	ctx, cancel := context.WithCancel(context.Background())
	w := worker.New(cons, n, cfg.AdminEmail)
	go func() {
		if err := w.Run(ctx); err != nil {
			log.WithError(err).Error("worker stopped")
		}
	}()

	log.WithFields(log.Fields{
		"queue": cfg.NotifyQueue, "exchange": cfg.PaymentExchange, "bindings": cfg.NotifyBindings,
	}).Info("notification worker started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	cancel()
	time.Sleep(200 * time.Millisecond)
}
