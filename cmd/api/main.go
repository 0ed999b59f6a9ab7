package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/ariefcatur/campus-eats/internal/config"
	"github.com/ariefcatur/campus-eats/internal/httpx"
	kafkax "github.com/ariefcatur/campus-eats/internal/kafka"
	"github.com/ariefcatur/campus-eats/internal/notify"
	"github.com/ariefcatur/campus-eats/internal/orders"
	"github.com/ariefcatur/campus-eats/internal/payments"
	"github.com/ariefcatur/campus-eats/internal/postgres"
	"github.com/ariefcatur/campus-eats/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.ServiceName).Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Notification producers: satu per channel topic
	pUser := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicUserNotifications, 1024, log)
	pUser.Start(ctx)
	pStaff := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicStaffNotifications, 1024, log)
	pStaff.Start(ctx)

	svc := &orders.Service{
		Store:    &orders.Repo{DB: db},
		Provider: payments.NewClient(cfg.PaymentBaseURL, cfg.PaymentAPIKey, cfg.PaymentWebhookSecret),
		Notifier: &notify.KafkaNotifier{Users: pUser, Staff: pStaff, Service: cfg.ServiceName, Log: log},
		Dedup:    &redisx.WebhookDeduper{R: rdb},
		Cache:    &redisx.StatusCache{R: rdb},
		Currency: cfg.Currency,
		Log:      log,
	}

	router := httpx.NewRouter()
	(&httpx.OrdersHandler{Svc: svc, Cache: &redisx.StatusCache{R: rdb}}).Register(router)
	(&httpx.PaymentsHandler{Svc: svc}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info().Msg("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	pUser.Close() // tutup inbox -> flush & close writer
	pStaff.Close()
	cancel()
	pUser.WaitClosed()
	pStaff.WaitClosed()
}
