package main // Entry point package

import (
	"log"

	"github.com/labstack/echo/v4"

	"github.com/khatteland/drikkepress-v2-sub001/internal/config"
	"github.com/khatteland/drikkepress-v2-sub001/internal/database"
	"github.com/khatteland/drikkepress-v2-sub001/internal/handler"
	"github.com/khatteland/drikkepress-v2-sub001/internal/notification"
	"github.com/khatteland/drikkepress-v2-sub001/internal/queue"
	"github.com/khatteland/drikkepress-v2-sub001/internal/repository"
	"github.com/khatteland/drikkepress-v2-sub001/internal/router"
	"github.com/khatteland/drikkepress-v2-sub001/internal/service"
	"github.com/khatteland/drikkepress-v2-sub001/internal/vipps"
)

func main() {
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Redis is optional; a nil client turns the rate limiter into a
	// pass-through.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; rate limiting disabled")
	}

	slots := repository.NewTimeslotRepo(db)
	bookings := repository.NewBookingRepo(db)
	txns := repository.NewTransactionRepo(db)
	users := repository.NewUserRepo(db)
	events := repository.NewEventRepo(db)

	gateway := vipps.NewClient(cfg.VippsBaseURL, cfg.VippsClientID, cfg.VippsClientSecret, cfg.VippsSubscriptionKey)

	// Without a broker URL notifications are disabled entirely; with one,
	// a background consumer delivers queued events to the email sender.
	var publisher queue.Publisher
	if cfg.RabbitURL != "" {
		publisher = queue.NewAMQPPublisher(cfg.RabbitURL)
		go func() {
			if err := queue.StartNotificationConsumer(cfg.RabbitURL, notification.NewLogSender()); err != nil {
				log.Printf("notify-consumer stopped: %v", err)
			}
		}()
	} else {
		log.Println("RABBITMQ_URL unset; notifications disabled")
	}
	dispatcher := service.NewDispatcher(users, events, publisher)

	reservations := service.NewReservations(db, slots, bookings, txns, gateway, dispatcher, cfg.PaymentReturnURL)
	reconciler := service.NewReconciler(db, slots, bookings, txns, dispatcher)
	cancellations := service.NewCancellations(db, slots, bookings, txns, gateway, dispatcher)

	e := echo.New()
	router.RegisterPublic(e,
		handler.NewTimeslotHandler(slots),
		handler.NewWebhookHandler(reconciler, cfg.WebhookSecret),
	)
	router.RegisterBooking(e,
		handler.NewBookingHandler(reservations, cancellations),
		cfg.JWTSecret, config.LoadRateLimitConfig(), rdb,
	)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
