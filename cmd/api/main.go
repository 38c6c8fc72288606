package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"
	"github.com/wanderly/tour-bookings/internal/adapters/rabbit"
	redisadapter "github.com/wanderly/tour-bookings/internal/adapters/redis"
	"github.com/wanderly/tour-bookings/internal/auth"
	"github.com/wanderly/tour-bookings/internal/booking"
	"github.com/wanderly/tour-bookings/internal/config"
	httphandler "github.com/wanderly/tour-bookings/internal/http"
	"github.com/wanderly/tour-bookings/internal/observability"
	"github.com/wanderly/tour-bookings/internal/payments"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"

	mongoadapter "github.com/wanderly/tour-bookings/internal/adapters/mongo"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdown, err := observability.SetupOTel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdown()

	logger := observability.NewLogger()
	observability.InitMetrics()

	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	db := mongoClient.Database("tours")

	rabbitConn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer rabbitConn.Close()
	rabbitPub, err := rabbit.NewPublisher(rabbitConn)
	if err != nil {
		log.Fatalf("failed to create publisher: %v", err)
	}

	tours := mongoadapter.NewTourRepository(db, logger)
	users := mongoadapter.NewUserRepository(db, logger)
	reviews := mongoadapter.NewReviewRepository(db, rabbitPub, logger)
	bookings := mongoadapter.NewBookingRepository(db, logger)

	indexCtx, cancelIndexes := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelIndexes()
	g, gctx := errgroup.WithContext(indexCtx)
	for _, ensure := range []func(context.Context) error{
		tours.EnsureIndexes,
		users.EnsureIndexes,
		reviews.EnsureIndexes,
	} {
		ensure := ensure
		g.Go(func() error { return ensure(gctx) })
	}
	if err := g.Wait(); err != nil {
		log.Fatalf("failed to ensure indexes: %v", err)
	}

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	tourCache := redisadapter.NewTourCache(redisClient, 10*time.Minute)

	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTExpiresIn)
	paymentClient := payments.NewClient(cfg.StripeSecretKey, cfg.StripeWebhookSecret, logger)
	reconciler := booking.NewReconciler(users, bookings, logger)

	handlers := httphandler.NewHandlers(cfg, logger, tokens, users, tours, reviews, bookings, tourCache, paymentClient, reconciler)
	r := httphandler.SetupRouter(handlers, logger)

	srv := &http.Server{
		Addr:    ":8080",
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown Server ...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}
	logger.Info("Server exiting")
}
