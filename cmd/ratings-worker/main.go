package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/wanderly/tour-bookings/internal/adapters/rabbit"
	"github.com/wanderly/tour-bookings/internal/config"
	"github.com/wanderly/tour-bookings/internal/observability"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	mongoadapter "github.com/wanderly/tour-bookings/internal/adapters/mongo"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdownOtel, err := observability.SetupOTel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger()
	observability.InitMetrics()

	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	db := mongoClient.Database("tours")

	tours := mongoadapter.NewTourRepository(db, logger)
	reviews := mongoadapter.NewReviewRepository(db, nil, logger)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer conn.Close()
	consumer, err := rabbit.NewConsumer(conn, "ratings.q", "review.written")
	if err != nil {
		log.Fatalf("failed to create consumer: %v", err)
	}

	worker := NewRatingsWorker(tours, reviews, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deliveries, err := consumer.Consume(ctx)
	if err != nil {
		log.Fatalf("failed to start consuming: %v", err)
	}
	go worker.Run(ctx, deliveries)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutdown ratings worker")
}

// RatingsWorker recomputes a tour's rating aggregates whenever a review
// is written, updated, or deleted. Recalculation is idempotent, so a
// redelivered event is harmless.
type RatingsWorker struct {
	tours   *mongoadapter.TourRepository
	reviews *mongoadapter.ReviewRepository
	logger  observability.Logger
}

func NewRatingsWorker(tours *mongoadapter.TourRepository, reviews *mongoadapter.ReviewRepository, logger observability.Logger) *RatingsWorker {
	return &RatingsWorker{tours: tours, reviews: reviews, logger: logger}
}

func (w *RatingsWorker) Run(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case delivery, ok := <-deliveries:
			if !ok {
				return
			}
			if err := w.processWithRetry(ctx, delivery); err != nil {
				w.logger.Error("failed to process review event after retries", err)
				delivery.Nack(false, false)
				continue
			}
			delivery.Ack(false)
		}
	}
}

func (w *RatingsWorker) processWithRetry(ctx context.Context, delivery amqp.Delivery) error {
	maxRetries := 3
	var err error
	for i := 0; i < maxRetries; i++ {
		if err = w.process(ctx, delivery.Body); err == nil {
			return nil
		}
		backoff := time.Duration(1<<i) * time.Second
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return err
}

func (w *RatingsWorker) process(ctx context.Context, body []byte) error {
	var event rabbit.ReviewWrittenEvent
	if err := json.Unmarshal(body, &event); err != nil {
		// A malformed payload will never parse; dropping it beats
		// retrying forever.
		w.logger.Error("discarding malformed review event", err)
		return nil
	}

	tourID, err := primitive.ObjectIDFromHex(event.TourID)
	if err != nil {
		w.logger.WithField("tour_id", event.TourID).Error("discarding review event with invalid tour id", err)
		return nil
	}

	agg, err := w.reviews.CalcAverageRatings(ctx, tourID)
	if err != nil {
		return err
	}
	if err := w.tours.UpdateRatings(ctx, tourID, agg.Average, agg.Quantity); err != nil {
		return err
	}

	observability.RatingRecalcTotal.Inc()
	w.logger.
		WithField("tour_id", tourID.Hex()).
		WithField("ratings_average", agg.Average).
		WithField("ratings_quantity", agg.Quantity).
		Info("tour ratings recalculated")
	return nil
}
