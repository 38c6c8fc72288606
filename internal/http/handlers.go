package http

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/wanderly/tour-bookings/internal/adapters/mongo"
	"github.com/wanderly/tour-bookings/internal/adapters/redis"
	"github.com/wanderly/tour-bookings/internal/auth"
	"github.com/wanderly/tour-bookings/internal/booking"
	"github.com/wanderly/tour-bookings/internal/config"
	"github.com/wanderly/tour-bookings/internal/observability"
	"github.com/wanderly/tour-bookings/internal/payments"
)

type Handlers struct {
	cfg        *config.Config
	logger     observability.Logger
	validate   *validator.Validate
	tokens     *auth.TokenService
	users      *mongo.UserRepository
	tours      *mongo.TourRepository
	reviews    *mongo.ReviewRepository
	bookings   *mongo.BookingRepository
	tourCache  *redis.TourCache
	payments   *payments.Client
	reconciler *booking.Reconciler
}

func NewHandlers(
	cfg *config.Config,
	logger observability.Logger,
	tokens *auth.TokenService,
	users *mongo.UserRepository,
	tours *mongo.TourRepository,
	reviews *mongo.ReviewRepository,
	bookings *mongo.BookingRepository,
	tourCache *redis.TourCache,
	paymentClient *payments.Client,
	reconciler *booking.Reconciler,
) *Handlers {
	return &Handlers{
		cfg:        cfg,
		logger:     logger,
		validate:   validator.New(),
		tokens:     tokens,
		users:      users,
		tours:      tours,
		reviews:    reviews,
		bookings:   bookings,
		tourCache:  tourCache,
		payments:   paymentClient,
		reconciler: reconciler,
	}
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
