package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wanderly/tour-bookings/internal/domain"
	"github.com/wanderly/tour-bookings/internal/observability"
)

func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		observability.RequestsTotal.WithLabelValues(route, strconv.Itoa(ww.Status()), r.Method).Inc()
	})
}

func SetupRouter(h *Handlers, logger observability.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(TracingMiddleware)
	r.Use(MetricsMiddleware)

	// The webhook sits outside /api/v1 and outside auth: the provider
	// authenticates by signature, not by session.
	r.Post("/webhook-checkout", h.WebhookCheckout)

	r.Get("/healthz", h.Healthz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			r.Post("/signup", h.Signup)
			r.Post("/login", h.Login)
			r.Get("/logout", h.Logout)
			r.Post("/forgotPassword", h.ForgotPassword)
			r.Patch("/resetPassword/{token}", h.ResetPassword)

			r.Group(func(r chi.Router) {
				r.Use(h.Protect)
				r.Patch("/updateMyPassword", h.UpdatePassword)
				r.Get("/me", h.GetMe)
				r.Patch("/updateMe", h.UpdateMe)
				r.Delete("/deleteMe", h.DeleteMe)

				r.Group(func(r chi.Router) {
					r.Use(RestrictTo(domain.RoleAdmin))
					r.Get("/", h.ListUsers)
					r.Get("/{id}", h.GetUser)
					r.Patch("/{id}", h.UpdateUser)
					r.Delete("/{id}", h.DeleteUser)
				})
			})
		})

		r.Route("/tours", func(r chi.Router) {
			r.Get("/", h.ListTours)
			r.Get("/top-5-cheap", h.TopTours)
			r.Get("/tour-stats", h.TourStats)
			r.Get("/tours-within/{distance}/center/{latlng}/unit/{unit}", h.ToursWithin)
			r.Get("/distances/{latlng}/unit/{unit}", h.TourDistances)
			r.Get("/slug/{slug}", h.GetTourBySlug)
			r.Get("/{id}", h.GetTour)

			r.Group(func(r chi.Router) {
				r.Use(h.Protect)
				r.With(RestrictTo(domain.RoleAdmin, domain.RoleLeadGuide, domain.RoleGuide)).
					Get("/monthly-plan/{year}", h.MonthlyPlan)

				r.Group(func(r chi.Router) {
					r.Use(RestrictTo(domain.RoleAdmin, domain.RoleLeadGuide))
					r.Post("/", h.CreateTour)
					r.Patch("/{id}", h.UpdateTour)
					r.Delete("/{id}", h.DeleteTour)
				})
			})

			// Nested review routes scope listing and creation to one tour.
			r.Route("/{tourID}/reviews", func(r chi.Router) {
				r.Get("/", h.ListReviews)
				r.With(h.Protect, RestrictTo(domain.RoleUser)).Post("/", h.CreateReview)
			})
		})

		r.Route("/reviews", func(r chi.Router) {
			r.Use(h.Protect)
			r.Get("/", h.ListReviews)
			r.With(RestrictTo(domain.RoleUser)).Post("/", h.CreateReview)
			r.Get("/{id}", h.GetReview)
			r.Group(func(r chi.Router) {
				r.Use(RestrictTo(domain.RoleUser, domain.RoleAdmin))
				r.Patch("/{id}", h.UpdateReview)
				r.Delete("/{id}", h.DeleteReview)
			})
		})

		r.Route("/bookings", func(r chi.Router) {
			r.Use(h.Protect)
			r.Get("/checkout-session/{tourID}", h.GetCheckoutSession)
			r.Get("/my-bookings", h.MyBookings)

			r.Group(func(r chi.Router) {
				r.Use(RestrictTo(domain.RoleAdmin, domain.RoleLeadGuide))
				r.Get("/", h.ListBookings)
				r.Post("/", h.CreateBooking)
				r.Get("/{id}", h.GetBooking)
				r.Patch("/{id}", h.UpdateBooking)
				r.Delete("/{id}", h.DeleteBooking)
			})
		})
	})

	return r
}
