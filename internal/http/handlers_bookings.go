package http

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/wanderly/tour-bookings/internal/domain"
	"github.com/wanderly/tour-bookings/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GetCheckoutSession opens a hosted payment session for the logged-in
// user and the requested tour. The response carries the session id and
// redirect URL; no booking exists until the webhook confirms payment.
func (h *Handlers) GetCheckoutSession(w http.ResponseWriter, r *http.Request) {
	tourID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "tourID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid tour id")
		return
	}

	tour, err := h.tours.GetByID(r.Context(), tourID)
	if err != nil {
		observability.CheckoutSessionsTotal.WithLabelValues("failed").Inc()
		h.respondDomainError(w, err)
		return
	}

	session, err := h.payments.CreateCheckoutSession(r.Context(), tour, currentUser(r), h.cfg.BaseURL)
	if err != nil {
		observability.CheckoutSessionsTotal.WithLabelValues("failed").Inc()
		h.respondDomainError(w, err)
		return
	}

	observability.CheckoutSessionsTotal.WithLabelValues("created").Inc()
	respond(w, http.StatusOK, envelope{
		"status": "success",
		"data":   envelope{"session": session},
	})
}

// WebhookCheckout receives provider deliveries. The signature is checked
// over the raw body before anything else; an unverifiable payload is
// rejected with 400 so the provider retries. Once verified, the delivery
// is always acknowledged with 200, even when reconciliation fails, so
// the provider does not redeliver an event we cannot act on.
func (h *Handlers) WebhookCheckout(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		observability.WebhookEventsTotal.WithLabelValues("read_failed").Inc()
		respondError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	event, err := h.payments.VerifyEvent(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		observability.WebhookEventsTotal.WithLabelValues("verification_failed").Inc()
		h.logger.Warn("webhook signature verification failed", err)
		respondError(w, http.StatusBadRequest, "webhook signature verification failed")
		return
	}

	if err := h.reconciler.Reconcile(r.Context(), event); err != nil {
		observability.WebhookEventsTotal.WithLabelValues("reconcile_failed").Inc()
		h.logger.
			WithField("event_type", string(event.Type)).
			WithField("event_id", event.ID).
			Error("failed to reconcile checkout event", err)
	} else {
		observability.WebhookEventsTotal.WithLabelValues("processed").Inc()
	}

	respond(w, http.StatusOK, envelope{"received": true})
}

func (h *Handlers) ListBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.bookings.List(r.Context(), nil)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	respond(w, http.StatusOK, envelope{
		"status":  "success",
		"results": len(bookings),
		"data":    envelope{"bookings": bookings},
	})
}

func (h *Handlers) GetBooking(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid id")
		return
	}
	booking, err := h.bookings.GetByID(r.Context(), id)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, envelope{"booking": booking})
}

type bookingRequest struct {
	Tour  string  `json:"tour" validate:"required"`
	User  string  `json:"user" validate:"required"`
	Price float64 `json:"price" validate:"required,gt=0"`
}

// CreateBooking is the administrative path for bookings made outside the
// payment flow, such as offline or comped reservations.
func (h *Handlers) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req bookingRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondDomainError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	tourID, err := primitive.ObjectIDFromHex(req.Tour)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid tour id")
		return
	}
	userID, err := primitive.ObjectIDFromHex(req.User)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	if _, err := h.tours.GetByID(r.Context(), tourID); err != nil {
		h.respondDomainError(w, err)
		return
	}
	if _, err := h.users.FindByID(r.Context(), userID); err != nil {
		h.respondDomainError(w, err)
		return
	}

	booking := domain.NewBooking(tourID, userID, req.Price)
	if err := h.bookings.Create(r.Context(), &booking); err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusCreated, envelope{"booking": booking})
}

func (h *Handlers) UpdateBooking(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var set bson.M
	if err := decodeJSON(r, &set); err != nil {
		h.respondDomainError(w, err)
		return
	}
	delete(set, "_id")
	if len(set) == 0 {
		respondError(w, http.StatusBadRequest, "nothing to update")
		return
	}
	if price, ok := set["price"].(float64); ok && price <= 0 {
		respondError(w, http.StatusBadRequest, "a booking must have a positive price")
		return
	}

	if err := h.bookings.Update(r.Context(), id, set); err != nil {
		h.respondDomainError(w, err)
		return
	}
	booking, err := h.bookings.GetByID(r.Context(), id)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, envelope{"booking": booking})
}

func (h *Handlers) DeleteBooking(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := h.bookings.Delete(r.Context(), id); err != nil {
		h.respondDomainError(w, err)
		return
	}
	respond(w, http.StatusNoContent, nil)
}

// MyBookings lists the logged-in user's own bookings.
func (h *Handlers) MyBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.bookings.List(r.Context(), bson.M{"user": currentUser(r).ID})
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	respond(w, http.StatusOK, envelope{
		"status":  "success",
		"results": len(bookings),
		"data":    envelope{"bookings": bookings},
	})
}
