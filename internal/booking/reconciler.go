package booking

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/stripe/stripe-go/v82"
	"github.com/wanderly/tour-bookings/internal/domain"
	"github.com/wanderly/tour-bookings/internal/observability"
	"github.com/wanderly/tour-bookings/internal/payments"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserResolver looks up the purchasing user by the email the provider
// echoes back from session creation.
type UserResolver interface {
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
}

type BookingCreator interface {
	Create(ctx context.Context, booking *domain.Booking) error
}

// Reconciler turns verified checkout-completion events into booking
// records. It trusts only what the provider reports: the tour id from
// client_reference_id, the user from customer_email, the price from
// amount_total.
type Reconciler struct {
	users    UserResolver
	bookings BookingCreator
	logger   observability.Logger
}

func NewReconciler(users UserResolver, bookings BookingCreator, logger observability.Logger) *Reconciler {
	return &Reconciler{users: users, bookings: bookings, logger: logger}
}

// handled reports whether the event type maps to a completed checkout.
// The "complete" spelling is an alias the historical integration
// subscribed to; both are treated identically.
func handled(eventType stripe.EventType) bool {
	return eventType == "checkout.session.completed" || eventType == "checkout.session.complete"
}

// Reconcile creates exactly one booking per invocation for a completed
// checkout. Unhandled event types are ignored without error. There is no
// dedupe on redelivery: the provider retries only when the webhook is
// not acknowledged, and the handler acknowledges after every verified
// delivery.
func (r *Reconciler) Reconcile(ctx context.Context, event stripe.Event) error {
	if !handled(event.Type) {
		r.logger.WithField("event_type", string(event.Type)).Debug("ignoring unhandled event type")
		return nil
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return errors.Wrap(err, "parse checkout session payload")
	}

	tourID, err := primitive.ObjectIDFromHex(session.ClientReferenceID)
	if err != nil {
		return errors.Wrapf(err, "invalid client_reference_id %q", session.ClientReferenceID)
	}

	user, err := r.users.FindByEmail(ctx, session.CustomerEmail)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// The provider required a valid email at session creation,
			// so a miss here means the account changed or was removed
			// between checkout and delivery.
			return errors.Mark(
				errors.Newf("customer email %q resolves to no user", session.CustomerEmail),
				domain.ErrUserResolution,
			)
		}
		return errors.Wrap(err, "resolve user by email")
	}

	draft := domain.NewBooking(tourID, user.ID, payments.MajorUnits(session.AmountTotal))
	if err := r.bookings.Create(ctx, &draft); err != nil {
		return errors.Wrap(err, "persist booking")
	}

	observability.BookingsCreated.Inc()
	r.logger.
		WithField("session_id", session.ID).
		WithField("tour_id", tourID.Hex()).
		WithField("user_id", user.ID.Hex()).
		Info("booking reconciled")
	return nil
}
