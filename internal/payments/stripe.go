package payments

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"github.com/wanderly/tour-bookings/internal/domain"
	"github.com/wanderly/tour-bookings/internal/observability"
)

// Client wraps the provider SDK. It is constructed once at startup and
// injected; there is no package-level API key state.
type Client struct {
	api           *stripe.Client
	signingSecret string
	logger        observability.Logger
}

func NewClient(secretKey, signingSecret string, logger observability.Logger) *Client {
	return &Client{
		api:           stripe.NewClient(secretKey),
		signingSecret: signingSecret,
		logger:        logger,
	}
}

type Session struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CreateCheckoutSession requests a hosted payment session for a single
// tour. The success URL carries no booking data: bookings are only ever
// created from the verified webhook, so nothing in the redirect can be
// replayed to fabricate one. The cancel URL returns to the tour page.
func (c *Client) CreateCheckoutSession(ctx context.Context, tour *domain.Tour, user *domain.User, baseURL string) (*Session, error) {
	lineItem, err := BuildLineItem(tour, baseURL)
	if err != nil {
		return nil, err
	}

	base := strings.TrimSuffix(baseURL, "/")
	params := &stripe.CheckoutSessionCreateParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(base + "/"),
		CancelURL:         stripe.String(base + "/tour/" + tour.Slug),
		CustomerEmail:     stripe.String(user.Email),
		ClientReferenceID: stripe.String(tour.ID.Hex()),
		LineItems:         []*stripe.CheckoutSessionCreateLineItemParams{lineItem},
	}

	session, err := c.api.V1CheckoutSessions.Create(ctx, params)
	if err != nil {
		c.logger.WithField("tour_id", tour.ID.Hex()).Error("failed to create checkout session", err)
		return nil, errors.Mark(errors.Wrap(err, "create checkout session"), domain.ErrPaymentProvider)
	}

	return &Session{ID: session.ID, URL: session.URL}, nil
}

// VerifyEvent authenticates a webhook delivery. The payload must be the
// raw request bytes: the signature is an HMAC over the exact bytes the
// provider sent, with a timestamp tolerance against replays. Acceptance
// is decided by the signature alone, not by the API version the sending
// account happens to be pinned to.
func (c *Client) VerifyEvent(payload []byte, signatureHeader string) (stripe.Event, error) {
	return webhook.ConstructEventWithOptions(payload, signatureHeader, c.signingSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}
