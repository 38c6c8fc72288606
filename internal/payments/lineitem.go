package payments

import (
	"math"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/wanderly/tour-bookings/internal/domain"
)

const currency = "usd"

// minorUnits converts a price in major currency units to the integer
// minor units the provider expects. The reconciler divides by the same
// factor, so the conversion round-trips.
const minorUnitFactor = 100

// BuildLineItem renders a tour as the provider's single-item line entry.
// The image reference is joined onto baseURL so the provider always
// receives an absolute URL.
func BuildLineItem(tour *domain.Tour, baseURL string) (*stripe.CheckoutSessionCreateLineItemParams, error) {
	if tour.Price <= 0 {
		return nil, domain.ErrInvalidTour
	}
	imageURL := strings.TrimSuffix(baseURL, "/") + "/img/tours/" + tour.ImageCover
	return &stripe.CheckoutSessionCreateLineItemParams{
		PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
			Currency: stripe.String(currency),
			ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
				Name:        stripe.String(tour.Name + " Tour"),
				Description: stripe.String(tour.Summary),
				Images:      stripe.StringSlice([]string{imageURL}),
			},
			UnitAmount: stripe.Int64(int64(math.Round(tour.Price * minorUnitFactor))),
		},
		Quantity: stripe.Int64(1),
	}, nil
}

// MajorUnits converts a provider amount back to major currency units.
func MajorUnits(amount int64) float64 {
	return float64(amount) / minorUnitFactor
}
