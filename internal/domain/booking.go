package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NewBooking builds the draft written by the reconciler. Paid is always
// true here: unpaid bookings can only be inserted out of band, directly
// in the store.
func NewBooking(tourID, userID primitive.ObjectID, price float64) Booking {
	return Booking{
		Tour:      tourID,
		User:      userID,
		Price:     price,
		CreatedAt: time.Now().UTC(),
		Paid:      true,
	}
}
