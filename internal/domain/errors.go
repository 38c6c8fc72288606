package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrInvalidInput    = errors.New("invalid input")
	ErrInvalidTour     = errors.New("tour has no valid price")
	ErrUserResolution  = errors.New("no user matches checkout email")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrPaymentProvider = errors.New("payment provider failure")
)
